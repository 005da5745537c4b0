package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/config"
	"github.com/gennadis/geminichatui/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	token   string
	cleared int
}

func (m *memTokens) Token() string { return m.token }

func (m *memTokens) Clear() error {
	m.token = ""
	m.cleared++
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, tokens *memTokens, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.Config{BaseURL: server.URL, RequestTimeout: 5 * time.Second}
	return NewClient(cfg, tokens, opts...)
}

func TestClient_InjectsHeaders(t *testing.T) {
	var got http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"user":{"id":"u1","username":"a"}}`))
	}), &memTokens{token: "T"})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", user.Username)
	assert.Equal(t, "Bearer T", got.Get("Authorization"))
	assert.Equal(t, JSONContentType, got.Get("Content-Type"))
	assert.NotEmpty(t, got.Get(requestIDHeader))
}

func TestClient_NoTokenNoAuthorization(t *testing.T) {
	var got http.Header
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"token":"T"}`))
	}), &memTokens{})

	_, err := c.Login(context.Background(), chat.Credentials{Email: "a", Password: "b"})
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	tokens := &memTokens{token: "stale"}
	var navigated int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expired"}`))
	}), tokens, WithUnauthorizedHandler(func() { navigated++ }))

	_, err := c.ListConversations(context.Background(), 1, 20, false)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, tokens.token)
	assert.Equal(t, 1, tokens.cleared)
	assert.Equal(t, 1, navigated)
}

func TestClient_APIErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusBadRequest, `{"error":"title required"}`, "title required"},
		{"message field", http.StatusNotFound, `{"message":"not found"}`, "not found"},
		{"non json", http.StatusInternalServerError, `<html>oops</html>`, fallbackErrorMessage},
		{"empty", http.StatusBadGateway, ``, fallbackErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}), &memTokens{token: "T"})

			_, err := c.GetConversation(context.Background(), "c1")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	c := NewClient(config.Config{BaseURL: server.URL, RequestTimeout: time.Second}, &memTokens{})

	err := c.Logout(context.Background())
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestClient_NetworkProbe(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), &memTokens{}, WithNetworkProbe(func(context.Context) error {
		return errors.New("airplane mode")
	}))

	_, err := c.Models(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	assert.Zero(t, hits.Load())
}

func TestClient_ConversationEndpoints(t *testing.T) {
	type call struct {
		method, path, query string
		body                map[string]any
	}
	var calls []call
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, r.URL.RawQuery, body})
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/conversations":
			w.Write([]byte(`{"id":"c9","title":"New conversation"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/conversations":
			w.Write([]byte(`{"conversations":[{"id":"c9"}],"currentPage":2,"totalPages":3}`))
		}
	}), &memTokens{token: "T"})
	ctx := context.Background()

	page, err := c.ListConversations(ctx, 2, 20, true)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)

	conv, err := c.CreateConversation(ctx, chat.NewConversation{Title: chat.DefaultTitle})
	require.NoError(t, err)
	assert.Equal(t, "c9", conv.ID)

	require.NoError(t, c.UpdateConversationTitle(ctx, "c9", "Renamed"))
	require.NoError(t, c.SetArchived(ctx, "c9", true))
	require.NoError(t, c.AddMessage(ctx, "c9", chat.Message{Role: chat.ChatRoleUser, Content: "hi"}))
	require.NoError(t, c.DeleteConversations(ctx, []string{"c1", "c2"}))
	require.NoError(t, c.DeleteConversation(ctx, "c9"))

	require.Len(t, calls, 7)
	assert.Equal(t, "archived=true&limit=20&page=2", calls[0].query)
	assert.Equal(t, []any{}, calls[1].body["messages"])
	assert.Equal(t, call{http.MethodPatch, "/conversations/c9/title", "", map[string]any{"title": "Renamed"}}, calls[2])
	assert.Equal(t, map[string]any{"archive": true}, calls[3].body)
	assert.Equal(t, "/conversations/c9/messages", calls[4].path)
	assert.Equal(t, map[string]any{"conversationIds": []any{"c1", "c2"}}, calls[5].body)
	assert.Equal(t, http.MethodDelete, calls[6].method)
}

func TestClient_UploadAvatarUsesMultipart(t *testing.T) {
	var contentType, filename, content string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		file, header, err := r.FormFile("avatar")
		if err == nil {
			filename = header.Filename
			raw, _ := io.ReadAll(file)
			content = string(raw)
		}
		w.Write([]byte(`{"id":"u1","username":"a","avatar":"/avatars/u1.png"}`))
	}), &memTokens{token: "T"})

	user, err := c.UploadAvatar(context.Background(), "me.png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "/avatars/u1.png", user.Avatar)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
	assert.Equal(t, "me.png", filename)
	assert.Equal(t, "PNGDATA", content)
}

func TestClient_GenerateStream(t *testing.T) {
	var request chat.GenerateRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&request)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"text\":\"Hi \"}\n\n"))
		w.(http.Flusher).Flush()
		w.Write([]byte("data: {\"text\":\"there\",\"done\":true}\n\n"))
	}), &memTokens{token: "T"})

	reader, err := c.GenerateStream(context.Background(), chat.GenerateRequest{Prompt: "hello", Sampling: chat.DefaultSampling()})
	require.NoError(t, err)

	res, err := stream.Consume(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", res.Text)
	assert.True(t, request.Stream)
	assert.Equal(t, "hello", request.Prompt)
	assert.Equal(t, chat.DefaultMaxTokens, request.MaxTokens)
}

func TestClient_GenerateStreamRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}), &memTokens{token: "T"})

	_, err := c.GenerateStream(context.Background(), chat.GenerateRequest{Prompt: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "slow down", apiErr.Message)
}
