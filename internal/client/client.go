package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gennadis/geminichatui/internal/config"
	"github.com/google/uuid"
)

const (
	JSONContentType = "application/json"
	requestIDHeader = "X-Request-ID"
)

// TokenStore is the persistent slot holding the session token.
type TokenStore interface {
	Token() string
	Clear() error
}

type Option func(*Client)

// WithUnauthorizedHandler registers the navigation performed after a 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithNetworkProbe runs probe before every request; a failing probe aborts the request with ErrOffline.
func WithNetworkProbe(probe func(ctx context.Context) error) Option {
	return func(c *Client) { c.probe = probe }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

type Client struct {
	httpClient     *http.Client
	streamClient   *http.Client
	baseURL        string
	tokens         TokenStore
	onUnauthorized func()
	probe          func(ctx context.Context) error
}

func NewClient(cfg config.Config, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		// streams may outlive any request timeout; they are bounded by their context instead
		streamClient: &http.Client{},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokens:       tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHandler replaces the 401 navigation hook after construction.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// do sends in as JSON (if non-nil) and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		reqBytes, err := json.Marshal(in)
		if err != nil {
			slog.Error("Failed to marshal request body", "path", path, "error", err)
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(reqBytes)
	}
	return c.doRaw(ctx, method, path, body, JSONContentType, out)
}

// doRaw sends body with the given content type; callers with binary bodies pass their own.
func (c *Client) doRaw(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	res, err := c.send(ctx, c.httpClient, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Error("Failed to read response body", "path", path, "error", err)
		return &TransportError{Op: "read response", Err: err}
	}

	if out == nil || len(bytes.TrimSpace(resBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		slog.Error("Failed to unmarshal response body", "path", path, "error", err)
		return fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return nil
}

// send performs the request and returns a response with a 2xx status; the caller closes its body.
func (c *Client) send(ctx context.Context, httpClient *http.Client, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if c.probe != nil {
		if err := c.probe(ctx); err != nil {
			slog.Error("Network probe failed", "path", path, "error", err)
			return nil, &TransportError{Op: "network check", Err: errors.Join(ErrOffline, err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		slog.Error("Failed to build request", "path", path, "error", err)
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", JSONContentType)
	req.Header.Set(requestIDHeader, uuid.NewString())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	res, err := httpClient.Do(req)
	if err != nil {
		slog.Error("Failed to send request", "method", method, "path", path, "error", err)
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	if res.StatusCode == http.StatusUnauthorized {
		drainAndClose(res.Body)
		c.handleUnauthorized()
		slog.Error("Request unauthorized", "method", method, "path", path)
		return nil, ErrUnauthorized
	}

	if err := handleApiError(res); err != nil {
		slog.Error("Api request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) handleUnauthorized() {
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			slog.Error("Failed to clear session token", "error", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// handleApiError closes the body of a failed response.
func handleApiError(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	defer res.Body.Close()

	apiErr := &APIError{StatusCode: res.StatusCode, Message: fallbackErrorMessage}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return apiErr
	}

	errResp := ApiErrorResponse{}
	if err := json.Unmarshal(body, &errResp); err != nil {
		slog.Debug("Failed to unmarshal api error response", "error", err)
		return apiErr
	}
	switch {
	case errResp.Error != "":
		apiErr.Message = errResp.Error
	case errResp.Message != "":
		apiErr.Message = errResp.Message
	}
	return apiErr
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}

func escape(id string) string {
	return url.PathEscape(id)
}
