package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/stream"
)

func (c *Client) Models(ctx context.Context) ([]chat.Model, error) {
	var resp struct {
		Models []chat.Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/gemini/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// Generate performs a single blocking generation.
func (c *Client) Generate(ctx context.Context, request chat.GenerateRequest) (*chat.GenerateResponse, error) {
	resp := &chat.GenerateResponse{}
	if err := c.do(ctx, http.MethodPost, "/gemini/generate", request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GenerateStream opens a server-sent event stream. The returned reader owns the response body.
func (c *Client) GenerateStream(ctx context.Context, request chat.GenerateRequest) (*stream.Reader, error) {
	request.Stream = true
	reqBytes, err := json.Marshal(request)
	if err != nil {
		slog.Error("Failed to marshal stream request", "error", err)
		return nil, fmt.Errorf("failed to marshal stream request: %w", err)
	}

	res, err := c.send(ctx, c.streamClient, http.MethodPost, "/gemini/generate-stream", bytes.NewReader(reqBytes), JSONContentType)
	if err != nil {
		return nil, err
	}
	return stream.NewReader(res.Body), nil
}
