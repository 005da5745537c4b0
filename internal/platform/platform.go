// Package platform holds the differences between the browser-like and the embedded
// (packaged device) deployments: reachability checks, streaming mode and 401 handling.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/client"
	"github.com/gennadis/geminichatui/internal/conversation"
	"github.com/gennadis/geminichatui/internal/stream"
)

type Kind string

const (
	Web      Kind = "web"
	Embedded Kind = "embedded"

	probeTimeout = 3 * time.Second
)

func Parse(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Web, Embedded:
		return k, nil
	}
	return "", fmt.Errorf("unknown platform %q, want %q or %q", s, Web, Embedded)
}

// ResetOnUnauthorized reports whether a 401 discards all client state.
// The embedded platform only brings up the login surface.
func (k Kind) ResetOnUnauthorized() bool {
	return k == Web
}

// ClientOptions returns the client options the platform needs.
func (k Kind) ClientOptions(baseURL string) []client.Option {
	if k != Embedded {
		return nil
	}
	return []client.Option{client.WithNetworkProbe(TCPProbe(baseURL, probeTimeout))}
}

// TCPProbe returns a check that the API host accepts connections.
func TCPProbe(baseURL string, timeout time.Duration) func(ctx context.Context) error {
	addr := hostPort(baseURL)
	return func(ctx context.Context) error {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to reach %s: %w", addr, err)
		}
		return conn.Close()
	}
}

func hostPort(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		slog.Warn("Cannot derive probe address from base url", "url", baseURL)
		return baseURL
	}
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

type StreamAPI interface {
	GenerateStream(ctx context.Context, request chat.GenerateRequest) (*stream.Reader, error)
}

type GenerateAPI interface {
	Generate(ctx context.Context, request chat.GenerateRequest) (*chat.GenerateResponse, error)
}

// API is satisfied by *client.Client.
type API interface {
	StreamAPI
	GenerateAPI
}

// SSEGenerator streams replies from the server-sent event endpoint.
type SSEGenerator struct {
	api StreamAPI
}

func NewSSEGenerator(api StreamAPI) *SSEGenerator {
	return &SSEGenerator{api: api}
}

func (g *SSEGenerator) Generate(ctx context.Context, request chat.GenerateRequest) (stream.Stream, error) {
	reader, err := g.api.GenerateStream(ctx, request)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// SimulatedGenerator fetches the whole reply in one request and replays it word by word.
type SimulatedGenerator struct {
	api   GenerateAPI
	delay time.Duration
}

func NewSimulatedGenerator(api GenerateAPI, delay time.Duration) *SimulatedGenerator {
	return &SimulatedGenerator{api: api, delay: delay}
}

func (g *SimulatedGenerator) Generate(ctx context.Context, request chat.GenerateRequest) (stream.Stream, error) {
	request.Stream = true
	resp, err := g.api.Generate(ctx, request)
	if err != nil {
		return nil, err
	}
	slog.Debug("Replaying reply as simulated stream", slog.Int("length", len(resp.Text)), slog.Duration("delay", g.delay))
	return stream.Simulate(ctx, resp.Text, resp.Model, g.delay), nil
}

// Generator picks the streaming mode of the platform.
func (k Kind) Generator(api API, delay time.Duration) conversation.Generator {
	if k == Embedded {
		return NewSimulatedGenerator(api, delay)
	}
	return NewSSEGenerator(api)
}
