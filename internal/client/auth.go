package client

import (
	"context"
	"net/http"

	"github.com/gennadis/geminichatui/internal/chat"
)

// Register creates an account. Token persistence is the caller's concern.
func (c *Client) Register(ctx context.Context, reg chat.Registration) (*chat.AuthResponse, error) {
	resp := &chat.AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/register", reg, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Login(ctx context.Context, creds chat.Credentials) (*chat.AuthResponse, error) {
	resp := &chat.AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RefreshToken(ctx context.Context) (*chat.AuthResponse, error) {
	resp := &chat.AuthResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the user owning the current token.
func (c *Client) Me(ctx context.Context) (*chat.User, error) {
	var resp struct {
		User *chat.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "response carries no user"}
	}
	return resp.User, nil
}
