package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gennadis/geminichatui/internal/chat"
)

const avatarField = "avatar"

func (c *Client) Profile(ctx context.Context) (*chat.User, error) {
	resp := &chat.User{}
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update chat.ProfileUpdate) (*chat.User, error) {
	resp := &chat.User{}
	if err := c.do(ctx, http.MethodPatch, "/users/profile", update, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs chat.Preferences) error {
	return c.do(ctx, http.MethodPatch, "/users/preferences", prefs, nil)
}

func (c *Client) ChangePassword(ctx context.Context, change chat.PasswordChange) error {
	return c.do(ctx, http.MethodPatch, "/users/password", change, nil)
}

// UploadAvatar sends the image as multipart form data; the content type carries the boundary.
func (c *Client) UploadAvatar(ctx context.Context, filename string, image io.Reader) (*chat.User, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile(avatarField, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create avatar form: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		slog.Error("Failed to read avatar image", "filename", filename, "error", err)
		return nil, fmt.Errorf("failed to read avatar image: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish avatar form: %w", err)
	}

	resp := &chat.User{}
	if err := c.doRaw(ctx, http.MethodPost, "/users/avatar", &buf, form.FormDataContentType(), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DeleteAvatar(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/users/avatar", nil, nil)
}
