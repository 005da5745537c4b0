package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gennadis/geminichatui/internal/chat"
)

func (c *Client) ListConversations(ctx context.Context, page, limit int, archived bool) (*chat.ConversationPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("archived", strconv.FormatBool(archived))

	resp := &chat.ConversationPage{}
	if err := c.do(ctx, http.MethodGet, "/conversations?"+query.Encode(), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	resp := &chat.Conversation{}
	if err := c.do(ctx, http.MethodGet, "/conversations/"+escape(id), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateConversation(ctx context.Context, conv chat.NewConversation) (*chat.Conversation, error) {
	if conv.Messages == nil {
		conv.Messages = []chat.Message{}
	}
	resp := &chat.Conversation{}
	if err := c.do(ctx, http.MethodPost, "/conversations", conv, resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create conversation: server assigned no id")
	}
	return resp, nil
}

// UpdateConversation patches title and/or the full message list.
func (c *Client) UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error) {
	resp := &chat.Conversation{}
	if err := c.do(ctx, http.MethodPatch, "/conversations/"+escape(id), update, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) error {
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPatch, "/conversations/"+escape(id)+"/title", body, nil)
}

func (c *Client) AddMessage(ctx context.Context, id string, message chat.Message) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+escape(id)+"/messages", message, nil)
}

func (c *Client) SetArchived(ctx context.Context, id string, archive bool) error {
	body := map[string]bool{"archive": archive}
	return c.do(ctx, http.MethodPatch, "/conversations/"+escape(id)+"/archive", body, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+escape(id), nil, nil)
}

func (c *Client) DeleteConversations(ctx context.Context, ids []string) error {
	body := map[string][]string{"conversationIds": ids}
	return c.do(ctx, http.MethodDelete, "/conversations", body, nil)
}
