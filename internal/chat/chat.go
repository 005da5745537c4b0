package chat

import (
	"strings"
	"time"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultTopP        = 0.9

	// DefaultTitle is shown for conversations whose title is blank.
	DefaultTitle = "New conversation"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// Message is one entry of a conversation history. Messages are append-only.
type Message struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role ChatRole, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// Conversation is a titled, ordered sequence of messages persisted server-side.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Archived  bool      `json:"archived,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// DisplayTitle never returns an empty string.
func (c Conversation) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// ConversationPage is one page of the conversation list. Pages are 1-based.
type ConversationPage struct {
	Items       []Conversation `json:"conversations"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	Total       int            `json:"total,omitempty"`
}

type NewConversation struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

type ConversationUpdate struct {
	Title    string    `json:"title,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Sampling holds the generation parameters sent with every prompt.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
}

func DefaultSampling() Sampling {
	return Sampling{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
}

type GenerateRequest struct {
	Prompt   string    `json:"prompt"`
	Messages []Message `json:"messages,omitempty"`
	Model    string    `json:"model,omitempty"`
	Stream   bool      `json:"stream,omitempty"`
	Sampling
}

type GenerateResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type Model struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}
