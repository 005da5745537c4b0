package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/jmoiron/sqlx"
)

type messageRow struct {
	ConversationID string    `db:"conversation_id"`
	Position       int       `db:"position"`
	Content        string    `db:"content"`
	Role           string    `db:"role"`
	Timestamp      time.Time `db:"timestamp"`
}

// Messages is a storage for mirrored messages, keyed by conversation and position
type Messages struct {
	db *sqlx.DB
}

// NewMessages creates a new Messages storage
func NewMessages(db *sqlx.DB) (*Messages, error) {
	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		role TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, position),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	)
	`
	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &Messages{db: db}, nil
}

// ReadByConversationID returns messages of a conversation in append order
func (m *Messages) ReadByConversationID(conversationID string) ([]chat.Message, error) {
	var rows []messageRow
	err := m.db.Select(&rows, "SELECT conversation_id, position, content, role, timestamp FROM messages WHERE conversation_id = ? ORDER BY position ASC", conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for conversation_id %s: %w", conversationID, err)
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, chat.Message{
			Role:      chat.ChatRole(r.Role),
			Content:   r.Content,
			Timestamp: r.Timestamp,
		})
	}

	slog.Debug("read messages by conversation_id",
		slog.String("conversation_id", conversationID),
		slog.Int("count", len(messages)),
	)
	return messages, nil
}

func (m *Messages) replace(tx *sqlx.Tx, conversationID string, messages []chat.Message) error {
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to clear messages of conversation %s: %w", conversationID, err)
	}

	insertQuery := "INSERT INTO messages (conversation_id, position, content, role, timestamp) VALUES (?, ?, ?, ?, ?)"
	for i, message := range messages {
		if message.Timestamp.IsZero() {
			message.Timestamp = time.Now()
		}
		if _, err := tx.Exec(insertQuery, conversationID, i, message.Content, string(message.Role), message.Timestamp); err != nil {
			return fmt.Errorf("failed to insert message %d of conversation %s: %w", i, conversationID, err)
		}
	}
	return nil
}
