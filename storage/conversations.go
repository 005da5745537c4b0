package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/jmoiron/sqlx"
)

type conversationRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Archived  bool      `db:"archived"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Conversations is a local mirror of conversations opened from the backend
type Conversations struct {
	db       *sqlx.DB
	messages *Messages
}

// NewConversations creates a new Conversations storage
func NewConversations(db *sqlx.DB) (*Conversations, error) {
	createConversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
	`
	if _, err := db.Exec(createConversationsTable); err != nil {
		return nil, fmt.Errorf("failed to create conversations table: %w", err)
	}

	messages, err := NewMessages(db)
	if err != nil {
		return nil, err
	}

	return &Conversations{db: db, messages: messages}, nil
}

// Read returns all mirrored conversations without messages, newest first
func (s *Conversations) Read() ([]chat.Conversation, error) {
	var rows []conversationRow
	err := s.db.Select(&rows, "SELECT id, title, archived, updated_at FROM conversations ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	conversations := make([]chat.Conversation, 0, len(rows))
	for _, r := range rows {
		conversations = append(conversations, chat.Conversation{
			ID:        r.ID,
			Title:     r.Title,
			Archived:  r.Archived,
			UpdatedAt: r.UpdatedAt,
		})
	}

	slog.Debug("read conversations",
		slog.Int("count", len(conversations)),
	)
	return conversations, nil
}

// ReadByID returns one mirrored conversation with its messages
func (s *Conversations) ReadByID(id string) (*chat.Conversation, error) {
	var row conversationRow
	err := s.db.Get(&row, "SELECT id, title, archived, updated_at FROM conversations WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation for id %s: %w", id, err)
	}

	messages, err := s.messages.ReadByConversationID(id)
	if err != nil {
		return nil, err
	}

	return &chat.Conversation{
		ID:        row.ID,
		Title:     row.Title,
		Archived:  row.Archived,
		UpdatedAt: row.UpdatedAt,
		Messages:  messages,
	}, nil
}

// Write replaces the mirrored copy of the conversation and its messages
func (s *Conversations) Write(conversation chat.Conversation) error {
	if conversation.UpdatedAt.IsZero() {
		conversation.UpdatedAt = time.Now()
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsertQuery := `
	INSERT INTO conversations (id, title, archived, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET title = excluded.title, archived = excluded.archived, updated_at = excluded.updated_at
	`
	if _, err := tx.Exec(upsertQuery, conversation.ID, conversation.DisplayTitle(), conversation.Archived, conversation.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert conversation %s: %w", conversation.ID, err)
	}
	if err := s.messages.replace(tx, conversation.ID, conversation.Messages); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversation %s: %w", conversation.ID, err)
	}

	slog.Debug("conversation mirrored",
		slog.String("id", conversation.ID),
		slog.String("title", conversation.DisplayTitle()),
		slog.Int("messages", len(conversation.Messages)),
	)
	return nil
}

// Delete deletes the given conversations and their messages from the storage
func (s *Conversations) Delete(ids ...string) error {
	for _, id := range ids {
		if _, err := s.db.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete messages of conversation %s: %w", id, err)
		}
		if _, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete conversation by id %s: %w", id, err)
		}
		slog.Debug("conversation deleted from mirror", slog.String("id", id))
	}
	return nil
}
