package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/stream"
)

var errEmptyReply = errors.New("the assistant returned an empty reply")

// Send appends content to the open conversation, generates the assistant reply and
// persists both messages. On any failure the optimistic messages are rolled back.
// Only one Send per conversation may be outstanding.
func (s *Store) Send(ctx context.Context, content string) (*chat.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, chat.Invalid("message", "must not be empty")
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	convID := s.current.ID
	if _, busy := s.inflight[convID]; busy {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.inflight[convID] = struct{}{}

	userMsg := chat.NewMessage(chat.ChatRoleUser, content)
	s.history = append(s.history, userMsg)
	at := len(s.history) - 1
	history := slices.Clone(s.history)
	model := s.model
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, convID)
		s.mu.Unlock()
	}()

	s.view.RenderMessages(history)

	reply, err := s.generate(ctx, chat.GenerateRequest{
		Prompt:   content,
		Messages: history,
		Model:    model,
		Sampling: s.sampling.Sampling(),
	})
	if err != nil {
		slog.Error("Failed to generate reply", "conversation_id", convID, "error", err)
		s.rollback(convID, at, userMsg)
		return nil, err
	}

	assistantMsg := chat.NewMessage(chat.ChatRoleAssistant, reply)
	if history, ok := s.appendIfCurrent(convID, at, userMsg, assistantMsg); ok {
		s.view.RenderMessages(history)
	}

	for _, m := range []chat.Message{userMsg, assistantMsg} {
		if err := s.api.AddMessage(ctx, convID, m); err != nil {
			slog.Error("Failed to persist message", "conversation_id", convID, "role", string(m.Role), "error", err)
			s.rollback(convID, at, userMsg)
			return nil, err
		}
	}

	s.mu.Lock()
	var snapshot *chat.Conversation
	if s.current != nil && s.current.ID == convID {
		s.current.UpdatedAt = time.Now()
		c := *s.current
		c.Messages = slices.Clone(s.history)
		snapshot = &c
	}
	s.mu.Unlock()
	if snapshot != nil {
		s.mirrorWrite(*snapshot)
	}
	return &assistantMsg, nil
}

func (s *Store) generate(ctx context.Context, request chat.GenerateRequest) (string, error) {
	st, err := s.gen.Generate(ctx, request)
	if err != nil {
		return "", err
	}

	var partial strings.Builder
	res, err := stream.Consume(ctx, st, func(c stream.Chunk) {
		partial.WriteString(c.Text)
		s.view.RenderPartial(partial.String())
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", errEmptyReply
	}
	return res.Text, nil
}

// appendIfCurrent appends the reply if the user message is still where Send put it.
func (s *Store) appendIfCurrent(convID string, at int, userMsg, reply chat.Message) ([]chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownsLocked(convID, at, userMsg) {
		return nil, false
	}
	s.history = append(s.history[:at+1], reply)
	return slices.Clone(s.history), true
}

// rollback removes the optimistic user message and anything appended after it by this send.
func (s *Store) rollback(convID string, at int, userMsg chat.Message) {
	s.mu.Lock()
	if !s.ownsLocked(convID, at, userMsg) {
		s.mu.Unlock()
		return
	}
	s.history = s.history[:at]
	history := slices.Clone(s.history)
	s.mu.Unlock()

	s.view.RenderMessages(history)
}

func (s *Store) ownsLocked(convID string, at int, userMsg chat.Message) bool {
	return s.current != nil &&
		s.current.ID == convID &&
		at < len(s.history) &&
		s.history[at] == userMsg
}
