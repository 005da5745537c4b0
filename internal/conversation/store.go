// Package conversation holds the client-side conversation state: the current page of the
// conversation list, the open conversation and its message history.
//
// The Store never holds its lock across network I/O. Renderer callbacks receive copies.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/stream"
	"github.com/samber/lo"
)

var (
	ErrNoConversation = chat.Invalid("conversation", "no conversation is open")
	ErrSendInFlight   = errors.New("a message is already being sent in this conversation")
)

type API interface {
	ListConversations(ctx context.Context, page, limit int, archived bool) (*chat.ConversationPage, error)
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	CreateConversation(ctx context.Context, conv chat.NewConversation) (*chat.Conversation, error)
	UpdateConversation(ctx context.Context, id string, update chat.ConversationUpdate) (*chat.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, id string, message chat.Message) error
	SetArchived(ctx context.Context, id string, archive bool) error
	DeleteConversation(ctx context.Context, id string) error
	DeleteConversations(ctx context.Context, ids []string) error
}

// Generator produces the assistant reply as a stream of chunks.
type Generator interface {
	Generate(ctx context.Context, request chat.GenerateRequest) (stream.Stream, error)
}

type Renderer interface {
	RenderConversations(items []chat.Conversation, currentID string, pager Pager)
	RenderConversation(conv chat.Conversation)
	RenderMessages(messages []chat.Message)
	RenderPartial(text string)
	ShowWelcome()
}

// Mirror keeps a local copy of opened conversations.
type Mirror interface {
	Write(conversation chat.Conversation) error
	Delete(ids ...string) error
}

type SamplingSource interface {
	Sampling() chat.Sampling
}

type Option func(*Store)

func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

func WithModel(model string) Option {
	return func(s *Store) { s.model = model }
}

type Store struct {
	api      API
	gen      Generator
	view     Renderer
	sampling SamplingSource
	mirror   Mirror
	pageSize int

	mu         sync.Mutex
	model      string
	items      []chat.Conversation
	page       int
	totalPages int
	archived   bool
	current    *chat.Conversation
	history    []chat.Message
	inflight   map[string]struct{}
}

func NewStore(api API, gen Generator, view Renderer, sampling SamplingSource, pageSize int, opts ...Option) *Store {
	s := &Store{
		api:      api,
		gen:      gen,
		view:     view,
		sampling: sampling,
		pageSize: pageSize,
		page:     1,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset drops all cached state. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.page = 1
	s.totalPages = 0
	s.archived = false
	s.current = nil
	s.history = nil
}

func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// History returns a copy of the open conversation's messages.
func (s *Store) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Store) Items() []chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Store) Pager() Pager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewPager(s.page, s.totalPages)
}

func (s *Store) ArchivedFilter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived
}

func (s *Store) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Store) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Load fetches page and then opens the current conversation, or the first listed one,
// or shows the welcome state when the list is empty.
func (s *Store) Load(ctx context.Context, page int) error {
	return s.load(ctx, page, true)
}

func (s *Store) load(ctx context.Context, page int, open bool) error {
	s.mu.Lock()
	archived := s.archived
	s.mu.Unlock()

	resp, err := s.api.ListConversations(ctx, page, s.pageSize, archived)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = slices.Clone(resp.Items)
	s.page = resp.CurrentPage
	if s.page == 0 {
		s.page = page
	}
	s.totalPages = resp.TotalPages
	items, currentID, pager := slices.Clone(s.items), s.currentIDLocked(), NewPager(s.page, s.totalPages)
	s.mu.Unlock()

	slog.Debug("conversation list loaded",
		slog.Int("page", pager.Current),
		slog.Int("total_pages", pager.Total),
		slog.Int("count", len(items)),
	)
	s.view.RenderConversations(items, currentID, pager)

	if !open {
		return nil
	}
	switch {
	case currentID != "":
		return s.Open(ctx, currentID)
	case len(items) > 0:
		return s.Open(ctx, items[0].ID)
	default:
		s.view.ShowWelcome()
		return nil
	}
}

// Refresh fetches the current page again without changing the open conversation.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	return s.load(ctx, page, false)
}

// GoToPage is a no-op for p < 1, p > totalPages and p == currentPage.
func (s *Store) GoToPage(ctx context.Context, p int) error {
	s.mu.Lock()
	skip := p < 1 || p > s.totalPages || p == s.page
	s.mu.Unlock()
	if skip {
		return nil
	}
	return s.Load(ctx, p)
}

func (s *Store) NextPage(ctx context.Context) error {
	return s.GoToPage(ctx, s.Pager().Current+1)
}

func (s *Store) PrevPage(ctx context.Context) error {
	return s.GoToPage(ctx, s.Pager().Current-1)
}

// JumpToPage parses user input and rejects pages outside 1..totalPages.
func (s *Store) JumpToPage(ctx context.Context, input string) error {
	total := s.Pager().Total
	p, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || p < 1 || p > total {
		return chat.Invalid("page", "enter a page between 1 and %d", total)
	}
	return s.GoToPage(ctx, p)
}

// SetArchivedFilter switches between active and archived conversations and reloads page 1.
func (s *Store) SetArchivedFilter(ctx context.Context, archived bool) error {
	s.mu.Lock()
	s.archived = archived
	s.mu.Unlock()
	return s.load(ctx, 1, false)
}

func (s *Store) Open(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &chat.Conversation{ID: conv.ID, Title: conv.Title, Archived: conv.Archived, UpdatedAt: conv.UpdatedAt}
	if s.current.ID == "" {
		s.current.ID = id
	}
	s.history = slices.Clone(conv.Messages)
	header, history := *s.current, slices.Clone(s.history)
	items, pager := slices.Clone(s.items), NewPager(s.page, s.totalPages)
	s.mu.Unlock()

	s.view.RenderConversations(items, header.ID, pager)
	s.view.RenderConversation(header)
	s.view.RenderMessages(history)

	header.Messages = history
	s.mirrorWrite(header)
	return nil
}

// Create starts a new conversation with the default title and makes it current.
func (s *Store) Create(ctx context.Context) (*chat.Conversation, error) {
	conv, err := s.api.CreateConversation(ctx, chat.NewConversation{Title: chat.DefaultTitle})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = &chat.Conversation{ID: conv.ID, Title: conv.Title, UpdatedAt: conv.UpdatedAt}
	s.history = nil
	header := *s.current
	s.mu.Unlock()

	if err := s.load(ctx, 1, false); err != nil {
		return nil, err
	}
	s.view.RenderConversation(header)
	s.view.RenderMessages(nil)
	return conv, nil
}

// Rename sets the title of the open conversation. Titles are never empty.
func (s *Store) Rename(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return chat.Invalid("title", "must not be empty")
	}
	id := s.CurrentID()
	if id == "" {
		return ErrNoConversation
	}

	if err := s.api.UpdateConversationTitle(ctx, id, title); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.current.Title = title
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Title = title
		}
	}
	items, currentID, pager := slices.Clone(s.items), s.currentIDLocked(), NewPager(s.page, s.totalPages)
	var header *chat.Conversation
	if s.current != nil {
		h := *s.current
		header = &h
	}
	s.mu.Unlock()

	s.view.RenderConversations(items, currentID, pager)
	if header != nil {
		s.view.RenderConversation(*header)
	}
	return nil
}

// Save writes the title and the full local history of the open conversation to the backend.
// An empty title keeps the current one.
func (s *Store) Save(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if title == "" {
		title = s.current.DisplayTitle()
	}
	id, history, page := s.current.ID, slices.Clone(s.history), s.page
	s.mu.Unlock()

	if _, err := s.api.UpdateConversation(ctx, id, chat.ConversationUpdate{Title: title, Messages: history}); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.current.Title = title
	}
	s.mu.Unlock()
	return s.load(ctx, page, false)
}

func (s *Store) SetArchived(ctx context.Context, id string, archive bool) error {
	if id == "" {
		return ErrNoConversation
	}
	if err := s.api.SetArchived(ctx, id, archive); err != nil {
		return err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ID == id {
		s.current.Archived = archive
	}
	page := s.page
	s.mu.Unlock()
	return s.load(ctx, page, false)
}

// Delete removes one conversation. Deleting the open conversation shows the welcome state.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoConversation
	}
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.afterDelete(id)
	return s.load(ctx, 1, false)
}

func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return chat.Invalid("conversations", "select at least one conversation")
	}
	if err := s.api.DeleteConversations(ctx, ids); err != nil {
		return err
	}
	s.afterDelete(ids...)
	return s.load(ctx, 1, false)
}

func (s *Store) afterDelete(ids ...string) {
	s.mu.Lock()
	closed := s.current != nil && lo.Contains(ids, s.current.ID)
	if closed {
		s.current = nil
		s.history = nil
	}
	s.items = lo.Reject(s.items, func(c chat.Conversation, _ int) bool {
		return lo.Contains(ids, c.ID)
	})
	s.mu.Unlock()

	if closed {
		s.view.ShowWelcome()
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ids...); err != nil {
			slog.Warn("Failed to delete conversations from local mirror", "error", err)
		}
	}
}

// ResolveIndex maps a 1-based position in the current list page to a conversation id.
func (s *Store) ResolveIndex(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.items) {
		return "", chat.Invalid("conversation", "enter a number between 1 and %d", len(s.items))
	}
	return s.items[n-1].ID, nil
}

func (s *Store) currentIDLocked() string {
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

func (s *Store) mirrorWrite(conv chat.Conversation) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Write(conv); err != nil {
		slog.Warn("Failed to mirror conversation locally", "id", conv.ID, "error", err)
	}
}
