// Package app wires the backend client, the session, the conversation store and the
// preferences together and turns user actions into calls on them.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gennadis/geminichatui/internal/auth"
	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/gennadis/geminichatui/internal/client"
	"github.com/gennadis/geminichatui/internal/config"
	"github.com/gennadis/geminichatui/internal/conversation"
	"github.com/gennadis/geminichatui/internal/platform"
	"github.com/gennadis/geminichatui/internal/settings"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// UI is the presentation surface driven by the App.
type UI interface {
	conversation.Renderer
	ShowLogin()
	ShowChat(user chat.User)
	RenderSettings(prefs chat.Preferences)
	RenderModels(models []chat.Model, current string)
	Notify(level Level, message string)
}

type Option func(*App)

// WithMirror keeps a local copy of every opened conversation.
func WithMirror(m conversation.Mirror) Option {
	return func(a *App) { a.mirror = m }
}

// WithCloser registers a resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(a *App) { a.closers = append(a.closers, c) }
}

type App struct {
	api   *client.Client
	kind  platform.Kind
	ui    UI
	Auth  *auth.Manager
	Prefs *settings.Store
	Convs *conversation.Store

	mirror  conversation.Mirror
	closers []io.Closer

	mu   sync.Mutex
	user *chat.User

	// set while a login or registration request is in flight
	authenticating atomic.Bool
}

// New builds the App around api. The client's unauthorized hook is taken over by the App.
func New(cfg config.Config, kind platform.Kind, api *client.Client, tokens *auth.TokenStore, kv settings.KV, ui UI, opts ...Option) (*App, error) {
	a := &App{api: api, kind: kind, ui: ui}
	for _, opt := range opts {
		opt(a)
	}

	a.Auth = auth.NewManager(api, tokens)
	prefs, err := settings.NewStore(kv, api, a.Auth.LoggedIn)
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		return nil, err
	}
	a.Prefs = prefs

	convOpts := []conversation.Option{conversation.WithModel(cfg.Model)}
	if a.mirror != nil {
		convOpts = append(convOpts, conversation.WithMirror(a.mirror))
	}
	a.Convs = conversation.NewStore(api, kind.Generator(api, cfg.SimulatedStreamDelay), ui, prefs, cfg.PageSize, convOpts...)

	api.SetUnauthorizedHandler(a.handleUnauthorized)
	return a, nil
}

func (a *App) User() (chat.User, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return chat.User{}, false
	}
	return *a.user, true
}

// Init restores a stored session. An invalid token is discarded and the login surface shown.
func (a *App) Init(ctx context.Context) error {
	if !a.Auth.LoggedIn() {
		a.ui.ShowLogin()
		return nil
	}

	user, err := a.Auth.CurrentUser(ctx)
	if err != nil {
		slog.Error("Failed to restore session", "error", err)
		if errors.Is(err, client.ErrUnauthorized) {
			return nil
		}
		if err := a.Auth.Clear(); err != nil {
			slog.Error("Failed to clear session token", "error", err)
		}
		a.ui.ShowLogin()
		return nil
	}
	a.enter(ctx, user)
	return nil
}

func (a *App) Login(ctx context.Context, creds chat.Credentials) error {
	a.authenticating.Store(true)
	resp, err := a.Auth.Login(ctx, creds)
	a.authenticating.Store(false)
	if err != nil {
		return a.failAuth("Login failed", err)
	}
	return a.afterAuth(ctx, resp)
}

func (a *App) Register(ctx context.Context, reg chat.Registration) error {
	a.authenticating.Store(true)
	resp, err := a.Auth.Register(ctx, reg)
	a.authenticating.Store(false)
	if err != nil {
		return a.failAuth("Registration failed", err)
	}
	return a.afterAuth(ctx, resp)
}

func (a *App) afterAuth(ctx context.Context, resp *chat.AuthResponse) error {
	user := resp.User
	if user == nil {
		u, err := a.Auth.CurrentUser(ctx)
		if err != nil {
			return a.fail("Failed to load profile", err)
		}
		user = u
	}
	a.enter(ctx, user)
	return nil
}

func (a *App) enter(ctx context.Context, user *chat.User) {
	a.mu.Lock()
	a.user = user
	a.mu.Unlock()

	if user.Preferences != nil {
		if err := a.Prefs.Adopt(*user.Preferences); err != nil {
			slog.Error("Failed to adopt server preferences", "error", err)
		}
	}
	a.ui.ShowChat(*user)
	a.ui.RenderSettings(a.Prefs.Preferences())

	if err := a.Convs.Load(ctx, 1); err != nil {
		a.fail("Failed to load conversations", err)
	}
}

// Logout always ends at the login surface, even if the backend is unreachable.
func (a *App) Logout(ctx context.Context) error {
	err := a.Auth.Logout(ctx)
	a.resetSession()
	a.ui.ShowLogin()
	if err != nil {
		return a.fail("Failed to clear session", err)
	}
	a.ui.Notify(LevelInfo, "Logged out")
	return nil
}

func (a *App) resetSession() {
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()
	a.Convs.Reset()
}

func (a *App) handleUnauthorized() {
	if a.authenticating.Load() {
		// rejected credentials, not an expired session; failAuth reports it
		return
	}
	if a.kind.ResetOnUnauthorized() {
		a.resetSession()
	}
	a.ui.ShowLogin()
	a.ui.Notify(LevelWarning, "Your session has expired, please log in again")
}

// Close releases every registered resource and reports all failures.
func (a *App) Close() error {
	var errs *multierror.Error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// fail notifies the user about err and returns it.
func (a *App) fail(action string, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		// the unauthorized hook has already notified
		return err
	}
	a.ui.Notify(LevelError, action+": "+Describe(err))
	return err
}

// failAuth is fail for login and registration, where a 401 means the credentials were rejected.
func (a *App) failAuth(action string, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		a.ui.Notify(LevelError, action+": invalid credentials")
		return err
	}
	return a.fail(action, err)
}

// Describe renders err as a short user-facing message.
func Describe(err error) string {
	var (
		validationErr *chat.ValidationError
		apiErr        *client.APIError
		transportErr  *client.TransportError
		multiErr      *multierror.Error
	)
	switch {
	case errors.As(err, &multiErr):
		return strings.Join(lo.Map(multiErr.Errors, func(e error, _ int) string { return Describe(e) }), "; ")
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.Is(err, client.ErrUnauthorized):
		return "please log in again"
	case errors.Is(err, client.ErrOffline):
		return "no network connection"
	case errors.Is(err, conversation.ErrSendInFlight):
		return "wait for the current reply to finish"
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &transportErr):
		return "network error, check your connection"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}
