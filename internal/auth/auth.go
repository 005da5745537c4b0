package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/hashicorp/go-multierror"
)

const minPasswordLength = 6

// API is the subset of the backend client used for authentication.
type API interface {
	Register(ctx context.Context, reg chat.Registration) (*chat.AuthResponse, error)
	Login(ctx context.Context, creds chat.Credentials) (*chat.AuthResponse, error)
	RefreshToken(ctx context.Context) (*chat.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*chat.User, error)
}

// Manager owns the client session: a single token slot in persistent storage.
type Manager struct {
	api    API
	tokens *TokenStore
}

func NewManager(api API, tokens *TokenStore) *Manager {
	return &Manager{api: api, tokens: tokens}
}

func (m *Manager) Register(ctx context.Context, reg chat.Registration) (*chat.AuthResponse, error) {
	if err := ValidateRegistration(reg); err != nil {
		return nil, err
	}
	resp, err := m.api.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := m.persist(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Manager) Login(ctx context.Context, creds chat.Credentials) (*chat.AuthResponse, error) {
	var errs *multierror.Error
	if strings.TrimSpace(creds.Email) == "" && strings.TrimSpace(creds.Username) == "" {
		errs = multierror.Append(errs, chat.Invalid("email", "email or username is required"))
	}
	if creds.Password == "" {
		errs = multierror.Append(errs, chat.Invalid("password", "is required"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := m.persist(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Manager) Refresh(ctx context.Context) (*chat.AuthResponse, error) {
	resp, err := m.api.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.persist(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CurrentUser propagates backend errors untouched; clearing a stale session is up to the caller.
func (m *Manager) CurrentUser(ctx context.Context) (*chat.User, error) {
	return m.api.Me(ctx)
}

// Logout notifies the backend best-effort and always clears the local session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		slog.Warn("Backend logout failed, clearing local session anyway", "error", err)
	}
	return m.tokens.Clear()
}

func (m *Manager) LoggedIn() bool {
	return m.tokens.Token() != ""
}

// Clear drops the local session without contacting the backend.
func (m *Manager) Clear() error {
	return m.tokens.Clear()
}

func (m *Manager) persist(resp *chat.AuthResponse) error {
	if resp == nil || resp.Token == "" {
		return nil
	}
	return m.tokens.Set(resp.Token)
}

// Run refreshes the token every interval while a session exists, until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) *sync.WaitGroup {
	ticker := time.NewTicker(interval)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.rotateToken(ctx)

			case <-ctx.Done():
				return
			}
		}
	}()

	return wg
}

func (m *Manager) rotateToken(ctx context.Context) {
	if !m.LoggedIn() {
		return
	}
	if _, err := m.Refresh(ctx); err != nil {
		slog.Error("Failed to refresh access token", "error", err)
		return
	}
	slog.Info("Access token refreshed successfully")
}

// ValidateRegistration reports every problem of reg at once.
func ValidateRegistration(reg chat.Registration) error {
	var errs *multierror.Error
	if strings.TrimSpace(reg.Username) == "" {
		errs = multierror.Append(errs, chat.Invalid("username", "is required"))
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		errs = multierror.Append(errs, chat.Invalid("email", "is not a valid address"))
	}
	errs = multierror.Append(errs, validateNewPassword(reg.Password, reg.Confirm))
	return errs.ErrorOrNil()
}

// ValidatePasswordChange checks a password change before it is sent.
func ValidatePasswordChange(change chat.PasswordChange) error {
	var errs *multierror.Error
	if change.CurrentPassword == "" {
		errs = multierror.Append(errs, chat.Invalid("currentPassword", "is required"))
	}
	errs = multierror.Append(errs, validateNewPassword(change.NewPassword, change.Confirm))
	return errs.ErrorOrNil()
}

func validateNewPassword(password, confirm string) error {
	var errs *multierror.Error
	if len(password) < minPasswordLength {
		errs = multierror.Append(errs, chat.Invalid("password", "must be at least %d characters", minPasswordLength))
	}
	if password != confirm {
		errs = multierror.Append(errs, chat.Invalid("confirm", "passwords do not match"))
	}
	return errs.ErrorOrNil()
}

// IsValidation reports whether err consists of client-side validation failures only.
func IsValidation(err error) bool {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if !IsValidation(e) {
				return false
			}
		}
		return len(merr.Errors) > 0
	}
	var verr *chat.ValidationError
	return errors.As(err, &verr)
}
