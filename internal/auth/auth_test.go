package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gennadis/geminichatui/internal/chat"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV map[string]string

func (m memKV) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m memKV) Delete(keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

type fakeAPI struct {
	token     string
	failWith  error
	logoutErr error
	refreshes atomic.Int32
	loginReq  chat.Credentials
}

func (f *fakeAPI) resp() (*chat.AuthResponse, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &chat.AuthResponse{Token: f.token, User: &chat.User{Username: "a"}}, nil
}

func (f *fakeAPI) Register(context.Context, chat.Registration) (*chat.AuthResponse, error) {
	return f.resp()
}

func (f *fakeAPI) Login(_ context.Context, creds chat.Credentials) (*chat.AuthResponse, error) {
	f.loginReq = creds
	return f.resp()
}

func (f *fakeAPI) RefreshToken(context.Context) (*chat.AuthResponse, error) {
	f.refreshes.Add(1)
	return f.resp()
}

func (f *fakeAPI) Logout(context.Context) error { return f.logoutErr }

func (f *fakeAPI) Me(context.Context) (*chat.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &chat.User{Username: "a"}, nil
}

func newTestManager(t *testing.T, api *fakeAPI) (*Manager, memKV) {
	t.Helper()
	kv := memKV{}
	tokens, err := NewTokenStore(kv)
	require.NoError(t, err)
	return NewManager(api, tokens), kv
}

func TestManager_TokenPersistedOnSuccess(t *testing.T) {
	ctx := context.Background()
	validReg := chat.Registration{Username: "a", Email: "a@example.com", Password: "secret1", Confirm: "secret1"}

	calls := map[string]func(m *Manager) error{
		"login": func(m *Manager) error {
			_, err := m.Login(ctx, chat.Credentials{Email: "a@example.com", Password: "b"})
			return err
		},
		"register": func(m *Manager) error {
			_, err := m.Register(ctx, validReg)
			return err
		},
		"refresh": func(m *Manager) error {
			_, err := m.Refresh(ctx)
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			m, kv := newTestManager(t, &fakeAPI{token: "T-" + name})
			require.NoError(t, call(m))
			assert.Equal(t, "T-"+name, kv[tokenKey])
			assert.Equal(t, "T-"+name, m.tokens.Token())
			assert.True(t, m.LoggedIn())
		})
	}
}

func TestManager_ResponseWithoutTokenKeepsSession(t *testing.T) {
	m, kv := newTestManager(t, &fakeAPI{token: ""})
	require.NoError(t, m.tokens.Set("old"))

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", kv[tokenKey])
}

func TestManager_LogoutAlwaysClears(t *testing.T) {
	for _, logoutErr := range []error{nil, errors.New("network down")} {
		m, kv := newTestManager(t, &fakeAPI{logoutErr: logoutErr})
		require.NoError(t, m.tokens.Set("T"))

		require.NoError(t, m.Logout(context.Background()))
		assert.False(t, m.LoggedIn())
		assert.NotContains(t, kv, tokenKey)
	}
}

func TestManager_CurrentUserPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	m, _ := newTestManager(t, &fakeAPI{failWith: boom})
	require.NoError(t, m.tokens.Set("T"))

	_, err := m.CurrentUser(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.LoggedIn(), "stale session is cleared by the caller")
}

func TestManager_LoginValidation(t *testing.T) {
	api := &fakeAPI{token: "T"}
	m, _ := newTestManager(t, api)

	_, err := m.Login(context.Background(), chat.Credentials{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, api.loginReq.Email, "no request is sent")
}

func TestManager_LoginWithUsername(t *testing.T) {
	api := &fakeAPI{token: "T"}
	m, _ := newTestManager(t, api)

	_, err := m.Login(context.Background(), chat.Credentials{Username: "a", Password: "b"})
	require.NoError(t, err)
	assert.Equal(t, chat.Credentials{Username: "a", Password: "b"}, api.loginReq)
	assert.Equal(t, "T", m.tokens.Token())
}

func TestValidateRegistration(t *testing.T) {
	err := ValidateRegistration(chat.Registration{Email: "nope", Password: "123", Confirm: "124"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)

	assert.NoError(t, ValidateRegistration(chat.Registration{
		Username: "a", Email: "a@example.com", Password: "secret1", Confirm: "secret1",
	}))
}

func TestValidatePasswordChange(t *testing.T) {
	err := ValidatePasswordChange(chat.PasswordChange{CurrentPassword: "old", NewPassword: "newpass", Confirm: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwords do not match")
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestManager_RunRefreshesWhileLoggedIn(t *testing.T) {
	api := &fakeAPI{token: "T2"}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.tokens.Set("T1"))

	ctx, cancel := context.WithCancel(context.Background())
	wg := m.Run(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return api.refreshes.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
	assert.Equal(t, "T2", m.tokens.Token())
}
