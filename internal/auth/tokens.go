package auth

import (
	"log/slog"
	"sync"
)

const tokenKey = "authToken"

// KV is the persistent key/value storage backing the session slot.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// TokenStore caches the persisted token in memory. It satisfies client.TokenStore.
type TokenStore struct {
	mu    sync.RWMutex
	kv    KV
	token string
}

func NewTokenStore(kv KV) (*TokenStore, error) {
	token, _, err := kv.Get(tokenKey)
	if err != nil {
		return nil, err
	}
	return &TokenStore{kv: kv, token: token}, nil
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(tokenKey, token); err != nil {
		return err
	}
	s.token = token
	return nil
}

// Clear removes the session. The in-memory copy is dropped even if storage fails.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if err := s.kv.Delete(tokenKey); err != nil {
		slog.Error("Failed to delete persisted token", "error", err)
		return err
	}
	return nil
}
