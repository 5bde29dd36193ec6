package state

// token.go
//
// Token storage abstraction for the equipment visualizer.
//
// Goals:
//   * Decouple token persistence from GUI / CLI logic
//   * Allow secure implementations (OS keyring) without changing callers
//   * Provide an in-memory fallback for tests and ephemeral sessions
//
// Controllers inject the current token into api.Client construction
// explicitly; the store never mutates outgoing request headers itself.

import (
	"errors"
	"fmt"
	"sync"
)

// ErrTokenNotFound is returned when no token is stored.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore is the contract for persisting the auth token.
// Set with an empty string is equivalent to Clear.
type TokenStore interface {
	// SetToken stores or replaces the token. Empty clears it.
	SetToken(token string) error
	// Token retrieves the stored token. Returns ErrTokenNotFound if absent.
	Token() (string, error)
	// Clear removes the stored token (idempotent).
	Clear() error
}

// MemoryTokenStore is a thread-safe, volatile implementation.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates an empty volatile store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// SetToken stores or replaces the in-memory token.
func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Token returns the in-memory token or ErrTokenNotFound.
func (s *MemoryTokenStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrTokenNotFound
	}
	return s.token, nil
}

// Clear drops the in-memory token.
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// FileTokenStore persists the token through the YAML AppState document.
// Every mutation saves the whole state; reads go through the in-memory
// AppState so callers see writes immediately even if the save failed
// (storage failures are best-effort per the client contract).
type FileTokenStore struct {
	mu    sync.Mutex
	state *AppState
	path  string
}

// NewFileTokenStore wraps an AppState loaded from path.
func NewFileTokenStore(st *AppState, path string) *FileTokenStore {
	return &FileTokenStore{state: st, path: path}
}

// SetToken stores the token in AppState and persists it.
func (s *FileTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	if err := SaveAppState(s.state, s.path); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Token returns the token held in AppState.
func (s *FileTokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token == "" {
		return "", ErrTokenNotFound
	}
	return s.state.Token, nil
}

// Clear removes the persisted token.
func (s *FileTokenStore) Clear() error {
	return s.SetToken("")
}

// FallbackTokenStore composes two stores: a primary (persistent) and a
// fallback (e.g. in-memory). Reads prefer primary; writes attempt primary
// then fall back if primary fails.
type FallbackTokenStore struct {
	primary  TokenStore
	fallback TokenStore
}

// NewFallbackTokenStore creates a layered store. A nil fallback defaults
// to an in-memory store.
func NewFallbackTokenStore(primary, fallback TokenStore) *FallbackTokenStore {
	if fallback == nil {
		fallback = NewMemoryTokenStore()
	}
	return &FallbackTokenStore{primary: primary, fallback: fallback}
}

// SetToken writes preferring the primary store.
func (f *FallbackTokenStore) SetToken(token string) error {
	if f.primary != nil {
		if err := f.primary.SetToken(token); err == nil {
			return nil
		}
	}
	return f.fallback.SetToken(token)
}

// Token reads preferring the primary store; non-not-found primary errors
// are wrapped and returned.
func (f *FallbackTokenStore) Token() (string, error) {
	if f.primary != nil {
		if tok, err := f.primary.Token(); err == nil {
			return tok, nil
		} else if !errors.Is(err, ErrTokenNotFound) {
			return "", fmt.Errorf("primary token store: %w", err)
		}
	}
	return f.fallback.Token()
}

// Clear attempts removal in both layers, ignoring not-found conditions.
func (f *FallbackTokenStore) Clear() error {
	var primaryErr error
	if f.primary != nil {
		primaryErr = f.primary.Clear()
	}
	fallbackErr := f.fallback.Clear()
	if primaryErr != nil && !errors.Is(primaryErr, ErrTokenNotFound) {
		return primaryErr
	}
	if fallbackErr != nil && !errors.Is(fallbackErr, ErrTokenNotFound) {
		return fallbackErr
	}
	return nil
}

// RedactToken safely redacts a token for logging purposes.
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}
