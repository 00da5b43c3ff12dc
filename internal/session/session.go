package session

import (
	"encoding/json"
	"fmt"
)

// Keys under which session values are stored.
const (
	KeyToken    = "token"
	KeyUser     = "user"
	KeyLocale   = "coophub.locale"
	KeyCurrency = "coophub.currency"
)

// Session reads and writes the fixed session keys on a Store.
type Session struct {
	store Store
}

// New wraps store. A nil store gets a MemoryStore.
func New(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// Store returns the underlying store.
func (s *Session) Store() Store {
	return s.store
}

// Token returns the bearer token, or "" when signed out or unreadable.
func (s *Session) Token() string {
	return s.get(KeyToken)
}

// SetToken stores the bearer token. An empty token removes it.
func (s *Session) SetToken(token string) error {
	if token == "" {
		return s.store.Delete(KeyToken)
	}
	return s.store.Set(KeyToken, token)
}

// User decodes the stored user record into out. It reports false when no
// user is stored.
func (s *Session) User(out any) (bool, error) {
	v, ok, err := s.store.Get(KeyUser)
	if err != nil || !ok || v == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), out); err != nil {
		return false, fmt.Errorf("decode stored user: %w", err)
	}
	return true, nil
}

// SetUser serializes v as the stored user record. A nil v removes it.
func (s *Session) SetUser(v any) error {
	if v == nil {
		return s.store.Delete(KeyUser)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.store.Set(KeyUser, string(data))
}

// Clear signs out by removing the token and user. Preferences are kept.
func (s *Session) Clear() error {
	return s.store.Delete(KeyToken, KeyUser)
}

// Locale returns the stored UI locale, or "" if unset.
func (s *Session) Locale() string {
	return s.get(KeyLocale)
}

// SetLocale stores the UI locale.
func (s *Session) SetLocale(locale string) error {
	return s.store.Set(KeyLocale, locale)
}

// Currency returns the stored display currency, or "" if unset.
func (s *Session) Currency() string {
	return s.get(KeyCurrency)
}

// SetCurrency stores the display currency.
func (s *Session) SetCurrency(code string) error {
	return s.store.Set(KeyCurrency, code)
}

func (s *Session) get(key string) string {
	v, _, err := s.store.Get(key)
	if err != nil {
		return ""
	}
	return v
}
