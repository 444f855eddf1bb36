package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// TokenKey is the keyring item holding the bearer token.
const TokenKey = "auth-token"

// TokenStore persists the API bearer token in a keyring. It is safe for
// concurrent use; every Get reads the backing store.
type TokenStore struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewTokenStore wraps ring.
func NewTokenStore(ring keyring.Keyring) *TokenStore {
	return &TokenStore{ring: ring}
}

// Save stores token, replacing any previous one.
func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Set(keyring.Item{
		Key:   TokenKey,
		Data:  []byte(token),
		Label: "taskpilot API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", TokenKey, err)
	}
	return nil
}

// Get returns the stored token. A missing item or an unreadable backend
// both report false.
func (s *TokenStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.ring.Get(TokenKey)
	if err != nil || len(item.Data) == 0 {
		return "", false
	}
	return string(item.Data), true
}

// Remove deletes the stored token. Removing an absent token is not an error.
func (s *TokenStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Remove(TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", TokenKey, err)
	}
	return nil
}
