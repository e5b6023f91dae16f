// Package session holds the auth credential for the current player.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smileynet/xiuxian/internal/storage"
)

// TokenKey is the local storage key holding the credential.
const TokenKey = "token"

// ErrNoSession is returned by Require when no credential is held.
var ErrNoSession = errors.New("session: not logged in")

// KV is the subset of local storage the session needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store keeps the credential in memory and mirrors it to local storage so
// it survives restarts. The zero value is not usable; call New.
type Store struct {
	kv KV

	mu    sync.RWMutex
	token string
}

// New creates a Store backed by kv. Call Load to pick up a persisted token.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted credential, if any.
func (s *Store) Load(ctx context.Context) error {
	tok, err := s.kv.Get(ctx, TokenKey)
	if errors.Is(err, storage.ErrNotFound) {
		tok, err = "", nil
	}
	if err != nil {
		return fmt.Errorf("session: loading token: %w", err)
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Token returns the current credential, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a credential is held.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Require returns the credential or ErrNoSession.
func (s *Store) Require() (string, error) {
	tok := s.Token()
	if tok == "" {
		return "", ErrNoSession
	}
	return tok, nil
}

// Save stores a freshly issued credential.
func (s *Store) Save(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("session: saving token: %w", err)
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear drops the credential. The in-memory copy is cleared even when
// local storage fails, so an expired token is never sent twice.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("session: clearing token: %w", err)
	}
	return nil
}
