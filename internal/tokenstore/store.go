// Package tokenstore persists the bearer and refresh tokens of a signed-in session.
//
// Every backend stores the pair under the same two fixed key names, KeyToken
// and KeyRefreshToken, so a session written by one tool can be read by another.
package tokenstore

import (
	"context"
	"sync"
)

const (
	KeyToken        = "token"
	KeyRefreshToken = "refreshToken"
)

// Tokens is the persisted credential pair. A zero value means signed out.
type Tokens struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Empty reports whether no bearer token is stored.
func (t Tokens) Empty() bool {
	return t.Token == ""
}

func (t Tokens) fields() map[string]string {
	return map[string]string{
		KeyToken:        t.Token,
		KeyRefreshToken: t.RefreshToken,
	}
}

func fromFields(m map[string]string) Tokens {
	return Tokens{Token: m[KeyToken], RefreshToken: m[KeyRefreshToken]}
}

type Store interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the pair for the life of the process.
type MemoryStore struct {
	mu sync.RWMutex
	t  Tokens
}

func NewMemoryStore(initial Tokens) *MemoryStore {
	return &MemoryStore{t: initial}
}

func (s *MemoryStore) Load(context.Context) (Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t, nil
}

func (s *MemoryStore) Save(_ context.Context, t Tokens) error {
	s.mu.Lock()
	s.t = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.t = Tokens{}
	s.mu.Unlock()
	return nil
}
