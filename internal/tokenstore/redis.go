package tokenstore

import (
	"context"
	"fmt"
)

// HashClient is the subset of the redis cache client the store needs.
type HashClient interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps the pair in a hash at session:<name>, fields named by the
// fixed keys.
type RedisStore struct {
	client HashClient
	key    string
}

func NewRedisStore(client HashClient, name string) *RedisStore {
	return &RedisStore{client: client, key: fmt.Sprintf("session:%s", name)}
}

func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	m, err := s.client.HGetAll(ctx, s.key)
	if err != nil {
		return Tokens{}, fmt.Errorf("load session %s: %w", s.key, err)
	}
	return fromFields(m), nil
}

func (s *RedisStore) Save(ctx context.Context, t Tokens) error {
	if err := s.client.HSet(ctx, s.key, t.fields()); err != nil {
		return fmt.Errorf("save session %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key)
}
