package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// counter is the slice of redis the rate limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type redisCounter struct {
	rdb *redis.Client
}

func (r redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r redisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

type Client struct {
	rdb         *redis.Client
	counts      counter
	limitWindow time.Duration
	maxRequests int
}

func NewClient(addr string, maxRequests int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb, counts: redisCounter{rdb}, limitWindow: 60 * time.Second, maxRequests: maxRequests}, nil
}

// IsRateLimited counts a request from ip in a fixed window that starts with
// the first request. A limit of zero disables limiting; redis failures never
// block traffic.
func (c *Client) IsRateLimited(ctx context.Context, ip string) bool {
	if c.maxRequests <= 0 {
		return false
	}
	key := fmt.Sprintf("ratelimit:%s", ip)

	n, err := c.counts.Incr(ctx, key)
	if err != nil {
		return false
	}
	if n == 1 {
		if err := c.counts.Expire(ctx, key, c.limitWindow); err != nil {
			slog.Warn("Rate limit window not armed", "key", key, "error", err)
			return false
		}
	}

	return n > int64(c.maxRequests)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

func (c *Client) HSet(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return c.rdb.HSet(ctx, key, values).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
