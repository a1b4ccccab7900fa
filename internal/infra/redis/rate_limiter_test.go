//go:build !integration

package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	red "mobilemoney-subscription/internal/infra/redis"
)

// memRedis is an in-memory stand-in for the Redis client used by unit tests.
type memRedis struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

var _ red.RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis {
	return &memRedis{counts: make(map[string]int64), expires: make(map[string]time.Duration)}
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("not found")
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = expiration
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (m *memRedis) Close() error                                  { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit and then blocks", func(t *testing.T) {
		client := newMemRedis()
		limiter := red.NewRateLimiter(client)

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, "k", 3, time.Hour)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok {
				t.Fatalf("attempt %d should be allowed", i+1)
			}
		}
		ok, err := limiter.Allow(ctx, "k", 3, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("the fourth attempt must be blocked")
		}
	})

	t.Run("sets the window expiry on the first increment", func(t *testing.T) {
		client := newMemRedis()
		limiter := red.NewRateLimiter(client)

		if _, err := limiter.Allow(ctx, "k", 3, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.expires["k"] != time.Minute {
			t.Errorf("expected a 1m window, got %v", client.expires["k"])
		}
	})

	t.Run("surfaces client errors to the caller", func(t *testing.T) {
		client := newMemRedis()
		client.incrErr = errors.New("connection refused")
		limiter := red.NewRateLimiter(client)

		if _, err := limiter.Allow(ctx, "k", 3, time.Hour); err == nil {
			t.Fatal("expected the client error to surface")
		}
	})
}
