package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis, func()) {
	t.Helper()
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	limiter := NewRateLimiter(client)
	cleanup := func() {
		client.Close()
		server.Close()
	}
	return limiter, server, cleanup
}

func TestRateLimiterAllowEnforcesWindow(t *testing.T) {
	limiter, _, cleanup := newTestLimiter(t)
	defer cleanup()

	fixed := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	ctx := context.Background()
	key := "sync:user-1"

	if err := limiter.Allow(ctx, key, 2, time.Minute); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	if err := limiter.Allow(ctx, key, 2, time.Minute); err != nil {
		t.Fatalf("second request should pass: %v", err)
	}
	if err := limiter.Allow(ctx, key, 2, time.Minute); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected limit error, got %v", err)
	}

	fixed = fixed.Add(time.Minute)
	if err := limiter.Allow(ctx, key, 2, time.Minute); err != nil {
		t.Fatalf("next window should pass: %v", err)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter, _, cleanup := newTestLimiter(t)
	defer cleanup()

	ctx := context.Background()
	if err := limiter.Allow(ctx, "a", 1, time.Minute); err != nil {
		t.Fatalf("a should pass: %v", err)
	}
	if err := limiter.Allow(ctx, "b", 1, time.Minute); err != nil {
		t.Fatalf("b should pass: %v", err)
	}
}

func TestRateLimiterSetsExpiry(t *testing.T) {
	limiter, server, cleanup := newTestLimiter(t)
	defer cleanup()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	if err := limiter.Allow(context.Background(), "login:a@example.com", 5, time.Minute); err != nil {
		t.Fatalf("allow: %v", err)
	}
	keys := server.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one key, got %v", keys)
	}
	if ttl := server.TTL(keys[0]); ttl != time.Minute {
		t.Fatalf("expected one minute ttl, got %v", ttl)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *RateLimiter
	if err := limiter.Allow(context.Background(), "k", 1, time.Minute); err != nil {
		t.Fatalf("nil limiter should allow: %v", err)
	}
}
