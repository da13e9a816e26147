package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter counts hits per key in fixed Redis windows.
type RateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "rl", now: time.Now}
}

// Allow records one hit for key and returns ErrLimitExceeded once more than
// limit hits land in the current window. A nil limiter or non-positive
// limit allows everything.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	if l == nil || l.client == nil || limit <= 0 || window <= 0 {
		return nil
	}

	bucket := l.now().UTC().UnixNano() / int64(window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("rate limit %s: %w", key, err)
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, window)
	}
	if cnt > int64(limit) {
		return ErrLimitExceeded
	}
	return nil
}
