package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter: one key per (bucket, client, minute).
type RateLimiter struct {
	c   *redis.Client
	now func() time.Time
}

func NewRateLimiter(addr string) *RateLimiter {
	return &RateLimiter{
		c:   redis.NewClient(&redis.Options{Addr: addr}),
		now: time.Now,
	}
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}

// Allow делает INCR по ключу и ставит TTL окна.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowPerMinute counts requests of one client within the current wall-clock minute.
func (rl *RateLimiter) AllowPerMinute(ctx context.Context, bucket, client string, limit int64) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s:%s", bucket, client, rl.now().UTC().Format("200601021504"))
	ok, _, err := rl.Allow(ctx, key, limit, 70*time.Second)
	return ok, err
}
