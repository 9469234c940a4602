package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every API instance.
type RateLimiter struct {
	c   *redis.Client
	now func() time.Time
}

func NewRateLimiter(opts Options) *RateLimiter {
	return &RateLimiter{
		c: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		now: time.Now,
	}
}

// Allow increments key and refreshes the window TTL. It returns whether the
// count is still within limit, and the count.
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

// AllowPerMinute buckets key by wall-clock minute.
func (rl *RateLimiter) AllowPerMinute(ctx context.Context, key string, limit int64) (bool, error) {
	bucket := fmt.Sprintf("rl:%s:%s", key, rl.now().UTC().Format("200601021504"))
	ok, _, err := rl.Allow(ctx, bucket, limit, 70*time.Second)
	return ok, err
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
