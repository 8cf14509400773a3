package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts attempts per key in fixed windows. It shares the
// cache's connection pool.
type RateLimiter struct {
	c *redis.Client
}

func (r *RedisCache) RateLimiter() *RateLimiter {
	return &RateLimiter{c: r.c}
}

// Allow counts one attempt against key. The window starts with the first
// attempt and later attempts do not extend it. It reports whether the count
// is still within limit, and the count.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	var incr *redis.IntCmd
	_, err := rl.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}
