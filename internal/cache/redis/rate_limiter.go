package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter is a sliding-window limiter over a sorted set per key, shared
// by every API replica.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

func rateLimitKey(key string) string { return "ratelimit:" + key }

// Allow counts one request against key and reports whether it fits within
// limit requests per window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := rl.script.Run(ctx, rl.rdb,
		[]string{rateLimitKey(key)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 2 {
		return false, fmt.Errorf("redis: rate limit %s: unexpected reply length %d", key, len(res))
	}
	return res[0] == 1, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
