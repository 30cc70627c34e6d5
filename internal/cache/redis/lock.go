package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/domain"
)

// releaseLua deletes the lock only while it still carries the holder's token,
// so an expired holder cannot release a successor's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager serialises redemptions across processes sharing one Redis.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
	token   func() string
}

// NewLockManager creates a LockManager on c.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
		token:   uuid.NewString,
	}
}

func lockKey(key string) string { return "lock:" + key }

// Acquire takes key for ttl. It returns domain.ErrLockHeld when another
// holder has it. The returned release func is idempotent and runs on a
// fresh context so it still works after the caller's context ends.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := lm.token()
	k := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.release.Run(releaseCtx, lm.rdb, []string{k}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
