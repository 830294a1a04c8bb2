package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only when it still holds our token, so a lock that
// expired and was taken by another worker is never removed by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// CycleLockRepository holds the cross-replica sync lock in Redis.
type CycleLockRepository struct {
	client lockClient
	logger *zap.Logger
}

// NewCycleLockRepository constructs a cycle lock repository.
func NewCycleLockRepository(client lockClient, logger *zap.Logger) *CycleLockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleLockRepository{client: client, logger: logger}
}

// Acquire tries to take key for ttl. It returns false when another worker holds it.
func (r *CycleLockRepository) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release frees key if it is still owned by token.
func (r *CycleLockRepository) Release(ctx context.Context, key, token string) error {
	deleted, err := r.client.Eval(ctx, releaseScript, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if deleted == 0 {
		r.logger.Warn("sync lock already expired or taken over", zap.String("key", key))
	}
	return nil
}
