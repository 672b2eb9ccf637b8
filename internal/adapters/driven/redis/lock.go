package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "lexcheck:lock:"

// Lock implements DistributedLock with SET NX PX keys holding a per-lease token.
type Lock struct {
	client *redis.Client
}

// NewLock creates a new Redis-backed lease lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

// Acquire sets the lease key if absent. The key expires with the lease.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Release drops the lease identified by token.
func (l *Lock) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
