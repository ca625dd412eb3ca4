package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "servicescope:analysis:"
	lockTTL       = 30 * time.Minute
)

type redisIdempotency struct {
	client *goredis.Client
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store using SETNX.
func NewRedisIdempotencyStore(client *goredis.Client) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses Redis SETNX to atomically acquire a per-repository
// analysis lock, so a redelivered queue message cannot start a second
// concurrent pipeline for the same repository.
func (r *redisIdempotency) AcquireLock(ctx context.Context, repositoryID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + repositoryID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock deletes the lock so an intentional re-analysis can start.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, repositoryID uuid.UUID) error {
	key := lockKeyPrefix + repositoryID.String()
	return r.client.Del(ctx, key).Err()
}
