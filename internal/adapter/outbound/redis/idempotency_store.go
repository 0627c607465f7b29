package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix  = "billing:idempotency:"
	idempotencyLockSuffix = ":lock"
)

// idempotencyStore implements outbound.IdempotencyStorePort.
type idempotencyStore struct {
	client redis.UniversalClient
}

// NewIdempotencyStore creates a Redis-backed idempotency store.
func NewIdempotencyStore(client redis.UniversalClient) outbound.IdempotencyStorePort {
	return &idempotencyStore{client: client}
}

func (s *idempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, outbound.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotent response: %w", err)
	}
	return data, nil
}

func (s *idempotencyStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, data, ttl).Err()
}

// Lock claims key for one in-flight request. It reports false when another
// request holds it.
func (s *idempotencyStore) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key+idempotencyLockSuffix, "1", ttl).Result()
}

func (s *idempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key+idempotencyLockSuffix).Err()
}

// Compile-time check
var _ outbound.IdempotencyStorePort = (*idempotencyStore)(nil)
