package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "billing:ratelimit:"

// rateLimiter implements outbound.RateLimiterPort with a fixed-window counter.
type rateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.UniversalClient) outbound.RateLimiterPort {
	return &rateLimiter{client: client, now: time.Now}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if window <= 0 {
		return false, 0, fmt.Errorf("rate limit window must be positive")
	}
	bucket := r.now().UnixNano() / window.Nanoseconds()
	fullKey := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, key, bucket)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	return count <= limit, max(limit-count, 0), nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
