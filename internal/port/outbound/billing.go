package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/albumly/billing-svc/internal/model"
)

var (
	// ErrCacheMiss is returned by cache ports when a key is absent.
	ErrCacheMiss = errors.New("cache miss")

	// ErrConflict is returned when a concurrent write raced with ours and
	// the caller may retry.
	ErrConflict = errors.New("concurrent write conflict")
)

// PlanDatabasePort defines plan lookups. Plans are read-only to this service.
type PlanDatabasePort interface {
	// GetByID returns the plan, or (nil, nil) if it does not exist.
	GetByID(ctx context.Context, id int64) (*model.Plan, error)

	// ListActive lists active plans in display order.
	ListActive(ctx context.Context) ([]*model.Plan, error)
}

// SubscriptionDatabasePort defines subscription lookups.
type SubscriptionDatabasePort interface {
	// FindActive returns the user's subscription with status active and an
	// end date that is null or after now, or (nil, nil) if there is none.
	FindActive(ctx context.Context, userID int64, now time.Time) (*model.Subscription, error)
}

// CounterDelta is one conditional counter change.
// Column must be one of the model.UsageColumn* names.
type CounterDelta struct {
	Column string
	Delta  int64
	Limit  int64
}

// UsageDatabasePort defines usage counter reads and writes.
type UsageDatabasePort interface {
	// FindForPeriod returns the usage row inside [start, end], or (nil, nil).
	FindForPeriod(ctx context.Context, userID int64, start, end time.Time) (*model.Usage, error)

	// IncrementWithinLimits applies every delta in one conditional write.
	// It returns false, leaving the row untouched, if any counter would pass its limit.
	IncrementWithinLimits(ctx context.Context, userID int64, start, end time.Time, deltas []CounterDelta) (bool, error)

	// Decrement lowers counters, flooring each at zero. A missing row is a no-op.
	Decrement(ctx context.Context, userID int64, start, end time.Time, deltas []CounterDelta) error
}

// PlanCachePort caches plan rows.
type PlanCachePort interface {
	// Get returns ErrCacheMiss if the plan is not cached.
	Get(ctx context.Context, id int64) (*model.Plan, error)

	// Set stores the plan with the given TTL.
	Set(ctx context.Context, plan *model.Plan, ttl time.Duration) error

	// Delete evicts the plan.
	Delete(ctx context.Context, id int64) error
}

// IdempotencyStorePort persists replayable responses keyed by an
// Idempotency-Key. Get returns ErrCacheMiss when nothing is stored.
type IdempotencyStorePort interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RateLimiterPort counts requests per key in fixed windows.
type RateLimiterPort interface {
	// Allow records one request for key and reports whether it fits in
	// limit for the current window, along with the requests left.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}
