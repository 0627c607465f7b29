// Package cache decorates database ports with a read-through cache.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const planCacheName = "plans"

// Recorder receives cache hit and miss events.
type Recorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// BreakerConfig configures the circuit breaker guarding the cache.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CachedPlanDatabase serves plan lookups from the cache and falls back to
// the database on a miss or when the cache is failing. Listing is never cached.
type CachedPlanDatabase struct {
	next     outbound.PlanDatabasePort
	cache    outbound.PlanCachePort
	breaker  *gobreaker.CircuitBreaker[*model.Plan]
	ttl      time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// NewCachedPlanDatabase wraps next with cache.
func NewCachedPlanDatabase(
	next outbound.PlanDatabasePort,
	cache outbound.PlanCachePort,
	ttl time.Duration,
	breakerCfg BreakerConfig,
	recorder Recorder,
	logger *zap.Logger,
) *CachedPlanDatabase {
	settings := gobreaker.Settings{
		Name:        "plan-cache",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerCfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &CachedPlanDatabase{
		next:     next,
		cache:    cache,
		breaker:  gobreaker.NewCircuitBreaker[*model.Plan](settings),
		ttl:      ttl,
		recorder: recorder,
		logger:   logger,
	}
}

func (c *CachedPlanDatabase) GetByID(ctx context.Context, id int64) (*model.Plan, error) {
	plan, err := c.breaker.Execute(func() (*model.Plan, error) {
		p, err := c.cache.Get(ctx, id)
		if errors.Is(err, outbound.ErrCacheMiss) {
			return nil, nil
		}
		return p, err
	})
	switch {
	case err != nil:
		c.logger.Debug("plan cache unavailable", zap.Int64("plan_id", id), zap.Error(err))
	case plan != nil:
		c.recorder.RecordCacheHit(planCacheName)
		return plan, nil
	}
	c.recorder.RecordCacheMiss(planCacheName)

	plan, err = c.next.GetByID(ctx, id)
	if err != nil || plan == nil {
		return plan, err
	}

	_, err = c.breaker.Execute(func() (*model.Plan, error) {
		return nil, c.cache.Set(ctx, plan, c.ttl)
	})
	if err != nil {
		c.logger.Debug("plan cache write skipped", zap.Int64("plan_id", id), zap.Error(err))
	}
	return plan, nil
}

func (c *CachedPlanDatabase) ListActive(ctx context.Context) ([]*model.Plan, error) {
	return c.next.ListActive(ctx)
}

// State reports the cache breaker state.
func (c *CachedPlanDatabase) State() gobreaker.State {
	return c.breaker.State()
}

// Compile-time check
var _ outbound.PlanDatabasePort = (*CachedPlanDatabase)(nil)
