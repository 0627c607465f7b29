package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/redis/go-redis/v9"
)

const planKeyPrefix = "billing:plan:"

// planCache implements outbound.PlanCachePort.
type planCache struct {
	client redis.UniversalClient
}

// NewPlanCache creates a new plan cache adapter.
func NewPlanCache(client redis.UniversalClient) outbound.PlanCachePort {
	return &planCache{client: client}
}

func planKey(id int64) string {
	return fmt.Sprintf("%s%d", planKeyPrefix, id)
}

func (c *planCache) Get(ctx context.Context, id int64) (*model.Plan, error) {
	data, err := c.client.Get(ctx, planKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, outbound.ErrCacheMiss
		}
		return nil, fmt.Errorf("get plan from cache: %w", err)
	}

	var plan model.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal cached plan: %w", err)
	}
	return &plan, nil
}

func (c *planCache) Set(ctx context.Context, plan *model.Plan, ttl time.Duration) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return c.client.Set(ctx, planKey(plan.ID), data, ttl).Err()
}

func (c *planCache) Delete(ctx context.Context, id int64) error {
	return c.client.Del(ctx, planKey(id)).Err()
}

// Compile-time check
var _ outbound.PlanCachePort = (*planCache)(nil)
