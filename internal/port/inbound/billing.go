package inbound

import (
	"context"

	"github.com/albumly/billing-svc/internal/domain/billing"
	"github.com/gin-gonic/gin"
)

// LimitsDomain defines the limits engine operations exposed to transports.
type LimitsDomain interface {
	GetUserLimits(ctx context.Context, userID int64) (*billing.LimitsSnapshot, error)
	CheckLimitsForOperation(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.OperationCheck, error)
	ReserveUsage(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.Reservation, error)
	ReleaseUsage(ctx context.Context, userID int64, delta billing.OperationDelta) (*billing.Release, error)
	ListPlans(ctx context.Context) ([]*billing.PlanLimits, error)
}

// LimitsHttpPort defines HTTP handlers for the limits engine.
type LimitsHttpPort interface {
	GetLimits(c *gin.Context)
	CheckLimits(c *gin.Context)
	ReserveUsage(c *gin.Context)
	ReleaseUsage(c *gin.Context)
	ListPlans(c *gin.Context)
}
