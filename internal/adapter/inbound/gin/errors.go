package gin

import (
	"context"
	"errors"
	"strings"

	"github.com/albumly/billing-svc/internal/domain/billing"
	"github.com/albumly/billing-svc/internal/port/outbound"
	apperrors "github.com/albumly/billing-svc/internal/utils/errors"
	"github.com/albumly/billing-svc/internal/utils/requestctx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *apperrors.AppError {
	var limitErr *billing.LimitError

	switch {
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return apperrors.NotFound("NO_ACTIVE_SUBSCRIPTION", billing.ErrNoActiveSubscription.Error())

	case errors.Is(err, billing.ErrPlanNotFound):
		return apperrors.NotFound("PLAN_NOT_FOUND", billing.ErrPlanNotFound.Error())

	case errors.Is(err, billing.ErrInvalidUserID), errors.Is(err, billing.ErrNegativeDelta),
		errors.Is(err, billing.ErrDeltaTooLarge):
		return apperrors.ValidationError(err.Error())

	case errors.As(err, &limitErr):
		appErr := apperrors.ValidationError(limitErr.Message)
		appErr.Code = strings.ToUpper(string(limitErr.Kind))
		return appErr

	case errors.Is(err, outbound.ErrConflict):
		return apperrors.Conflict("usage is changing concurrently, retry the request").WithError(err)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.ServiceUnavailable("").WithError(err)

	default:
		return apperrors.Internal("", err)
	}
}

// handleError writes the HTTP response for err. Server-side faults are logged.
func handleError(c *gin.Context, log *zap.Logger, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= 500 {
		fields := append(requestctx.LogFields(c.Request.Context()),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		log.Error("request failed", fields...)
	}
	_ = c.Error(err)
	writeError(c, appErr)
}
