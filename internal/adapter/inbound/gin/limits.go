package gin

import (
	"net/http"

	"github.com/albumly/billing-svc/internal/port/inbound"
	"github.com/albumly/billing-svc/internal/utils/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limit check outcomes recorded in metrics.
const (
	resultAllowed        = "allowed"
	resultDenied         = "denied"
	resultReserved       = "reserved"
	resultNoSubscription = "no_subscription"
	resultError          = "error"
)

// limitsHandler implements inbound.LimitsHttpPort.
type limitsHandler struct {
	limits  inbound.LimitsDomain
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewLimitsHandler creates a new limits HTTP handler.
func NewLimitsHandler(limits inbound.LimitsDomain, m *metrics.Metrics, logger *zap.Logger) inbound.LimitsHttpPort {
	return &limitsHandler{limits: limits, metrics: m, logger: logger}
}

// GetLimits handles GET /limits?user_id=<int>.
func (h *limitsHandler) GetLimits(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	limits, err := h.limits.GetUserLimits(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// CheckLimits handles POST /limits/check?user_id=<int>.
// The check reads usage without reserving it.
func (h *limitsHandler) CheckLimits(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	delta, ok := bindDelta(c)
	if !ok {
		return
	}

	check, err := h.limits.CheckLimitsForOperation(c.Request.Context(), userID, delta)
	if err != nil {
		h.metrics.RecordLimitCheck(resultError)
		handleError(c, h.logger, err)
		return
	}

	switch {
	case check.CanProceed:
		h.metrics.RecordLimitCheck(resultAllowed)
	case check.Limits == nil:
		h.metrics.RecordLimitCheck(resultNoSubscription)
	default:
		h.metrics.RecordLimitCheck(resultDenied)
	}
	c.JSON(http.StatusOK, check)
}

// ReserveUsage handles POST /limits/reserve?user_id=<int>.
func (h *limitsHandler) ReserveUsage(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	delta, ok := bindDelta(c)
	if !ok {
		return
	}

	res, err := h.limits.ReserveUsage(c.Request.Context(), userID, delta)
	if err != nil {
		h.metrics.RecordReservation(reservationErrorResult(err))
		handleError(c, h.logger, err)
		return
	}

	if res.Reserved {
		h.metrics.RecordReservation(resultReserved)
	} else {
		h.metrics.RecordReservation(resultDenied)
	}
	c.JSON(http.StatusOK, res)
}

// ReleaseUsage handles POST /limits/release?user_id=<int>.
func (h *limitsHandler) ReleaseUsage(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	delta, ok := bindDelta(c)
	if !ok {
		return
	}

	rel, err := h.limits.ReleaseUsage(c.Request.Context(), userID, delta)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	h.metrics.RecordRelease()
	c.JSON(http.StatusOK, rel)
}

// ListPlans handles GET /plans.
func (h *limitsHandler) ListPlans(c *gin.Context) {
	plans, err := h.limits.ListPlans(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func reservationErrorResult(err error) string {
	if toAppError(err).StatusCode == http.StatusNotFound {
		return resultNoSubscription
	}
	return resultError
}

// RegisterRoutes mounts the limits API on r. Guards run before every
// /limits route; /plans is public.
func RegisterRoutes(r gin.IRouter, h inbound.LimitsHttpPort, guards ...gin.HandlerFunc) {
	limits := r.Group("/limits", guards...)
	{
		limits.GET("", h.GetLimits)
		limits.POST("/check", h.CheckLimits)
		limits.POST("/reserve", h.ReserveUsage)
		limits.POST("/release", h.ReleaseUsage)
	}
	r.GET("/plans", h.ListPlans)
}
