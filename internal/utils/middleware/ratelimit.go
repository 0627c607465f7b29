package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/albumly/billing-svc/internal/port/outbound"
	apperrors "github.com/albumly/billing-svc/internal/utils/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// RateLimitLimit is the header for the limit.
	RateLimitLimit = "X-RateLimit-Limit"
	// RateLimitRemaining is the header for remaining requests.
	RateLimitRemaining = "X-RateLimit-Remaining"
	// RetryAfter is the header for retry time.
	RetryAfter = "Retry-After"
)

// RateLimitConfig holds rate limit configuration.
type RateLimitConfig struct {
	// Limit is the maximum number of requests per window. Zero disables limiting.
	Limit  int
	Window time.Duration
	// KeyFunc derives the bucket key. Defaults to UserOrIPKey.
	KeyFunc func(*gin.Context) string
}

// UserOrIPKey buckets by the authenticated user, then the user_id query
// parameter, then the client IP.
func UserOrIPKey(c *gin.Context) string {
	if userID, ok := GetAuthUserID(c); ok {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	if userID := c.Query("user_id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

// RateLimit rejects requests over cfg.Limit per window with 429. A nil
// limiter, a zero limit, or a limiter error lets the request through.
func RateLimit(limiter outbound.RateLimiterPort, cfg RateLimitConfig, log *zap.Logger) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = UserOrIPKey
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		if limiter == nil || cfg.Limit <= 0 {
			c.Next()
			return
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), cfg.KeyFunc(c), cfg.Limit, cfg.Window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header(RateLimitLimit, strconv.Itoa(cfg.Limit))
		c.Header(RateLimitRemaining, strconv.Itoa(remaining))

		if !allowed {
			c.Header(RetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			abortWith(c, apperrors.NewAppError("RATE_LIMIT_EXCEEDED",
				"too many requests, please try again later", http.StatusTooManyRequests, nil))
			return
		}
		c.Next()
	}
}
