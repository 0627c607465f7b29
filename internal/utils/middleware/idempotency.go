package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/albumly/billing-svc/internal/port/outbound"
	apperrors "github.com/albumly/billing-svc/internal/utils/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader is the header clients set to make a mutating request replayable.
const IdempotencyKeyHeader = "Idempotency-Key"

const (
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultIdempotencyLockTTL = 30 * time.Second
	maxIdempotencyKeyLength   = 255
)

// IdempotencyConfig holds idempotency middleware configuration.
type IdempotencyConfig struct {
	// TTL is how long a stored response is replayed.
	TTL time.Duration
	// LockTTL bounds how long an in-flight request holds its key.
	LockTTL time.Duration
}

// DefaultIdempotencyConfig returns the default idempotency configuration.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     defaultIdempotencyTTL,
		LockTTL: defaultIdempotencyLockTTL,
	}
}

// storedResponse is a replayable response.
type storedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

// captureWriter tees the response body.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// that retried reserve and release calls do not move counters twice.
// Requests without the header, or with a nil store, pass through. Reusing a
// key with a different body is rejected with 422.
func Idempotency(store outbound.IdempotencyStorePort, cfg IdempotencyConfig, log *zap.Logger) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultIdempotencyTTL
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultIdempotencyLockTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if store == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortWith(c, apperrors.ValidationError("Idempotency-Key is too long"))
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c, key)
		bodyHash, err := bodyHashKey(c)
		if err != nil {
			abortWith(c, apperrors.ValidationError("request body could not be read"))
			return
		}

		stored, err := loadResponse(ctx, store, cacheKey)
		switch {
		case err == nil:
			if stored.BodyHash != bodyHash {
				abortWith(c, apperrors.NewAppError("IDEMPOTENCY_KEY_REUSED",
					"Idempotency-Key was already used with a different request body",
					http.StatusUnprocessableEntity, nil))
				return
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.StatusCode, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, outbound.ErrCacheMiss):
			// Store unavailable: serve without replay protection.
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		locked, err := store.Lock(ctx, cacheKey, cfg.LockTTL)
		if err != nil {
			log.Warn("idempotency lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !locked {
			abortWith(c, apperrors.NewAppError("REQUEST_IN_PROGRESS",
				"a request with this Idempotency-Key is already being processed",
				http.StatusConflict, nil))
			return
		}
		defer func() {
			if err := store.Unlock(context.WithoutCancel(ctx), cacheKey); err != nil {
				log.Warn("idempotency unlock failed", zap.Error(err))
			}
		}()

		writer := &captureWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		// 409 and 5xx are transient; let the client retry with the same key.
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError || status == http.StatusConflict {
			return
		}
		resp := &storedResponse{
			StatusCode:  status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
			BodyHash:    bodyHash,
		}
		if err := saveResponse(context.WithoutCancel(ctx), store, cacheKey, resp, cfg.TTL); err != nil {
			log.Warn("idempotency save failed", zap.Error(err))
		}
	}
}

// idempotencyCacheKey scopes the client key to the route and user.
func idempotencyCacheKey(c *gin.Context, key string) string {
	hash := sha256.Sum256([]byte(c.Request.Method + ":" + c.FullPath() + ":" + c.Query("user_id") + ":" + key))
	return hex.EncodeToString(hash[:])
}

func loadResponse(ctx context.Context, store outbound.IdempotencyStorePort, key string) (*storedResponse, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func saveResponse(ctx context.Context, store outbound.IdempotencyStorePort, key string, resp *storedResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return store.Save(ctx, key, data, ttl)
}

// bodyHashKey hashes the request body and restores it for the handler.
func bodyHashKey(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		hash := sha256.Sum256(nil)
		return hex.EncodeToString(hash[:]), nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:]), nil
}
