package gin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/albumly/billing-svc/internal/domain/billing"
	apperrors "github.com/albumly/billing-svc/internal/utils/errors"
	"github.com/gin-gonic/gin"
)

const (
	msgInvalidUserID = "user_id must be a positive integer"
	msgInvalidDelta  = "request body must be an object of non-negative integer deltas no larger than 1099511627776"
)

// limitsQuery carries the user_id query parameter shared by /limits routes.
type limitsQuery struct {
	UserID int64 `form:"user_id" binding:"required,gt=0"`
}

// parseUserID binds the user_id query parameter. On failure it writes a
// 422 response and returns false.
func parseUserID(c *gin.Context) (int64, bool) {
	var q limitsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, apperrors.ValidationError(msgInvalidUserID))
		return 0, false
	}
	return q.UserID, true
}

// deltaRequest is the body of the check, reserve and release endpoints.
// Every field is optional and defaults to zero. The upper bound matches
// billing.MaxDelta.
type deltaRequest struct {
	AlbumsDelta    *int64 `json:"albums_delta" binding:"omitempty,min=0,max=1099511627776"`
	PagesDelta     *int64 `json:"pages_delta" binding:"omitempty,min=0,max=1099511627776"`
	StorageDeltaMB *int64 `json:"storage_delta_mb" binding:"omitempty,min=0,max=1099511627776"`
}

func (r deltaRequest) toDelta() billing.OperationDelta {
	return billing.OperationDelta{
		AlbumsDelta:    deref(r.AlbumsDelta),
		PagesDelta:     deref(r.PagesDelta),
		StorageDeltaMB: deref(r.StorageDeltaMB),
	}
}

// bindDelta binds an optional JSON body. An empty body means no change.
// On failure it writes a 422 response and returns false.
func bindDelta(c *gin.Context) (billing.OperationDelta, bool) {
	var req deltaRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, apperrors.ValidationError(msgInvalidDelta))
		return billing.OperationDelta{}, false
	}
	// The JSON binder stops after the first value; reject anything after it.
	if !wholeBodyIsJSON(c) {
		writeError(c, apperrors.ValidationError(msgInvalidDelta))
		return billing.OperationDelta{}, false
	}
	return req.toDelta(), true
}

// wholeBodyIsJSON reports whether the body cached by ShouldBindBodyWithJSON
// is empty or exactly one JSON value.
func wholeBodyIsJSON(c *gin.Context) bool {
	cached, ok := c.Get(gin.BodyBytesKey)
	if !ok {
		return true
	}
	body, _ := cached.([]byte)
	body = bytes.TrimSpace(body)
	return len(body) == 0 || json.Valid(body)
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func writeError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
