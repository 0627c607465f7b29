package billing

import "errors"

// Business-state errors.
var (
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrNegativeDelta        = errors.New("deltas must be non-negative")
	ErrDeltaTooLarge        = errors.New("delta exceeds the maximum of 1099511627776")
)

// Value-object construction errors. A *LimitError matches exactly one of these via errors.Is.
var (
	ErrInvalidValue                = errors.New("invalid value")
	ErrInvalidLimit                = errors.New("invalid limit")
	ErrMissingLimit                = errors.New("missing limit")
	ErrLimitExceededAtConstruction = errors.New("usage exceeds limit")
)

// LimitErrorKind classifies a construction fault.
type LimitErrorKind string

const (
	KindInvalidValue                LimitErrorKind = "invalid_value"
	KindInvalidLimit                LimitErrorKind = "invalid_limit"
	KindMissingLimit                LimitErrorKind = "missing_limit"
	KindLimitExceededAtConstruction LimitErrorKind = "limit_exceeded_at_construction"
)

// LimitError reports why a LimitInfo could not be built.
type LimitError struct {
	Kind    LimitErrorKind
	Field   string
	Message string
}

func newLimitError(kind LimitErrorKind, field, msg string) *LimitError {
	return &LimitError{Kind: kind, Field: field, Message: msg}
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return e.Message
}

// Is maps the kind to its sentinel.
func (e *LimitError) Is(target error) bool {
	switch e.Kind {
	case KindInvalidValue:
		return target == ErrInvalidValue
	case KindInvalidLimit:
		return target == ErrInvalidLimit
	case KindMissingLimit:
		return target == ErrMissingLimit
	case KindLimitExceededAtConstruction:
		return target == ErrLimitExceededAtConstruction
	}
	return false
}

// IsValidationError reports whether err is a value-object construction fault.
func IsValidationError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}
