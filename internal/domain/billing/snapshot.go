package billing

import (
	"fmt"
	"math"
)

// Resource names as they appear in violation messages.
const (
	ResourceAlbums  = "albums"
	ResourcePages   = "pages"
	ResourceStorage = "storage"
)

// MaxDelta bounds a single reserve or release component. Larger values
// could overflow the stored counters.
const MaxDelta int64 = 1 << 40

// MessageLimitsExceeded is the summary attached to a refused operation.
const MessageLimitsExceeded = "operation exceeds plan limits"

// LimitsSnapshot is a point-in-time view of a user's limits.
type LimitsSnapshot struct {
	Albums  LimitInfo        `json:"albums"`
	Pages   LimitInfo        `json:"pages"`
	Storage StorageLimitInfo `json:"storage"`
}

// OperationDelta is the signed change an operation proposes per resource.
type OperationDelta struct {
	AlbumsDelta    int64 `json:"albums_delta"`
	PagesDelta     int64 `json:"pages_delta"`
	StorageDeltaMB int64 `json:"storage_delta_mb"`
}

// IsZero reports whether the delta changes nothing.
func (d OperationDelta) IsZero() bool {
	return d.AlbumsDelta == 0 && d.PagesDelta == 0 && d.StorageDeltaMB == 0
}

// HasNegative reports whether any component decreases usage.
func (d OperationDelta) HasNegative() bool {
	return d.AlbumsDelta < 0 || d.PagesDelta < 0 || d.StorageDeltaMB < 0
}

// ExceedsMax reports whether any component is above MaxDelta.
func (d OperationDelta) ExceedsMax() bool {
	return d.AlbumsDelta > MaxDelta || d.PagesDelta > MaxDelta || d.StorageDeltaMB > MaxDelta
}

// OperationCheck is the verdict for a proposed delta.
type OperationCheck struct {
	CanProceed     bool            `json:"can_proceed"`
	ExceededLimits []string        `json:"exceeded_limits"`
	Limits         *LimitsSnapshot `json:"limits"`
	Message        *string         `json:"message"`
}

// Reservation is the result of an atomic usage increment.
type Reservation struct {
	Reserved       bool            `json:"reserved"`
	ExceededLimits []string        `json:"exceeded_limits"`
	Limits         *LimitsSnapshot `json:"limits"`
	Message        *string         `json:"message"`
}

// Release is the result of a usage release. Limits is nil when the
// counters moved but could not be re-read.
type Release struct {
	Released bool            `json:"released"`
	Limits   *LimitsSnapshot `json:"limits"`
}

// Violations lists a message for every positive delta that does not fit.
// Zero and negative deltas never produce a violation.
func (s *LimitsSnapshot) Violations(d OperationDelta) []string {
	violations := make([]string, 0, 3)
	if d.AlbumsDelta > 0 && !s.Albums.CanUse(d.AlbumsDelta) {
		violations = append(violations, violation(ResourceAlbums, s.Albums.Used(), d.AlbumsDelta, s.Albums.Limit()))
	}
	if d.PagesDelta > 0 && !s.Pages.CanUse(d.PagesDelta) {
		violations = append(violations, violation(ResourcePages, s.Pages.Used(), d.PagesDelta, s.Pages.Limit()))
	}
	if d.StorageDeltaMB > 0 && !s.Storage.CanUse(d.StorageDeltaMB) {
		violations = append(violations, violation(ResourceStorage, s.Storage.UsedMB(), d.StorageDeltaMB, s.Storage.LimitMB()))
	}
	return violations
}

func violation(resource string, used, delta, limit int64) string {
	return fmt.Sprintf("exceeded %s limit: %d/%d", resource, saturatingAdd(used, delta), limit)
}

// saturatingAdd adds two non-negative values, clamping at math.MaxInt64.
func saturatingAdd(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func strPtr(s string) *string {
	return &s
}
