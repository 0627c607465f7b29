package billing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unlimited is the limit sentinel meaning "no cap on this resource".
const Unlimited int64 = -1

// MBPerGB converts plan storage caps (GB) to the unit usage is tracked in (MB).
const MBPerGB int64 = 1024

// LimitInfo pairs a usage counter with its cap.
// A constructed LimitInfo never reports more usage than a bounded limit allows.
type LimitInfo struct {
	used  int64
	limit int64
}

// NewLimitInfo validates used and limit and builds a LimitInfo.
//
// used accepts integers, integral floats, json.Number and integer numeral
// strings; nil is read as 0. limit accepts the same inputs but nil is
// rejected with ErrMissingLimit, and values below -1 with ErrInvalidLimit.
func NewLimitInfo(used, limit any) (LimitInfo, error) {
	return newLimitInfo("used", "limit", used, limit)
}

// CreateLimitInfo maps a nil used to 0 and a nil limit to Unlimited,
// then validates like NewLimitInfo.
func CreateLimitInfo(used, limit *int64) (LimitInfo, error) {
	var u, l any = int64(0), Unlimited
	if used != nil {
		u = *used
	}
	if limit != nil {
		l = *limit
	}
	return NewLimitInfo(u, l)
}

func newLimitInfo(usedField, limitField string, used, limit any) (LimitInfo, error) {
	u, present, err := coerceInt(usedField, used)
	if err != nil {
		return LimitInfo{}, err
	}
	if !present {
		u = 0
	}
	if u < 0 {
		return LimitInfo{}, newLimitError(KindInvalidValue, usedField, fmt.Sprintf("%s must be non-negative, got %d", usedField, u))
	}

	l, present, err := coerceInt(limitField, limit)
	if err != nil {
		return LimitInfo{}, err
	}
	if !present {
		return LimitInfo{}, newLimitError(KindMissingLimit, limitField, limitField+" is required; use -1 for unlimited")
	}
	if l < Unlimited {
		return LimitInfo{}, newLimitError(KindInvalidLimit, limitField, fmt.Sprintf("%s must be -1 or non-negative, got %d", limitField, l))
	}

	if l != Unlimited && u > l {
		return LimitInfo{}, newLimitError(KindLimitExceededAtConstruction, usedField,
			fmt.Sprintf("%s %d exceeds %s %d", usedField, u, limitField, l))
	}
	return LimitInfo{used: u, limit: l}, nil
}

// Used returns the current usage.
func (li LimitInfo) Used() int64 { return li.used }

// Limit returns the cap, or Unlimited.
func (li LimitInfo) Limit() int64 { return li.limit }

// IsUnlimited reports whether the resource has no cap.
func (li LimitInfo) IsUnlimited() bool { return li.limit == Unlimited }

// Remaining returns -1 when unlimited, else the non-negative headroom.
func (li LimitInfo) Remaining() int64 {
	if li.IsUnlimited() {
		return Unlimited
	}
	return max(li.limit-li.used, 0)
}

// CanUse reports whether amount more units fit under the cap.
// Negative amounts are never usable.
func (li LimitInfo) CanUse(amount int64) bool {
	if amount < 0 {
		return false
	}
	if li.IsUnlimited() {
		return true
	}
	return li.used <= li.limit-amount
}

// RemainingAfter returns the headroom left once amount is consumed.
func (li LimitInfo) RemainingAfter(amount int64) int64 {
	if li.IsUnlimited() {
		return Unlimited
	}
	headroom := li.limit - li.used
	if amount < 0 {
		// Releasing units grows headroom; clamp instead of wrapping.
		if amount < headroom-math.MaxInt64 {
			return math.MaxInt64
		}
		return headroom - amount
	}
	return max(headroom-amount, 0)
}

// MarshalJSON renders {used, limit, remaining}.
func (li LimitInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Used      int64 `json:"used"`
		Limit     int64 `json:"limit"`
		Remaining int64 `json:"remaining"`
	}{li.used, li.limit, li.Remaining()})
}

// StorageLimitInfo is a LimitInfo denominated in megabytes.
type StorageLimitInfo struct {
	info LimitInfo
}

// NewStorageLimitInfo validates used_mb and limit_mb with the same rules as NewLimitInfo.
func NewStorageLimitInfo(usedMB, limitMB any) (StorageLimitInfo, error) {
	info, err := newLimitInfo("used_mb", "limit_mb", usedMB, limitMB)
	if err != nil {
		return StorageLimitInfo{}, err
	}
	return StorageLimitInfo{info: info}, nil
}

// CreateStorageLimitInfo maps a nil usedMB to 0 and a nil limitGB to
// Unlimited, converts the GB cap to MB, then validates.
func CreateStorageLimitInfo(usedMB, limitGB *int64) (StorageLimitInfo, error) {
	var u any = int64(0)
	if usedMB != nil {
		u = *usedMB
	}
	limitMB, err := GBToMB(limitGB)
	if err != nil {
		return StorageLimitInfo{}, err
	}
	return NewStorageLimitInfo(u, limitMB)
}

// GBToMB converts a plan storage cap to megabytes. Nil and -1 stay Unlimited.
func GBToMB(limitGB *int64) (int64, error) {
	if limitGB == nil || *limitGB == Unlimited {
		return Unlimited, nil
	}
	gb := *limitGB
	if gb < Unlimited {
		return 0, newLimitError(KindInvalidLimit, "limit_gb", fmt.Sprintf("limit_gb must be -1 or non-negative, got %d", gb))
	}
	if gb > math.MaxInt64/MBPerGB {
		return 0, newLimitError(KindInvalidLimit, "limit_gb", fmt.Sprintf("limit_gb %d is out of range", gb))
	}
	return gb * MBPerGB, nil
}

// UsedMB returns the storage in use.
func (s StorageLimitInfo) UsedMB() int64 { return s.info.used }

// LimitMB returns the storage cap, or Unlimited.
func (s StorageLimitInfo) LimitMB() int64 { return s.info.limit }

// IsUnlimited reports whether storage has no cap.
func (s StorageLimitInfo) IsUnlimited() bool { return s.info.IsUnlimited() }

// RemainingMB returns -1 when unlimited, else the non-negative headroom.
func (s StorageLimitInfo) RemainingMB() int64 { return s.info.Remaining() }

// CanUse reports whether amountMB more megabytes fit under the cap.
func (s StorageLimitInfo) CanUse(amountMB int64) bool { return s.info.CanUse(amountMB) }

// RemainingAfter returns the headroom left once amountMB is consumed.
func (s StorageLimitInfo) RemainingAfter(amountMB int64) int64 { return s.info.RemainingAfter(amountMB) }

// MarshalJSON renders {used_mb, limit_mb, remaining_mb}.
func (s StorageLimitInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UsedMB      int64 `json:"used_mb"`
		LimitMB     int64 `json:"limit_mb"`
		RemainingMB int64 `json:"remaining_mb"`
	}{s.info.used, s.info.limit, s.info.Remaining()})
}

// coerceInt reads an integer-like value. present is false for nil inputs.
func coerceInt(field string, v any) (n int64, present bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case *int64:
		if x == nil {
			return 0, false, nil
		}
		return *x, true, nil
	case *int:
		if x == nil {
			return 0, false, nil
		}
		return int64(*x), true, nil
	case int:
		return int64(x), true, nil
	case int8:
		return int64(x), true, nil
	case int16:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case uint:
		return fromUint(field, uint64(x))
	case uint8:
		return int64(x), true, nil
	case uint16:
		return int64(x), true, nil
	case uint32:
		return int64(x), true, nil
	case uint64:
		return fromUint(field, x)
	case float32:
		return fromFloat(field, float64(x))
	case float64:
		return fromFloat(field, x)
	case json.Number:
		return fromString(field, string(x))
	case string:
		return fromString(field, x)
	default:
		return 0, false, newLimitError(KindInvalidValue, field, fmt.Sprintf("%s has unsupported type %T", field, v))
	}
}

func fromUint(field string, u uint64) (int64, bool, error) {
	if u > math.MaxInt64 {
		return 0, false, newLimitError(KindInvalidValue, field, fmt.Sprintf("%s %d is out of range", field, u))
	}
	return int64(u), true, nil
}

func fromFloat(field string, f float64) (int64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false, newLimitError(KindInvalidValue, field, fmt.Sprintf("%s must be a whole number, got %v", field, f))
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false, newLimitError(KindInvalidValue, field, fmt.Sprintf("%s %v is out of range", field, f))
	}
	return int64(f), true, nil
}

func fromString(field, s string) (int64, bool, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false, newLimitError(KindInvalidValue, field, fmt.Sprintf("%s must be an integer numeral, got %q", field, s))
	}
	return n, true, nil
}
