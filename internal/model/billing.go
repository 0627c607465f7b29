package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Unlimited is the sentinel stored in plan caps for "no cap on this resource".
const Unlimited int64 = -1

// SubscriptionStatus represents the status of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// String returns the string representation of the status.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Plan represents a tariff with per-resource caps.
// A nil cap and a cap of -1 both mean unlimited.
type Plan struct {
	ID           int64          `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null"`
	Description  string         `json:"description"`
	PriceCents   int64          `json:"price_cents"`
	Features     pq.StringArray `json:"features" gorm:"type:text[]"`
	Active       bool           `json:"active" gorm:"default:true"`
	DisplayOrder int            `json:"display_order" gorm:"default:0"`

	MaxAlbums        *int64 `json:"max_albums" gorm:"column:max_albums"`
	MaxPagesPerAlbum *int64 `json:"max_pages_per_album" gorm:"column:max_pages_per_album"`
	MaxMediaFiles    *int64 `json:"max_media_files" gorm:"column:max_media_files"`
	MaxQRCodes       *int64 `json:"max_qr_codes" gorm:"column:max_qr_codes"`
	MaxStorageGB     *int64 `json:"max_storage_gb" gorm:"column:max_storage_gb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Plan) TableName() string {
	return "plans"
}

// Subscription binds a user to a plan.
type Subscription struct {
	ID        uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    int64              `json:"user_id" gorm:"index;not null"`
	PlanID    int64              `json:"plan_id" gorm:"not null"`
	Status    SubscriptionStatus `json:"status" gorm:"not null;default:active"`
	StartDate time.Time          `json:"start_date" gorm:"not null"`
	EndDate   *time.Time         `json:"end_date,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TableName returns the database table name.
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsActiveAt reports whether the subscription grants access at t.
func (s *Subscription) IsActiveAt(t time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(t)
}

// Usage column names. Only these may be interpolated into SQL.
const (
	UsageColumnAlbums     = "albums_count"
	UsageColumnPages      = "pages_count"
	UsageColumnMediaFiles = "media_files_count"
	UsageColumnQRCodes    = "qr_codes_count"
	UsageColumnStorageMB  = "storage_used_mb"
)

// Usage holds per-user counters for one calendar-month period.
// Nil counters read as zero.
type Usage struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_usages_user_period"`
	PeriodStart     time.Time `json:"period_start" gorm:"not null;uniqueIndex:idx_usages_user_period"`
	PeriodEnd       time.Time `json:"period_end" gorm:"not null"`
	AlbumsCount     *int64    `json:"albums_count" gorm:"column:albums_count"`
	PagesCount      *int64    `json:"pages_count" gorm:"column:pages_count"`
	MediaFilesCount *int64    `json:"media_files_count" gorm:"column:media_files_count"`
	QRCodesCount    *int64    `json:"qr_codes_count" gorm:"column:qr_codes_count"`
	StorageUsedMB   *int64    `json:"storage_used_mb" gorm:"column:storage_used_mb"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Usage) TableName() string {
	return "usages"
}
