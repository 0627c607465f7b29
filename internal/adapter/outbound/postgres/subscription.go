package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"gorm.io/gorm"
)

// subscriptionAdapter implements outbound.SubscriptionDatabasePort.
type subscriptionAdapter struct {
	db *gorm.DB
}

// NewSubscriptionAdapter creates a new subscription database adapter.
func NewSubscriptionAdapter(db *gorm.DB) outbound.SubscriptionDatabasePort {
	return &subscriptionAdapter{db: db}
}

// FindActive picks the most recently started active subscription when
// several overlap.
func (a *subscriptionAdapter) FindActive(ctx context.Context, userID int64, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionStatusActive).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Order("start_date DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Compile-time check
var _ outbound.SubscriptionDatabasePort = (*subscriptionAdapter)(nil)
