package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var usageColumns = map[string]bool{
	model.UsageColumnAlbums:     true,
	model.UsageColumnPages:      true,
	model.UsageColumnMediaFiles: true,
	model.UsageColumnQRCodes:    true,
	model.UsageColumnStorageMB:  true,
}

// usageAdapter implements outbound.UsageDatabasePort.
type usageAdapter struct {
	db *gorm.DB
}

// NewUsageAdapter creates a new usage database adapter.
func NewUsageAdapter(db *gorm.DB) outbound.UsageDatabasePort {
	return &usageAdapter{db: db}
}

func (a *usageAdapter) FindForPeriod(ctx context.Context, userID int64, start, end time.Time) (*model.Usage, error) {
	var usage model.Usage
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND period_start >= ? AND period_end <= ?", userID, start, end).
		Order("period_start DESC").
		First(&usage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

// IncrementWithinLimits runs as one transaction: the period row is created
// if missing, then a single UPDATE adds every delta guarded by every limit.
func (a *usageAdapter) IncrementWithinLimits(ctx context.Context, userID int64, start, end time.Time, deltas []outbound.CounterDelta) (bool, error) {
	if len(deltas) == 0 {
		return true, nil
	}
	if err := checkColumns(deltas); err != nil {
		return false, err
	}

	var applied bool
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePeriodRow(tx, userID, start, end); err != nil {
			return err
		}

		sets := make(map[string]any, len(deltas))
		q := tx.Model(&model.Usage{}).Where("user_id = ? AND period_start = ?", userID, start)
		for _, d := range deltas {
			sets[d.Column] = gorm.Expr(fmt.Sprintf("COALESCE(%s, 0) + ?", d.Column), d.Delta)
			q = q.Where(fmt.Sprintf("(? = -1 OR COALESCE(%s, 0) + ? <= ?)", d.Column), d.Limit, d.Delta, d.Limit)
		}

		res := q.Updates(sets)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, outbound.ErrConflict
		}
		return false, err
	}
	return applied, nil
}

func (a *usageAdapter) Decrement(ctx context.Context, userID int64, start, end time.Time, deltas []outbound.CounterDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	if err := checkColumns(deltas); err != nil {
		return err
	}

	sets := make(map[string]any, len(deltas))
	for _, d := range deltas {
		sets[d.Column] = gorm.Expr(fmt.Sprintf("GREATEST(COALESCE(%s, 0) - ?, 0)", d.Column), d.Delta)
	}
	return a.db.WithContext(ctx).
		Model(&model.Usage{}).
		Where("user_id = ? AND period_start = ?", userID, start).
		Updates(sets).Error
}

func ensurePeriodRow(tx *gorm.DB, userID int64, start, end time.Time) error {
	row := &model.Usage{
		ID:          uuid.New(),
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoNothing: true,
	}).Create(row).Error
}

// checkColumns guards the column names interpolated into SQL.
func checkColumns(deltas []outbound.CounterDelta) error {
	for _, d := range deltas {
		if !usageColumns[d.Column] {
			return fmt.Errorf("unknown usage column %q", d.Column)
		}
		if d.Delta < 0 {
			return fmt.Errorf("negative delta for %s", d.Column)
		}
	}
	return nil
}

// Compile-time check
var _ outbound.UsageDatabasePort = (*usageAdapter)(nil)
