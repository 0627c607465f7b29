package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/port/outbound"
	"go.uber.org/zap"
)

// Config holds limits engine settings.
type Config struct {
	// ReserveRetries bounds optimistic retries of a reservation that raced
	// with a concurrent write.
	ReserveRetries int
}

// DefaultConfig returns the default limits engine settings.
func DefaultConfig() Config {
	return Config{ReserveRetries: 3}
}

// PlanLimits is a plan with its caps resolved; absent caps read as Unlimited.
type PlanLimits struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	PriceCents       int64    `json:"price_cents"`
	Features         []string `json:"features"`
	MaxAlbums        int64    `json:"max_albums"`
	MaxPagesPerAlbum int64    `json:"max_pages_per_album"`
	MaxMediaFiles    int64    `json:"max_media_files"`
	MaxQRCodes       int64    `json:"max_qr_codes"`
	MaxStorageGB     int64    `json:"max_storage_gb"`
}

// Domain implements the limits engine.
type Domain struct {
	planDB         outbound.PlanDatabasePort
	subscriptionDB outbound.SubscriptionDatabasePort
	usageDB        outbound.UsageDatabasePort
	cfg            Config
	logger         *zap.Logger
	now            func() time.Time
}

// NewLimitsDomain creates a new limits domain service.
func NewLimitsDomain(
	planDB outbound.PlanDatabasePort,
	subscriptionDB outbound.SubscriptionDatabasePort,
	usageDB outbound.UsageDatabasePort,
	cfg Config,
	logger *zap.Logger,
) *Domain {
	if cfg.ReserveRetries < 1 {
		cfg.ReserveRetries = 1
	}
	return &Domain{
		planDB:         planDB,
		subscriptionDB: subscriptionDB,
		usageDB:        usageDB,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}
}

// --- Limits ---

// GetUserLimits builds the user's limits for the current calendar month.
func (d *Domain) GetUserLimits(ctx context.Context, userID int64) (*LimitsSnapshot, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	_, plan, err := d.activePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return d.snapshot(ctx, userID, plan)
}

// CheckLimitsForOperation reports whether delta fits the user's remaining
// headroom. It never mutates usage, so a later write may still race.
func (d *Domain) CheckLimitsForOperation(ctx context.Context, userID int64, delta OperationDelta) (*OperationCheck, error) {
	limits, err := d.GetUserLimits(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) || errors.Is(err, ErrPlanNotFound) {
			return &OperationCheck{
				CanProceed:     false,
				ExceededLimits: []string{},
				Message:        strPtr(err.Error()),
			}, nil
		}
		return nil, err
	}

	violations := limits.Violations(delta)
	check := &OperationCheck{
		CanProceed:     len(violations) == 0,
		ExceededLimits: violations,
		Limits:         limits,
	}
	if !check.CanProceed {
		check.Message = strPtr(MessageLimitsExceeded)
		d.logger.Debug("operation refused",
			zap.Int64("user_id", userID),
			zap.Strings("exceeded_limits", violations),
		)
	}
	return check, nil
}

// ReserveUsage increments the user's counters by delta only if every
// counter stays within its cap. The increment is all-or-nothing.
func (d *Domain) ReserveUsage(ctx context.Context, userID int64, delta OperationDelta) (*Reservation, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	if delta.HasNegative() {
		return nil, ErrNegativeDelta
	}
	if delta.ExceedsMax() {
		return nil, ErrDeltaTooLarge
	}
	_, plan, err := d.activePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if delta.IsZero() {
		limits, err := d.snapshot(ctx, userID, plan)
		if err != nil {
			return nil, err
		}
		return &Reservation{Reserved: true, ExceededLimits: []string{}, Limits: limits}, nil
	}

	deltas, err := reserveDeltas(plan, delta)
	if err != nil {
		return nil, err
	}
	period := MonthPeriod(d.now())

	for attempt := 1; attempt <= d.cfg.ReserveRetries; attempt++ {
		ok, err := d.usageDB.IncrementWithinLimits(ctx, userID, period.Start, period.End, deltas)
		if errors.Is(err, outbound.ErrConflict) {
			d.logger.Debug("reservation conflict, retrying",
				zap.Int64("user_id", userID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reserve usage: %w", err)
		}

		if ok {
			d.logger.Info("usage reserved",
				zap.Int64("user_id", userID),
				zap.Int64("albums_delta", delta.AlbumsDelta),
				zap.Int64("pages_delta", delta.PagesDelta),
				zap.Int64("storage_delta_mb", delta.StorageDeltaMB),
			)
			// The increment is committed; a failed re-read must not turn it into an error.
			return &Reservation{Reserved: true, ExceededLimits: []string{}, Limits: d.snapshotAfterWrite(ctx, userID, plan)}, nil
		}

		limits, err := d.snapshot(ctx, userID, plan)
		if err != nil {
			return nil, err
		}
		violations := limits.Violations(delta)
		if len(violations) == 0 {
			// Usage dropped between the refused write and the re-read.
			continue
		}
		return &Reservation{
			Reserved:       false,
			ExceededLimits: violations,
			Limits:         limits,
			Message:        strPtr(MessageLimitsExceeded),
		}, nil
	}
	return nil, fmt.Errorf("reserve usage: %w after %d attempts", outbound.ErrConflict, d.cfg.ReserveRetries)
}

// ReleaseUsage lowers the user's counters by delta, flooring each at zero,
// and returns the resulting limits.
func (d *Domain) ReleaseUsage(ctx context.Context, userID int64, delta OperationDelta) (*Release, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	if delta.HasNegative() {
		return nil, ErrNegativeDelta
	}
	if delta.ExceedsMax() {
		return nil, ErrDeltaTooLarge
	}
	_, plan, err := d.activePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if delta.IsZero() {
		limits, err := d.snapshot(ctx, userID, plan)
		if err != nil {
			return nil, err
		}
		return &Release{Released: true, Limits: limits}, nil
	}

	period := MonthPeriod(d.now())
	if err := d.usageDB.Decrement(ctx, userID, period.Start, period.End, counterDeltas(delta)); err != nil {
		return nil, fmt.Errorf("release usage: %w", err)
	}
	return &Release{Released: true, Limits: d.snapshotAfterWrite(ctx, userID, plan)}, nil
}

// --- Plans ---

// ListPlans lists active plans with their caps.
func (d *Domain) ListPlans(ctx context.Context) ([]*PlanLimits, error) {
	plans, err := d.planDB.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*PlanLimits, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanLimits(p))
	}
	return out, nil
}

// --- Helpers ---

func (d *Domain) activePlan(ctx context.Context, userID int64) (*model.Subscription, *model.Plan, error) {
	sub, err := d.subscriptionDB.FindActive(ctx, userID, d.now())
	if err != nil {
		return nil, nil, fmt.Errorf("find active subscription: %w", err)
	}
	if sub == nil {
		return nil, nil, ErrNoActiveSubscription
	}

	plan, err := d.planDB.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("find plan: %w", err)
	}
	if plan == nil {
		d.logger.Warn("subscription references missing plan",
			zap.Int64("user_id", userID),
			zap.Int64("plan_id", sub.PlanID),
		)
		return nil, nil, ErrPlanNotFound
	}
	return sub, plan, nil
}

func (d *Domain) snapshot(ctx context.Context, userID int64, plan *model.Plan) (*LimitsSnapshot, error) {
	period := MonthPeriod(d.now())
	usage, err := d.usageDB.FindForPeriod(ctx, userID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("find usage: %w", err)
	}
	if usage == nil {
		usage = &model.Usage{}
	}

	albums, err := CreateLimitInfo(usage.AlbumsCount, plan.MaxAlbums)
	if err != nil {
		return nil, err
	}
	pages, err := CreateLimitInfo(usage.PagesCount, plan.MaxPagesPerAlbum)
	if err != nil {
		return nil, err
	}
	storage, err := CreateStorageLimitInfo(usage.StorageUsedMB, plan.MaxStorageGB)
	if err != nil {
		return nil, err
	}
	return &LimitsSnapshot{Albums: albums, Pages: pages, Storage: storage}, nil
}

// snapshotAfterWrite re-reads limits once a write has committed. Failures
// are logged and yield nil.
func (d *Domain) snapshotAfterWrite(ctx context.Context, userID int64, plan *model.Plan) *LimitsSnapshot {
	limits, err := d.snapshot(ctx, userID, plan)
	if err != nil {
		d.logger.Warn("re-read limits after usage write",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return limits
}

// reserveDeltas pairs each positive delta with its plan cap.
func reserveDeltas(plan *model.Plan, delta OperationDelta) ([]outbound.CounterDelta, error) {
	storageMB, err := GBToMB(plan.MaxStorageGB)
	if err != nil {
		return nil, err
	}
	deltas := make([]outbound.CounterDelta, 0, 3)
	if delta.AlbumsDelta > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnAlbums, Delta: delta.AlbumsDelta, Limit: capOrUnlimited(plan.MaxAlbums)})
	}
	if delta.PagesDelta > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnPages, Delta: delta.PagesDelta, Limit: capOrUnlimited(plan.MaxPagesPerAlbum)})
	}
	if delta.StorageDeltaMB > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnStorageMB, Delta: delta.StorageDeltaMB, Limit: storageMB})
	}
	return deltas, nil
}

func counterDeltas(delta OperationDelta) []outbound.CounterDelta {
	deltas := make([]outbound.CounterDelta, 0, 3)
	if delta.AlbumsDelta > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnAlbums, Delta: delta.AlbumsDelta, Limit: Unlimited})
	}
	if delta.PagesDelta > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnPages, Delta: delta.PagesDelta, Limit: Unlimited})
	}
	if delta.StorageDeltaMB > 0 {
		deltas = append(deltas, outbound.CounterDelta{Column: model.UsageColumnStorageMB, Delta: delta.StorageDeltaMB, Limit: Unlimited})
	}
	return deltas
}

func capOrUnlimited(v *int64) int64 {
	if v == nil {
		return Unlimited
	}
	return *v
}

func toPlanLimits(p *model.Plan) *PlanLimits {
	features := []string(p.Features)
	if features == nil {
		features = []string{}
	}
	return &PlanLimits{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		PriceCents:       p.PriceCents,
		Features:         features,
		MaxAlbums:        capOrUnlimited(p.MaxAlbums),
		MaxPagesPerAlbum: capOrUnlimited(p.MaxPagesPerAlbum),
		MaxMediaFiles:    capOrUnlimited(p.MaxMediaFiles),
		MaxQRCodes:       capOrUnlimited(p.MaxQRCodes),
		MaxStorageGB:     capOrUnlimited(p.MaxStorageGB),
	}
}
