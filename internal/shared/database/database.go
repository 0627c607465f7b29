package database

import (
	"fmt"
	"time"

	"github.com/albumly/billing-svc/internal/model"
	"github.com/albumly/billing-svc/internal/shared/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a new database connection.
func New(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	return open(postgres.Open(cfg.DSN()), cfg, log)
}

func open(dialector gorm.Dialector, cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, Options(log))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Get underlying SQL DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// Options returns the GORM settings the service relies on. Unique
// violations surface as gorm.ErrDuplicatedKey, and single statements run
// outside an implicit transaction.
func Options(log *zap.Logger) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 NewLogger(log, 200*time.Millisecond),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates the billing tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Plan{}, &model.Subscription{}, &model.Usage{})
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Silent returns a GORM logger that discards everything.
func Silent() logger.Interface {
	return logger.Default.LogMode(logger.Silent)
}
