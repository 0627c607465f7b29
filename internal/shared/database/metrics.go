package database

import (
	"time"

	"gorm.io/gorm"
)

const startTimeKey = "billing:query_start"

// QueryRecorder receives query durations by operation.
type QueryRecorder interface {
	RecordDBQuery(operation string, duration time.Duration)
}

// InstrumentQueries registers GORM callbacks that time every statement.
func InstrumentQueries(db *gorm.DB, rec QueryRecorder) error {
	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(name string, fn func(*gorm.DB)) error
		after  func(name string, fn func(*gorm.DB)) error
	}{
		{"select", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"insert", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		op := h.op
		if err := h.before("metrics:before_"+op, func(tx *gorm.DB) {
			tx.InstanceSet(startTimeKey, time.Now())
		}); err != nil {
			return err
		}
		if err := h.after("metrics:after_"+op, func(tx *gorm.DB) {
			if v, ok := tx.InstanceGet(startTimeKey); ok {
				if start, ok := v.(time.Time); ok {
					rec.RecordDBQuery(op, time.Since(start))
				}
			}
		}); err != nil {
			return err
		}
	}
	return nil
}
