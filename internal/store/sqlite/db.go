package sqlite

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens an embedded database at path (":memory:" works) and migrates
// it. The pool is pinned to a single connection so that every transaction
// runs alone; the overlap and idempotency checks rely on that.
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if log != nil {
		log.Info("sqlite store ready", zap.String("path", path))
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the tables and the partial unique index that guards
// active slots.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&availabilityRow{}, &appointmentRow{}, &statusChangeRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot
		ON appointments (pastor_id, requested_date, requested_time)
		WHERE status IN ('PENDING', 'CONFIRMED') AND deleted_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}
	return nil
}
