package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vladimiradmaev/glucose-monitor/internal/config"
	"github.com/vladimiradmaev/glucose-monitor/internal/database/migrations"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

type User struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	Name             string
	TelegramID       *int64 `gorm:"uniqueIndex"`
	IsActive         bool   `gorm:"default:true"`
	TargetGlucoseMin *float64
	TargetGlucoseMax *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// GlucoseRecord is unique per (user_id, measured_at); the index is created by
// migration 0003 so existing duplicates are removed first.
type GlucoseRecord struct {
	ID                 string    `gorm:"type:uuid;primaryKey"`
	UserID             string    `gorm:"type:uuid;not null"`
	Value              float64   `gorm:"not null"`
	MeasuredAt         time.Time `gorm:"not null"`
	MeasurementContext string    `gorm:"size:32"`
	MeasurementMethod  string    `gorm:"size:32"`
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (r *GlucoseRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type DeviceRegistration struct {
	UserID       string `gorm:"type:uuid;primaryKey"`
	DeviceType   string `gorm:"size:32;not null"`
	Params       datatypes.JSONMap
	AutoSync     bool
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// Models lists every table managed by AutoMigrate
func Models() []any {
	return []any{&User{}, &GlucoseRecord{}, &DeviceRegistration{}}
}

func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Tables first; the SQL migrations only add constraints and indexes on top.
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	if err := migrations.LoadSQLMigrations(migrations.Files); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established and migrations completed",
		"host", cfg.Host, "database", cfg.DBName)
	return db, nil
}
