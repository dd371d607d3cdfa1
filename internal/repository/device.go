package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vladimiradmaev/glucose-monitor/internal/database"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// DeviceRepository persists device registrations, one row per user
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// SaveRegistration upserts the user's registration
func (r *DeviceRepository) SaveRegistration(ctx context.Context, reg domain.DeviceRegistration) error {
	row := database.DeviceRegistration{
		UserID:       reg.UserID,
		DeviceType:   reg.DeviceType,
		Params:       datatypes.JSONMap(reg.Params),
		AutoSync:     reg.AutoSync,
		RegisteredAt: reg.RegisteredAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_type", "params", "auto_sync", "registered_at", "updated_at"}),
	}).Create(&row).Error
	return dbError(err, "device registration")
}

// DeleteRegistration removes the user's registration; absent rows are not an error
func (r *DeviceRepository) DeleteRegistration(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&database.DeviceRegistration{}).Error
	return dbError(err, "device registration")
}

func (r *DeviceRepository) ListRegistrations(ctx context.Context) ([]domain.DeviceRegistration, error) {
	var rows []database.DeviceRegistration
	if err := r.db.WithContext(ctx).Order("registered_at ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err, "device registrations")
	}
	out := make([]domain.DeviceRegistration, len(rows))
	for i := range rows {
		out[i] = registrationToDomain(&rows[i])
	}
	return out, nil
}
