package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/glucose-monitor/internal/database"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
)

// Repositories bundles the gorm-backed stores sharing one connection
type Repositories struct {
	Users    *UserRepository
	Readings *ReadingRepository
	Devices  *DeviceRepository
}

// NewRepositories creates all stores over db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(db),
		Readings: NewReadingRepository(db),
		Devices:  NewDeviceRepository(db),
	}
}

// dbError maps gorm failures onto the application taxonomy
func dbError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFoundError(what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.NewValidationError(fmt.Sprintf("%s already exists", what)).WithContext("entity", what)
	}
	return apperrors.NewDatabaseError(err).WithContext("entity", what)
}

func userToDomain(u *database.User) *domain.User {
	return &domain.User{
		ID:               u.ID,
		Name:             u.Name,
		TelegramID:       u.TelegramID,
		IsActive:         u.IsActive,
		TargetGlucoseMin: u.TargetGlucoseMin,
		TargetGlucoseMax: u.TargetGlucoseMax,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func readingToDomain(r *database.GlucoseRecord) domain.GlucoseReading {
	return domain.GlucoseReading{
		ID:         r.ID,
		UserID:     r.UserID,
		Value:      r.Value,
		MeasuredAt: r.MeasuredAt,
		Context:    domain.MeasurementContext(r.MeasurementContext),
		Method:     domain.MeasurementMethod(r.MeasurementMethod),
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt,
	}
}

func readingFromDomain(r domain.GlucoseReading) database.GlucoseRecord {
	return database.GlucoseRecord{
		ID:                 r.ID,
		UserID:             r.UserID,
		Value:              r.Value,
		MeasuredAt:         r.MeasuredAt,
		MeasurementContext: string(r.Context),
		MeasurementMethod:  string(r.Method),
		Notes:              r.Notes,
	}
}

func registrationToDomain(d *database.DeviceRegistration) domain.DeviceRegistration {
	params := make(map[string]any, len(d.Params))
	for k, v := range d.Params {
		params[k] = v
	}
	return domain.DeviceRegistration{
		UserID:       d.UserID,
		DeviceType:   d.DeviceType,
		Params:       params,
		AutoSync:     d.AutoSync,
		RegisteredAt: d.RegisteredAt,
	}
}
