package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vladimiradmaev/glucose-monitor/internal/database"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// UserRepository handles user data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser loads a user by primary key
func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user database.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return userToDomain(&user), nil
}

// GetUserByTelegramID gets a user by their Telegram ID
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var user database.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, dbError(err, "user")
	}
	return userToDomain(&user), nil
}

// CreateUser inserts u and fills in the generated ID and timestamps
func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	row := database.User{
		ID:               u.ID,
		Name:             u.Name,
		TelegramID:       u.TelegramID,
		IsActive:         true,
		TargetGlucoseMin: u.TargetGlucoseMin,
		TargetGlucoseMax: u.TargetGlucoseMax,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return dbError(err, "user")
	}
	*u = *userToDomain(&row)
	return nil
}

// UpdateTargetRange stores the user's preferred glucose range
func (r *UserRepository) UpdateTargetRange(ctx context.Context, id string, low, high float64) error {
	result := r.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", id).
		Updates(map[string]any{"target_glucose_min": low, "target_glucose_max": high})
	if result.Error != nil {
		return dbError(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return dbError(gorm.ErrRecordNotFound, "user")
	}
	return nil
}
