package services

import (
	"context"
	"errors"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
)

type UserService struct {
	store domain.UserStore
}

func NewUserService(store domain.UserStore) *UserService {
	return &UserService{store: store}
}

// RegisterUser returns the user linked to telegramID, creating it on first contact
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, name string) (*domain.User, error) {
	user, err := s.store.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	user = &domain.User{Name: name, TelegramID: &telegramID, IsActive: true}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return s.store.GetUserByTelegramID(ctx, telegramID)
}

// SetTargetRange stores the user's target range, which also drives alert thresholds
func (s *UserService) SetTargetRange(ctx context.Context, id string, low, high float64) error {
	if low <= 0 || high <= low || high > maxGlucoseValue {
		return apperrors.NewValidationError("target range must satisfy 0 < low < high").
			WithContext("low", low).
			WithContext("high", high)
	}
	return s.store.UpdateTargetRange(ctx, id, low, high)
}
