package interfaces

import (
	"context"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, telegramID int64, name string) (*domain.User, error)
	SetTargetRange(ctx context.Context, id string, low, high float64) error
}

// BloodSugarServiceInterface defines the contract for manual reading entry
type BloodSugarServiceInterface interface {
	AddRecord(ctx context.Context, userID string, rec services.NewRecord) (*domain.GlucoseReading, error)
	GetUserRecords(ctx context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error)
}

// MonitorServiceInterface defines the contract for device registration and analysis
type MonitorServiceInterface interface {
	SupportedDevices() []string
	RegisterDevice(ctx context.Context, userID, deviceType string, params map[string]any, autoSync bool) (domain.DeviceRegistration, error)
	UnregisterDevice(ctx context.Context, userID string) error
	Registration(userID string) (domain.DeviceRegistration, bool)
	Analyze(ctx context.Context, userID string, windowHours int) (*domain.AnalysisResult, error)
	AnalyzeTrend(ctx context.Context, userID string, windowDays int) (*domain.TrendResult, error)
}

var (
	_ UserServiceInterface       = (*services.UserService)(nil)
	_ BloodSugarServiceInterface = (*services.BloodSugarService)(nil)
	_ MonitorServiceInterface    = (*services.MonitorService)(nil)
)
