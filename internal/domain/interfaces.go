package domain

import (
	"context"
	"time"
)

// DataSource fetches raw samples for a user from a named device type
type DataSource interface {
	FetchReadings(ctx context.Context, deviceType, userID string, params map[string]any) ([]RawSample, error)
}

// ReadingStore persists and queries glucose readings
type ReadingStore interface {
	// SaveReadings stores the batch atomically when possible and returns the rows
	// inserted. Readings already stored for the same user and measured_at are skipped.
	SaveReadings(ctx context.Context, readings []GlucoseReading) ([]GlucoseReading, error)
	// QueryReadings returns readings in [start, end] ordered by measured_at ascending.
	QueryReadings(ctx context.Context, userID string, start, end time.Time) ([]GlucoseReading, error)
	GetReading(ctx context.Context, id string) (*GlucoseReading, error)
	UpdateReading(ctx context.Context, reading *GlucoseReading) error
	DeleteReading(ctx context.Context, id string) error
}

// UserStore resolves users and their preferences
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateTargetRange(ctx context.Context, id string, low, high float64) error
}

// DeviceStore persists registrations so they survive restarts
type DeviceStore interface {
	SaveRegistration(ctx context.Context, reg DeviceRegistration) error
	DeleteRegistration(ctx context.Context, userID string) error
	ListRegistrations(ctx context.Context) ([]DeviceRegistration, error)
}

// TextRequest carries the bounded generation parameters
type TextRequest struct {
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the external text-generation collaborator
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// Notification is an alert narrative addressed to one user
type Notification struct {
	UserID  string
	Alert   AlertEvent
	Alerts  []AlertEvent
	Message string
	Source  MessageSource
}

// Notifier delivers alert notifications
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// BotService handles telegram bot operations
type BotService interface {
	Start(ctx context.Context) error
	Stop()
}
