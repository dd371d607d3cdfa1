package domain

import (
	"strings"
	"time"
)

// User represents a monitored person. Telegram linkage is optional.
type User struct {
	ID               string
	Name             string
	TelegramID       *int64
	IsActive         bool
	TargetGlucoseMin *float64
	TargetGlucoseMax *float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MeasurementContext is the meal-relative timing tag of a reading
type MeasurementContext string

const (
	ContextBeforeBreakfast MeasurementContext = "before_breakfast"
	ContextAfterBreakfast  MeasurementContext = "after_breakfast"
	ContextBeforeLunch     MeasurementContext = "before_lunch"
	ContextAfterLunch      MeasurementContext = "after_lunch"
	ContextBeforeDinner    MeasurementContext = "before_dinner"
	ContextAfterDinner     MeasurementContext = "after_dinner"
	ContextBeforeSleep     MeasurementContext = "before_sleep"
	ContextOther           MeasurementContext = "other"
)

var measurementContexts = map[MeasurementContext]bool{
	ContextBeforeBreakfast: true,
	ContextAfterBreakfast:  true,
	ContextBeforeLunch:     true,
	ContextAfterLunch:      true,
	ContextBeforeDinner:    true,
	ContextAfterDinner:     true,
	ContextBeforeSleep:     true,
	ContextOther:           true,
}

// ParseMeasurementContext accepts both "before_lunch" and "before-lunch" spellings
func ParseMeasurementContext(raw string) (MeasurementContext, bool) {
	c := MeasurementContext(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	return c, measurementContexts[c]
}

// IsFasting reports whether the reading was taken before a meal
func (c MeasurementContext) IsFasting() bool {
	switch c {
	case ContextBeforeBreakfast, ContextBeforeLunch, ContextBeforeDinner:
		return true
	}
	return false
}

// IsPostprandial reports whether the reading was taken after a meal
func (c MeasurementContext) IsPostprandial() bool {
	switch c {
	case ContextAfterBreakfast, ContextAfterLunch, ContextAfterDinner:
		return true
	}
	return false
}

// InferMeasurementContext guesses a context from the local hour of t.
func InferMeasurementContext(t time.Time) MeasurementContext {
	switch h := t.Hour(); {
	case h >= 4 && h < 7:
		return ContextBeforeBreakfast
	case h >= 7 && h < 10:
		return ContextAfterBreakfast
	case h >= 10 && h < 12:
		return ContextBeforeLunch
	case h >= 12 && h < 15:
		return ContextAfterLunch
	case h >= 15 && h < 18:
		return ContextBeforeDinner
	case h >= 18 && h < 21:
		return ContextAfterDinner
	default:
		return ContextBeforeSleep
	}
}

// MeasurementMethod is how a reading was obtained
type MeasurementMethod string

const (
	MethodFingerStick       MeasurementMethod = "finger_stick"
	MethodContinuousMonitor MeasurementMethod = "continuous_monitor"
	MethodLabTest           MeasurementMethod = "lab_test"
	MethodOther             MeasurementMethod = "other"
)

// GlucoseReading is a single blood glucose measurement in mmol/L
type GlucoseReading struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Value      float64            `json:"value"`
	MeasuredAt time.Time          `json:"measured_at"`
	Context    MeasurementContext `json:"measurement_context"`
	Method     MeasurementMethod  `json:"measurement_method"`
	Notes      string             `json:"notes,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// DeviceRegistration binds a user to the data source polled by the scheduler
type DeviceRegistration struct {
	UserID       string         `json:"user_id"`
	DeviceType   string         `json:"device_type"`
	Params       map[string]any `json:"params"`
	AutoSync     bool           `json:"auto_sync"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// Thresholds are the alerting bounds in mmol/L
type Thresholds struct {
	Low  float64
	High float64
}

// TargetBand is the acceptable range used for in-range percentages
type TargetBand struct {
	Low  float64
	High float64
}

var (
	DefaultThresholds = Thresholds{Low: 3.9, High: 10.0}
	DefaultTargetBand = TargetBand{Low: 3.9, High: 7.8}
)

// ThresholdsFor applies the user's target range over the default alert thresholds.
// A nil user yields the defaults.
func ThresholdsFor(u *User) Thresholds {
	t := DefaultThresholds
	if u == nil {
		return t
	}
	if u.TargetGlucoseMin != nil {
		t.Low = *u.TargetGlucoseMin
	}
	if u.TargetGlucoseMax != nil {
		t.High = *u.TargetGlucoseMax
	}
	return t
}

// TargetBandFor applies the user's target range over the default target band
func TargetBandFor(u *User) TargetBand {
	b := DefaultTargetBand
	if u == nil {
		return b
	}
	if u.TargetGlucoseMin != nil {
		b.Low = *u.TargetGlucoseMin
	}
	if u.TargetGlucoseMax != nil {
		b.High = *u.TargetGlucoseMax
	}
	return b
}
