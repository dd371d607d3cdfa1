package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// Plausible mmol/L bounds for a manual entry
const (
	minGlucoseValue = 0.5
	maxGlucoseValue = 40.0
)

// BloodSugarService handles direct reading entry and batch imports
type BloodSugarService struct {
	store domain.ReadingStore
	loc   *time.Location
	now   func() time.Time
}

func NewBloodSugarService(store domain.ReadingStore, loc *time.Location) *BloodSugarService {
	if loc == nil {
		loc = time.Local
	}
	return &BloodSugarService{store: store, loc: loc, now: time.Now}
}

// NewRecord describes a manually entered reading. Zero MeasuredAt means now and
// an empty Context is inferred from the local hour.
type NewRecord struct {
	Value      float64
	MeasuredAt time.Time
	Context    domain.MeasurementContext
	Method     domain.MeasurementMethod
	Notes      string
}

func validateValue(value float64) error {
	if value < minGlucoseValue || value > maxGlucoseValue {
		return apperrors.NewValidationError("glucose value out of range").
			WithContext("value", value).
			WithContext("min", minGlucoseValue).
			WithContext("max", maxGlucoseValue)
	}
	return nil
}

func (s *BloodSugarService) AddRecord(ctx context.Context, userID string, rec NewRecord) (*domain.GlucoseReading, error) {
	if err := validateValue(rec.Value); err != nil {
		return nil, err
	}
	measuredAt := rec.MeasuredAt
	if measuredAt.IsZero() {
		measuredAt = s.now()
	}
	mctx := rec.Context
	if mctx == "" {
		mctx = domain.InferMeasurementContext(measuredAt.In(s.loc))
	}
	method := rec.Method
	if method == "" {
		method = domain.MethodFingerStick
	}

	saved, err := s.store.SaveReadings(ctx, []domain.GlucoseReading{{
		UserID:     userID,
		Value:      rec.Value,
		MeasuredAt: measuredAt,
		Context:    mctx,
		Method:     method,
		Notes:      rec.Notes,
	}})
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, apperrors.NewValidationError("a reading at this time already exists").
			WithContext("user_id", userID).WithContext("measured_at", measuredAt)
	}
	return &saved[0], nil
}

// ImportSamples validates each sample, skipping malformed ones, and saves the rest
// as one batch. The report counts what was attempted, saved and skipped.
func (s *BloodSugarService) ImportSamples(ctx context.Context, userID string, method domain.MeasurementMethod, samples []domain.RawSample) (*domain.SaveReport, error) {
	report := &domain.SaveReport{Attempted: len(samples), Readings: []domain.GlucoseReading{}}

	readings := make([]domain.GlucoseReading, 0, len(samples))
	for i, sample := range samples {
		reading, err := sample.ToReading(userID, method, s.loc)
		if err != nil {
			logger.Warn("Skipping malformed sample", "user_id", userID, "index", i, "error", err)
			continue
		}
		readings = append(readings, reading)
	}

	if len(readings) > 0 {
		saved, err := s.store.SaveReadings(ctx, readings)
		if err != nil {
			report.Skipped = report.Attempted
			return report, err
		}
		report.Readings = append(report.Readings, saved...)
		report.Saved = len(saved)
	}
	report.Skipped = report.Attempted - report.Saved

	logger.Info("Imported glucose samples", "user_id", userID,
		"attempted", report.Attempted, "saved", report.Saved, "skipped", report.Skipped)
	return report, nil
}

// GetUserRecords returns readings in [start, end], oldest first
func (s *BloodSugarService) GetUserRecords(ctx context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error) {
	if end.Before(start) {
		return nil, apperrors.NewValidationError("end must not be before start")
	}
	return s.store.QueryReadings(ctx, userID, start, end)
}

// UpdateRecord changes the value and, when set, the context of a reading
func (s *BloodSugarService) UpdateRecord(ctx context.Context, id string, value float64, mctx domain.MeasurementContext, notes string) (*domain.GlucoseReading, error) {
	if err := validateValue(value); err != nil {
		return nil, err
	}
	reading, err := s.store.GetReading(ctx, id)
	if err != nil {
		return nil, err
	}
	reading.Value = value
	if mctx != "" {
		reading.Context = mctx
	}
	reading.Notes = notes
	if err := s.store.UpdateReading(ctx, reading); err != nil {
		return nil, err
	}
	return reading, nil
}

func (s *BloodSugarService) DeleteRecord(ctx context.Context, id string) error {
	return s.store.DeleteReading(ctx, id)
}
