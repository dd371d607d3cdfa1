package domain

import (
	"strings"
	"time"

	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/utils"
)

const (
	UnitMmolL = "mmol/L"
	UnitMgDL  = "mg/dL"

	// MgDLPerMmolL converts glucose mg/dL to mmol/L
	MgDLPerMmolL = 18.0182
)

// RawSample is an unvalidated reading as produced by a data source or an import request
type RawSample struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	Context   string   `json:"context,omitempty"`
}

// SaveReport describes the outcome of persisting a batch of samples
type SaveReport struct {
	Attempted int              `json:"attempted"`
	Saved     int              `json:"saved"`
	Skipped   int              `json:"skipped"`
	Readings  []GlucoseReading `json:"readings"`
}

// ToReading validates the sample and converts it to mmol/L. Naive timestamps are
// read in loc, which is also used to infer a missing context.
func (s RawSample) ToReading(userID string, method MeasurementMethod, loc *time.Location) (GlucoseReading, error) {
	if s.Value == nil {
		return GlucoseReading{}, apperrors.NewInvalidSampleError("sample has no value")
	}
	if strings.TrimSpace(s.Timestamp) == "" {
		return GlucoseReading{}, apperrors.NewInvalidSampleError("sample has no timestamp")
	}
	measuredAt, err := utils.ParseTimestamp(s.Timestamp, loc)
	if err != nil {
		return GlucoseReading{}, apperrors.NewInvalidSampleError(err.Error()).WithContext("timestamp", s.Timestamp)
	}

	value := *s.Value
	switch strings.ToLower(strings.ReplaceAll(s.Unit, " ", "")) {
	case "", "mmol/l", "mmol":
	case "mg/dl", "mgdl":
		value = value / MgDLPerMmolL
	default:
		return GlucoseReading{}, apperrors.NewInvalidSampleError("unknown unit").WithContext("unit", s.Unit)
	}
	if value <= 0 {
		return GlucoseReading{}, apperrors.NewInvalidSampleError("value must be positive").WithContext("value", value)
	}

	ctx, ok := ParseMeasurementContext(s.Context)
	if !ok {
		if loc != nil {
			measuredAt = measuredAt.In(loc)
		}
		ctx = InferMeasurementContext(measuredAt)
	}

	return GlucoseReading{
		UserID:     userID,
		Value:      value,
		MeasuredAt: measuredAt,
		Context:    ctx,
		Method:     method,
	}, nil
}
