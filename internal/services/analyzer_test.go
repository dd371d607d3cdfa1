package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

func analyze(readings ...domain.GlucoseReading) domain.AnalysisResult {
	return AnalyzeWindow(readings, domain.DefaultThresholds, t0.Add(-24*time.Hour), t0.Add(24*time.Hour))
}

func alertsOfType(alerts []domain.AlertEvent, t domain.AlertType) []domain.AlertEvent {
	var out []domain.AlertEvent
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func TestAnalyzeWindow_Empty(t *testing.T) {
	result := analyze()
	assert.Equal(t, domain.StatusNoData, result.Status)
	assert.False(t, result.HasAlerts)
	assert.Empty(t, result.Alerts)
	assert.Nil(t, result.Statistics)
}

func TestAnalyzeWindow_InRangeHasNoAlerts(t *testing.T) {
	result := analyze(
		reading(5.0, t0),
		reading(6.5, t0.Add(time.Hour)),
		reading(8.0, t0.Add(2*time.Hour)),
		reading(8.5, t0.Add(3*time.Hour)),
		reading(9.9, t0.Add(4*time.Hour)),
	)

	require.Equal(t, domain.StatusOK, result.Status)
	assert.False(t, result.HasAlerts)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, 5, result.Statistics.Count)
	assert.Equal(t, 5.0, result.Statistics.Min)
	assert.Equal(t, 9.9, result.Statistics.Max)
	assert.Equal(t, 7.58, result.Statistics.Average)
	assert.Equal(t, 48.0, result.Statistics.PeriodHours)
}

func TestAnalyzeWindow_LowSeverity(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		severity domain.Severity
	}{
		{"below low minus one", 2.5, domain.SeverityHigh},
		{"just below severe cutoff", 2.8, domain.SeverityHigh},
		{"between cutoffs", 2.95, domain.SeverityMedium},
		{"just below threshold", 3.8, domain.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyze(reading(tt.value, t0))
			lows := alertsOfType(result.Alerts, domain.AlertLowGlucose)
			require.Len(t, lows, 1)
			assert.Equal(t, tt.severity, lows[0].Severity)
			assert.Equal(t, tt.value, lows[0].Value)
			assert.Equal(t, 3.9, lows[0].Threshold)
		})
	}
}

func TestAnalyzeWindow_HighSeverity(t *testing.T) {
	tests := []struct {
		value    float64
		severity domain.Severity
	}{
		{10.5, domain.SeverityMedium},
		{11.9, domain.SeverityMedium},
		{12.1, domain.SeverityHigh},
		{18.0, domain.SeverityHigh},
	}
	for _, tt := range tests {
		result := analyze(reading(tt.value, t0))
		highs := alertsOfType(result.Alerts, domain.AlertHighGlucose)
		require.Len(t, highs, 1, "value %v", tt.value)
		assert.Equal(t, tt.severity, highs[0].Severity, "value %v", tt.value)
	}
}

func TestAnalyzeWindow_ThresholdBoundariesDoNotAlert(t *testing.T) {
	result := analyze(reading(3.9, t0), reading(10.0, t0.Add(5*time.Hour)))
	assert.False(t, result.HasAlerts)
}

func TestAnalyzeWindow_UserThresholds(t *testing.T) {
	th := domain.Thresholds{Low: 4.5, High: 8.0}
	result := AnalyzeWindow([]domain.GlucoseReading{reading(4.2, t0), reading(8.4, t0.Add(5*time.Hour))},
		th, t0.Add(-time.Hour), t0.Add(6*time.Hour))

	require.Len(t, result.Alerts, 2)
	assert.Equal(t, domain.AlertLowGlucose, result.Alerts[0].Type)
	assert.Equal(t, 4.5, result.Alerts[0].Threshold)
	assert.Equal(t, domain.AlertHighGlucose, result.Alerts[1].Type)
	assert.Equal(t, 8.0, result.Alerts[1].Threshold)
}

func TestAnalyzeWindow_ExtremeTimestampIsMostRecent(t *testing.T) {
	result := analyze(
		reading(3.0, t0),
		reading(5.0, t0.Add(7*time.Hour)),
		reading(3.0, t0.Add(14*time.Hour)),
	)
	lows := alertsOfType(result.Alerts, domain.AlertLowGlucose)
	require.Len(t, lows, 1)
	assert.Equal(t, t0.Add(14*time.Hour), lows[0].Timestamp)
}

func TestAnalyzeWindow_RapidDrop(t *testing.T) {
	tests := []struct {
		name     string
		to       float64
		severity domain.Severity
		rate     float64
	}{
		{"medium", 6.5, domain.SeverityMedium, 2.5},
		{"high", 5.5, domain.SeverityHigh, 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyze(reading(9.0, t0), reading(tt.to, t0.Add(time.Hour)))

			require.Len(t, result.Alerts, 1)
			alert := result.Alerts[0]
			assert.Equal(t, domain.AlertRapidDrop, alert.Type)
			assert.Equal(t, tt.severity, alert.Severity)
			assert.InDelta(t, tt.rate, alert.Value, 1e-9)
			assert.Equal(t, RapidDropRate, alert.Threshold)
			assert.Equal(t, t0.Add(time.Hour), alert.Timestamp)
			require.NotNil(t, alert.FromValue)
			assert.Equal(t, 9.0, *alert.FromValue)
			assert.Equal(t, tt.to, *alert.ToValue)
			assert.Equal(t, t0, *alert.FromTime)
		})
	}
}

func TestAnalyzeWindow_RapidRise(t *testing.T) {
	result := analyze(reading(5.0, t0), reading(8.0, t0.Add(time.Hour)))
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, domain.AlertRapidRise, result.Alerts[0].Type)
	assert.Equal(t, domain.SeverityMedium, result.Alerts[0].Severity)

	result = analyze(reading(4.5, t0), reading(9.0, t0.Add(time.Hour)))
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, domain.SeverityHigh, result.Alerts[0].Severity)
}

func TestAnalyzeWindow_RateBoundariesDoNotAlert(t *testing.T) {
	result := analyze(
		reading(9.0, t0),
		reading(7.0, t0.Add(time.Hour)),
		reading(9.5, t0.Add(2*time.Hour)),
	)
	assert.False(t, result.HasAlerts)
}

func TestAnalyzeWindow_GapOverSixHoursSkipped(t *testing.T) {
	result := analyze(reading(9.5, t0), reading(4.0, t0.Add(7*time.Hour)))
	assert.False(t, result.HasAlerts)

	result = analyze(reading(9.5, t0), reading(4.0, t0.Add(2*time.Hour)))
	assert.Len(t, alertsOfType(result.Alerts, domain.AlertRapidDrop), 1)
}

func TestAnalyzeWindow_SortsBeforeRateDetection(t *testing.T) {
	// newest first, as a store ordering by measured_at DESC would return them
	result := analyze(reading(8.0, t0.Add(time.Hour)), reading(5.0, t0))

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, domain.AlertRapidRise, result.Alerts[0].Type)
}

func TestAnalyzeWindow_SameTimestampPairSkipped(t *testing.T) {
	result := analyze(reading(5.0, t0), reading(9.0, t0))
	assert.False(t, result.HasAlerts)
}

func TestAnalyzeWindow_RateAlertsNotMerged(t *testing.T) {
	result := analyze(
		reading(9.0, t0),
		reading(6.0, t0.Add(time.Hour)),
		reading(9.0, t0.Add(2*time.Hour)),
		reading(6.0, t0.Add(3*time.Hour)),
	)
	assert.Len(t, alertsOfType(result.Alerts, domain.AlertRapidDrop), 2)
	assert.Len(t, alertsOfType(result.Alerts, domain.AlertRapidRise), 1)
	assert.True(t, result.HasAlerts)
}

func TestAnalyzeWindow_BoundsInclusive(t *testing.T) {
	start, end := t0, t0.Add(6*time.Hour)
	readings := []domain.GlucoseReading{
		reading(2.0, start.Add(-time.Second)),
		reading(5.0, start),
		reading(7.0, end),
		reading(20.0, end.Add(time.Second)),
	}

	result := AnalyzeWindow(readings, domain.DefaultThresholds, start, end)
	require.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, 2, result.Statistics.Count)
	assert.False(t, result.HasAlerts)
}
