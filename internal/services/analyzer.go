package services

import (
	"math"
	"sort"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// Rate-of-change limits in mmol/L per hour
const (
	RapidDropRate      = 2.0
	SevereDropRate     = 3.0
	RapidRiseRate      = 2.5
	SevereRiseRate     = 4.0
	MaxRateGap         = 6 * time.Hour
	lowSeverityOffset  = 1.0
	highSeverityOffset = 2.0
	noDataMessage      = "no glucose readings in the requested period"
)

// AnalyzeWindow computes statistics and alerts over the readings whose
// measured_at lies in [start, end]. Input order does not matter.
func AnalyzeWindow(readings []domain.GlucoseReading, th domain.Thresholds, start, end time.Time) domain.AnalysisResult {
	window := sortedWindow(readings, start, end)
	if len(window) == 0 {
		return domain.AnalysisResult{
			Status:  domain.StatusNoData,
			Message: noDataMessage,
			Alerts:  []domain.AlertEvent{},
		}
	}

	stats := computeStatistics(window)
	stats.Start = start
	stats.End = end
	stats.PeriodHours = round2(end.Sub(start).Hours())

	alerts := detectThresholdAlerts(window, th)
	alerts = append(alerts, detectRateAlerts(window)...)

	return domain.AnalysisResult{
		Status:     domain.StatusOK,
		Statistics: &stats,
		Alerts:     alerts,
		HasAlerts:  len(alerts) > 0,
	}
}

// sortedWindow filters to [start, end] inclusive and sorts oldest first
func sortedWindow(readings []domain.GlucoseReading, start, end time.Time) []domain.GlucoseReading {
	window := make([]domain.GlucoseReading, 0, len(readings))
	for _, r := range readings {
		if r.MeasuredAt.Before(start) || r.MeasuredAt.After(end) {
			continue
		}
		window = append(window, r)
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].MeasuredAt.Before(window[j].MeasuredAt)
	})
	return window
}

func computeStatistics(readings []domain.GlucoseReading) domain.Statistics {
	stats := domain.Statistics{
		Min:   math.Inf(1),
		Max:   math.Inf(-1),
		Count: len(readings),
	}
	var sum float64
	for _, r := range readings {
		sum += r.Value
		stats.Min = math.Min(stats.Min, r.Value)
		stats.Max = math.Max(stats.Max, r.Value)
	}
	stats.Average = round2(sum / float64(len(readings)))
	return stats
}

// detectThresholdAlerts expects readings sorted oldest first; the alert carries
// the time of the most recent reading at the extreme value.
func detectThresholdAlerts(readings []domain.GlucoseReading, th domain.Thresholds) []domain.AlertEvent {
	var alerts []domain.AlertEvent

	minR, maxR := readings[0], readings[0]
	for _, r := range readings[1:] {
		if r.Value <= minR.Value {
			minR = r
		}
		if r.Value >= maxR.Value {
			maxR = r
		}
	}

	if minR.Value < th.Low {
		severity := domain.SeverityMedium
		if minR.Value < th.Low-lowSeverityOffset {
			severity = domain.SeverityHigh
		}
		alerts = append(alerts, domain.AlertEvent{
			Type:      domain.AlertLowGlucose,
			Value:     minR.Value,
			Threshold: th.Low,
			Timestamp: minR.MeasuredAt,
			Severity:  severity,
		})
	}

	if maxR.Value > th.High {
		severity := domain.SeverityMedium
		if maxR.Value > th.High+highSeverityOffset {
			severity = domain.SeverityHigh
		}
		alerts = append(alerts, domain.AlertEvent{
			Type:      domain.AlertHighGlucose,
			Value:     maxR.Value,
			Threshold: th.High,
			Timestamp: maxR.MeasuredAt,
			Severity:  severity,
		})
	}

	return alerts
}

// detectRateAlerts compares chronologically adjacent readings. Pairs more than
// MaxRateGap apart, or with no time between them, are skipped.
func detectRateAlerts(readings []domain.GlucoseReading) []domain.AlertEvent {
	var alerts []domain.AlertEvent

	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]
		gap := curr.MeasuredAt.Sub(prev.MeasuredAt)
		if gap <= 0 || gap > MaxRateGap {
			continue
		}

		rate := (curr.Value - prev.Value) / gap.Hours()

		var alert domain.AlertEvent
		switch {
		case rate < -RapidDropRate:
			alert.Type = domain.AlertRapidDrop
			alert.Threshold = RapidDropRate
			alert.Severity = domain.SeverityMedium
			if rate < -SevereDropRate {
				alert.Severity = domain.SeverityHigh
			}
		case rate > RapidRiseRate:
			alert.Type = domain.AlertRapidRise
			alert.Threshold = RapidRiseRate
			alert.Severity = domain.SeverityMedium
			if rate > SevereRiseRate {
				alert.Severity = domain.SeverityHigh
			}
		default:
			continue
		}

		from, to := prev.MeasuredAt, curr.MeasuredAt
		fromValue, toValue := prev.Value, curr.Value
		alert.Value = round2(math.Abs(rate))
		alert.Timestamp = to
		alert.FromTime = &from
		alert.ToTime = &to
		alert.FromValue = &fromValue
		alert.ToValue = &toValue
		alerts = append(alerts, alert)
	}

	return alerts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
