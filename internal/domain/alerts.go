package domain

import "time"

type AlertType string

const (
	AlertLowGlucose  AlertType = "low_glucose"
	AlertHighGlucose AlertType = "high_glucose"
	AlertRapidRise   AlertType = "rapid_rise"
	AlertRapidDrop   AlertType = "rapid_drop"
)

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertEvent is a detected anomaly. Rate alerts carry the bounding readings,
// and their Value is the absolute rate in mmol/L per hour.
type AlertEvent struct {
	Type      AlertType  `json:"type"`
	Value     float64    `json:"value"`
	Threshold float64    `json:"threshold"`
	Timestamp time.Time  `json:"timestamp"`
	FromTime  *time.Time `json:"from_time,omitempty"`
	ToTime    *time.Time `json:"to_time,omitempty"`
	FromValue *float64   `json:"from_value,omitempty"`
	ToValue   *float64   `json:"to_value,omitempty"`
	Severity  Severity   `json:"severity"`
}

// IsRate reports whether the alert was derived from a pair of readings
func (a AlertEvent) IsRate() bool {
	return a.Type == AlertRapidRise || a.Type == AlertRapidDrop
}

// LatestAlert returns the alert with the greatest timestamp, or false when empty.
// Ties keep the earlier-detected alert.
func LatestAlert(alerts []AlertEvent) (AlertEvent, bool) {
	if len(alerts) == 0 {
		return AlertEvent{}, false
	}
	latest := alerts[0]
	for _, a := range alerts[1:] {
		if a.Timestamp.After(latest.Timestamp) {
			latest = a
		}
	}
	return latest, true
}
