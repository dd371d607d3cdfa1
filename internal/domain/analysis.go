package domain

import "time"

type AnalysisStatus string

const (
	StatusOK               AnalysisStatus = "ok"
	StatusNoData           AnalysisStatus = "no_data"
	StatusInsufficientData AnalysisStatus = "insufficient_data"
)

// MessageSource tags where a narrative came from
type MessageSource string

const (
	SourceGenerated MessageSource = "generated"
	SourceFallback  MessageSource = "fallback"
)

type Statistics struct {
	Average     float64   `json:"average"`
	Max         float64   `json:"max"`
	Min         float64   `json:"min"`
	Count       int       `json:"count"`
	PeriodHours float64   `json:"period_hours"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type AnalysisResult struct {
	Status        AnalysisStatus `json:"status"`
	Message       string         `json:"message,omitempty"`
	Statistics    *Statistics    `json:"statistics,omitempty"`
	Alerts        []AlertEvent   `json:"alerts"`
	HasAlerts     bool           `json:"has_alerts"`
	AlertMessage  string         `json:"alert_message,omitempty"`
	MessageSource MessageSource  `json:"message_source,omitempty"`
}

// PatternSummary holds multi-day aggregates. Averages of empty groups are 0.
type PatternSummary struct {
	MorningAverage      float64 `json:"morning_average"`
	AfternoonAverage    float64 `json:"afternoon_average"`
	EveningAverage      float64 `json:"evening_average"`
	FastingAverage      float64 `json:"fasting_average"`
	PostprandialAverage float64 `json:"postprandial_average"`
	DailyVariability    float64 `json:"daily_variability"`
	StandardDeviation   float64 `json:"standard_deviation"`
	HighFrequency       int     `json:"high_frequency"`
	LowFrequency        int     `json:"low_frequency"`
	InRangePercent      float64 `json:"in_range_percent"`
	HighPercent         float64 `json:"high_percent"`
	LowPercent          float64 `json:"low_percent"`
	Days                int     `json:"days_with_data"`
}

type TrendResult struct {
	AnalysisResult
	Days         int             `json:"days"`
	RecordCount  int             `json:"record_count"`
	Patterns     *PatternSummary `json:"patterns,omitempty"`
	Advice       string          `json:"advice,omitempty"`
	AdviceSource MessageSource   `json:"advice_source,omitempty"`
}
