package services

import (
	"math"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// MinTrendReadings is the smallest population a pattern summary is computed for
const MinTrendReadings = 3

// PatternAnalyzer derives multi-day aggregates. Dates and hours are taken in loc.
type PatternAnalyzer struct {
	loc *time.Location
}

func NewPatternAnalyzer(loc *time.Location) *PatternAnalyzer {
	if loc == nil {
		loc = time.Local
	}
	return &PatternAnalyzer{loc: loc}
}

type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.count++
}

func (a accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// Summarize returns insufficient_data for fewer than MinTrendReadings readings
func (p *PatternAnalyzer) Summarize(readings []domain.GlucoseReading, th domain.Thresholds, band domain.TargetBand) (*domain.PatternSummary, domain.AnalysisStatus) {
	if len(readings) < MinTrendReadings {
		return nil, domain.StatusInsufficientData
	}

	var morning, afternoon, evening, fasting, postprandial, all accumulator
	type dayRange struct {
		min, max float64
		count    int
	}
	days := make(map[string]*dayRange)
	summary := &domain.PatternSummary{}
	var inRange, above, below int

	for _, r := range readings {
		local := r.MeasuredAt.In(p.loc)
		all.add(r.Value)

		switch h := local.Hour(); {
		case h >= 5 && h < 12:
			morning.add(r.Value)
		case h >= 12 && h < 18:
			afternoon.add(r.Value)
		default:
			evening.add(r.Value)
		}

		switch {
		case r.Context.IsFasting():
			fasting.add(r.Value)
		case r.Context.IsPostprandial():
			postprandial.add(r.Value)
		}

		key := local.Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayRange{min: r.Value, max: r.Value}
			days[key] = d
		}
		d.min = math.Min(d.min, r.Value)
		d.max = math.Max(d.max, r.Value)
		d.count++

		if r.Value > th.High {
			summary.HighFrequency++
		}
		if r.Value < th.Low {
			summary.LowFrequency++
		}

		switch {
		case r.Value < band.Low:
			below++
		case r.Value > band.High:
			above++
		default:
			inRange++
		}
	}

	var rangeSum float64
	var rangeDays int
	for _, d := range days {
		if d.count < 2 {
			continue
		}
		rangeSum += d.max - d.min
		rangeDays++
	}
	if rangeDays > 0 {
		summary.DailyVariability = round2(rangeSum / float64(rangeDays))
	}

	mean := all.mean()
	var sq float64
	for _, r := range readings {
		sq += (r.Value - mean) * (r.Value - mean)
	}
	total := float64(len(readings))

	summary.MorningAverage = round2(morning.mean())
	summary.AfternoonAverage = round2(afternoon.mean())
	summary.EveningAverage = round2(evening.mean())
	summary.FastingAverage = round2(fasting.mean())
	summary.PostprandialAverage = round2(postprandial.mean())
	summary.StandardDeviation = round2(math.Sqrt(sq / total))
	summary.InRangePercent = round1(float64(inRange) / total * 100)
	summary.HighPercent = round1(float64(above) / total * 100)
	summary.LowPercent = round1(float64(below) / total * 100)
	summary.Days = len(days)

	return summary, domain.StatusOK
}
