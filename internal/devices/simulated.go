package devices

import (
	"context"
	"math"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
)

// Simulator produces an hourly saw-tooth series for vendors whose
// integrations are not available yet.
type Simulator struct {
	Base   float64
	Step   float64
	Period int
	Hours  int
	Now    func() time.Time
}

func NewLibreSimulator() *Simulator {
	return &Simulator{Base: 7.0, Step: 0.8, Period: 5, Hours: 24, Now: time.Now}
}

func NewDexcomSimulator() *Simulator {
	return &Simulator{Base: 7.0, Step: 0.7, Period: 6, Hours: 24, Now: time.Now}
}

// Fetch returns one sample per hour, newest first
func (s *Simulator) Fetch(ctx context.Context, _ string, _ map[string]any) ([]domain.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.Now()
	samples := make([]domain.RawSample, 0, s.Hours)
	for i := 0; i < s.Hours; i++ {
		value := s.Base + float64(i%s.Period-s.Period/2)*s.Step
		value = math.Round(value*10) / 10
		samples = append(samples, domain.RawSample{
			Timestamp: now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			Value:     &value,
			Unit:      domain.UnitMmolL,
		})
	}
	return samples, nil
}
