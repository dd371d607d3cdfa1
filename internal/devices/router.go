package devices

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
)

const (
	TypeFreestyleLibre = "freestyle_libre"
	TypeDexcom         = "dexcom"
	TypeMedtronic      = "medtronic"
	TypeNightscout     = "nightscout"
)

// Source fetches raw samples from one kind of device
type Source interface {
	Fetch(ctx context.Context, userID string, params map[string]any) ([]domain.RawSample, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, userID string, params map[string]any) ([]domain.RawSample, error)

func (f SourceFunc) Fetch(ctx context.Context, userID string, params map[string]any) ([]domain.RawSample, error) {
	return f(ctx, userID, params)
}

// Router dispatches fetches by device type and bounds each call with a timeout.
// It implements domain.DataSource.
type Router struct {
	mu      sync.RWMutex
	sources map[string]Source
	order   []string
	timeout time.Duration
}

func NewRouter(timeout time.Duration) *Router {
	return &Router{
		sources: make(map[string]Source),
		timeout: timeout,
	}
}

// NewDefaultRouter wires every supported device type
func NewDefaultRouter(timeout time.Duration) *Router {
	r := NewRouter(timeout)
	r.Register(TypeFreestyleLibre, NewLibreSimulator())
	r.Register(TypeDexcom, NewDexcomSimulator())
	r.Register(TypeMedtronic, SourceFunc(func(context.Context, string, map[string]any) ([]domain.RawSample, error) {
		return nil, nil
	}))
	r.Register(TypeNightscout, NewNightscoutSource(timeout, 2))
	return r
}

// Register adds or replaces the source for deviceType
func (r *Router) Register(deviceType string, s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[deviceType]; !exists {
		r.order = append(r.order, deviceType)
	}
	r.sources[deviceType] = s
}

// Supported lists device types in registration order
func (r *Router) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Router) IsSupported(deviceType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[deviceType]
	return ok
}

func (r *Router) FetchReadings(ctx context.Context, deviceType, userID string, params map[string]any) ([]domain.RawSample, error) {
	r.mu.RLock()
	source, ok := r.sources[deviceType]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewUnsupportedDeviceError(deviceType)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	samples, err := source.Fetch(ctx, userID, params)
	if err == nil {
		return samples, nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.NewTimeoutError("device fetch").WithContext("device_type", deviceType)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return nil, err
	}
	return nil, apperrors.NewExternalAPIError(err, deviceType)
}
