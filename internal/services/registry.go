package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// DeviceRegistry tracks the single active data source per user. It is shared by
// the API handlers and the scheduler. When a DeviceStore is set, mutations are
// written through before the in-memory map changes.
type DeviceRegistry struct {
	mu        sync.RWMutex
	regs      map[string]domain.DeviceRegistration
	supported []string

	// serializes store write + map update so both agree on the last writer
	writeMu sync.Mutex
	store   domain.DeviceStore
	now     func() time.Time
}

// NewDeviceRegistry creates a registry accepting the given device types.
// store may be nil.
func NewDeviceRegistry(supported []string, store domain.DeviceStore) *DeviceRegistry {
	s := make([]string, len(supported))
	copy(s, supported)
	return &DeviceRegistry{
		regs:      make(map[string]domain.DeviceRegistration),
		supported: s,
		store:     store,
		now:       time.Now,
	}
}

// Supported lists accepted device types
func (r *DeviceRegistry) Supported() []string {
	out := make([]string, len(r.supported))
	copy(out, r.supported)
	return out
}

func (r *DeviceRegistry) isSupported(deviceType string) bool {
	for _, t := range r.supported {
		if t == deviceType {
			return true
		}
	}
	return false
}

// Register inserts or overwrites the user's registration
func (r *DeviceRegistry) Register(ctx context.Context, userID, deviceType string, params map[string]any, autoSync bool) (domain.DeviceRegistration, error) {
	if !r.isSupported(deviceType) {
		return domain.DeviceRegistration{}, apperrors.NewUnsupportedDeviceError(deviceType)
	}

	reg := domain.DeviceRegistration{
		UserID:       userID,
		DeviceType:   deviceType,
		Params:       copyParams(params),
		AutoSync:     autoSync,
		RegisteredAt: r.now(),
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.store != nil {
		if err := r.store.SaveRegistration(ctx, reg); err != nil {
			return domain.DeviceRegistration{}, err
		}
	}

	r.mu.Lock()
	r.regs[userID] = reg
	r.mu.Unlock()

	logger.Info("Device registered", "user_id", userID, "device_type", deviceType, "auto_sync", autoSync)
	return cloneRegistration(reg), nil
}

// Unregister removes the user's registration; unknown users are a no-op
func (r *DeviceRegistry) Unregister(ctx context.Context, userID string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteRegistration(ctx, userID); err != nil {
			return err
		}
	}

	r.mu.Lock()
	_, existed := r.regs[userID]
	delete(r.regs, userID)
	r.mu.Unlock()

	if existed {
		logger.Info("Device unregistered", "user_id", userID)
	}
	return nil
}

// Get returns a copy of the user's registration
func (r *DeviceRegistry) Get(userID string) (domain.DeviceRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[userID]
	if !ok {
		return domain.DeviceRegistration{}, false
	}
	return cloneRegistration(reg), true
}

// ListActive returns a snapshot of registrations with auto sync enabled,
// ordered by user ID.
func (r *DeviceRegistry) ListActive() []domain.DeviceRegistration {
	r.mu.RLock()
	out := make([]domain.DeviceRegistration, 0, len(r.regs))
	for _, reg := range r.regs {
		if reg.AutoSync {
			out = append(out, cloneRegistration(reg))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len reports the number of registrations
func (r *DeviceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regs)
}

// Restore loads persisted registrations. Rows with a device type that is no
// longer supported are skipped.
func (r *DeviceRegistry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	regs, err := r.store.ListRegistrations(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	restored := 0
	for _, reg := range regs {
		if !r.isSupported(reg.DeviceType) {
			logger.Warn("Skipping stored registration with unsupported device",
				"user_id", reg.UserID, "device_type", reg.DeviceType)
			continue
		}
		r.regs[reg.UserID] = cloneRegistration(reg)
		restored++
	}
	return restored, nil
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func cloneRegistration(reg domain.DeviceRegistration) domain.DeviceRegistration {
	reg.Params = copyParams(reg.Params)
	return reg
}
