package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func reading(value float64, at time.Time) domain.GlucoseReading {
	return domain.GlucoseReading{UserID: "u1", Value: value, MeasuredAt: at, Context: domain.ContextOther}
}

func fptr(v float64) *float64 { return &v }

type memoryReadingStore struct {
	mu       sync.Mutex
	readings []domain.GlucoseReading
	seq      int
	saveErr  error
	queryErr error
}

func (s *memoryReadingStore) SaveReadings(_ context.Context, readings []domain.GlucoseReading) ([]domain.GlucoseReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	var out []domain.GlucoseReading
	for _, r := range readings {
		if s.storedLocked(r.UserID, r.MeasuredAt) {
			continue
		}
		s.seq++
		r.ID = "r" + strconv.Itoa(s.seq)
		s.readings = append(s.readings, r)
		out = append(out, r)
	}
	return out, nil
}

// storedLocked mirrors the unique (user_id, measured_at) index
func (s *memoryReadingStore) storedLocked(userID string, at time.Time) bool {
	for _, r := range s.readings {
		if r.UserID == userID && r.MeasuredAt.Equal(at) {
			return true
		}
	}
	return false
}

func (s *memoryReadingStore) QueryReadings(_ context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.GlucoseReading
	for _, r := range s.readings {
		if r.UserID == userID && !r.MeasuredAt.Before(start) && !r.MeasuredAt.After(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasuredAt.Before(out[j].MeasuredAt) })
	return out, nil
}

func (s *memoryReadingStore) GetReading(_ context.Context, id string) (*domain.GlucoseReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readings {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, apperrors.NewNotFoundError("glucose reading")
}

func (s *memoryReadingStore) UpdateReading(_ context.Context, reading *domain.GlucoseReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.readings {
		if s.readings[i].ID == reading.ID {
			s.readings[i] = *reading
			return nil
		}
	}
	return apperrors.NewNotFoundError("glucose reading")
}

func (s *memoryReadingStore) DeleteReading(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.readings {
		if s.readings[i].ID == id {
			s.readings = append(s.readings[:i], s.readings[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFoundError("glucose reading")
}

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newMemoryUserStore(users ...*domain.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[string]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("user")
	}
	return u, nil
}

func (s *memoryUserStore) GetUserByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user")
}

func (s *memoryUserStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = "user-" + strconv.Itoa(len(s.users)+1)
	}
	s.users[u.ID] = u
	return nil
}

func (s *memoryUserStore) UpdateTargetRange(_ context.Context, id string, low, high float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperrors.NewNotFoundError("user")
	}
	u.TargetGlucoseMin, u.TargetGlucoseMax = &low, &high
	return nil
}

type memoryDeviceStore struct {
	mu   sync.Mutex
	regs map[string]domain.DeviceRegistration
	err  error
}

func newMemoryDeviceStore() *memoryDeviceStore {
	return &memoryDeviceStore{regs: make(map[string]domain.DeviceRegistration)}
}

func (s *memoryDeviceStore) SaveRegistration(_ context.Context, reg domain.DeviceRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.regs[reg.UserID] = reg
	return nil
}

func (s *memoryDeviceStore) DeleteRegistration(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.regs, userID)
	return nil
}

func (s *memoryDeviceStore) ListRegistrations(context.Context) ([]domain.DeviceRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeviceRegistration
	for _, r := range s.regs {
		out = append(out, r)
	}
	return out, s.err
}

type fakeSource struct {
	samples []domain.RawSample
	err     error
}

func (f *fakeSource) FetchReadings(_ context.Context, deviceType, _ string, _ map[string]any) ([]domain.RawSample, error) {
	if deviceType == "unknown" {
		return nil, apperrors.NewUnsupportedDeviceError(deviceType)
	}
	return f.samples, f.err
}

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
	reqs  []domain.TextRequest
}

func (f *fakeGenerator) GenerateText(_ context.Context, req domain.TextRequest) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.delay > 0 {
		// ignores ctx on purpose to model a client without deadlines
		time.Sleep(f.delay)
	}
	return f.text, f.err
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []domain.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}
