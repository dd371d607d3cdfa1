package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
)

// UserSyncer processes one registration per tick
type UserSyncer interface {
	SyncUser(ctx context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error)
}

// RegistrationLister provides the per-tick snapshot of registrations
type RegistrationLister interface {
	ListActive() []domain.DeviceRegistration
}

type SchedulerConfig struct {
	Interval    time.Duration
	Workers     int
	UserTimeout time.Duration
	StopTimeout time.Duration
}

// Scheduler periodically syncs every active registration. Each tick fans out
// over a bounded worker pool; a failing or panicking user never affects the
// others or the loop.
type Scheduler struct {
	cfg      SchedulerConfig
	registry RegistrationLister
	syncer   UserSyncer
	metrics  *metrics.Metrics
	errors   *apperrors.Handler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	ticks atomic.Int64
}

func NewScheduler(cfg SchedulerConfig, registry RegistrationLister, syncer UserSyncer, m *metrics.Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		syncer:   syncer,
		metrics:  m,
		errors:   apperrors.NewHandler(logger.WithComponent("scheduler")),
	}
}

// Start launches the loop. Calling it while running only logs a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logger.Warn("Scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	logger.Info("Scheduler started", "interval", s.cfg.Interval, "workers", s.cfg.Workers)
}

// Stop interrupts the wait for the next tick and waits up to StopTimeout for an
// in-flight tick to finish. It returns false if the timeout elapsed first.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return true
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		logger.Info("Scheduler stopped", "ticks", s.ticks.Load())
		return true
	case <-timer.C:
		logger.Warn("Scheduler did not stop in time, continuing shutdown", "timeout", s.cfg.StopTimeout)
		return false
	}
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ticks returns the number of ticks started so far
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.RunOnce(ctx)
		timer.Reset(s.cfg.Interval)
	}
}

// RunOnce executes a single tick. Once stop is cancelled no further users are
// dispatched, but users already running complete under their own timeout.
func (s *Scheduler) RunOnce(stop context.Context) {
	s.ticks.Add(1)
	started := time.Now()
	regs := s.registry.ListActive()

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	dispatched := 0
	for _, reg := range regs {
		if stop.Err() != nil {
			logger.Info("Stop requested, skipping remaining users", "remaining", len(regs)-dispatched)
			break
		}
		reg := reg
		g.Go(func() error {
			s.runUser(reg)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()

	elapsed := time.Since(started)
	s.metrics.ObserveTick(elapsed)
	logger.Debug("Scheduler tick finished", "users", dispatched, "elapsed", elapsed)
}

func (s *Scheduler) runUser(reg domain.DeviceRegistration) {
	ctx := context.Background()
	if s.cfg.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UserTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.metrics.UserSync(reg.DeviceType, "panic")
			s.errors.Handle(ctx, apperrors.NewInternalError(fmt.Errorf("panic: %v", r)),
				"user_id", reg.UserID, "device_type", reg.DeviceType, "stack", string(debug.Stack()))
		}
	}()

	outcome, err := s.syncer.SyncUser(ctx, reg)
	if err != nil {
		s.metrics.UserSync(reg.DeviceType, "error")
		s.errors.Handle(ctx, err, "user_id", reg.UserID, "device_type", reg.DeviceType)
		return
	}

	s.metrics.UserSync(reg.DeviceType, "ok")
	if outcome != nil && outcome.Result != nil && outcome.Result.HasAlerts {
		logger.Info("User synced with alerts", "user_id", reg.UserID,
			"alerts", len(outcome.Result.Alerts), "notified", outcome.Notified)
	}
}
