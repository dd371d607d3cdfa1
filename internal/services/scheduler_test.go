package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
)

type staticLister []domain.DeviceRegistration

func (l staticLister) ListActive() []domain.DeviceRegistration {
	out := make([]domain.DeviceRegistration, len(l))
	copy(out, l)
	return out
}

type funcSyncer func(ctx context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error)

func (f funcSyncer) SyncUser(ctx context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error) {
	return f(ctx, reg)
}

func regs(users ...string) staticLister {
	out := make(staticLister, len(users))
	for i, u := range users {
		out[i] = domain.DeviceRegistration{UserID: u, DeviceType: "dexcom", AutoSync: true}
	}
	return out
}

func noopSyncer() funcSyncer {
	return func(context.Context, domain.DeviceRegistration) (*SyncOutcome, error) { return &SyncOutcome{}, nil }
}

func TestScheduler_StopImmediatelyAfterStart(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Interval: 10 * time.Millisecond, Workers: 2, StopTimeout: time.Second},
		regs("u1"), noopSyncer(), nil)

	s.Start()
	start := time.Now()
	assert.True(t, s.Stop())
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, s.Running())

	ticks := s.Ticks()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticks, s.Ticks(), "no ticks after stop")
}

func TestScheduler_StopInterruptsLongWait(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, StopTimeout: time.Second}, regs("u1"), noopSyncer(), nil)

	s.Start()
	start := time.Now()
	require.True(t, s.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(0), s.Ticks())
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Interval: time.Hour}, regs(), noopSyncer(), nil)
	s.Start()
	s.Start()
	assert.True(t, s.Running())
	assert.True(t, s.Stop())
	assert.True(t, s.Stop(), "stopping a stopped scheduler is harmless")
}

func TestScheduler_TicksRepeatedly(t *testing.T) {
	var calls atomic.Int64
	syncer := funcSyncer(func(context.Context, domain.DeviceRegistration) (*SyncOutcome, error) {
		calls.Add(1)
		return &SyncOutcome{}, nil
	})
	m := metrics.New()
	s := NewScheduler(SchedulerConfig{Interval: 5 * time.Millisecond, Workers: 2}, regs("u1", "u2"), syncer, m)

	s.Start()
	require.Eventually(t, func() bool { return s.Ticks() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, s.Stop())

	ticks := s.Ticks()
	assert.GreaterOrEqual(t, calls.Load(), 2*(ticks-1))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, s.Ticks())
}

func TestScheduler_IsolatesUserFailures(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	syncer := funcSyncer(func(_ context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error) {
		mu.Lock()
		seen[reg.UserID] = true
		mu.Unlock()
		switch reg.UserID {
		case "panics":
			panic("device adapter bug")
		case "fails":
			return nil, errors.New("upstream unavailable")
		}
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, Workers: 1}, regs("fails", "ok1", "panics", "ok2"), syncer, nil)

	require.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Equal(t, map[string]bool{"fails": true, "ok1": true, "panics": true, "ok2": true}, seen)
	assert.Equal(t, int64(1), s.Ticks())
}

func TestScheduler_BoundedFanOut(t *testing.T) {
	var inFlight, peak atomic.Int64
	syncer := funcSyncer(func(context.Context, domain.DeviceRegistration) (*SyncOutcome, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Workers: 2}, regs("a", "b", "c", "d", "e", "f"), syncer, nil)

	s.RunOnce(context.Background())
	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.GreaterOrEqual(t, peak.Load(), int64(1))
}

func TestScheduler_SlowUserDoesNotBlockOthers(t *testing.T) {
	var fast atomic.Int64
	syncer := funcSyncer(func(ctx context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error) {
		if reg.UserID == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		fast.Add(1)
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Workers: 2, UserTimeout: 50 * time.Millisecond}, regs("slow", "a", "b", "c"), syncer, nil)

	start := time.Now()
	s.RunOnce(context.Background())
	assert.Equal(t, int64(3), fast.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestScheduler_NoDispatchAfterStop(t *testing.T) {
	var calls atomic.Int64
	syncer := funcSyncer(func(context.Context, domain.DeviceRegistration) (*SyncOutcome, error) {
		calls.Add(1)
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Workers: 1}, regs("a", "b"), syncer, nil)

	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(stopped)
	assert.Equal(t, int64(0), calls.Load())
}

func TestScheduler_StopWaitsForInFlightUser(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool
	syncer := funcSyncer(func(ctx context.Context, _ domain.DeviceRegistration) (*SyncOutcome, error) {
		once.Do(func() { close(started) })
		time.Sleep(50 * time.Millisecond)
		finished.Store(ctx.Err() == nil)
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Interval: time.Millisecond, Workers: 1, StopTimeout: time.Second}, regs("u1"), syncer, nil)

	s.Start()
	<-started
	assert.True(t, s.Stop())
	assert.True(t, finished.Load(), "in-flight user completed with a live context")
}

func TestScheduler_StopTimeoutElapses(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	syncer := funcSyncer(func(context.Context, domain.DeviceRegistration) (*SyncOutcome, error) {
		once.Do(func() { close(started) })
		<-release
		return &SyncOutcome{}, nil
	})
	s := NewScheduler(SchedulerConfig{Interval: time.Millisecond, Workers: 1, StopTimeout: 20 * time.Millisecond}, regs("u1"), syncer, nil)

	s.Start()
	<-started
	start := time.Now()
	assert.False(t, s.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	close(release)
}
