package services

import (
	"context"
	"errors"
	"time"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
)

const (
	DefaultAnalyzeHours = 24
	DefaultTrendDays    = 3
	maxAnalyzeHours     = 24 * 31
	maxTrendDays        = 90
)

// MonitorService wires the registry, data sources, store, analyzers and
// narrative generation into the operations used by the API, the bot and
// the scheduler.
type MonitorService struct {
	registry   *DeviceRegistry
	source     domain.DataSource
	records    *BloodSugarService
	store      domain.ReadingStore
	users      domain.UserStore
	patterns   *PatternAnalyzer
	narratives *NarrativeGenerator
	notifier   domain.Notifier
	metrics    *metrics.Metrics

	syncWindow time.Duration
	now        func() time.Time
}

type MonitorDeps struct {
	Registry   *DeviceRegistry
	Source     domain.DataSource
	Store      domain.ReadingStore
	Users      domain.UserStore
	Narratives *NarrativeGenerator
	Notifier   domain.Notifier
	Metrics    *metrics.Metrics
	Location   *time.Location
	// SyncWindowHours is the trailing window analyzed after each sync
	SyncWindowHours int
}

func NewMonitorService(deps MonitorDeps) *MonitorService {
	window := deps.SyncWindowHours
	if window <= 0 {
		window = 6
	}
	narratives := deps.Narratives
	if narratives == nil {
		narratives = NewNarrativeGenerator(nil, NarrativeConfig{})
	}
	return &MonitorService{
		registry:   deps.Registry,
		source:     deps.Source,
		records:    NewBloodSugarService(deps.Store, deps.Location),
		store:      deps.Store,
		users:      deps.Users,
		patterns:   NewPatternAnalyzer(deps.Location),
		narratives: narratives,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		syncWindow: time.Duration(window) * time.Hour,
		now:        time.Now,
	}
}

// SyncOutcome summarizes one fetch, save and analyze pass for a user
type SyncOutcome struct {
	Report   *domain.SaveReport
	Result   *domain.AnalysisResult
	Notified bool
}

func (m *MonitorService) SupportedDevices() []string {
	return m.registry.Supported()
}

func (m *MonitorService) RegisterDevice(ctx context.Context, userID, deviceType string, params map[string]any, autoSync bool) (domain.DeviceRegistration, error) {
	reg, err := m.registry.Register(ctx, userID, deviceType, params, autoSync)
	if err != nil {
		return reg, err
	}
	m.metrics.SetRegisteredDevices(m.registry.Len())
	return reg, nil
}

func (m *MonitorService) UnregisterDevice(ctx context.Context, userID string) error {
	if err := m.registry.Unregister(ctx, userID); err != nil {
		return err
	}
	m.metrics.SetRegisteredDevices(m.registry.Len())
	return nil
}

// Registration returns the user's current registration, if any
func (m *MonitorService) Registration(userID string) (domain.DeviceRegistration, bool) {
	return m.registry.Get(userID)
}

// ImportFromDevice fetches from deviceType (or the user's registered device when
// empty) and saves the samples. Data source failures are returned to the caller.
func (m *MonitorService) ImportFromDevice(ctx context.Context, userID, deviceType string, params map[string]any) (*domain.SaveReport, error) {
	if deviceType == "" {
		reg, ok := m.registry.Get(userID)
		if !ok {
			return nil, apperrors.NewValidationError("no device registered and no device_type given")
		}
		deviceType = reg.DeviceType
		if params == nil {
			params = reg.Params
		}
	}

	samples, err := m.source.FetchReadings(ctx, deviceType, userID, params)
	if err != nil {
		return nil, err
	}
	return m.ImportReadings(ctx, userID, samples)
}

// ImportReadings saves samples pushed by a device or a client
func (m *MonitorService) ImportReadings(ctx context.Context, userID string, samples []domain.RawSample) (*domain.SaveReport, error) {
	report, err := m.records.ImportSamples(ctx, userID, domain.MethodContinuousMonitor, samples)
	if report != nil {
		m.metrics.ReadingsImported(report.Saved, report.Skipped)
	}
	return report, err
}

// SyncUser runs fetch, save, analyze and notify for one registration
func (m *MonitorService) SyncUser(ctx context.Context, reg domain.DeviceRegistration) (*SyncOutcome, error) {
	samples, err := m.source.FetchReadings(ctx, reg.DeviceType, reg.UserID, reg.Params)
	if err != nil {
		return nil, err
	}

	report, err := m.ImportReadings(ctx, reg.UserID, samples)
	if err != nil {
		return &SyncOutcome{Report: report}, err
	}

	result, notified, err := m.CheckAndNotify(ctx, reg.UserID)
	if err != nil {
		return &SyncOutcome{Report: report}, err
	}
	return &SyncOutcome{Report: report, Result: result, Notified: notified}, nil
}

// CheckAndNotify analyzes the sync window and delivers the latest alert, if any.
// Delivery failures are logged and reported as not notified.
func (m *MonitorService) CheckAndNotify(ctx context.Context, userID string) (*domain.AnalysisResult, bool, error) {
	result, err := m.analyzeWindow(ctx, userID, m.syncWindow)
	if err != nil {
		return nil, false, err
	}
	if !result.HasAlerts || m.notifier == nil {
		return result, false, nil
	}

	latest, _ := domain.LatestAlert(result.Alerts)
	err = m.notifier.Notify(ctx, domain.Notification{
		UserID:  userID,
		Alert:   latest,
		Alerts:  result.Alerts,
		Message: result.AlertMessage,
		Source:  result.MessageSource,
	})
	if err != nil {
		// delivery is best effort; the readings and analysis already succeeded
		logger.Warn("Alert delivery failed", "user_id", userID, "error", err)
		return result, false, nil
	}
	return result, true, nil
}

// Analyze evaluates the trailing windowHours for the user
func (m *MonitorService) Analyze(ctx context.Context, userID string, windowHours int) (*domain.AnalysisResult, error) {
	if windowHours <= 0 || windowHours > maxAnalyzeHours {
		return nil, apperrors.NewValidationError("hours must be between 1 and 744").WithContext("hours", windowHours)
	}
	return m.analyzeWindow(ctx, userID, time.Duration(windowHours)*time.Hour)
}

func (m *MonitorService) analyzeWindow(ctx context.Context, userID string, window time.Duration) (*domain.AnalysisResult, error) {
	user, err := m.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	end := m.now()
	start := end.Add(-window)
	readings, err := m.store.QueryReadings(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	result := AnalyzeWindow(readings, domain.ThresholdsFor(user), start, end)
	m.describeAlerts(ctx, user, &result)
	return &result, nil
}

// AnalyzeTrend evaluates the trailing windowDays and adds pattern aggregates and advice
func (m *MonitorService) AnalyzeTrend(ctx context.Context, userID string, windowDays int) (*domain.TrendResult, error) {
	if windowDays <= 0 || windowDays > maxTrendDays {
		return nil, apperrors.NewValidationError("days must be between 1 and 90").WithContext("days", windowDays)
	}

	user, err := m.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	end := m.now()
	start := end.AddDate(0, 0, -windowDays)
	readings, err := m.store.QueryReadings(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	trend := &domain.TrendResult{Days: windowDays, RecordCount: len(readings)}

	thresholds := domain.ThresholdsFor(user)
	patterns, status := m.patterns.Summarize(readings, thresholds, domain.TargetBandFor(user))
	if status != domain.StatusOK {
		trend.AnalysisResult = domain.AnalysisResult{
			Status:  status,
			Message: "at least 3 readings are needed for trend analysis",
			Alerts:  []domain.AlertEvent{},
		}
		return trend, nil
	}

	trend.AnalysisResult = AnalyzeWindow(readings, thresholds, start, end)
	trend.Patterns = patterns
	m.describeAlerts(ctx, user, &trend.AnalysisResult)

	advice := m.narratives.TrendAdvice(ctx, userName(user), trend.Statistics, patterns)
	trend.Advice = advice.Text
	trend.AdviceSource = advice.Source
	return trend, nil
}

// describeAlerts attaches a narrative whenever the result has alerts
func (m *MonitorService) describeAlerts(ctx context.Context, user *domain.User, result *domain.AnalysisResult) {
	if !result.HasAlerts {
		return
	}
	for _, a := range result.Alerts {
		m.metrics.Alert(string(a.Type), string(a.Severity))
	}
	n := m.narratives.AlertMessage(ctx, userName(user), result.Alerts, result.Statistics)
	result.AlertMessage = n.Text
	result.MessageSource = n.Source
	m.metrics.Narrative(string(n.Source))
}

// loadUser returns nil for unknown users so that default thresholds apply
func (m *MonitorService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	if m.users == nil {
		return nil, nil
	}
	user, err := m.users.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func userName(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Name
}
