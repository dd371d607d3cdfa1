// Package api exposes the monitoring engine over REST.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

// Monitor is the subset of the monitor service used by the handlers
type Monitor interface {
	SupportedDevices() []string
	RegisterDevice(ctx context.Context, userID, deviceType string, params map[string]any, autoSync bool) (domain.DeviceRegistration, error)
	UnregisterDevice(ctx context.Context, userID string) error
	ImportFromDevice(ctx context.Context, userID, deviceType string, params map[string]any) (*domain.SaveReport, error)
	ImportReadings(ctx context.Context, userID string, samples []domain.RawSample) (*domain.SaveReport, error)
	CheckAndNotify(ctx context.Context, userID string) (*domain.AnalysisResult, bool, error)
	Analyze(ctx context.Context, userID string, windowHours int) (*domain.AnalysisResult, error)
	AnalyzeTrend(ctx context.Context, userID string, windowDays int) (*domain.TrendResult, error)
}

// Records covers direct reading entry
type Records interface {
	AddRecord(ctx context.Context, userID string, rec services.NewRecord) (*domain.GlucoseReading, error)
	GetUserRecords(ctx context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error)
	UpdateRecord(ctx context.Context, id string, value float64, mctx domain.MeasurementContext, notes string) (*domain.GlucoseReading, error)
	DeleteRecord(ctx context.Context, id string) error
}

type Server struct {
	engine  *gin.Engine
	http    *http.Server
	monitor Monitor
	records Records
	metrics *metrics.Metrics
	errors  *apperrors.Handler

	// post-import analysis runs after the response is written; once closing is
	// set no new work is added to background
	bgMu              sync.Mutex
	closing           bool
	background        sync.WaitGroup
	backgroundTimeout time.Duration
}

func NewServer(addr string, monitor Monitor, records Records, m *metrics.Metrics) *Server {
	engine := gin.New()
	s := &Server{
		engine:            engine,
		monitor:           monitor,
		records:           records,
		metrics:           m,
		errors:            apperrors.NewHandler(logger.WithComponent("api")),
		backgroundTimeout: 2 * time.Minute,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	engine.Use(gin.Recovery(), s.observe())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.GET("/glucose-monitor/supported-devices", s.supportedDevices)
	v1.PUT("/readings/:id", requireUUID("id"), s.updateReading)
	v1.DELETE("/readings/:id", requireUUID("id"), s.deleteReading)

	user := v1.Group("/users/:user_id", requireUUID("user_id"))
	{
		user.POST("/glucose-monitor/register-device", s.registerDevice)
		user.POST("/glucose-monitor/unregister-device", s.unregisterDevice)
		user.POST("/glucose-monitor/import-device-data", s.importDeviceData)
		user.POST("/glucose-monitor/devices/import", s.importReadings)
		user.POST("/glucose-monitor/analyze", s.analyze)
		user.POST("/glucose-monitor/analyze-trend", s.analyzeTrend)

		user.POST("/readings", s.addReading)
		user.GET("/readings", s.listReadings)
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight requests and
// post-import checks until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bgMu.Lock()
	s.closing = true
	s.bgMu.Unlock()

	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("Post-import checks still running at shutdown")
	}
	return err
}

// checkAfterImport runs analysis and alerting for userID detached from the request
func (s *Server) checkAfterImport(c *gin.Context, userID string) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closing {
		logger.Warn("Skipping post-import check during shutdown", "user_id", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.backgroundTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if _, _, err := s.monitor.CheckAndNotify(ctx, userID); err != nil {
			s.errors.Handle(ctx, err, "user_id", userID, "stage", "post_import_check")
		}
	}()
}
