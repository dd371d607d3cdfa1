package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
	"github.com/vladimiradmaev/glucose-monitor/internal/utils"
)

const defaultReadingsWindow = 7 * 24 * time.Hour

// params never echoed back to clients
var secretParams = map[string]bool{"api_secret": true, "token": true, "password": true}

type registerDeviceRequest struct {
	DeviceType     string         `json:"device_type" binding:"required"`
	Params         map[string]any `json:"params"`
	EnableAutoSync *bool          `json:"enable_auto_sync"`
}

type deviceDataRequest struct {
	DeviceType string         `json:"device_type"`
	Params     map[string]any `json:"params"`
}

type importItem struct {
	Value           *float64 `json:"value"`
	MeasuredAt      string   `json:"measured_at"`
	MeasurementTime string   `json:"measurement_time"`
}

type importRequest struct {
	DeviceID string       `json:"device_id" binding:"required"`
	Data     []importItem `json:"data"`
}

type analyzeRequest struct {
	Hours *int `json:"hours"`
}

type trendRequest struct {
	Days *int `json:"days"`
}

type readingRequest struct {
	Value      float64    `json:"value" binding:"required"`
	MeasuredAt *time.Time `json:"measured_at"`
	Context    string     `json:"measurement_context"`
	Method     string     `json:"measurement_method"`
	Notes      string     `json:"notes"`
}

type importResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	ImportedCount int    `json:"imported_count"`
	Attempted     int    `json:"attempted"`
	Skipped       int    `json:"skipped"`
}

// bindJSON decodes the body into obj; with optional set an empty body keeps defaults
func bindJSON(c *gin.Context, obj any, optional bool) error {
	err := c.ShouldBindJSON(obj)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return apperrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) supportedDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": s.monitor.SupportedDevices()})
}

func (s *Server) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := bindJSON(c, &req, false); err != nil {
		s.fail(c, err)
		return
	}
	autoSync := true
	if req.EnableAutoSync != nil {
		autoSync = *req.EnableAutoSync
	}

	reg, err := s.monitor.RegisterDevice(c.Request.Context(), c.Param("user_id"), req.DeviceType, req.Params, autoSync)
	if err != nil {
		s.fail(c, err)
		return
	}
	reg.Params = redactParams(reg.Params)
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      fmt.Sprintf("device %s registered", reg.DeviceType),
		"registration": reg,
	})
}

func (s *Server) unregisterDevice(c *gin.Context) {
	if err := s.monitor.UnregisterDevice(c.Request.Context(), c.Param("user_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "device unregistered"})
}

func (s *Server) importDeviceData(c *gin.Context) {
	var req deviceDataRequest
	if err := bindJSON(c, &req, true); err != nil {
		s.fail(c, err)
		return
	}

	userID := c.Param("user_id")
	report, err := s.monitor.ImportFromDevice(c.Request.Context(), userID, req.DeviceType, req.Params)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondImport(c, userID, report)
}

func (s *Server) importReadings(c *gin.Context) {
	var req importRequest
	if err := bindJSON(c, &req, false); err != nil {
		s.fail(c, err)
		return
	}
	if len(req.Data) == 0 {
		s.fail(c, apperrors.NewValidationError("data must contain at least one reading"))
		return
	}

	samples := make([]domain.RawSample, 0, len(req.Data))
	for i, item := range req.Data {
		if item.Value == nil || item.MeasuredAt == "" || item.MeasurementTime == "" {
			s.fail(c, apperrors.NewValidationError("each reading needs value, measured_at and measurement_time").
				WithContext("index", i))
			return
		}
		samples = append(samples, domain.RawSample{
			Timestamp: item.MeasuredAt,
			Value:     item.Value,
			Unit:      domain.UnitMmolL,
			Context:   item.MeasurementTime,
		})
	}

	userID := c.Param("user_id")
	report, err := s.monitor.ImportReadings(c.Request.Context(), userID, samples)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondImport(c, userID, report)
}

func (s *Server) respondImport(c *gin.Context, userID string, report *domain.SaveReport) {
	if report.Saved > 0 {
		s.checkAfterImport(c, userID)
	}
	c.JSON(http.StatusOK, importResponse{
		Status:        "success",
		Message:       fmt.Sprintf("imported %d glucose readings", report.Saved),
		ImportedCount: report.Saved,
		Attempted:     report.Attempted,
		Skipped:       report.Skipped,
	})
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := bindJSON(c, &req, true); err != nil {
		s.fail(c, err)
		return
	}
	hours := services.DefaultAnalyzeHours
	if req.Hours != nil {
		hours = *req.Hours
	}

	result, err := s.monitor.Analyze(c.Request.Context(), c.Param("user_id"), hours)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) analyzeTrend(c *gin.Context) {
	var req trendRequest
	if err := bindJSON(c, &req, true); err != nil {
		s.fail(c, err)
		return
	}
	days := services.DefaultTrendDays
	if req.Days != nil {
		days = *req.Days
	}

	trend, err := s.monitor.AnalyzeTrend(c.Request.Context(), c.Param("user_id"), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

func (s *Server) addReading(c *gin.Context) {
	var req readingRequest
	if err := bindJSON(c, &req, false); err != nil {
		s.fail(c, err)
		return
	}
	rec := services.NewRecord{Value: req.Value, Notes: req.Notes}
	if req.MeasuredAt != nil {
		rec.MeasuredAt = *req.MeasuredAt
	}
	if req.Context != "" {
		mctx, ok := domain.ParseMeasurementContext(req.Context)
		if !ok {
			s.fail(c, apperrors.NewValidationError("unknown measurement_context").WithContext("context", req.Context))
			return
		}
		rec.Context = mctx
	}
	if req.Method != "" {
		method, ok := parseMethod(req.Method)
		if !ok {
			s.fail(c, apperrors.NewValidationError("unknown measurement_method").WithContext("method", req.Method))
			return
		}
		rec.Method = method
	}

	reading, err := s.records.AddRecord(c.Request.Context(), c.Param("user_id"), rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (s *Server) listReadings(c *gin.Context) {
	end := time.Now()
	if raw := c.Query("end"); raw != "" {
		t, err := utils.ParseTimestamp(raw, time.UTC)
		if err != nil {
			s.fail(c, apperrors.NewValidationError("invalid end timestamp"))
			return
		}
		end = t
	}
	start := end.Add(-defaultReadingsWindow)
	if raw := c.Query("start"); raw != "" {
		t, err := utils.ParseTimestamp(raw, time.UTC)
		if err != nil {
			s.fail(c, apperrors.NewValidationError("invalid start timestamp"))
			return
		}
		start = t
	}

	readings, err := s.records.GetUserRecords(c.Request.Context(), c.Param("user_id"), start, end)
	if err != nil {
		s.fail(c, err)
		return
	}
	if readings == nil {
		readings = []domain.GlucoseReading{}
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings, "count": len(readings)})
}

func (s *Server) updateReading(c *gin.Context) {
	var req readingRequest
	if err := bindJSON(c, &req, false); err != nil {
		s.fail(c, err)
		return
	}
	var mctx domain.MeasurementContext
	if req.Context != "" {
		parsed, ok := domain.ParseMeasurementContext(req.Context)
		if !ok {
			s.fail(c, apperrors.NewValidationError("unknown measurement_context").WithContext("context", req.Context))
			return
		}
		mctx = parsed
	}

	reading, err := s.records.UpdateRecord(c.Request.Context(), c.Param("id"), req.Value, mctx, req.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (s *Server) deleteReading(c *gin.Context) {
	if err := s.records.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseMethod(raw string) (domain.MeasurementMethod, bool) {
	switch m := domain.MeasurementMethod(raw); m {
	case domain.MethodFingerStick, domain.MethodContinuousMonitor, domain.MethodLabTest, domain.MethodOther:
		return m, true
	}
	return "", false
}

func redactParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if secretParams[k] {
			v = "***"
		}
		out[k] = v
	}
	return out
}
