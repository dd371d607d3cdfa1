package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/metrics"
	"github.com/vladimiradmaev/glucose-monitor/internal/services"
)

const userID = "6f1c2a4e-8a5b-4c1e-9d7f-3b2a1c0d9e8f"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMonitor struct {
	mu sync.Mutex

	registerErr error
	importErr   error
	analyzeErr  error
	report      *domain.SaveReport

	gotHours   int
	gotDays    int
	gotSamples []domain.RawSample
	gotParams  map[string]any
	checked    []string
}

func (f *fakeMonitor) SupportedDevices() []string {
	return []string{"freestyle_libre", "dexcom"}
}

func (f *fakeMonitor) RegisterDevice(_ context.Context, userID, deviceType string, params map[string]any, autoSync bool) (domain.DeviceRegistration, error) {
	if f.registerErr != nil {
		return domain.DeviceRegistration{}, f.registerErr
	}
	f.gotParams = params
	return domain.DeviceRegistration{UserID: userID, DeviceType: deviceType, Params: params, AutoSync: autoSync}, nil
}

func (f *fakeMonitor) UnregisterDevice(context.Context, string) error { return nil }

func (f *fakeMonitor) ImportFromDevice(context.Context, string, string, map[string]any) (*domain.SaveReport, error) {
	if f.importErr != nil {
		return nil, f.importErr
	}
	return f.report, nil
}

func (f *fakeMonitor) ImportReadings(_ context.Context, _ string, samples []domain.RawSample) (*domain.SaveReport, error) {
	f.gotSamples = samples
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &domain.SaveReport{Attempted: len(samples), Saved: len(samples)}, nil
}

func (f *fakeMonitor) CheckAndNotify(_ context.Context, userID string) (*domain.AnalysisResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, userID)
	return &domain.AnalysisResult{Status: domain.StatusOK}, false, nil
}

func (f *fakeMonitor) Analyze(_ context.Context, _ string, hours int) (*domain.AnalysisResult, error) {
	f.gotHours = hours
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &domain.AnalysisResult{Status: domain.StatusNoData, Message: "no glucose readings in the requested period", Alerts: []domain.AlertEvent{}}, nil
}

func (f *fakeMonitor) AnalyzeTrend(_ context.Context, _ string, days int) (*domain.TrendResult, error) {
	f.gotDays = days
	return &domain.TrendResult{AnalysisResult: domain.AnalysisResult{Status: domain.StatusInsufficientData, Alerts: []domain.AlertEvent{}}, Days: days}, nil
}

type fakeRecords struct {
	readings map[string]domain.GlucoseReading
	err      error
}

func (f *fakeRecords) AddRecord(_ context.Context, userID string, rec services.NewRecord) (*domain.GlucoseReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := domain.GlucoseReading{ID: "0b7e5f3c-1111-4a2b-9c3d-4e5f6a7b8c9d", UserID: userID, Value: rec.Value, Context: rec.Context}
	f.readings[r.ID] = r
	return &r, nil
}

func (f *fakeRecords) GetUserRecords(_ context.Context, userID string, start, end time.Time) ([]domain.GlucoseReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("end must not be before start")
	}
	var out []domain.GlucoseReading
	for _, r := range f.readings {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) UpdateRecord(_ context.Context, id string, value float64, mctx domain.MeasurementContext, notes string) (*domain.GlucoseReading, error) {
	r, ok := f.readings[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("glucose reading")
	}
	r.Value, r.Notes = value, notes
	if mctx != "" {
		r.Context = mctx
	}
	f.readings[id] = r
	return &r, nil
}

func (f *fakeRecords) DeleteRecord(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.readings[id]; !ok {
		return apperrors.NewNotFoundError("glucose reading")
	}
	delete(f.readings, id)
	return nil
}

func newTestServer() (*Server, *fakeMonitor, *fakeRecords) {
	mon := &fakeMonitor{report: &domain.SaveReport{Attempted: 3, Saved: 3}}
	recs := &fakeRecords{readings: map[string]domain.GlucoseReading{}}
	return NewServer(":0", mon, recs, metrics.New()), mon, recs
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func monitorPath(suffix string) string {
	return "/api/v1/users/" + userID + "/glucose-monitor/" + suffix
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, _ := newTestServer()

	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "glucose_monitor_http_requests_total")
}

func TestSupportedDevices(t *testing.T) {
	s, _, _ := newTestServer()

	w := do(s, http.MethodGet, "/api/v1/glucose-monitor/supported-devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"freestyle_libre", "dexcom"}, decode(t, w)["devices"])
}

func TestUserIDMustBeUUID(t *testing.T) {
	s, _, _ := newTestServer()

	w := do(s, http.MethodPost, "/api/v1/users/42/glucose-monitor/analyze", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, decode(t, w)["code"])
}

func TestRegisterDevice(t *testing.T) {
	t.Run("defaults auto sync and redacts secrets", func(t *testing.T) {
		s, mon, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("register-device"),
			`{"device_type":"nightscout","params":{"url":"https://ns.example","api_secret":"hunter2"}}`)
		require.Equal(t, http.StatusOK, w.Code)

		reg := decode(t, w)["registration"].(map[string]any)
		assert.Equal(t, true, reg["auto_sync"])
		params := reg["params"].(map[string]any)
		assert.Equal(t, "***", params["api_secret"])
		assert.Equal(t, "https://ns.example", params["url"])
		assert.Equal(t, "hunter2", mon.gotParams["api_secret"], "service receives the real secret")
	})

	t.Run("unsupported device", func(t *testing.T) {
		s, mon, _ := newTestServer()
		mon.registerErr = apperrors.NewUnsupportedDeviceError("medtronic_pump")
		w := do(s, http.MethodPost, monitorPath("register-device"), `{"device_type":"medtronic_pump"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeUnsupportedDevice, decode(t, w)["code"])
	})

	t.Run("missing device type", func(t *testing.T) {
		s, _, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("register-device"), `{"params":{}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestImportDeviceData(t *testing.T) {
	t.Run("upstream failure maps to bad gateway", func(t *testing.T) {
		s, mon, _ := newTestServer()
		mon.importErr = apperrors.NewExternalAPIError(errors.New("503"), "nightscout")
		w := do(s, http.MethodPost, monitorPath("import-device-data"), `{"device_type":"nightscout"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("timeout maps to bad gateway", func(t *testing.T) {
		s, mon, _ := newTestServer()
		mon.importErr = apperrors.NewTimeoutError("fetch dexcom")
		w := do(s, http.MethodPost, monitorPath("import-device-data"), `{"device_type":"dexcom"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("success triggers a check", func(t *testing.T) {
		s, mon, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("import-device-data"), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(3), decode(t, w)["imported_count"])

		s.background.Wait()
		assert.Equal(t, []string{userID}, mon.checked)
	})

	t.Run("no check scheduled after shutdown began", func(t *testing.T) {
		s, mon, _ := newTestServer()
		require.NoError(t, s.Shutdown(context.Background()))

		w := do(s, http.MethodPost, monitorPath("import-device-data"), "")
		require.Equal(t, http.StatusOK, w.Code)
		s.background.Wait()
		assert.Empty(t, mon.checked)
	})
}

func TestShutdownWaitsForRunningChecks(t *testing.T) {
	s, mon, _ := newTestServer()
	w := do(s, http.MethodPost, monitorPath("import-device-data"), "")
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	mon.mu.Lock()
	defer mon.mu.Unlock()
	assert.Equal(t, []string{userID}, mon.checked)
}

func TestImportReadings(t *testing.T) {
	t.Run("missing fields rejected", func(t *testing.T) {
		s, mon, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("devices/import"),
			`{"device_id":"meter-1","data":[{"value":6.1,"measured_at":"2024-03-01T08:00:00Z"}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, mon.gotSamples)
	})

	t.Run("empty data rejected", func(t *testing.T) {
		s, _, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("devices/import"), `{"device_id":"meter-1","data":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("samples forwarded in mmol/L", func(t *testing.T) {
		s, mon, _ := newTestServer()
		w := do(s, http.MethodPost, monitorPath("devices/import"), `{"device_id":"meter-1","data":[
			{"value":6.1,"measured_at":"2024-03-01T08:00:00Z","measurement_time":"AFTER_BREAKFAST"},
			{"value":5.2,"measured_at":"2024-03-01T12:00:00","measurement_time":"before_lunch"}]}`)
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, mon.gotSamples, 2)
		assert.Equal(t, domain.UnitMmolL, mon.gotSamples[0].Unit)
		assert.Equal(t, "AFTER_BREAKFAST", mon.gotSamples[0].Context)
		s.background.Wait()
	})
}

func TestAnalyze(t *testing.T) {
	s, mon, _ := newTestServer()

	w := do(s, http.MethodPost, monitorPath("analyze"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.DefaultAnalyzeHours, mon.gotHours)
	body := decode(t, w)
	assert.Equal(t, "no_data", body["status"])
	assert.Equal(t, []any{}, body["alerts"])

	w = do(s, http.MethodPost, monitorPath("analyze"), `{"hours":6}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, mon.gotHours)

	mon.analyzeErr = apperrors.NewValidationError("hours must be between 1 and 744")
	w = do(s, http.MethodPost, monitorPath("analyze"), `{"hours":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mon.analyzeErr = apperrors.NewDatabaseError(errors.New("password authentication failed"))
	w = do(s, http.MethodPost, monitorPath("analyze"), `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])

	w = do(s, http.MethodPost, monitorPath("analyze"), `{"hours":"six"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeTrend(t *testing.T) {
	s, mon, _ := newTestServer()

	w := do(s, http.MethodPost, monitorPath("analyze-trend"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.DefaultTrendDays, mon.gotDays)
	assert.Equal(t, "insufficient_data", decode(t, w)["status"])
}

func TestReadingsCRUD(t *testing.T) {
	s, _, recs := newTestServer()
	base := "/api/v1/users/" + userID + "/readings"

	w := do(s, http.MethodPost, base, `{"value":6.4,"measurement_context":"before-lunch"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, "before_lunch", created["measurement_context"])
	id := created["id"].(string)

	w = do(s, http.MethodPost, base, `{"value":6.4,"measurement_context":"brunch"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodGet, base+"?start=2024-03-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(s, http.MethodGet, base+"?start=last-week", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPut, "/api/v1/readings/"+id, `{"value":7.2,"notes":"rechecked"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.2, recs.readings[id].Value)

	w = do(s, http.MethodDelete, "/api/v1/readings/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(s, http.MethodDelete, "/api/v1/readings/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodDelete, "/api/v1/readings/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewValidationError("x"), http.StatusBadRequest},
		{apperrors.NewInvalidSampleError("x"), http.StatusBadRequest},
		{apperrors.NewNotFoundError("x"), http.StatusNotFound},
		{apperrors.NewExternalAPIError(errors.New("x"), "dexcom"), http.StatusBadGateway},
		{apperrors.NewTimeoutError("x"), http.StatusBadGateway},
		{apperrors.NewDatabaseError(errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
