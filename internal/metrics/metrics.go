// Package metrics exposes Prometheus collectors for the monitoring engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "glucose_monitor"

type Metrics struct {
	registry *prometheus.Registry

	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	userSyncs        *prometheus.CounterVec
	readingsSaved    prometheus.Counter
	readingsSkipped  prometheus.Counter
	alerts           *prometheus.CounterVec
	narratives       *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	registeredDevice prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates collectors on a dedicated registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_ticks_total",
			Help:      "Completed scheduler ticks.",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Wall time of a scheduler tick.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		userSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_syncs_total",
			Help:      "Per-user sync attempts by outcome.",
		}, []string{"device_type", "outcome"}),
		readingsSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_saved_total",
			Help:      "Glucose readings persisted.",
		}),
		readingsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_skipped_total",
			Help:      "Samples dropped as malformed or rejected by the store.",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts detected by type and severity.",
		}, []string{"type", "severity"}),
		narratives: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narratives_total",
			Help:      "Alert narratives by source.",
		}, []string{"source"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
		registeredDevice: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_devices",
			Help:      "Device registrations currently held.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) UserSync(deviceType, outcome string) {
	if m == nil {
		return
	}
	m.userSyncs.WithLabelValues(deviceType, outcome).Inc()
}

func (m *Metrics) ReadingsImported(saved, skipped int) {
	if m == nil {
		return
	}
	m.readingsSaved.Add(float64(saved))
	m.readingsSkipped.Add(float64(skipped))
}

func (m *Metrics) Alert(alertType, severity string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) Narrative(source string) {
	if m == nil {
		return
	}
	m.narratives.WithLabelValues(source).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetRegisteredDevices(n int) {
	if m == nil {
		return
	}
	m.registeredDevice.Set(float64(n))
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
