// Package metrics holds the Prometheus collectors for the phone agent.
// Every Record method is safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes
const (
	OutcomeOK        = "ok"
	OutcomeDegraded  = "degraded"
	OutcomeDiscarded = "discarded"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal         *prometheus.CounterVec
	ModelLatency       prometheus.Histogram
	ToolCallsTotal     *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
	TTSDuration        *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "concierge"
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Call turns handled, by outcome",
		},
		[]string{"outcome"},
	)

	modelLatency := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Language model round-trip latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)

	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by tool and status",
		},
		[]string{"tool", "status"},
	)

	notificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications, by status",
		},
		[]string{"status"},
	)

	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Call sessions currently held by the session store",
		},
	)

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code",
		},
		[]string{"route", "code"},
	)

	ttsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_duration_seconds",
			Help:      "Speech synthesis duration",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"status"},
	)

	registry.MustRegister(
		turnsTotal,
		modelLatency,
		toolCallsTotal,
		notificationsTotal,
		activeSessions,
		httpRequestsTotal,
		ttsDuration,
	)

	return &Metrics{
		registry:           registry,
		TurnsTotal:         turnsTotal,
		ModelLatency:       modelLatency,
		ToolCallsTotal:     toolCallsTotal,
		NotificationsTotal: notificationsTotal,
		ActiveSessions:     activeSessions,
		HTTPRequestsTotal:  httpRequestsTotal,
		TTSDuration:        ttsDuration,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordModelLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ModelLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) RecordTTS(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.TTSDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Middleware counts requests per route. route is a fixed label, never the raw path.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rw.StatusCode)).Inc()
	})
}

// ResponseWriter wraps http.ResponseWriter to capture the status code.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrader needs for hijacking.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
