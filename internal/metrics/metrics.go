// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes.
const (
	OutcomeClassified = "classified"
	OutcomeUnknown    = "unknown"
	OutcomeFailed     = "failed"
)

// Side-write kinds whose failures are logged and swallowed.
const (
	SideWritePredictionLog = "prediction_log"
	SideWriteNotification  = "notification"
	SideWriteMediaCleanup  = "media_cleanup"
)

// Metrics contains every collector the server records. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PredictionsTotal  *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	SideWriteFailures *prometheus.CounterVec
	RateLimited       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mangosense_predictions_total",
				Help: "Total number of predict requests that reached inference, by family and outcome.",
			},
			[]string{"family", "outcome"},
		),
		InferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mangosense_inference_duration_seconds",
				Help:    "Time spent loading the model and running one prediction.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"family", "backend"},
		),
		SideWriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mangosense_side_write_failures_total",
				Help: "Best-effort writes that failed after a prediction was returned.",
			},
			[]string{"kind"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mangosense_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"scope"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mangosense_http_requests_total",
				Help: "HTTP requests by method, route pattern and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mangosense_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.PredictionsTotal, m.InferenceDuration, m.SideWriteFailures,
		m.RateLimited, m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObservePrediction(family, outcome string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(family, outcome).Inc()
}

func (m *Metrics) ObserveInference(family, backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.WithLabelValues(family, backend).Observe(d.Seconds())
}

func (m *Metrics) SideWriteFailed(kind string) {
	if m == nil {
		return
	}
	m.SideWriteFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Limited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
