// Package telemetry provides the tracing and metrics hooks used by both
// FleetPulse services.
//
// Two implementations exist: Noop, selected when telemetry is disabled, and a
// log-backed implementation that samples spans into debug logs and records
// Prometheus metrics.
package telemetry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stacklok/toolhive/pkg/logger"
)

// Attribute is a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

// Attr builds an Attribute.
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span is an in-flight unit of work.
type Span interface {
	SetAttribute(key string, value any)
	// End finishes the span; a non-nil err marks it failed.
	End(err error)
}

// Telemetry creates spans and records backend call outcomes.
type Telemetry interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
	RecordBackendCall(endpoint string, statusCode int, duration time.Duration)
	Shutdown(ctx context.Context) error
}

// Config selects and configures a Telemetry implementation.
type Config struct {
	Enabled     bool
	ServiceName string
	SampleRate  float64
}

// New returns the implementation selected by cfg.
func New(cfg Config) Telemetry {
	if !cfg.Enabled {
		return Noop{}
	}
	return NewLogTelemetry(cfg.ServiceName, cfg.SampleRate)
}

// Noop discards everything.
type Noop struct{}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) End(error)                {}

// StartSpan implements Telemetry.
func (Noop) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

// RecordBackendCall implements Telemetry.
func (Noop) RecordBackendCall(string, int, time.Duration) {}

// Shutdown implements Telemetry.
func (Noop) Shutdown(context.Context) error { return nil }

const metricsNamespace = "fleetpulse"

// LogTelemetry writes sampled spans to the debug log and records backend
// calls and span durations in its own Prometheus registry.
type LogTelemetry struct {
	service    string
	sampleRate float64
	sample     func() float64

	registry          *prometheus.Registry
	backendRequests   *prometheus.CounterVec
	backendDuration   *prometheus.HistogramVec
	operationDuration *prometheus.HistogramVec
}

// NewLogTelemetry creates a log-backed Telemetry. sampleRate is the fraction
// of spans written, between 0 and 1. Metrics are recorded for every span.
func NewLogTelemetry(service string, sampleRate float64) *LogTelemetry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": service}

	return &LogTelemetry{
		service:    service,
		sampleRate: sampleRate,
		sample:     rand.Float64,
		registry:   reg,
		backendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   metricsNamespace,
				Name:        "backend_requests_total",
				Help:        "Total reporting API request attempts by endpoint and status class.",
				ConstLabels: constLabels,
			},
			[]string{"endpoint", "status"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   metricsNamespace,
				Name:        "backend_request_duration_seconds",
				Help:        "Duration of reporting API request attempts.",
				Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
				ConstLabels: constLabels,
			},
			[]string{"endpoint", "status"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   metricsNamespace,
				Name:        "operation_duration_seconds",
				Help:        "Duration of traced operations by outcome.",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"operation", "outcome"},
		),
	}
}

// Registry returns the registry the metrics are recorded in.
func (t *LogTelemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (t *LogTelemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// MetricsHandler returns the metrics endpoint of t, or nil when t does not
// record metrics.
func MetricsHandler(t Telemetry) http.Handler {
	if lt, ok := t.(*LogTelemetry); ok {
		return lt.Handler()
	}
	return nil
}

type logSpan struct {
	t       *LogTelemetry
	name    string
	start   time.Time
	sampled bool

	mu    sync.Mutex
	attrs map[string]any
}

// StartSpan implements Telemetry.
func (t *LogTelemetry) StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	s := &logSpan{
		t:       t,
		name:    name,
		start:   time.Now(),
		sampled: t.sample() < t.sampleRate,
		attrs:   make(map[string]any, len(attrs)),
	}
	for _, a := range attrs {
		s.attrs[a.Key] = a.Value
	}
	return ctx, s
}

func (s *logSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

func (s *logSpan) End(err error) {
	elapsed := time.Since(s.start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.t.operationDuration.WithLabelValues(s.name, outcome).Observe(elapsed.Seconds())

	if !s.sampled {
		return
	}
	s.mu.Lock()
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(formatValue(s.attrs[k]))
	}
	s.mu.Unlock()

	if err != nil {
		logger.Debugf("[%s] span %s failed after %s: %v%s", s.t.service, s.name, elapsed, err, b.String())
		return
	}
	logger.Debugf("[%s] span %s ok in %s%s", s.t.service, s.name, elapsed, b.String())
}

// RecordBackendCall implements Telemetry. statusCode 0 means the call never
// produced a response.
func (t *LogTelemetry) RecordBackendCall(endpoint string, statusCode int, duration time.Duration) {
	route, status := routeLabel(endpoint), statusClass(statusCode)
	t.backendRequests.WithLabelValues(route, status).Inc()
	t.backendDuration.WithLabelValues(route, status).Observe(duration.Seconds())
}

// Shutdown implements Telemetry. It logs the backend request totals.
func (t *LogTelemetry) Shutdown(_ context.Context) error {
	families, err := t.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != metricsNamespace+"_backend_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			logger.Infof("[%s] backend %s %s: %.0f calls",
				t.service, labels["endpoint"], labels["status"], m.GetCounter().GetValue())
		}
	}
	return nil
}

// routeLabel keeps the first path segment so per-host paths share a label:
// "/history/web-01" becomes "/history/{hostname}".
func routeLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	first, rest, found := strings.Cut(trimmed, "/")
	if !found || rest == "" {
		return "/" + first
	}
	if first == "history" {
		return "/history/{hostname}"
	}
	return "/" + first + "/{id}"
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
