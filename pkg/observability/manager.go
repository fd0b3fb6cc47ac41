// Package observability wires OpenTelemetry tracing and Prometheus
// metrics. Everything degrades to no-ops when disabled, so callers never
// need to check whether the stack is on.
package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Manager owns the tracer provider and the metrics recorder.
type Manager struct {
	mu       sync.RWMutex
	cfg      *config.ObservabilityConfig
	tracer   trace.TracerProvider
	metrics  Metrics
	shutdown func(context.Context) error
}

// NewManager creates an uninitialized manager.
func NewManager(cfg *config.ObservabilityConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		tracer:  noop.NewTracerProvider(),
		metrics: NoopMetrics{},
	}
}

// Initialize starts the configured exporters.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, shutdown, err := initTracer(ctx, &m.cfg.Tracing)
	if err != nil {
		return err
	}
	m.tracer = tp
	m.shutdown = shutdown

	metrics, err := initMetrics(&m.cfg.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

// Tracer returns a named tracer.
func (m *Manager) Tracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer.Tracer(name)
}

// Metrics returns the active metrics recorder.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// MetricsEnabled reports whether the scrape endpoint should be mounted.
func (m *Manager) MetricsEnabled() bool {
	return m.cfg != nil && m.cfg.Metrics.Enabled
}

// MetricsHandler serves the Prometheus scrape endpoint.
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown(ctx)
}
