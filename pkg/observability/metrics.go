package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Metrics records the engine's domain counters. All methods are safe on
// the no-op implementation.
type Metrics interface {
	// RecordHTTPRequest records one handled request.
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)

	// RecordQuery records one retrieval+answer run.
	RecordQuery(ctx context.Context, duration time.Duration, contexts int, err error)

	// RecordIngest records one document pipeline run.
	RecordIngest(ctx context.Context, duration time.Duration, chunks int, err error)

	// RecordLLMCall records one LLM round trip.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, outputTokens int, err error)
}

// NoopMetrics drops everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}
func (NoopMetrics) RecordQuery(context.Context, time.Duration, int, error)                {}
func (NoopMetrics) RecordIngest(context.Context, time.Duration, int, error)               {}
func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, error)      {}

type prometheusMetrics struct {
	httpDuration   metric.Float64Histogram
	httpRequests   metric.Int64Counter
	queryDuration  metric.Float64Histogram
	queryTotal     metric.Int64Counter
	queryErrors    metric.Int64Counter
	ingestDuration metric.Float64Histogram
	ingestChunks   metric.Int64Counter
	ingestErrors   metric.Int64Counter
	llmDuration    metric.Float64Histogram
	llmTokens      metric.Int64Counter
	llmErrors      metric.Int64Counter
}

func initMetrics(cfg *config.MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(cfg.Namespace)

	ns := cfg.Namespace + "_"
	m := &prometheusMetrics{}

	for _, item := range []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.httpDuration, ns + "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&m.queryDuration, ns + "query_duration_seconds", "Query round trip duration in seconds"},
		{&m.ingestDuration, ns + "ingest_duration_seconds", "Document ingest duration in seconds"},
		{&m.llmDuration, ns + "llm_request_duration_seconds", "LLM request duration in seconds"},
	} {
		h, err := meter.Float64Histogram(item.name, metric.WithDescription(item.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", item.name, err)
		}
		*item.dst = h
	}

	for _, item := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.httpRequests, ns + "http_requests_total", "Total handled HTTP requests"},
		{&m.queryTotal, ns + "queries_total", "Total queries processed"},
		{&m.queryErrors, ns + "query_errors_total", "Total failed queries"},
		{&m.ingestChunks, ns + "ingest_chunks_total", "Total chunks embedded during ingest"},
		{&m.ingestErrors, ns + "ingest_errors_total", "Total failed document ingests"},
		{&m.llmTokens, ns + "llm_tokens_output_total", "Total output tokens from the LLM"},
		{&m.llmErrors, ns + "llm_errors_total", "Total failed LLM requests"},
	} {
		c, err := meter.Int64Counter(item.name, metric.WithDescription(item.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", item.name, err)
		}
		*item.dst = c
	}
	return m, nil
}

func (m *prometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}

func (m *prometheusMetrics) RecordQuery(ctx context.Context, duration time.Duration, contexts int, err error) {
	m.queryDuration.Record(ctx, duration.Seconds())
	m.queryTotal.Add(ctx, 1)
	if err != nil {
		m.queryErrors.Add(ctx, 1)
	}
}

func (m *prometheusMetrics) RecordIngest(ctx context.Context, duration time.Duration, chunks int, err error) {
	m.ingestDuration.Record(ctx, duration.Seconds())
	if chunks > 0 {
		m.ingestChunks.Add(ctx, int64(chunks))
	}
	if err != nil {
		m.ingestErrors.Add(ctx, 1)
	}
}

func (m *prometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}
