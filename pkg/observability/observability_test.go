package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

func disabledConfig() *config.ObservabilityConfig {
	cfg := &config.ObservabilityConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestDisabledManagerIsNoop(t *testing.T) {
	m := NewManager(disabledConfig())
	require.NoError(t, m.Initialize(context.Background()))

	assert.False(t, m.MetricsEnabled())
	assert.NotNil(t, m.Tracer("test"))

	// No-op recorders must not panic.
	m.Metrics().RecordQuery(context.Background(), time.Second, 3, nil)
	m.Metrics().RecordIngest(context.Background(), time.Second, 10, nil)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStdoutTracerInitializes(t *testing.T) {
	cfg := disabledConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"

	m := NewManager(cfg)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	_, span := m.Tracer("test").Start(context.Background(), "op")
	span.End()
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	m := NewManager(disabledConfig())
	require.NoError(t, m.Initialize(context.Background()))

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	m := NewManager(disabledConfig())
	require.NoError(t, m.Initialize(context.Background()))

	var flushable bool
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, flushable)
}
