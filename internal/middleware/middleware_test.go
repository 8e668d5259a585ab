package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/1282saa/paperone/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := chi.NewRouter()
	r.Use(Logger(zap.New(core)))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("hi")) })
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["bytes"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	collector := observability.NewCollector("test")
	r := chi.NewRouter()
	r.Use(Metrics(collector))
	r.Get("/subjects/{subject_id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subjects/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subjects/b", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/subjects/{subject_id}", "200")))
}

func TestWrappedWriterFlushes(t *testing.T) {
	var flushable bool
	h := Tracing(noop.NewTracerProvider().Tracer("test"))(
		Logger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, flushable = w.(http.Flusher)
		})),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, flushable)
}
