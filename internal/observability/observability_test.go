package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("test")

	c.ObserveStore("subjects", "put", time.Now(), nil)
	c.ObserveStore("subjects", "put", time.Now(), errors.New("boom"))
	c.ObserveGeneration("stream", time.Now(), nil)
	c.DocumentCreated()
	c.CascadeDeleteFailed(2)
	c.CascadeDeleteFailed(0)
	c.FallbackUsed("sync")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("subjects", "put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("subjects", "put", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GenerationRequests.WithLabelValues("stream", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DocumentsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CascadeDeleteFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FallbackApplied.WithLabelValues("sync")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_documents_created_total")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveStore("t", "get", time.Now(), nil)
		c.ObserveGeneration("sync", time.Now(), nil)
		c.DocumentCreated()
		c.DocumentDeleted()
		c.ReviewCompleted()
		c.CascadeDeleteFailed(1)
		c.FallbackUsed("stream")
	})
}

func TestNilTracerProviderShutdown(t *testing.T) {
	var tp *TracerProvider
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}
