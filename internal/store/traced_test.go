package store

import (
	"context"
	"testing"

	"github.com/1282saa/paperone/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracedStore(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	metrics := observability.NewCollector("test")

	s := NewTracedStore(newTestStore(t), "documents", provider.Tracer("test"), metrics)

	require.NoError(t, s.Put(ctx, docItem("s1", "d1", "u1", "2025-01-01T00:00:00.000000Z")))
	item, err := s.Get(ctx, Key{PK: "SUBJECT#s1", SK: "DOCUMENT#d1"})
	require.NoError(t, err)
	require.NotNil(t, item)
	items, err := s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionAttr: "user_id", PartitionValue: "u1"}, false)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	_, err = s.Query(ctx, KeyCondition{Index: "NoSuchIndex", PartitionAttr: "x", PartitionValue: "y"}, false)
	require.Error(t, err)
	require.NoError(t, s.Delete(ctx, Key{PK: "SUBJECT#s1", SK: "DOCUMENT#d1"}))

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"store.put", "store.get", "store.query", "store.query", "store.delete"}, names)
	assert.Equal(t, codes.Error, recorder.Ended()[3].Status().Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("documents", "query", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("documents", "query", "error")))
}
