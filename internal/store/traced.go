package store

import (
	"context"
	"time"

	"github.com/1282saa/paperone/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore decorates a Store with a span and metrics per call.
type TracedStore struct {
	inner   Store
	table   string
	tracer  trace.Tracer
	metrics *observability.Collector
}

// NewTracedStore wraps inner. metrics may be nil.
func NewTracedStore(inner Store, table string, tracer trace.Tracer, metrics *observability.Collector) *TracedStore {
	if tracer == nil {
		tracer = observability.Tracer()
	}
	return &TracedStore{inner: inner, table: table, tracer: tracer, metrics: metrics}
}

func (s *TracedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", "kv"),
		attribute.String("db.table", s.table),
	)
	return s.tracer.Start(ctx, "store."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func (s *TracedStore) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.ObserveStore(s.table, op, start, err)
}

func (s *TracedStore) Get(ctx context.Context, key Key) (Item, error) {
	start := time.Now()
	ctx, span := s.start(ctx, "get", attribute.String("db.pk", key.PK), attribute.String("db.sk", key.SK))
	item, err := s.inner.Get(ctx, key)
	span.SetAttributes(attribute.Bool("db.found", item != nil))
	s.finish(span, "get", start, err)
	return item, err
}

func (s *TracedStore) Put(ctx context.Context, item Item) error {
	start := time.Now()
	key, _ := KeyOf(item)
	ctx, span := s.start(ctx, "put", attribute.String("db.pk", key.PK), attribute.String("db.sk", key.SK))
	err := s.inner.Put(ctx, item)
	s.finish(span, "put", start, err)
	return err
}

func (s *TracedStore) Delete(ctx context.Context, key Key) error {
	start := time.Now()
	ctx, span := s.start(ctx, "delete", attribute.String("db.pk", key.PK), attribute.String("db.sk", key.SK))
	err := s.inner.Delete(ctx, key)
	s.finish(span, "delete", start, err)
	return err
}

func (s *TracedStore) Query(ctx context.Context, cond KeyCondition, scanForward bool) ([]Item, error) {
	start := time.Now()
	ctx, span := s.start(ctx, "query",
		attribute.String("db.index", cond.Index),
		attribute.String("db.partition", cond.PartitionValue),
		attribute.Bool("db.scan_forward", scanForward),
	)
	items, err := s.inner.Query(ctx, cond, scanForward)
	span.SetAttributes(attribute.Int("db.items", len(items)))
	s.finish(span, "query", start, err)
	return items, err
}
