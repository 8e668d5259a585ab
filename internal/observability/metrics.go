// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Generation metrics
	GenerationRequests *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	FallbackApplied    *prometheus.CounterVec

	// Business metrics
	DocumentsCreated   prometheus.Counter
	DocumentsDeleted   prometheus.Counter
	ReviewsCompleted   prometheus.Counter
	CascadeDeleteFails prometheus.Counter
}

// NewCollector creates a collector with metrics registered under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Key-value store operations by table, operation and outcome",
		}, []string{"table", "operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Key-value store operation latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"table", "operation"}),
		GenerationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Text generation calls by mode and outcome",
		}, []string{"mode", "status"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Text generation latency, until the last fragment for streams",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"mode"}),
		FallbackApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correction_fallback_applied_total",
			Help:      "Times the table fallback rewrote generated output",
		}, []string{"mode"}),
		DocumentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Total number of documents created",
		}),
		DocumentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_deleted_total",
			Help:      "Total number of documents deleted",
		}),
		ReviewsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_completed_total",
			Help:      "Total number of review completions",
		}),
		CascadeDeleteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_delete_failures_total",
			Help:      "Child documents that could not be deleted during a subject delete",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.StoreOperations, c.StoreDuration,
		c.GenerationRequests, c.GenerationDuration, c.FallbackApplied,
		c.DocumentsCreated, c.DocumentsDeleted, c.ReviewsCompleted, c.CascadeDeleteFails,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler exposes the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStore records one store call.
func (c *Collector) ObserveStore(table, operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(table, operation, outcome(err)).Inc()
	c.StoreDuration.WithLabelValues(table, operation).Observe(time.Since(start).Seconds())
}

// ObserveGeneration records one generation call.
func (c *Collector) ObserveGeneration(mode string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.GenerationRequests.WithLabelValues(mode, outcome(err)).Inc()
	c.GenerationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// The helpers below are nil-safe so components can run without metrics.

// DocumentCreated counts a created document.
func (c *Collector) DocumentCreated() {
	if c != nil {
		c.DocumentsCreated.Inc()
	}
}

// DocumentDeleted counts a deleted document.
func (c *Collector) DocumentDeleted() {
	if c != nil {
		c.DocumentsDeleted.Inc()
	}
}

// ReviewCompleted counts a pending to completed transition.
func (c *Collector) ReviewCompleted() {
	if c != nil {
		c.ReviewsCompleted.Inc()
	}
}

// CascadeDeleteFailed counts child deletions that failed during a cascade.
func (c *Collector) CascadeDeleteFailed(n int) {
	if c != nil && n > 0 {
		c.CascadeDeleteFails.Add(float64(n))
	}
}

// FallbackUsed counts a fallback rewrite for the given mode.
func (c *Collector) FallbackUsed(mode string) {
	if c != nil {
		c.FallbackApplied.WithLabelValues(mode).Inc()
	}
}
