package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
// A nil *Collector is valid and records nothing
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Sync metrics
	ChunksPublished prometheus.Counter
	PublishFailures *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	EventsFolded    prometheus.Counter
	SyncDuration    prometheus.Histogram

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxPending   prometheus.Gauge
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ChunksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_chunks_published_total",
			Help:      "Total number of diff chunks appended to the event store",
		}),
		PublishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_failures_total",
				Help:      "Total number of failed publish attempts by stage",
			},
			[]string{"stage"},
		),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent computing, chunking and storing a diff",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_total",
			Help:      "Total number of knowledge events read during sync",
		}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Time spent rebuilding the merged view",
			Buckets:   prometheus.DefBuckets,
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Total number of outbox events fanned out",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Pending events seen by the last outbox pass",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ChunksPublished,
		c.PublishFailures,
		c.PublishDuration,
		c.EventsFolded,
		c.SyncDuration,
		c.OutboxPublished,
		c.OutboxPending,
	)
	return c
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordPublish records a successful publish of chunks
func (c *Collector) RecordPublish(chunks int, duration time.Duration) {
	if c == nil {
		return
	}
	c.ChunksPublished.Add(float64(chunks))
	c.PublishDuration.Observe(duration.Seconds())
}

// RecordPublishFailure records a failed publish stage
func (c *Collector) RecordPublishFailure(stage string) {
	if c == nil {
		return
	}
	c.PublishFailures.WithLabelValues(stage).Inc()
}

// RecordSync records one rebuild of the merged view
func (c *Collector) RecordSync(events int, duration time.Duration) {
	if c == nil {
		return
	}
	c.EventsFolded.Add(float64(events))
	c.SyncDuration.Observe(duration.Seconds())
}

// RecordOutbox records one outbox pass
func (c *Collector) RecordOutbox(published, pending int) {
	if c == nil {
		return
	}
	c.OutboxPublished.Add(float64(published))
	c.OutboxPending.Set(float64(pending))
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
