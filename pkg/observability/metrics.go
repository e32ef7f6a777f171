package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for the map engine. Each collector
// owns its registry so tests can create as many as they need.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	InsightsCreated prometheus.Counter
	EdgesCreated    prometheus.Counter
	PositionSaves   *prometheus.CounterVec

	// Write-behind metrics
	RemoteWrites        *prometheus.CounterVec
	RemoteWritesDropped prometheus.Counter
	RemoteQueueDepth    prometheus.Gauge

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector with the given namespace
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
		InsightsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_created_total",
			Help:      "Total number of insights created from concept selections",
		}),
		EdgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_created_total",
			Help:      "Total number of user-authored edges",
		}),
		PositionSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "position_saves_total",
				Help:      "Position saves by persistence channel",
			},
			[]string{"channel", "mode"},
		),
		RemoteWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_writes_total",
				Help:      "Background writes to the authoritative store",
			},
			[]string{"operation", "status"},
		),
		RemoteWritesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_writes_dropped_total",
			Help:      "Background writes dropped because the queue was full",
		}),
		RemoteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_write_queue_depth",
			Help:      "Writes waiting in the background queue",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of position cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of position cache misses",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.InsightsCreated,
		c.EdgesCreated,
		c.PositionSaves,
		c.RemoteWrites,
		c.RemoteWritesDropped,
		c.RemoteQueueDepth,
		c.CacheHits,
		c.CacheMisses,
	)
	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// RecordRemoteWrite counts a finished background write
func (c *Collector) RecordRemoteWrite(operation string, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.RemoteWrites.WithLabelValues(operation, status).Inc()
}

// RecordDropped counts a write that never reached the queue
func (c *Collector) RecordDropped() {
	if c == nil {
		return
	}
	c.RemoteWritesDropped.Inc()
}

// SetQueueDepth reports the current background queue length
func (c *Collector) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.RemoteQueueDepth.Set(float64(n))
}

// RecordPositionSave counts a position save on a channel
func (c *Collector) RecordPositionSave(channel, mode string) {
	if c == nil {
		return
	}
	c.PositionSaves.WithLabelValues(channel, mode).Inc()
}

// RecordCacheLookup counts a cache hit or miss
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// RecordInsight counts a created insight and its supports edges
func (c *Collector) RecordInsight(edges int) {
	if c == nil {
		return
	}
	c.InsightsCreated.Inc()
	c.EdgesCreated.Add(float64(edges))
}

// RecordEdge counts a user-authored edge
func (c *Collector) RecordEdge() {
	if c == nil {
		return
	}
	c.EdgesCreated.Inc()
}

// RecordHTTP records a served request
func (c *Collector) RecordHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
