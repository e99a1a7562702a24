// Package metrics collects Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the application records.
// Metrics are registered on the Registerer passed to NewCollector, so tests
// can use a fresh prometheus.NewRegistry() each time.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	taskEvents    *prometheus.CounterVec
	tagConflicts  prometheus.Counter
	rateLimited   prometheus.Counter
	storageErrors prometheus.Counter
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todo_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		taskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todo_task_events_total",
			Help: "Tasks created, edited and deleted.",
		}, []string{"event"}),
		tagConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todo_tag_insert_conflicts_total",
			Help: "Tag inserts that lost a race and reused the existing row.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todo_rate_limited_total",
			Help: "Requests rejected by the per-user rate limit.",
		}),
		storageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todo_storage_unavailable_total",
			Help: "Responses that failed because storage was unavailable.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.taskEvents,
		c.tagConflicts,
		c.rateLimited,
		c.storageErrors,
	)
	return c
}

// RecordRequest records one finished HTTP request. route is the chi route
// pattern ("/api/tasks/{id}"), never the raw path, to keep label cardinality
// bounded.
func (c *Collector) RecordRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// TaskEvent counts a task lifecycle event ("created", "edited", "deleted").
func (c *Collector) TaskEvent(event string) {
	c.taskEvents.WithLabelValues(event).Inc()
}

// TagConflict counts a recovered tag-name collision.
func (c *Collector) TagConflict(string) {
	c.tagConflicts.Inc()
}

// RateLimited counts a request rejected with 429.
func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// StorageUnavailable counts a request answered with 503.
func (c *Collector) StorageUnavailable() {
	c.storageErrors.Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
