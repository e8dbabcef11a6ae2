// Package metrics collects and exposes Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the HTTP layer records through.
type Recorder interface {
	RecordRequest(method string, statusCode int)
	RecordRequestDuration(duration time.Duration)
	RecordExport(format string)
	RecordAuthFailure()
}

// Collector holds the Prometheus metric instruments.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	requestDuration prometheus.Histogram
	exports         *prometheus.CounterVec
	authFailures    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterdesk_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "letterdesk_http_request_duration_seconds",
			Help:    "HTTP request handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterdesk_exports_total",
			Help: "Document exports by output format",
		}, []string{"format"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "letterdesk_auth_failures_total",
			Help: "Failed sign-in and token validation attempts",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.requestDuration,
		c.exports,
		c.authFailures,
	)

	return c
}

// RecordRequest counts a completed HTTP request.
func (c *Collector) RecordRequest(method string, statusCode int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration observes request handling latency.
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// RecordExport counts a successful document export.
func (c *Collector) RecordExport(format string) {
	c.exports.WithLabelValues(format).Inc()
}

// RecordAuthFailure counts a rejected credential or token.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
