// Package metrics exposes Prometheus collectors for ledger operations and
// HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of metrics the ledger reports.
type Recorder interface {
	RecordOperation(operation, outcome string, duration time.Duration)
	RecordRetry(operation string)
}

// Collector records ledger and HTTP metrics.
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_operations_total",
			Help: "Ledger operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_operation_duration_seconds",
			Help:    "Ledger operation latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_tx_retries_total",
			Help: "Transactions retried after a conflict.",
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(c.operations, c.duration, c.retries, c.requests)
	return c
}

// RecordOperation counts a finished ledger operation.
func (c *Collector) RecordOperation(operation, outcome string, duration time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry counts a retried transaction.
func (c *Collector) RecordRetry(operation string) {
	c.retries.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus counts an HTTP response.
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration) {}
func (Nop) RecordRetry(string)                            {}
