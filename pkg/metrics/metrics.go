// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Collector holds the gateway's Prometheus metrics.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LockWait        prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates a collector registered with a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates a collector registered with reg. gatherer backs
// Handler and may be nil when the endpoint is not served.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of channel requests by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Channel request duration in seconds, including lock wait",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		LockWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for the native operation lock",
				Buckets:   []float64{.0001, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		gatherer: gatherer,
	}
}

// ObserveRequest records one completed request.
func (c *Collector) ObserveRequest(op, outcome string, d time.Duration) {
	c.RequestsTotal.WithLabelValues(op, outcome).Inc()
	c.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveLockWait records time spent waiting for the dispatcher lock.
func (c *Collector) ObserveLockWait(d time.Duration) {
	c.LockWait.Observe(d.Seconds())
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
