// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names used as the "op" label.
const (
	OpPage    = "page"
	OpToggle  = "toggle"
	OpHover   = "hover"
	OpDiagram = "diagram"
)

// Collector records request-level metrics. A nil *Collector is a valid
// no-op collector.
type Collector struct {
	registry   *prometheus.Registry
	opLatency  *prometheus.HistogramVec
	opErrors   *prometheus.CounterVec
	superseded prometheus.Counter
	datasets   *prometheus.GaugeVec
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clusterview_operation_duration_seconds",
			Help:    "Latency of grid operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clusterview_operation_errors_total",
			Help: "Failed grid operations.",
		}, []string{"op"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clusterview_hovers_superseded_total",
			Help: "Hovers replaced by a newer hover before they finished.",
		}),
		datasets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clusterview_datasets",
			Help: "Configured datasets by load state.",
		}, []string{"state"}),
	}
	c.registry.MustRegister(c.opLatency, c.opErrors, c.superseded, c.datasets)
	return c
}

// Observe records the latency and outcome of one operation.
func (c *Collector) Observe(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.opLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.opErrors.WithLabelValues(op).Inc()
	}
}

// Superseded counts a hover dropped in favor of a newer one.
func (c *Collector) Superseded() {
	if c == nil {
		return
	}
	c.superseded.Inc()
}

// SetDatasets records how many datasets loaded and failed.
func (c *Collector) SetDatasets(loaded, failed int) {
	if c == nil {
		return
	}
	c.datasets.WithLabelValues("loaded").Set(float64(loaded))
	c.datasets.WithLabelValues("failed").Set(float64(failed))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
