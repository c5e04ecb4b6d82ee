// Package metrics records retrieval operation outcomes and latencies.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Operation names observed by the dataset.
const (
	OpOpen       = "open"
	OpCategories = "categories"
	OpInterval   = "interval"
)

// Recorder observes the duration and outcome of an operation.
type Recorder interface {
	Observe(ctx context.Context, op string, success bool, duration time.Duration)
	SetCategories(n int)
}

// Nop discards every observation.
type Nop struct{}

// Observe implements Recorder.
func (Nop) Observe(context.Context, string, bool, time.Duration) {}

// SetCategories implements Recorder.
func (Nop) SetCategories(int) {}

// Prometheus is a Recorder backed by its own registry.
type Prometheus struct {
	registry   *prometheus.Registry
	total      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	categories prometheus.Gauge
}

// NewPrometheus creates a recorder and registers its collectors plus the Go
// runtime and process collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pasture",
			Name:      "operations_total",
			Help:      "Dataset operations by name and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pasture",
			Name:      "operation_duration_seconds",
			Help:      "Dataset operation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"op"}),
		categories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pasture",
			Name:      "categories",
			Help:      "Stocking rate categories in the open dataset.",
		}),
	}
	p.registry.MustRegister(
		p.total,
		p.duration,
		p.categories,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry to expose over HTTP.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Observe implements Recorder.
func (p *Prometheus) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	result := "ok"
	if !success {
		result = "error"
	}
	p.total.WithLabelValues(op, result).Inc()
	p.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetCategories implements Recorder.
func (p *Prometheus) SetCategories(n int) {
	p.categories.Set(float64(n))
}
