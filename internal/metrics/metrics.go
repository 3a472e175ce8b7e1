// Package metrics records provisioning counters for a single command run.
//
// Recorders own their registry. After a command finishes, [Recorder.WriteTextfile]
// dumps the registry in text exposition format for node_exporter's textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation results.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultExists  = "exists"
	ResultDeleted = "deleted"
	ResultError   = "error"
)

// Recorder holds the rayform metric families.
type Recorder struct {
	registry *prometheus.Registry

	resourceOperations *prometheus.CounterVec
	phaseDuration      *prometheus.HistogramVec
	nodes              *prometheus.GaugeVec
	lastRun            prometheus.Gauge
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resourceOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rayform",
				Name:      "resource_operations_total",
				Help:      "Total number of resource operations by kind and result",
			},
			[]string{"kind", "result"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rayform",
				Name:      "phase_duration_seconds",
				Help:      "Duration of provisioning phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
			},
			[]string{"phase"},
		),
		nodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rayform",
				Name:      "nodes",
				Help:      "Number of provisioned nodes by role",
			},
			[]string{"role"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rayform",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed command",
		}),
	}
	r.registry.MustRegister(r.resourceOperations, r.phaseDuration, r.nodes, r.lastRun)
	return r
}

// RecordOperation counts one operation on a resource kind.
func (r *Recorder) RecordOperation(kind, result string) {
	if r == nil {
		return
	}
	r.resourceOperations.WithLabelValues(kind, result).Inc()
}

// ObservePhase records how long a phase took.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetNodes sets the node gauge for role.
func (r *Recorder) SetNodes(role string, n int) {
	if r == nil {
		return
	}
	r.nodes.WithLabelValues(role).Set(float64(n))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile stamps the run time and writes every metric to path.
func (r *Recorder) WriteTextfile(path string, now time.Time) error {
	r.lastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
