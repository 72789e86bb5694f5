package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pebbl"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Checkpoint write metrics
	CheckpointSeconds     prometheus.Histogram
	CheckpointBytes       prometheus.Counter
	CheckpointsWritten    prometheus.Counter
	SubproblemsWritten    prometheus.Counter
	StaleDeleteFailures   prometheus.Counter
	CheckpointGenerations prometheus.Counter

	// Restart metrics, labelled by strategy (parallel|reconfigure)
	SubproblemsRestored *prometheus.CounterVec
	SubproblemsFathomed *prometheus.CounterVec
	SolutionsRestored   *prometheus.CounterVec
	ResizeMessages      prometheus.Counter

	// Load log metrics
	LoadLogRecords prometheus.Counter
	TokenWarnings  prometheus.Counter
}

// NewRegistry creates a registry backed by its own prometheus.Registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		CheckpointSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "write_seconds",
			Help:      "Time to write a checkpoint, barrier included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		CheckpointBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "bytes_total",
			Help:      "Bytes written to checkpoint files.",
		}),
		CheckpointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "written_total",
			Help:      "Checkpoints completed by this process.",
		}),
		SubproblemsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "subproblems_written_total",
			Help:      "Subproblems serialized into checkpoint files.",
		}),
		StaleDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "stale_delete_failures_total",
			Help:      "Failed deletions of the previous checkpoint file.",
		}),
		CheckpointGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "generations_observed_total",
			Help:      "Completed checkpoint generations seen by a watcher.",
		}),
		SubproblemsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "subproblems_restored_total",
			Help:      "Subproblems inserted into pools during restart.",
		}, []string{"strategy"}),
		SubproblemsFathomed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "subproblems_fathomed_total",
			Help:      "Subproblems recycled on restart because they could be fathomed.",
		}, []string{"strategy"}),
		SolutionsRestored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "solutions_restored_total",
			Help:      "Solutions added to the repository during restart.",
		}, []string{"strategy"}),
		ResizeMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "resize_messages_total",
			Help:      "Buffer-resize messages sent during reconfigure restart.",
		}),
		LoadLogRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loadlog",
			Name:      "records_total",
			Help:      "Load-log records written to the shared log.",
		}),
		TokenWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loadlog",
			Name:      "token_warnings_total",
			Help:      "Ring token sends still incomplete at the next send.",
		}),
	}
	reg.MustRegister(
		r.CheckpointSeconds,
		r.CheckpointBytes,
		r.CheckpointsWritten,
		r.SubproblemsWritten,
		r.StaleDeleteFailures,
		r.CheckpointGenerations,
		r.SubproblemsRestored,
		r.SubproblemsFathomed,
		r.SolutionsRestored,
		r.ResizeMessages,
		r.LoadLogRecords,
		r.TokenWarnings,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Or returns r, or Global when r is nil.
func Or(r *Registry) *Registry {
	if r == nil {
		return Global()
	}
	return r
}

// Handler returns an HTTP handler for the /metrics endpoint of the global
// registry.
func Handler() http.Handler {
	return HandlerFor(Global())
}

// HandlerFor returns an HTTP handler serving r.
func HandlerFor(r *Registry) http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
