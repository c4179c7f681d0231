// Package obs carries chassis's ambient observability stack: Prometheus
// metrics and logrus-based structured logging, adapted from the teacher's
// internal/obs package.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters/histograms observable at the facade boundary.
// Each Open call gets its own prometheus.Registry (rather than the global
// default registry the teacher's promauto calls implicitly use) so that
// opening more than one file in a process — routine in tests — never
// collides on duplicate metric registration.
type Metrics struct {
	Registry *prometheus.Registry

	VectorInserts prometheus.Counter
	NodeInserts   prometheus.Counter
	SearchQueries prometheus.Counter
	SearchErrors  prometheus.Counter
	SearchLatency prometheus.Histogram
	InsertLatency prometheus.Histogram
	CommitLatency prometheus.Histogram
}

// NewMetrics creates a fresh, independently registered Metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		VectorInserts: f.NewCounter(prometheus.CounterOpts{
			Name: "chassis_vector_inserts_total",
			Help: "Total vectors appended to the vector zone.",
		}),
		NodeInserts: f.NewCounter(prometheus.CounterOpts{
			Name: "chassis_node_inserts_total",
			Help: "Total graph nodes published.",
		}),
		SearchQueries: f.NewCounter(prometheus.CounterOpts{
			Name: "chassis_search_queries_total",
			Help: "Total search queries served.",
		}),
		SearchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "chassis_search_errors_total",
			Help: "Total search queries that returned an error.",
		}),
		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chassis_search_latency_seconds",
			Help:    "Search call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		InsertLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chassis_insert_latency_seconds",
			Help:    "insert_node call latency, including backlink pruning.",
			Buckets: prometheus.DefBuckets,
		}),
		CommitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chassis_commit_latency_seconds",
			Help:    "commit (msync + datasync) latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
