// Package metrics registers the Prometheus collectors for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles all pipeline collectors.
type Metrics struct {
	JobsStarted     prometheus.Counter
	JobsFinished    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	PagesFetched    prometheus.Counter
	PageFetchErrors prometheus.Counter
	SerpQueries     prometheus.Counter
	SerpErrors      prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ImportBatches   *prometheus.CounterVec
	ImportedRows    prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_jobs_started_total",
			Help: "Analysis jobs picked up by a worker.",
		}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footprint_jobs_finished_total",
			Help: "Analysis jobs by terminal status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "footprint_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_pages_fetched_total",
			Help: "Pages fetched successfully during crawls.",
		}),
		PageFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_page_fetch_errors_total",
			Help: "Page fetches that failed and were skipped.",
		}),
		SerpQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_serp_queries_total",
			Help: "Search provider queries issued.",
		}),
		SerpErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_serp_errors_total",
			Help: "Search provider queries that failed after retries.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_cache_hits_total",
			Help: "Read-through cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_cache_misses_total",
			Help: "Read-through cache misses.",
		}),
		ImportBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footprint_import_batches_total",
			Help: "Import batches by terminal status.",
		}, []string{"status"}),
		ImportedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_imported_rows_total",
			Help: "Rows committed into the target store.",
		}),
	}
	reg.MustRegister(
		m.JobsStarted, m.JobsFinished, m.StageDuration,
		m.PagesFetched, m.PageFetchErrors,
		m.SerpQueries, m.SerpErrors,
		m.CacheHits, m.CacheMisses,
		m.ImportBatches, m.ImportedRows,
	)
	return m
}

// NewNop returns collectors registered on a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
