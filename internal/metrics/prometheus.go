package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal counts finished analysis jobs by terminal status.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servicescope_analyses_total",
			Help: "Total number of repository analyses",
		},
		[]string{"status"},
	)

	// AnalysisDuration tracks the wall-clock duration of analyses in seconds.
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "servicescope_analysis_duration_seconds",
			Help:    "Duration of repository analyses in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
		},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "servicescope_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// CallsExtracted counts HTTP call sites found across all analyses.
	CallsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicescope_calls_extracted_total",
			Help: "Total number of extracted HTTP call sites",
		},
	)

	// InferenceFailures counts per-call inference failures (timeouts,
	// transport errors). These degrade the result, not the job.
	InferenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicescope_inference_failures_total",
			Help: "Total number of failed dependency inference calls",
		},
	)

	// GraphWriteFailures counts failed graph-store upserts.
	GraphWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servicescope_graph_write_failures_total",
			Help: "Total number of failed graph store writes",
		},
	)
)
