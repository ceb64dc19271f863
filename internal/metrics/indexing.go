package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing pipeline Prometheus metrics.
var (
	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "documents_indexed_total",
			Help:      "Documents written to an index",
		},
		[]string{"model", "mode"}, // mode: "bulk" / "delta"
	)

	DocumentsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "documents_skipped_total",
			Help:      "Documents skipped during indexing",
		},
		[]string{"model", "reason"}, // reason: "empty_text" / "embed_error" / "dim_mismatch" / "already_indexed"
	)

	IndexingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "indexing_duration_seconds",
			Help:      "Duration of a full indexing run",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"model", "mode"},
	)
)

var idxMetricsRegistered bool

// RegisterIndexingMetrics registers Prometheus indexing metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if idxMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(DocumentsSkippedTotal)
	prometheus.MustRegister(IndexingDuration)
	idxMetricsRegistered = true
}
