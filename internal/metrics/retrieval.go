package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "retrieval_requests_total",
			Help:      "Hybrid search requests",
		},
		[]string{"model", "status"}, // status: "ok" / "empty" / "error"
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end hybrid search duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)
)

var retMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalDuration)
	retMetricsRegistered = true
}
