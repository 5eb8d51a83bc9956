package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Indexing Prometheus metrics.
var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "fetches_total",
			Help:      "Total number of source fetches",
		},
		[]string{"status"}, // "ok" / "http_error" / "transport_error"
	)

	RecordsExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "records_extracted_total",
			Help:      "Normalized records produced, by extraction strategy",
		},
		[]string{"strategy"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "status"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)

	PointsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "points_upserted_total",
			Help:      "Points written to the vector store",
		},
		[]string{"site"},
	)

	SiteDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlweb",
			Name:      "site_deletes_total",
			Help:      "delete_site calls by outcome",
		},
		[]string{"status"},
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nlweb",
			Name:      "run_duration_seconds",
			Help:      "Indexing run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "status"},
	)
)

var registerOnce sync.Once

// Register registers the indexing metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FetchesTotal,
			RecordsExtractedTotal,
			EmbeddingRequestsTotal,
			EmbeddingCacheTotal,
			PointsUpsertedTotal,
			SiteDeletesTotal,
			RunDuration,
		)
	})
}
