package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FacesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Name:      "faces_indexed_total",
		Help:      "Face index upsert attempts by outcome (synced, failed)",
	}, []string{"outcome"})

	FacesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lineage",
		Name:      "faces_deleted_total",
		Help:      "Face records deleted",
	})

	SimilarityQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lineage",
		Name:      "similarity_queries_total",
		Help:      "Similarity queries served by the vector index",
	})

	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Name:      "reconcile_runs_total",
		Help:      "Reconciliation runs by mode (family, all)",
	}, []string{"mode"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lineage",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of reconciliation runs",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lineage",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
