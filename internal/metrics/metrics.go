package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch-level ingestion metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_events_ingest_batches_total",
			Help: "Total number of ingest batches processed",
		},
		[]string{"strategy", "status"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensor_events_ingest_batch_duration_seconds",
			Help:    "End-to-end duration of batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Per-event outcome metrics
	EventOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_events_ingest_outcomes_total",
			Help: "Total events by persistence outcome",
		},
		[]string{"outcome"},
	)

	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_events_ingest_rejections_total",
			Help: "Total events rejected by validation",
		},
		[]string{"reason"},
	)

	// Persistence metrics
	UpsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensor_events_upsert_duration_seconds",
			Help:    "Duration of upsert batch calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"partition"},
	)

	// Stats read path metrics
	StatsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_events_stats_cache_total",
			Help: "Stats cache lookups by result",
		},
		[]string{"result"},
	)
)
