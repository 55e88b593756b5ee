package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockwatch_records_queued_total",
		Help: "Records persisted and published, by feed.",
	}, []string{"feed"})

	RecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blockwatch_records_processed_total",
		Help: "Records persisted and published across all feeds.",
	})

	RecordsExisting = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockwatch_records_existing_total",
		Help: "New feed addresses skipped because a record already existed.",
	}, []string{"feed"})

	FeedSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockwatch_feed_skips_total",
		Help: "Feeds skipped during a run, by reason.",
	}, []string{"feed", "reason"})

	CollaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blockwatch_collaborator_failures_total",
		Help: "Failed calls into storage, queue or fetch collaborators.",
	}, []string{"operation"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blockwatch_ingest_run_duration_seconds",
		Help:    "Wall time of a full ingest run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)
