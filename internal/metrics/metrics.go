package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedRequests считает запросы лент по виду ленты и сортировке
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comet_feed_requests_total",
		Help: "Feed compositions by feed kind and sort",
	}, []string{"feed", "sort"})

	FeedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comet_feed_duration_seconds",
		Help:    "Feed composition latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	EndorsementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comet_endorsement_toggles_total",
		Help: "Endorsement toggles by subject kind and resulting state",
	}, []string{"subject", "active"})

	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comet_submissions_rejected_total",
		Help: "Rejected submissions by kind and error code",
	}, []string{"kind", "code"})

	PreviewFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comet_link_preview_fallbacks_total",
		Help: "Link previews that fell back to an empty result",
	}, []string{"reason"})

	LoaderBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comet_loader_batch_size",
		Help:    "Number of distinct keys per batched fetch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"loader"})
)
