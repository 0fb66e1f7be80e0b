package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrelay_stories_processed_total",
		Help: "Stories handled by the dispatcher by outcome",
	}, []string{"result"})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrelay_deliveries_total",
		Help: "Per destination delivery attempts by result",
	}, []string{"result"})

	previewFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_preview_failures_total",
		Help: "Article pages that could not be fetched for a preview image",
	})

	processDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedrelay_story_dispatch_duration_seconds",
		Help:    "Time taken to dispatch one story to every destination",
		Buckets: prometheus.DefBuckets,
	})
)
