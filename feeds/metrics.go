package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedrelay_feed_fetches_total",
		Help: "Feed fetches by result",
	}, []string{"result"})

	storiesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_stories_matched_total",
		Help: "Stories that passed the global keyword filter and were handed to the dispatcher",
	})

	storiesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_stories_dropped_total",
		Help: "Matched stories dropped because the dispatcher queue was full",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedrelay_sweep_duration_seconds",
		Help:    "Time taken by a worker to sweep its shard",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s up to ~4m
	})

	workersRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedrelay_workers_running",
		Help: "Feed workers currently running",
	})

	workerCrashes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_worker_crashes_total",
		Help: "Feed workers that stopped unexpectedly",
	})
)
