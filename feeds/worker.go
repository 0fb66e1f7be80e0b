package feeds

import (
	"context"
	"sync/atomic"
	"time"

	"feedrelay/filters"
	"feedrelay/models"

	log "github.com/sirupsen/logrus"
)

// KeywordSource provides the union of all destinations' keyword sets
type KeywordSource interface {
	GetAllKeywords(ctx context.Context) ([]string, error)
}

// Worker polls a fixed shard of feeds and emits stories that match the global keyword union
type Worker struct {
	shard    int
	feeds    []string
	fetcher  Fetcher
	keywords KeywordSource
	interval time.Duration
	out      chan<- models.Story
	logger   *log.Entry

	running   atomic.Bool
	sweeps    atomic.Int64
	failures  atomic.Int64
	lastSweep atomic.Int64
}

func NewWorker(shard int, feeds []string, fetcher Fetcher, keywords KeywordSource, interval time.Duration, out chan<- models.Story) *Worker {
	return &Worker{
		shard:    shard,
		feeds:    feeds,
		fetcher:  fetcher,
		keywords: keywords,
		interval: interval,
		out:      out,
		logger:   log.WithField("shard", shard),
	}
}

// Run sweeps the shard immediately and then again interval after each sweep completes, so
// sweeps never overlap. It returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.WithField("feeds", len(w.feeds)).Info("Feed worker started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Feed worker shutting down")
			return
		case <-timer.C:
			w.Sweep(ctx)
			timer.Reset(w.interval)
		}
	}
}

// Sweep fetches every feed of the shard once, in order, and returns how many stories it emitted
func (w *Worker) Sweep(ctx context.Context) int {
	start := time.Now()
	defer func() {
		sweepDuration.Observe(time.Since(start).Seconds())
		w.sweeps.Add(1)
		w.lastSweep.Store(time.Now().UnixNano())
	}()

	keywords, err := w.keywords.GetAllKeywords(ctx)
	if err != nil {
		w.logger.Errorf("Skipping sweep, could not load keywords: %v", err)
		return 0
	}
	if len(keywords) == 0 {
		w.logger.Debug("Skipping sweep, no destination has keywords")
		return 0
	}

	emitted := 0
	for _, feedURL := range w.feeds {
		if ctx.Err() != nil {
			return emitted
		}

		stories, err := w.fetcher.Fetch(ctx, feedURL)
		if err != nil {
			feedFetches.WithLabelValues("error").Inc()
			w.failures.Add(1)
			w.logger.WithField("feed", feedURL).Errorf("Error checking feed: %v", err)
			continue
		}
		feedFetches.WithLabelValues("ok").Inc()

		matched := 0
		for _, story := range stories {
			if !filters.Matches(story, keywords) {
				continue
			}
			matched++
			if w.emit(story) {
				emitted++
			}
		}

		w.logger.WithFields(log.Fields{
			"feed":    feedURL,
			"items":   len(stories),
			"matched": matched,
		}).Debug("Checked feed")
	}

	return emitted
}

// emit hands a story to the dispatcher without waiting. A full queue drops the story, the next
// sweep emits it again.
func (w *Worker) emit(story models.Story) bool {
	select {
	case w.out <- story:
		storiesMatched.Inc()
		return true
	default:
		storiesDropped.Inc()
		w.logger.WithFields(log.Fields{
			"feed":  story.Feed,
			"story": story.ID,
		}).Warn("Dispatcher queue full, dropping story until next sweep")
		return false
	}
}

func (w *Worker) Status() models.WorkerStatus {
	status := models.WorkerStatus{
		Shard:    w.shard,
		Feeds:    w.feeds,
		Running:  w.running.Load(),
		Sweeps:   w.sweeps.Load(),
		Failures: w.failures.Load(),
	}
	if last := w.lastSweep.Load(); last != 0 {
		status.LastSweep = time.Unix(0, last)
	}
	return status
}
