package feeds

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedrelay/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// CoordinatorConfig holds configuration for the feed workers
type CoordinatorConfig struct {
	Feeds    []string
	Shards   int
	Interval time.Duration
	Buffer   int
}

// Coordinator shards the feed list, runs one worker per shard and fans their output into a
// single channel for the dispatcher.
type Coordinator struct {
	config   CoordinatorConfig
	fetcher  Fetcher
	keywords KeywordSource
	out      chan models.Story

	mu      sync.Mutex
	started bool
	workers []*Worker
	wg      sync.WaitGroup
}

func NewCoordinator(config CoordinatorConfig, fetcher Fetcher, keywords KeywordSource) *Coordinator {
	if config.Buffer < 1 {
		config.Buffer = 1
	}
	return &Coordinator{
		config:   config,
		fetcher:  fetcher,
		keywords: keywords,
		out:      make(chan models.Story, config.Buffer),
	}
}

// Stories is the channel all workers emit to. It is closed once every worker has stopped.
func (c *Coordinator) Stories() <-chan models.Story {
	return c.out
}

// Start spawns the workers. Each worker runs until ctx is cancelled; a worker that stops early
// or panics is logged and left stopped without affecting the others.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("coordinator already started")
	}
	c.started = true

	shards := Partition(c.config.Feeds, c.config.Shards)
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		worker := NewWorker(i, shard, c.fetcher, c.keywords, c.config.Interval, c.out)
		c.workers = append(c.workers, worker)
	}

	log.WithFields(log.Fields{
		"feeds":    len(c.config.Feeds),
		"shards":   len(shards),
		"workers":  len(c.workers),
		"interval": c.config.Interval,
	}).Info("Starting feed workers")

	for _, worker := range c.workers {
		worker.running.Store(true)
		workersRunning.Inc()
		c.wg.Add(1)
		go c.supervise(ctx, worker)
	}

	go func() {
		c.wg.Wait()
		close(c.out)
	}()

	return nil
}

func (c *Coordinator) supervise(ctx context.Context, worker *Worker) {
	defer c.wg.Done()
	defer func() {
		worker.running.Store(false)
		workersRunning.Dec()

		if r := recover(); r != nil {
			workerCrashes.Inc()
			worker.logger.Errorf("Feed worker crashed: %v", r)
			return
		}
		if ctx.Err() == nil {
			workerCrashes.Inc()
			worker.logger.Error("Feed worker stopped unexpectedly")
		}
	}()

	worker.Run(ctx)
}

// Wait blocks until every worker has stopped
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Status returns a snapshot of every worker
func (c *Coordinator) Status() []models.WorkerStatus {
	c.mu.Lock()
	workers := append([]*Worker(nil), c.workers...)
	c.mu.Unlock()

	return lo.Map(workers, func(w *Worker, _ int) models.WorkerStatus {
		return w.Status()
	})
}
