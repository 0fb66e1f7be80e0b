package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feedrelay/filters"
	"feedrelay/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrChannelNotFound is returned by a Sender when the destination channel no longer exists
var ErrChannelNotFound = errors.New("channel not found")

// Registry lists the destinations a story may be delivered to
type Registry interface {
	ListDestinationsWithChannel(ctx context.Context) ([]models.Destination, error)
}

// Ledger remembers which stories have been delivered to which destination
type Ledger interface {
	HasBeenDelivered(ctx context.Context, destinationID, storyID string) (bool, error)
	BatchRecordDelivered(ctx context.Context, records []models.DeliveryRecord) error
}

// Sender delivers a message to a chat channel
type Sender interface {
	Send(ctx context.Context, channelID string, message models.Message) error
}

// Config holds dispatcher settings
type Config struct {
	// Concurrency bounds how many destinations of one story are handled at once
	Concurrency int
	Footer      string
}

// Dispatcher delivers matched stories to every interested destination exactly once
type Dispatcher struct {
	registry Registry
	ledger   Ledger
	sender   Sender
	previews PreviewFinder
	config   Config
}

func NewDispatcher(registry Registry, ledger Ledger, sender Sender, previews PreviewFinder, config Config) *Dispatcher {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Dispatcher{
		registry: registry,
		ledger:   ledger,
		sender:   sender,
		previews: previews,
		config:   config,
	}
}

// Run consumes stories one at a time until the channel is closed or ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context, stories <-chan models.Story) {
	log.Info("Dispatcher started")
	defer log.Info("Dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case story, ok := <-stories:
			if !ok {
				return
			}
			if err := d.safeProcess(ctx, story); err != nil {
				log.WithFields(log.Fields{
					"story": story.ID,
					"feed":  story.Feed,
				}).Errorf("Error dispatching story: %v", err)
			}
		}
	}
}

func (d *Dispatcher) safeProcess(ctx context.Context, story models.Story) (err error) {
	defer func() {
		if r := recover(); r != nil {
			storiesProcessed.WithLabelValues("panic").Inc()
			err = fmt.Errorf("panic while dispatching: %v", r)
		}
	}()
	return d.Process(ctx, story)
}

// Process delivers one story to every destination whose keywords match and which has not
// received it yet. Failures for one destination are logged and leave the others unaffected;
// only a registry or final ledger error is returned.
func (d *Dispatcher) Process(ctx context.Context, story models.Story) error {
	start := time.Now()
	defer func() { processDuration.Observe(time.Since(start).Seconds()) }()

	logger := log.WithFields(log.Fields{
		"dispatch": uuid.NewString(),
		"story":    story.ID,
	})

	destinations, err := d.registry.ListDestinationsWithChannel(ctx)
	if err != nil {
		storiesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("list destinations: %w", err)
	}

	var (
		mu      sync.Mutex
		records []models.DeliveryRecord
	)
	preview := sync.OnceValue(func() string {
		if d.previews == nil || story.Link == "" {
			return ""
		}
		return d.previews.FindImage(ctx, story.Link)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Concurrency)

	for _, destination := range destinations {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					deliveries.WithLabelValues("panic").Inc()
					logger.WithField("destination", destination.ID).Errorf("Panic while delivering story: %v", r)
				}
			}()

			delivered := d.deliver(gctx, logger, story, destination, preview)
			if delivered {
				mu.Lock()
				records = append(records, models.DeliveryRecord{
					DestinationID: destination.ID,
					StoryID:       story.ID,
				})
				mu.Unlock()
			}
			// Never fail the group, a failing destination must not cancel the others
			return nil
		})
	}
	_ = g.Wait()

	if len(records) == 0 {
		storiesProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	// Sent messages are recorded even once shutdown has begun; the store bounds the write itself
	if err := d.ledger.BatchRecordDelivered(context.WithoutCancel(ctx), records); err != nil {
		storiesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("record deliveries: %w", err)
	}

	storiesProcessed.WithLabelValues("delivered").Inc()
	logger.WithField("destinations", len(records)).Info("Delivered story")
	return nil
}

// deliver handles one destination and reports whether the story was sent
func (d *Dispatcher) deliver(ctx context.Context, logger *log.Entry, story models.Story, destination models.Destination, preview func() string) bool {
	logger = logger.WithField("destination", destination.ID)

	if !filters.Matches(story, destination.Keywords) {
		return false
	}

	seen, err := d.ledger.HasBeenDelivered(ctx, destination.ID, story.ID)
	if err != nil {
		deliveries.WithLabelValues("error").Inc()
		logger.Errorf("Error checking delivery ledger: %v", err)
		return false
	}
	if seen {
		return false
	}

	message := BuildMessage(story, preview(), d.config.Footer)
	if err := d.sender.Send(ctx, destination.ChannelID, message); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			deliveries.WithLabelValues("channel_not_found").Inc()
			logger.WithField("channel", destination.ChannelID).Warn("Destination channel not found")
			return false
		}
		deliveries.WithLabelValues("error").Inc()
		logger.WithField("channel", destination.ChannelID).Errorf("Error sending story: %v", err)
		return false
	}

	deliveries.WithLabelValues("sent").Inc()
	return true
}
