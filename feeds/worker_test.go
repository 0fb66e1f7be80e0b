package feeds_test

import (
	"context"
	"errors"
	"feedrelay/feeds"
	"feedrelay/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	stories map[string][]models.Story
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, feedURL string) ([]models.Story, error) {
	f.mu.Lock()
	f.calls = append(f.calls, feedURL)
	f.mu.Unlock()

	if f.panics[feedURL] {
		panic("malformed feed")
	}
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.stories[feedURL], nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeKeywords struct {
	keywords []string
	err      error
}

func (f fakeKeywords) GetAllKeywords(ctx context.Context) ([]string, error) {
	return f.keywords, f.err
}

func story(feed, id, title string) models.Story {
	return models.Story{ID: id, Title: title, Link: "https://example.com/" + id, Feed: feed}
}

func drain(ch <-chan models.Story) []models.Story {
	var out []models.Story
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestWorkerSweepEmitsMatchingStories(t *testing.T) {
	fetcher := &fakeFetcher{
		stories: map[string][]models.Story{
			"https://a.example.com/rss": {
				story("https://a.example.com/rss", "1", "Zelda remake announced"),
				story("https://a.example.com/rss", "2", "Mario Kart tournament"),
			},
			"https://c.example.com/rss": {
				story("https://c.example.com/rss", "3", "Breath of the Wild speedrun"),
			},
		},
		errs: map[string]error{
			"https://b.example.com/rss": errors.New("connection refused"),
		},
	}
	out := make(chan models.Story, 10)
	worker := feeds.NewWorker(0, []string{
		"https://a.example.com/rss",
		"https://b.example.com/rss",
		"https://c.example.com/rss",
	}, fetcher, fakeKeywords{keywords: []string{"zelda", "breath of the wild"}}, time.Minute, out)

	emitted := worker.Sweep(context.Background())
	assert.Equal(t, 2, emitted)

	got := drain(out)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	// A failing feed does not stop the sweep
	assert.Equal(t, []string{
		"https://a.example.com/rss",
		"https://b.example.com/rss",
		"https://c.example.com/rss",
	}, fetcher.Calls())

	status := worker.Status()
	assert.Equal(t, int64(1), status.Sweeps)
	assert.Equal(t, int64(1), status.Failures)
	assert.False(t, status.LastSweep.IsZero())
}

func TestWorkerSweepSkipsWithoutKeywords(t *testing.T) {
	tests := []struct {
		name     string
		keywords fakeKeywords
	}{
		{name: "keyword lookup fails", keywords: fakeKeywords{err: errors.New("database is locked")}},
		{name: "no keywords registered", keywords: fakeKeywords{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			out := make(chan models.Story, 1)
			worker := feeds.NewWorker(0, []string{"https://a.example.com/rss"}, fetcher, tt.keywords, time.Minute, out)

			assert.Equal(t, 0, worker.Sweep(context.Background()))
			assert.Empty(t, fetcher.Calls())
		})
	}
}

func TestWorkerDropsWhenQueueFull(t *testing.T) {
	feed := "https://a.example.com/rss"
	fetcher := &fakeFetcher{stories: map[string][]models.Story{
		feed: {
			story(feed, "1", "Zelda one"),
			story(feed, "2", "Zelda two"),
			story(feed, "3", "Zelda three"),
		},
	}}
	out := make(chan models.Story, 1)
	worker := feeds.NewWorker(0, []string{feed}, fetcher, fakeKeywords{keywords: []string{"zelda"}}, time.Minute, out)

	done := make(chan int)
	go func() { done <- worker.Sweep(context.Background()) }()

	select {
	case emitted := <-done:
		assert.Equal(t, 1, emitted)
	case <-time.After(time.Second):
		t.Fatal("sweep blocked on a full queue")
	}
	assert.Equal(t, "1", (<-out).ID)
}

func TestWorkerRunSweepsUntilCancelled(t *testing.T) {
	feed := "https://a.example.com/rss"
	fetcher := &fakeFetcher{}
	out := make(chan models.Story, 1)
	worker := feeds.NewWorker(0, []string{feed}, fetcher, fakeKeywords{keywords: []string{"zelda"}}, 10*time.Millisecond, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(fetcher.Calls()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
