package feeds_test

import (
	"context"
	"feedrelay/feeds"
	"feedrelay/models"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan models.Story, n int) []models.Story {
	t.Helper()
	var out []models.Story
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case s := <-ch:
			out = append(out, s)
		case <-timeout:
			t.Fatalf("received %d of %d stories", len(out), n)
		}
	}
	return out
}

func TestCoordinatorFansInAllShards(t *testing.T) {
	urls := makeFeeds(5)
	fetcher := &fakeFetcher{stories: map[string][]models.Story{}}
	for i, u := range urls {
		fetcher.stories[u] = []models.Story{story(u, u+"#zelda", "Zelda news")}
		if i%2 == 0 {
			fetcher.stories[u] = append(fetcher.stories[u], story(u, u+"#other", "Pokemon news"))
		}
	}

	coordinator := feeds.NewCoordinator(feeds.CoordinatorConfig{
		Feeds:    urls,
		Shards:   3,
		Interval: time.Hour,
		Buffer:   16,
	}, fetcher, fakeKeywords{keywords: []string{"zelda"}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, coordinator.Start(ctx))
	assert.Error(t, coordinator.Start(ctx))

	got := collect(t, coordinator.Stories(), len(urls))
	ids := lo.Map(got, func(s models.Story, _ int) string { return s.ID })
	assert.ElementsMatch(t, lo.Map(urls, func(u string, _ int) string { return u + "#zelda" }), ids)

	status := coordinator.Status()
	require.Len(t, status, 3)
	assert.Len(t, status[0].Feeds, 2)
	assert.Len(t, status[2].Feeds, 1)

	cancel()
	coordinator.Wait()

	// Closed once every worker stopped
	_, open := <-coordinator.Stories()
	assert.False(t, open)
	assert.True(t, lo.NoneBy(coordinator.Status(), func(s models.WorkerStatus) bool { return s.Running }))
}

func TestCoordinatorIsolatesCrashedWorker(t *testing.T) {
	urls := []string{"https://bad.example.com/rss", "https://good.example.com/rss"}
	fetcher := &fakeFetcher{
		panics: map[string]bool{urls[0]: true},
		stories: map[string][]models.Story{
			urls[1]: {story(urls[1], "good-1", "Zelda amiibo restock")},
		},
	}

	coordinator := feeds.NewCoordinator(feeds.CoordinatorConfig{
		Feeds:    urls,
		Shards:   2,
		Interval: time.Hour,
		Buffer:   4,
	}, fetcher, fakeKeywords{keywords: []string{"zelda"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, coordinator.Start(ctx))

	got := collect(t, coordinator.Stories(), 1)
	assert.Equal(t, "good-1", got[0].ID)

	assert.Eventually(t, func() bool {
		status := coordinator.Status()
		return !status[0].Running && status[1].Running
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinatorSkipsEmptyShards(t *testing.T) {
	coordinator := feeds.NewCoordinator(feeds.CoordinatorConfig{
		Feeds:    makeFeeds(2),
		Shards:   5,
		Interval: time.Hour,
	}, &fakeFetcher{}, fakeKeywords{keywords: []string{"zelda"}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, coordinator.Start(ctx))
	assert.Len(t, coordinator.Status(), 2)

	cancel()
	coordinator.Wait()
}
