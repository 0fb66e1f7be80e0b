package feeds_test

import (
	"context"
	"feedrelay/feeds"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Nintendo News</title>
  <link>https://news.example.com</link>
  <item>
    <title>New Zelda game announced</title>
    <link>https://news.example.com/zelda</link>
    <guid>zelda-1</guid>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    <dc:creator>Jane Doe</dc:creator>
    <category>Nintendo</category>
    <description>&lt;p&gt;Link returns&lt;/p&gt;</description>
  </item>
  <item>
    <title>Metroid update</title>
    <link>https://news.example.com/metroid</link>
    <description>Samus is back</description>
  </item>
  <item>
    <title>No identity</title>
  </item>
</channel>
</rss>`

func TestHTTPFetcherFetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer server.Close()

	fetcher := feeds.NewHTTPFetcher(server.Client(), feeds.NewHostRateLimiter(time.Millisecond), "feedrelay-test")
	stories, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, stories, 2)

	assert.Equal(t, "feedrelay-test", userAgent)

	first := stories[0]
	assert.Equal(t, "zelda-1", first.ID)
	assert.Equal(t, "New Zelda game announced", first.Title)
	assert.Equal(t, "https://news.example.com/zelda", first.Link)
	assert.Equal(t, "Jane Doe", first.Author)
	assert.Equal(t, []string{"Nintendo"}, first.Categories)
	assert.Equal(t, "<p>Link returns</p>", first.Summary)
	assert.Equal(t, server.URL, first.Feed)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 2006, first.PublishedAt.Year())

	second := stories[1]
	assert.Equal(t, "https://news.example.com/metroid", second.ID, "link is used when guid is missing")
	assert.Nil(t, second.PublishedAt)
}

func TestHTTPFetcherFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := feeds.NewHTTPFetcher(server.Client(), nil, "")
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)

	_, err = feeds.NewHTTPFetcher(server.Client(), feeds.NewHostRateLimiter(time.Second), "").
		Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestConvertFeedUsesUpdatedAndContent(t *testing.T) {
	updated := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		nil,
		{
			GUID:          " id-1 ",
			Title:         " Tears of the Kingdom ",
			Content:       "full body",
			UpdatedParsed: &updated,
			Authors:       []*gofeed.Person{{Name: ""}, {Name: "Link"}},
		},
	}}

	stories := feeds.ConvertFeed("https://feed.example.com", feed)
	require.Len(t, stories, 1)
	assert.Equal(t, "id-1", stories[0].ID)
	assert.Equal(t, "Tears of the Kingdom", stories[0].Title)
	assert.Equal(t, "full body", stories[0].Summary)
	assert.Equal(t, &updated, stories[0].PublishedAt)
	assert.Equal(t, "Link", stories[0].Author)
}

func TestHostRateLimiterSpacesSameHost(t *testing.T) {
	limiter := feeds.NewHostRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.WaitForHost(ctx, "https://a.example.com/one"))
	require.NoError(t, limiter.WaitForHost(ctx, "https://b.example.com/one"))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "different hosts do not wait on each other")

	require.NoError(t, limiter.WaitForHost(ctx, "https://a.example.com/two"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	assert.Error(t, limiter.WaitForHost(ctx, "/relative/path"))
}
