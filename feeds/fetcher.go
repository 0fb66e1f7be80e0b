package feeds

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"feedrelay/models"

	"github.com/mmcdole/gofeed"
	log "github.com/sirupsen/logrus"
)

// Fetcher fetches a feed and parses it into stories in feed order
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]models.Story, error)
}

// HTTPFetcher fetches RSS, Atom and JSON feeds over HTTP
type HTTPFetcher struct {
	parser  *gofeed.Parser
	limiter *HostRateLimiter
}

// NewHTTPFetcher creates a fetcher. The limiter may be nil.
func NewHTTPFetcher(client *http.Client, limiter *HostRateLimiter, userAgent string) *HTTPFetcher {
	parser := gofeed.NewParser()
	parser.Client = client
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return &HTTPFetcher{parser: parser, limiter: limiter}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) ([]models.Story, error) {
	if f.limiter != nil {
		if err := f.limiter.WaitForHost(ctx, feedURL); err != nil {
			return nil, fmt.Errorf("rate limiting failed: %w", err)
		}
	}

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	return ConvertFeed(feedURL, feed), nil
}

// ConvertFeed turns parsed feed items into stories. Items without a GUID use their link as id;
// items with neither are skipped since they cannot be deduplicated.
func ConvertFeed(feedURL string, feed *gofeed.Feed) []models.Story {
	stories := make([]models.Story, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = strings.TrimSpace(item.Link)
		}
		if id == "" {
			log.WithFields(log.Fields{
				"feed":  feedURL,
				"title": item.Title,
			}).Debug("Skipping feed item without guid or link")
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}

		summary := item.Description
		if strings.TrimSpace(summary) == "" {
			summary = item.Content
		}

		stories = append(stories, models.Story{
			ID:          id,
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			PublishedAt: published,
			Author:      itemAuthor(item),
			Summary:     summary,
			Categories:  item.Categories,
			Feed:        feedURL,
		})
	}
	return stories
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	return ""
}

// NewHTTPClient creates the client shared by feed fetches
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
