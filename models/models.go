package models

import "time"

// Story is a single feed entry as seen by the relay. Stories are never mutated after the feed
// worker creates them.
type Story struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Author      string     `json:"author,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Categories  []string   `json:"categories,omitempty"`

	// Feed is the URL of the feed the story was read from
	Feed string `json:"feed"`
}

// Destination is a registered delivery target with its own keyword filter
type Destination struct {
	ID        string   `json:"id"`
	ChannelID string   `json:"channelId"`
	Keywords  []string `json:"keywords"`
}

// DeliveryRecord marks a story as delivered to a destination
type DeliveryRecord struct {
	DestinationID string `json:"destinationId"`
	StoryID       string `json:"storyId"`
}

// Message is the rich message sent to a delivery channel
type Message struct {
	Title      string
	URL        string
	Summary    string
	Timestamp  *time.Time
	AuthorLine string
	ImageURL   string
	Footer     string
	Color      int
}

// WorkerStatus is a point in time snapshot of a feed worker
type WorkerStatus struct {
	Shard     int       `json:"shard"`
	Feeds     []string  `json:"feeds"`
	Running   bool      `json:"running"`
	Sweeps    int64     `json:"sweeps"`
	Failures  int64     `json:"failures"`
	LastSweep time.Time `json:"lastSweep"`
}
