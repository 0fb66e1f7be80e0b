package dispatch

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"feedrelay/models"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// MessageColor is the accent colour of every story message
	MessageColor = 0xFFA500

	UnknownSource  = "Unknown Source"
	EmptySummary   = "Click to read more"
	SummaryLimit   = 200
	summaryEllipse = "..."
)

var stripPolicy = bluemonday.StrictPolicy()

// SourceName derives a short site name from a story link: the first label of the hostname with
// any leading "www." removed.
func SourceName(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || parsed.Hostname() == "" {
		return UnknownSource
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	name, _, _ := strings.Cut(host, ".")
	if name == "" {
		return UnknownSource
	}
	return name
}

// Summarize strips markup from a feed summary and cuts it to SummaryLimit characters
func Summarize(raw string) string {
	text := strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(raw)))
	if text == "" {
		return EmptySummary
	}

	if utf8.RuneCountInString(text) <= SummaryLimit {
		return text
	}
	return string([]rune(text)[:SummaryLimit]) + summaryEllipse
}

// AuthorLine renders "author | source", or just the source when the author is unknown
func AuthorLine(author, source string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return source
	}
	return author + " | " + source
}

// BuildMessage composes the message sent for a story. imageURL may be empty.
func BuildMessage(story models.Story, imageURL, footer string) models.Message {
	return models.Message{
		Title:      story.Title,
		URL:        story.Link,
		Summary:    Summarize(story.Summary),
		Timestamp:  story.PublishedAt,
		AuthorLine: AuthorLine(story.Author, SourceName(story.Link)),
		ImageURL:   imageURL,
		Footer:     footer,
		Color:      MessageColor,
	}
}
