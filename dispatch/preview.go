package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// MaxPageSize caps how much of an article page is read; preview tags live in <head>
const MaxPageSize = 2 << 20

// PreviewFinder finds a representative image for an article page. It returns an empty string
// when none is found or the page cannot be fetched.
type PreviewFinder interface {
	FindImage(ctx context.Context, pageURL string) string
}

// HTMLPreviewFinder reads og:image, then twitter:image, then the first <img> of the article page
type HTMLPreviewFinder struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func NewHTMLPreviewFinder(client *http.Client, timeout time.Duration, userAgent string) *HTMLPreviewFinder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTMLPreviewFinder{client: client, timeout: timeout, userAgent: userAgent}
}

func (p *HTMLPreviewFinder) FindImage(ctx context.Context, pageURL string) string {
	image, err := p.findImage(ctx, pageURL)
	if err != nil {
		previewFailures.Inc()
		log.WithField("url", pageURL).Warnf("Could not fetch preview image: %v", err)
		return ""
	}
	return image
}

func (p *HTMLPreviewFinder) findImage(ctx context.Context, pageURL string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, MaxPageSize))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	return resolveImage(pageURL, ExtractImage(doc)), nil
}

// ExtractImage picks the preview image of a parsed page
func ExtractImage(doc *goquery.Document) string {
	if image := attr(doc.Find(`meta[property="og:image"]`), "content"); image != "" {
		return image
	}
	if image := attr(doc.Find(`meta[name="twitter:image"]`), "content"); image != "" {
		return image
	}
	return attr(doc.Find("img"), "src")
}

func attr(selection *goquery.Selection, name string) string {
	value, _ := selection.First().Attr(name)
	return strings.TrimSpace(value)
}

// resolveImage makes relative image references absolute against the page URL
func resolveImage(pageURL, image string) string {
	if image == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return image
	}
	ref, err := url.Parse(image)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
