// Package aggregator reads source RSS/Atom feeds into entries carrying
// obfuscated article tokens.
package aggregator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/decoder"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxFeedBytes = 10 << 20
	titleSourceSep      = " - "
)

// Entry is one item of a source feed.
type Entry struct {
	// Link is the aggregator link as published in the feed.
	Link string
	// Token is the obfuscated article token, empty for direct publisher links.
	Token       string
	Title       string
	Description string
	SourceName  string
	PublishedAt *time.Time
}

// Reader fetches and parses source feeds.
type Reader struct {
	client    *http.Client
	userAgent string
	log       logger.Logger
}

// NewReader creates a Reader. A nil client gets one bounded by DefaultTimeout.
func NewReader(client *http.Client, userAgent string, log logger.Logger) *Reader {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Reader{client: client, userAgent: userAgent, log: log}
}

// Read fetches feedURL and returns at most limit entries in feed order.
// A limit of zero or less returns every entry. Items without a link are skipped.
func (r *Reader) Read(ctx context.Context, feedURL string, limit int) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", failure.Permanent(failure.KindInvalidURL, err, feedURL))
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", failure.ClassifyNetworkError(err, feedURL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("read feed: %w", failure.ClassifyHTTPStatus(resp.StatusCode, feedURL))
	}

	entries, err := Parse(ctx, io.LimitReader(resp.Body, DefaultMaxFeedBytes), limit)
	if err != nil {
		return nil, err
	}

	r.log.Debug("Source feed read",
		logger.URL(feedURL),
		logger.Int("entries", len(entries)),
	)
	return entries, nil
}

// Parse parses an RSS or Atom document. An empty feed returns a non-nil empty slice.
func Parse(ctx context.Context, body io.Reader, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", failure.Permanent(failure.KindUnparsable, err, ""))
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if limit > 0 && len(entries) >= limit {
			break
		}

		link := itemLink(item)
		if link == "" {
			continue
		}

		title, source := splitTitle(strings.TrimSpace(item.Title))
		if item.Author != nil && item.Author.Name != "" {
			source = item.Author.Name
		}

		entry := Entry{
			Link:        link,
			Title:       title,
			Description: plainText(item.Description),
			SourceName:  source,
			PublishedAt: item.PublishedParsed,
		}
		if token, tokenErr := decoder.TokenFromLink(link); tokenErr == nil {
			entry.Token = token
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if strings.HasPrefix(item.GUID, "http") {
		return item.GUID
	}
	return ""
}

// splitTitle separates the trailing " - Publisher" the aggregator appends to titles.
func splitTitle(title string) (headline, source string) {
	idx := strings.LastIndex(title, titleSourceSep)
	if idx <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+len(titleSourceSep):])
}

// plainText strips markup from an HTML description snippet.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
