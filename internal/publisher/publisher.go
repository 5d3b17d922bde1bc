// Package publisher renders stored articles as an RSS 2.0 feed with a TTL cache.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/metrics"
)

const (
	DefaultCacheTTL    = 5 * time.Minute
	DefaultLimit       = 20
	MaxLimit           = 100
	DefaultTitle       = "Unfurled News"
	DefaultDescription = "Articles resolved from aggregator feeds"
	DefaultBaseURL     = "http://localhost:8080"
	statusAll          = "all"
	etagPrefixLength   = 16
)

// ErrInvalidFilter is returned for query parameters that cannot form a filter.
var ErrInvalidFilter = errors.New("invalid filter")

// ArticleLister reads articles for a filter, newest first.
type ArticleLister interface {
	List(ctx context.Context, filter domain.ArticleFilter) ([]*domain.Article, error)
}

// Config controls rendering and caching.
type Config struct {
	CacheTTL     time.Duration `env:"PUBLISHER_CACHE_TTL"     yaml:"cache_ttl"`
	DefaultLimit int           `env:"PUBLISHER_DEFAULT_LIMIT" yaml:"default_limit"`
	MaxLimit     int           `env:"PUBLISHER_MAX_LIMIT"     yaml:"max_limit"`
	Title        string        `env:"PUBLISHER_TITLE"         yaml:"title"`
	Description  string        `env:"PUBLISHER_DESCRIPTION"   yaml:"description"`
	BaseURL      string        `env:"PUBLISHER_BASE_URL"      yaml:"base_url"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxLimit <= 0 || c.MaxLimit > MaxLimit {
		c.MaxLimit = MaxLimit
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = DefaultLimit
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Description == "" {
		c.Description = DefaultDescription
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
}

// Document is one rendered feed. Body is shared with the cache and must not be modified.
type Document struct {
	Body     []byte
	ETag     string
	CacheHit bool
}

// Publisher builds feed documents.
type Publisher struct {
	cfg     Config
	store   ArticleLister
	cache   Cache
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock sets the clock used for lastBuildDate.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithMetrics records cache lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a Publisher. A nil cache uses a MemoryCache.
func New(cfg Config, store ArticleLister, cache Cache, log logger.Logger, opts ...Option) *Publisher {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	p := &Publisher{cfg: cfg, store: store, cache: cache, log: log, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewMemoryCache(p.now)
	}
	return p
}

// ParseQuery builds a filter from request parameters. An empty status selects
// successful articles and "all" disables the status filter.
func (p *Publisher) ParseQuery(q url.Values) (domain.ArticleFilter, error) {
	filter := domain.ArticleFilter{
		Topic:  strings.TrimSpace(q.Get("topic")),
		FeedID: strings.TrimSpace(q.Get("feed_id")),
		Status: domain.ArticleStatusSuccess,
		Limit:  p.cfg.DefaultLimit,
	}
	if filter.FeedID == "" {
		filter.FeedID = strings.TrimSpace(q.Get("feedId"))
	}

	switch status := strings.ToLower(strings.TrimSpace(q.Get("status"))); status {
	case "":
	case statusAll:
		filter.Status = ""
	default:
		if !domain.ArticleStatus(status).Valid() {
			return filter, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, status)
		}
		filter.Status = domain.ArticleStatus(status)
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > p.cfg.MaxLimit {
			return filter, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidFilter, p.cfg.MaxLimit)
		}
		filter.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidFilter)
		}
		filter.Offset = offset
	}

	return filter, nil
}

// Generate returns the document for filter, from cache when fresh.
func (p *Publisher) Generate(ctx context.Context, filter domain.ArticleFilter) (*Document, error) {
	if filter.Limit <= 0 {
		filter.Limit = p.cfg.DefaultLimit
	}
	if filter.Limit > p.cfg.MaxLimit {
		filter.Limit = p.cfg.MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	key := cacheKey(filter)
	body, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.log.Warn("RSS cache read failed, regenerating",
			logger.String("cache_key", key),
			logger.Error(err),
		)
	}
	p.metrics.CacheLookup(ok)
	if ok {
		return &Document{Body: body, ETag: ETag(body), CacheHit: true}, nil
	}

	articles, err := p.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	body, err = render(p.channel(filter), articles)
	if err != nil {
		return nil, err
	}

	if setErr := p.cache.Set(ctx, key, body, p.cfg.CacheTTL); setErr != nil {
		p.log.Warn("RSS cache write failed",
			logger.String("cache_key", key),
			logger.Error(setErr),
		)
	}

	p.log.Debug("RSS document generated",
		logger.String("cache_key", key),
		logger.Int("items", len(articles)),
	)
	return &Document{Body: body, ETag: ETag(body)}, nil
}

func (p *Publisher) channel(filter domain.ArticleFilter) channelInfo {
	ch := channelInfo{
		Title:       p.cfg.Title,
		Link:        p.cfg.BaseURL,
		Description: p.cfg.Description,
		TTL:         p.cfg.CacheTTL,
		BuiltAt:     p.now(),
	}
	if filter.Topic != "" {
		ch.Title = p.cfg.Title + ": " + filter.Topic
		ch.Description = fmt.Sprintf("%s about %s", p.cfg.Description, filter.Topic)
		ch.Link = p.cfg.BaseURL + "/rss?topic=" + url.QueryEscape(filter.Topic)
	}
	return ch
}

// ETag is a strong validator derived from the document bytes.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:etagPrefixLength]) + `"`
}

func cacheKey(f domain.ArticleFilter) string {
	v := url.Values{}
	v.Set("topic", f.Topic)
	v.Set("feed_id", f.FeedID)
	v.Set("status", string(f.Status))
	v.Set("limit", strconv.Itoa(f.Limit))
	v.Set("offset", strconv.Itoa(f.Offset))
	return v.Encode()
}
