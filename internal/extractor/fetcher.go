// Package extractor fetches validated article URLs and derives metadata and
// body text from the returned HTML.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	infrahttp "github.com/jonesrussell/north-cloud/unfurl/infrastructure/http"
	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRedirects   = 5
	DefaultMaxBodyBytes   = 5 << 20
	DefaultUserAgent      = "Mozilla/5.0 (compatible; Unfurl/1.0; +https://github.com/jonesrussell/north-cloud)"
)

// ErrNoContent is returned when a page yields neither a title nor body text.
var ErrNoContent = errors.New("no parseable content")

// FetchError is a failed fetch or extraction. Retryability lives on the wrapped failure.
type FetchError struct {
	URL     string
	Failure *failure.Error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Failure)
}

func (e *FetchError) Unwrap() error { return e.Failure }

// Config configures an Extractor.
type Config struct {
	ConnectTimeout      time.Duration `env:"EXTRACTOR_CONNECT_TIMEOUT"      yaml:"connect_timeout"`
	Timeout             time.Duration `env:"EXTRACTOR_TIMEOUT"              yaml:"timeout"`
	MaxRedirects        int           `env:"EXTRACTOR_MAX_REDIRECTS"        yaml:"max_redirects"`
	MaxBodyBytes        int64         `env:"EXTRACTOR_MAX_BODY_BYTES"       yaml:"max_body_bytes"`
	UserAgent           string        `env:"EXTRACTOR_USER_AGENT"           yaml:"user_agent"`
	ReadabilityFallback bool          `env:"EXTRACTOR_READABILITY_FALLBACK" yaml:"readability_fallback"`
}

// SetDefaults fills zero values and clamps timeouts to their ceilings.
func (c *Config) SetDefaults() {
	if c.ConnectTimeout <= 0 || c.ConnectTimeout > DefaultConnectTimeout {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Timeout <= 0 || c.Timeout > DefaultTimeout {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRedirects <= 0 || c.MaxRedirects > DefaultMaxRedirects {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// RedirectPolicy is an http.Client CheckRedirect function.
type RedirectPolicy func(req *http.Request, via []*http.Request) error

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures an Extractor.
type Option func(*options)

type options struct {
	redirectPolicy RedirectPolicy
	dial           DialFunc
	client         *http.Client
}

// WithRedirectPolicy validates every redirect hop before it is followed.
func WithRedirectPolicy(policy RedirectPolicy) Option {
	return func(o *options) { o.redirectPolicy = policy }
}

// WithDialContext replaces the transport dialer.
func WithDialContext(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// WithHTTPClient uses client as-is, ignoring the timeout and redirect settings.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// Extractor fetches one URL per call and extracts article metadata.
type Extractor struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

// New creates an Extractor.
func New(cfg Config, log logger.Logger, opts ...Option) *Extractor {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		client = infrahttp.NewClient(&infrahttp.ClientConfig{
			Timeout:        cfg.Timeout,
			ConnectTimeout: cfg.ConnectTimeout,
			DialContext:    o.dial,
			CheckRedirect:  o.redirectPolicy,
		})
	}

	return &Extractor{cfg: cfg, client: client, log: log}
}

// Fetch downloads pageURL and extracts its metadata. The caller is expected to
// have validated pageURL; redirect hops are checked by the configured policy.
func (e *Extractor) Fetch(ctx context.Context, pageURL string) (*domain.ArticleMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, e.fail(pageURL, failure.Permanent(failure.KindInvalidURL, err, pageURL))
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.fail(pageURL, classifyDoError(err, pageURL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, e.fail(pageURL, failure.ClassifyHTTPStatus(resp.StatusCode, pageURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		return nil, e.fail(pageURL, failure.ClassifyNetworkError(err, pageURL))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, e.fail(pageURL, failure.Permanent(failure.KindUnparsable, err, pageURL))
	}

	meta := Extract(doc)
	if meta.ArticleContent == "" && e.cfg.ReadabilityFallback {
		applyReadability(&meta, body, resp.Request.URL)
	}

	if meta.OGTitle == "" && meta.PageTitle == "" && meta.ArticleContent == "" {
		return nil, e.fail(pageURL, failure.Permanent(failure.KindUnparsable, ErrNoContent, pageURL))
	}

	e.log.Debug("Article extracted",
		logger.URL(pageURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("word_count", meta.WordCount),
		logger.Duration("duration", time.Since(start)),
	)
	return &meta, nil
}

func (e *Extractor) fail(pageURL string, f *failure.Error) *FetchError {
	return &FetchError{URL: pageURL, Failure: f}
}

// classifyDoError keeps failures raised by the redirect policy (SSRF rejections,
// hop limit) and treats everything else as a transport failure.
func classifyDoError(err error, pageURL string) *failure.Error {
	var f *failure.Error
	if errors.As(err, &f) {
		return f
	}
	return failure.ClassifyNetworkError(err, pageURL)
}
