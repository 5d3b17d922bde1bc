package ingest_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/internal/aggregator"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type feedStore struct {
	mu            sync.Mutex
	feeds         map[string]*domain.Feed
	lastProcessed map[string]time.Time
}

func newFeedStore(feeds ...*domain.Feed) *feedStore {
	s := &feedStore{feeds: make(map[string]*domain.Feed), lastProcessed: make(map[string]time.Time)}
	for _, f := range feeds {
		s.feeds[f.ID] = f
	}
	return s
}

func (s *feedStore) FindEnabled(context.Context) ([]*domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Feed
	for _, f := range s.feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

func (s *feedStore) FindByID(_ context.Context, id string) (*domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

func (s *feedStore) UpdateLastProcessedAt(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProcessed[id] = at
	return nil
}

// articleStore enforces final URL uniqueness like the database does.
type articleStore struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      int
	articles map[string]*domain.Article
	// createDuplicate makes the next Create report a uniqueness violation.
	createDuplicate bool
}

func newArticleStore(now func() time.Time) *articleStore {
	return &articleStore{now: now, articles: make(map[string]*domain.Article)}
}

func (s *articleStore) FindByFinalURL(_ context.Context, finalURL string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.articles {
		if a.FinalURL != nil && *a.FinalURL == finalURL {
			c := *a
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *articleStore) FindBySourceLink(_ context.Context, link string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.articles {
		if a.SourceLink == link {
			c := *a
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *articleStore) FindByID(_ context.Context, id string) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *articleStore) Create(_ context.Context, article *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createDuplicate {
		s.createDuplicate = false
		return domain.ErrDuplicate
	}
	if article.FinalURL != nil && s.hasFinalURLLocked(*article.FinalURL, "") {
		return domain.ErrDuplicate
	}

	s.seq++
	article.ID = "art-" + strconv.Itoa(s.seq)
	article.CreatedAt = s.now()
	article.UpdatedAt = article.CreatedAt
	c := *article
	s.articles[article.ID] = &c
	return nil
}

func (s *articleStore) Update(_ context.Context, id string, u domain.ArticleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.FinalURL != nil {
		if s.hasFinalURLLocked(*u.FinalURL, id) {
			return domain.ErrDuplicate
		}
		a.FinalURL = u.FinalURL
	}
	a.Status = u.Status
	a.RetryCount = u.RetryCount
	a.NextRetryAt = u.NextRetryAt
	a.LastError = u.LastError
	if u.ProcessedAt != nil {
		a.ProcessedAt = u.ProcessedAt
	}
	if u.Metadata != nil {
		a.ArticleMetadata = *u.Metadata
	}
	a.UpdatedAt = s.now()
	return nil
}

func (s *articleStore) FindReadyForRetry(_ context.Context, limit int) ([]*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []*domain.Article
	for _, a := range s.articles {
		if a.Status == domain.ArticleStatusFailed && a.RetryCount < 3 &&
			a.NextRetryAt != nil && !a.NextRetryAt.After(now) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *articleStore) hasFinalURLLocked(finalURL, exceptID string) bool {
	for id, a := range s.articles {
		if id != exceptID && a.FinalURL != nil && *a.FinalURL == finalURL {
			return true
		}
	}
	return false
}

func (s *articleStore) all() []domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type feedReader struct {
	entries map[string][]aggregator.Entry
	errs    map[string]error
}

func (r *feedReader) Read(_ context.Context, feedURL string, _ int) ([]aggregator.Entry, error) {
	if err := r.errs[feedURL]; err != nil {
		return nil, err
	}
	return r.entries[feedURL], nil
}

type resolver struct {
	mu    sync.Mutex
	urls  map[string]string
	errs  map[string]error
	calls int
}

func (r *resolver) Resolve(_ context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if err := r.errs[token]; err != nil {
		return "", err
	}
	u, ok := r.urls[token]
	if !ok {
		return "", failure.Permanent(failure.KindProtocol, errors.New("unknown token"), "")
	}
	return u, nil
}

func (r *resolver) setErr(token string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.errs, token)
		return
	}
	r.errs[token] = err
}

type validator struct {
	blocked map[string]bool
}

func (v *validator) Validate(_ context.Context, rawURL string) error {
	if v.blocked[rawURL] {
		return failure.Permanent(failure.KindSSRFBlocked, errors.New("private address"), rawURL)
	}
	return nil
}

type fetcher struct {
	mu    sync.Mutex
	errs  map[string]error
	calls map[string]int
}

func newFetcher() *fetcher {
	return &fetcher{errs: make(map[string]error), calls: make(map[string]int)}
}

func (f *fetcher) Fetch(_ context.Context, pageURL string) (*domain.ArticleMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[pageURL]++
	if err := f.errs[pageURL]; err != nil {
		return nil, err
	}
	return &domain.ArticleMetadata{
		OGTitle:        "Title for " + pageURL,
		ArticleContent: "body text for the article",
		WordCount:      5,
		Categories:     domain.Categories{},
	}, nil
}

func (f *fetcher) setErr(pageURL string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, pageURL)
		return
	}
	f.errs[pageURL] = err
}

func (f *fetcher) count(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageURL]
}

type harness struct {
	clock     *clock
	feeds     *feedStore
	articles  *articleStore
	reader    *feedReader
	resolver  *resolver
	validator *validator
	fetcher   *fetcher
	orch      *ingest.Orchestrator
}

const (
	feedURL  = "https://news.google.com/rss/search?q=quantum"
	feedURL2 = "https://news.google.com/rss/search?q=fusion"
)

func entry(token string) aggregator.Entry {
	return aggregator.Entry{
		Link:       "https://news.google.com/rss/articles/" + token,
		Token:      token,
		Title:      "Source title " + token,
		SourceName: "Wire",
	}
}

func newHarness() *harness {
	c := newClock()
	h := &harness{
		clock: c,
		feeds: newFeedStore(
			&domain.Feed{ID: "feed-1", Topic: "quantum", URL: feedURL, ResultLimit: 10, Enabled: true},
			&domain.Feed{ID: "feed-2", Topic: "fusion", URL: feedURL2, ResultLimit: 10, Enabled: true},
			&domain.Feed{ID: "feed-off", Topic: "disabled", URL: "https://example.test/off", Enabled: false},
		),
		articles: newArticleStore(c.Now),
		reader: &feedReader{
			entries: map[string][]aggregator.Entry{},
			errs:    map[string]error{},
		},
		resolver: &resolver{
			urls: map[string]string{
				"tok-a": "https://publisher.test/a",
				"tok-b": "https://publisher.test/b",
				"tok-c": "https://publisher.test/c",
			},
			errs: map[string]error{},
		},
		validator: &validator{blocked: map[string]bool{}},
		fetcher:   newFetcher(),
	}

	h.orch = ingest.New(ingest.Config{}, ingest.Deps{
		Feeds:     h.feeds,
		Articles:  h.articles,
		Reader:    h.reader,
		Resolver:  h.resolver,
		Validator: h.validator,
		Fetcher:   h.fetcher,
	},
		ingest.WithClock(c.Now),
		ingest.WithBackoff(ingest.NewBackoff(3, time.Minute, 10*time.Second, rand.New(rand.NewPCG(7, 7)))),
	)
	return h
}

func transientErr(u string) error {
	return failure.ClassifyHTTPStatus(503, u)
}
