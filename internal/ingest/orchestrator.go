// Package ingest drives source feed entries through decode, dedup, URL
// validation, fetch and persistence, and owns the per-article retry state machine.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/admission"
	"github.com/jonesrussell/north-cloud/unfurl/internal/aggregator"
	"github.com/jonesrussell/north-cloud/unfurl/internal/decoder"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
	"github.com/jonesrussell/north-cloud/unfurl/internal/metrics"
)

const (
	TracerName            = "github.com/jonesrussell/north-cloud/unfurl/ingest"
	DefaultRetryBatchSize = 50
	maxLastErrorLength    = 1000
)

var (
	// ErrFeedDisabled is returned when a manual run targets a disabled feed.
	ErrFeedDisabled = errors.New("feed is disabled")
	// ErrNotRetryable is returned when a manual retry targets an article that already succeeded.
	ErrNotRetryable = errors.New("article already processed successfully")
)

// Config configures the retry policy and the manual-run cooldown.
type Config struct {
	MaxAttempts    int           `env:"INGEST_MAX_ATTEMPTS"     yaml:"max_attempts"`
	BaseDelay      time.Duration `env:"INGEST_BASE_DELAY"       yaml:"base_delay"`
	MaxJitter      time.Duration `env:"INGEST_MAX_JITTER"       yaml:"max_jitter"`
	RetryBatchSize int           `env:"INGEST_RETRY_BATCH_SIZE" yaml:"retry_batch_size"`
	Cooldown       time.Duration `env:"INGEST_COOLDOWN"         yaml:"cooldown"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxJitter <= 0 {
		c.MaxJitter = DefaultMaxJitter
	}
	if c.RetryBatchSize <= 0 {
		c.RetryBatchSize = DefaultRetryBatchSize
	}
	if c.Cooldown <= 0 {
		c.Cooldown = admission.DefaultCooldown
	}
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Feeds     FeedStore
	Articles  ArticleStore
	Reader    FeedReader
	Resolver  Resolver
	Validator Validator
	Fetcher   Fetcher
	Logger    logger.Logger
	Metrics   *metrics.Metrics
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithBackoff replaces the backoff built from Config.
func WithBackoff(b *Backoff) Option {
	return func(o *Orchestrator) { o.backoff = b }
}

// WithCooldown replaces the cooldown built from Config.
func WithCooldown(c *admission.Cooldown) Option {
	return func(o *Orchestrator) { o.cooldown = c }
}

// WithRateWindow sets the per-key request window used by AllowRequest.
func WithRateWindow(w *admission.SlidingWindow) Option {
	return func(o *Orchestrator) { o.window = w }
}

// Orchestrator processes feeds one article at a time. Different feeds may be
// processed concurrently by different callers.
type Orchestrator struct {
	feeds     FeedStore
	articles  ArticleStore
	reader    FeedReader
	resolver  Resolver
	validator Validator
	fetcher   Fetcher

	backoff        *Backoff
	cooldown       *admission.Cooldown
	window         *admission.SlidingWindow
	retryBatchSize int

	log     logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps, opts ...Option) *Orchestrator {
	cfg.SetDefaults()

	o := &Orchestrator{
		feeds:          deps.Feeds,
		articles:       deps.Articles,
		reader:         deps.Reader,
		resolver:       deps.Resolver,
		validator:      deps.Validator,
		fetcher:        deps.Fetcher,
		retryBatchSize: cfg.RetryBatchSize,
		log:            deps.Logger,
		metrics:        deps.Metrics,
		tracer:         otel.Tracer(TracerName),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.backoff == nil {
		o.backoff = NewBackoff(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxJitter, nil)
	}
	if o.cooldown == nil {
		o.cooldown = admission.NewCooldown(cfg.Cooldown, o.now)
	}
	if o.window == nil {
		o.window = admission.NewSlidingWindow(admission.DefaultWindowLimit, admission.DefaultWindowPeriod, o.now)
	}
	return o
}

// CanProcessNow reports whether feedID's manual-run cooldown has elapsed.
func (o *Orchestrator) CanProcessNow(feedID string) bool {
	return o.cooldown.CanProcessNow(feedID)
}

// SetLastProcessTime starts feedID's cooldown.
func (o *Orchestrator) SetLastProcessTime(feedID string) {
	o.cooldown.SetLastProcessTime(feedID)
}

// TryStartFeed checks and starts feedID's cooldown atomically.
func (o *Orchestrator) TryStartFeed(feedID string) (bool, time.Duration) {
	return o.cooldown.TryAcquire(feedID)
}

// AllowRequest admits one request for key against the sliding window.
func (o *Orchestrator) AllowRequest(key string) (bool, time.Duration) {
	if o.window.Allow(key) {
		return true, 0
	}
	o.metrics.RateLimitRejected()
	return false, o.window.RetryAfter(key)
}

// ProcessAll runs every enabled feed. A failing feed is logged and counted,
// and the remaining feeds still run.
func (o *Orchestrator) ProcessAll(ctx context.Context) (Summary, error) {
	feeds, err := o.feeds.FindEnabled(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("find enabled feeds: %w", err)
	}

	var total Summary
	for _, feed := range feeds {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return total, ctxErr
		}

		s, runErr := o.runFeed(ctx, feed)
		total.merge(s)
		if runErr != nil {
			total.FeedsFailed++
			o.log.Error("Feed run failed",
				logger.FeedID(feed.ID),
				logger.String("topic", feed.Topic),
				logger.Error(runErr),
			)
		}
	}

	o.log.Info("Processing run complete",
		logger.Int("feeds_processed", total.FeedsProcessed),
		logger.Int("feeds_failed", total.FeedsFailed),
		logger.Int("articles_created", total.ArticlesCreated),
		logger.Int("articles_failed", total.ArticlesFailed),
		logger.Int("articles_duplicate", total.ArticlesDuplicate),
	)
	return total, nil
}

// ProcessFeed runs a single enabled feed. Unknown and disabled feeds release
// any cooldown started for them.
func (o *Orchestrator) ProcessFeed(ctx context.Context, feedID string) (Summary, error) {
	feed, err := o.feeds.FindByID(ctx, feedID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.cooldown.Release(feedID)
		}
		return Summary{}, fmt.Errorf("find feed %s: %w", feedID, err)
	}
	if !feed.Enabled {
		o.cooldown.Release(feedID)
		return Summary{}, ErrFeedDisabled
	}
	return o.runFeed(ctx, feed)
}

// ProcessReadyRetries reprocesses failed articles whose retry time has come, oldest first.
func (o *Orchestrator) ProcessReadyRetries(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = o.retryBatchSize
	}

	due, err := o.articles.FindReadyForRetry(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("find ready retries: %w", err)
	}

	var s Summary
	for _, article := range due {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s, ctxErr
		}
		s.add(o.processRetry(ctx, article, article.RetryCount))
	}

	if len(due) > 0 {
		o.log.Info("Retries processed",
			logger.Int("due", len(due)),
			logger.Int("succeeded", s.ArticlesCreated),
			logger.Int("failed", s.ArticlesFailed),
			logger.Int("duplicate", s.ArticlesDuplicate),
		)
	}
	return s, nil
}

// RetryArticle resets an article's attempt count and processes it immediately.
// Success is terminal, so successful articles are refused with ErrNotRetryable.
func (o *Orchestrator) RetryArticle(ctx context.Context, id string) (Outcome, error) {
	article, err := o.articles.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("find article %s: %w", id, err)
	}
	if article.Status == domain.ArticleStatusSuccess {
		return "", ErrNotRetryable
	}
	article.RetryCount = 0
	return o.processRetry(ctx, article, 0), nil
}

func (o *Orchestrator) runFeed(ctx context.Context, feed *domain.Feed) (Summary, error) {
	ctx, span := o.tracer.Start(ctx, "ingest.feed", trace.WithAttributes(
		attribute.String("feed.id", feed.ID),
		attribute.String("feed.topic", feed.Topic),
	))
	defer span.End()

	log := o.log.With(logger.FeedID(feed.ID), logger.String("topic", feed.Topic))

	entries, err := o.reader.Read(ctx, feed.URL, feed.ResultLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read feed")
		o.metrics.FeedRun("error")
		return Summary{}, fmt.Errorf("read feed %s: %w", feed.Topic, err)
	}

	s := Summary{FeedsProcessed: 1}
	for _, entry := range entries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "canceled")
			return s, ctxErr
		}
		s.add(o.processEntry(ctx, log, feed, entry))
	}

	if updateErr := o.feeds.UpdateLastProcessedAt(ctx, feed.ID, o.now()); updateErr != nil {
		log.Warn("Failed to record feed run time", logger.Error(updateErr))
	}

	span.SetAttributes(
		attribute.Int("articles.created", s.ArticlesCreated),
		attribute.Int("articles.failed", s.ArticlesFailed),
		attribute.Int("articles.duplicate", s.ArticlesDuplicate),
	)
	o.metrics.FeedRun("ok")
	log.Info("Feed processed",
		logger.Int("entries", len(entries)),
		logger.Int("created", s.ArticlesCreated),
		logger.Int("failed", s.ArticlesFailed),
		logger.Int("duplicate", s.ArticlesDuplicate),
	)
	return s, nil
}

// attemptResult is the outcome of the network half of an attempt.
type attemptResult struct {
	finalURL    string
	meta        *domain.ArticleMetadata
	duplicateOf *domain.Article
	err         error
	// storeErr aborts the attempt without touching the record.
	storeErr error
}

func (o *Orchestrator) processEntry(ctx context.Context, log logger.Logger, feed *domain.Feed, entry aggregator.Entry) Outcome {
	ctx, span := o.tracer.Start(ctx, "ingest.article", trace.WithAttributes(
		attribute.String("feed.id", feed.ID),
		attribute.String("article.source_link", entry.Link),
	))
	defer span.End()

	log = log.With(logger.String("source_link", entry.Link))

	_, err := o.articles.FindBySourceLink(ctx, entry.Link)
	switch {
	case err == nil:
		log.Debug("Entry already recorded")
		return o.finish(span, OutcomeDuplicate, nil)
	case !errors.Is(err, domain.ErrNotFound):
		log.Error("Source link lookup failed", logger.Error(err))
		return o.finish(span, OutcomeFailed, err)
	}

	article := &domain.Article{
		FeedID:            feed.ID,
		SourceLink:        entry.Link,
		SourceTitle:       entry.Title,
		SourceDescription: entry.Description,
		SourceName:        entry.SourceName,
		SourcePublishedAt: entry.PublishedAt,
		Status:            domain.ArticleStatusPending,
	}

	res := o.attempt(ctx, article, entry.Token)
	switch {
	case res.storeErr != nil:
		log.Error("Article lookup failed", logger.Error(res.storeErr))
		return o.finish(span, OutcomeFailed, res.storeErr)
	case res.duplicateOf != nil:
		log.Info("Duplicate article skipped",
			logger.URL(res.finalURL),
			logger.String("existing_id", res.duplicateOf.ID),
		)
		return o.finish(span, OutcomeDuplicate, nil)
	}

	if res.finalURL != "" {
		finalURL := res.finalURL
		article.FinalURL = &finalURL
	}

	outcome := OutcomeCreated
	if res.err == nil {
		now := o.now()
		article.Status = domain.ArticleStatusSuccess
		article.ArticleMetadata = *res.meta
		article.ProcessedAt = &now
	} else {
		update, failOutcome := o.failureUpdate(0, res.err)
		article.Status = update.Status
		article.RetryCount = update.RetryCount
		article.NextRetryAt = update.NextRetryAt
		article.LastError = update.LastError
		outcome = failOutcome
	}

	if createErr := o.articles.Create(ctx, article); createErr != nil {
		if errors.Is(createErr, domain.ErrDuplicate) {
			log.Info("Duplicate article skipped on insert", logger.URL(res.finalURL))
			return o.finish(span, OutcomeDuplicate, nil)
		}
		log.Error("Failed to store article", logger.Error(createErr))
		return o.finish(span, OutcomeFailed, createErr)
	}

	o.logOutcome(log.With(logger.ArticleID(article.ID)), outcome, res, article.NextRetryAt)
	return o.finish(span, outcome, res.err)
}

func (o *Orchestrator) processRetry(ctx context.Context, article *domain.Article, prevAttempts int) Outcome {
	ctx, span := o.tracer.Start(ctx, "ingest.retry", trace.WithAttributes(
		attribute.String("feed.id", article.FeedID),
		attribute.String("article.id", article.ID),
		attribute.Int("article.retry_count", prevAttempts),
	))
	defer span.End()

	log := o.log.With(logger.ArticleID(article.ID), logger.FeedID(article.FeedID))

	token := ""
	if article.FinalURL == nil {
		token, _ = decoder.TokenFromLink(article.SourceLink)
	}

	res := o.attempt(ctx, article, token)
	if res.storeErr != nil {
		log.Error("Article lookup failed", logger.Error(res.storeErr))
		return o.finish(span, OutcomeFailed, res.storeErr)
	}
	if res.duplicateOf != nil {
		return o.markDuplicate(ctx, span, log, article, prevAttempts, res.duplicateOf.ID)
	}

	var update domain.ArticleUpdate
	outcome := OutcomeCreated
	if res.finalURL != "" && article.FinalURL == nil {
		finalURL := res.finalURL
		update.FinalURL = &finalURL
	}

	if res.err == nil {
		now := o.now()
		update.Status = domain.ArticleStatusSuccess
		update.RetryCount = prevAttempts
		update.ProcessedAt = &now
		update.Metadata = res.meta
	} else {
		failUpdate, failOutcome := o.failureUpdate(prevAttempts, res.err)
		failUpdate.FinalURL = update.FinalURL
		update = failUpdate
		outcome = failOutcome
	}

	if err := o.articles.Update(ctx, article.ID, update); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			existingID := "unknown"
			if existing, findErr := o.articles.FindByFinalURL(ctx, res.finalURL); findErr == nil {
				existingID = existing.ID
			}
			return o.markDuplicate(ctx, span, log, article, prevAttempts, existingID)
		}
		log.Error("Failed to update article", logger.Error(err))
		return o.finish(span, OutcomeFailed, err)
	}

	o.logOutcome(log, outcome, res, update.NextRetryAt)
	return o.finish(span, outcome, res.err)
}

// attempt resolves, dedups, validates and fetches. It never writes.
func (o *Orchestrator) attempt(ctx context.Context, article *domain.Article, token string) attemptResult {
	var res attemptResult

	res.finalURL = article.URL()
	if res.finalURL == "" {
		if token == "" {
			res.finalURL = article.SourceLink
		} else {
			start := o.now()
			resolved, err := o.resolver.Resolve(ctx, token)
			o.metrics.ObserveDecode(o.now().Sub(start))
			if err != nil {
				res.err = err
				return res
			}
			res.finalURL = resolved
		}
	}

	existing, err := o.articles.FindByFinalURL(ctx, res.finalURL)
	switch {
	case err == nil && existing.ID != article.ID:
		res.duplicateOf = existing
		return res
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		res.storeErr = err
		return res
	}

	if err := o.validator.Validate(ctx, res.finalURL); err != nil {
		res.err = err
		return res
	}

	start := o.now()
	meta, err := o.fetcher.Fetch(ctx, res.finalURL)
	o.metrics.ObserveFetch(o.now().Sub(start))
	if err != nil {
		res.err = err
		return res
	}
	res.meta = meta
	return res
}

// failureUpdate records failed attempt prevAttempts+1 and schedules the next
// one when the failure is retryable and attempts remain.
func (o *Orchestrator) failureUpdate(prevAttempts int, err error) (domain.ArticleUpdate, Outcome) {
	f := failure.From(err)
	attempt := prevAttempts + 1
	lastError := truncate(err.Error(), maxLastErrorLength)

	update := domain.ArticleUpdate{
		Status:     domain.ArticleStatusFailed,
		RetryCount: attempt,
		LastError:  &lastError,
	}
	o.metrics.Failure(string(f.Kind), f.Retryable)

	if f.Retryable {
		if delay, ok := o.backoff.Next(attempt); ok {
			next := o.now().Add(delay)
			update.NextRetryAt = &next
			o.metrics.RetryScheduled()
			return update, OutcomeRetrying
		}
	}
	return update, OutcomeFailed
}

func (o *Orchestrator) markDuplicate(
	ctx context.Context,
	span trace.Span,
	log logger.Logger,
	article *domain.Article,
	prevAttempts int,
	existingID string,
) Outcome {
	msg := "duplicate of article " + existingID
	update := domain.ArticleUpdate{
		Status:     domain.ArticleStatusFailed,
		RetryCount: prevAttempts,
		LastError:  &msg,
	}
	if err := o.articles.Update(ctx, article.ID, update); err != nil {
		log.Error("Failed to mark duplicate", logger.Error(err))
		return o.finish(span, OutcomeFailed, err)
	}
	log.Info("Retried article is a duplicate", logger.String("existing_id", existingID))
	return o.finish(span, OutcomeDuplicate, nil)
}

func (o *Orchestrator) logOutcome(log logger.Logger, outcome Outcome, res attemptResult, nextRetryAt *time.Time) {
	switch outcome {
	case OutcomeCreated:
		log.Info("Article processed", logger.URL(res.finalURL), logger.Int("word_count", res.meta.WordCount))
	case OutcomeRetrying:
		f := failure.From(res.err)
		log.Warn("Article attempt failed, retry scheduled",
			logger.URL(res.finalURL),
			logger.String("kind", string(f.Kind)),
			logger.Time("next_retry_at", *nextRetryAt),
			logger.Error(res.err),
		)
	default:
		f := failure.From(res.err)
		log.Error("Article failed",
			logger.URL(res.finalURL),
			logger.String("kind", string(f.Kind)),
			logger.Bool("retryable", f.Retryable),
			logger.Error(res.err),
		)
	}
}

func (o *Orchestrator) finish(span trace.Span, outcome Outcome, err error) Outcome {
	span.SetAttributes(attribute.String("article.outcome", string(outcome)))
	if err != nil {
		span.SetAttributes(attribute.String("failure.kind", string(failure.From(err).Kind)))
		if outcome == OutcomeFailed {
			span.SetStatus(codes.Error, string(failure.From(err).Kind))
		}
	}
	o.metrics.ArticleOutcome(string(outcome))
	return outcome
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
