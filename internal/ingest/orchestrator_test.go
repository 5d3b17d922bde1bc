package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/unfurl/internal/admission"
	"github.com/jonesrussell/north-cloud/unfurl/internal/aggregator"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
)

func TestProcessFeed_CreatesArticles(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a"), entry("tok-b")}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, ingest.Summary{
		FeedsProcessed:    1,
		ArticlesProcessed: 2,
		ArticlesCreated:   2,
	}, s)

	articles := h.articles.all()
	require.Len(t, articles, 2)
	for _, a := range articles {
		assert.Equal(t, domain.ArticleStatusSuccess, a.Status)
		assert.Equal(t, "feed-1", a.FeedID)
		assert.NotNil(t, a.ProcessedAt)
		assert.Equal(t, "Title for "+a.URL(), a.OGTitle)
		assert.Equal(t, "Wire", a.SourceName)
		assert.Nil(t, a.NextRetryAt)
	}
	assert.Equal(t, h.clock.Now(), h.feeds.lastProcessed["feed-1"])
}

func TestProcessFeed_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a"), entry("tok-b")}

	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)
	decodes := h.resolver.calls

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, 0, s.ArticlesCreated)
	assert.Equal(t, 2, s.ArticlesDuplicate)
	assert.Len(t, h.articles.all(), 2)
	assert.Equal(t, decodes, h.resolver.calls, "recorded links are not decoded again")
}

func TestProcessFeed_ReMintedTokenDedupsOnFinalURL(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.resolver.urls["tok-a-2"] = "https://publisher.test/a"
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a"), entry("tok-a-2")}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ArticlesCreated)
	assert.Equal(t, 1, s.ArticlesDuplicate)
	assert.Len(t, h.articles.all(), 1)
	assert.Equal(t, 1, h.fetcher.count("https://publisher.test/a"), "duplicate skipped before fetch")
}

func TestProcessFeed_DirectLinkSkipsDecode(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reader.entries[feedURL] = []aggregator.Entry{{Link: "https://publisher.test/direct", Title: "Direct"}}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ArticlesCreated)
	assert.Equal(t, 0, h.resolver.calls)
	assert.Equal(t, "https://publisher.test/direct", h.articles.all()[0].URL())
}

func TestProcessFeed_TransientDecodeSchedulesRetry(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.resolver.setErr("tok-a", failure.ClassifyHTTPStatus(429, "decoder"))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ArticlesFailed)
	assert.Equal(t, 1, s.RetriesScheduled)

	a := h.articles.all()[0]
	assert.Equal(t, domain.ArticleStatusFailed, a.Status)
	assert.Equal(t, 1, a.RetryCount)
	assert.Nil(t, a.FinalURL)
	require.NotNil(t, a.NextRetryAt)
	delay := a.NextRetryAt.Sub(h.clock.Now())
	assert.GreaterOrEqual(t, delay, 60*time.Second)
	assert.Less(t, delay, 70*time.Second)
	require.NotNil(t, a.LastError)
	assert.Contains(t, *a.LastError, "rate_limited")
}

func TestProcessFeed_SSRFRejectionIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.validator.blocked["https://publisher.test/a"] = true
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a"), entry("tok-b")}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ArticlesFailed)
	assert.Equal(t, 1, s.ArticlesCreated, "one failure does not abort the run")
	assert.Zero(t, s.RetriesScheduled)
	assert.Zero(t, h.fetcher.count("https://publisher.test/a"))

	blocked, err := h.articles.FindByFinalURL(context.Background(), "https://publisher.test/a")
	require.NoError(t, err)
	assert.Equal(t, domain.ArticleStatusFailed, blocked.Status)
	assert.Nil(t, blocked.NextRetryAt)
}

func TestProcessFeed_PermanentFetchFailureIsTerminal(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.fetcher.setErr("https://publisher.test/a", failure.ClassifyHTTPStatus(404, "https://publisher.test/a"))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	a := h.articles.all()[0]
	assert.Equal(t, domain.ArticleStatusFailed, a.Status)
	assert.Equal(t, 1, a.RetryCount)
	assert.Nil(t, a.NextRetryAt)
}

func TestProcessFeed_ConcurrentInsertIsDuplicate(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.articles.createDuplicate = true
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	s, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ArticlesDuplicate)
	assert.Zero(t, s.ArticlesFailed)
	assert.Empty(t, h.articles.all())
}

func TestProcessReadyRetries_ExhaustsAfterThreeAttempts(t *testing.T) {
	t.Parallel()

	h := newHarness()
	target := "https://publisher.test/a"
	h.fetcher.setErr(target, transientErr(target))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	a := h.articles.all()[0]
	require.Equal(t, 1, a.RetryCount)
	require.NotNil(t, a.NextRetryAt)

	s, err := h.orch.ProcessReadyRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, s.ArticlesProcessed, "retry not yet due")

	h.clock.Advance(71 * time.Second)
	s, err = h.orch.ProcessReadyRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.RetriesScheduled)

	a = h.articles.all()[0]
	assert.Equal(t, 2, a.RetryCount)
	require.NotNil(t, a.NextRetryAt)
	delay := a.NextRetryAt.Sub(h.clock.Now())
	assert.GreaterOrEqual(t, delay, 120*time.Second)
	assert.Less(t, delay, 130*time.Second)

	h.clock.Advance(131 * time.Second)
	s, err = h.orch.ProcessReadyRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ArticlesFailed)
	assert.Zero(t, s.RetriesScheduled)

	a = h.articles.all()[0]
	assert.Equal(t, domain.ArticleStatusFailed, a.Status)
	assert.Equal(t, 3, a.RetryCount)
	assert.Nil(t, a.NextRetryAt)
	require.NotNil(t, a.LastError)
	assert.Contains(t, *a.LastError, "503")

	h.clock.Advance(24 * time.Hour)
	s, err = h.orch.ProcessReadyRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, s.ArticlesProcessed)
	assert.Equal(t, 3, h.fetcher.count(target))
}

func TestProcessReadyRetries_RecoversAfterTransientDecode(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.resolver.setErr("tok-a", failure.ClassifyNetworkError(errors.New("connection reset"), "decoder"))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	h.resolver.setErr("tok-a", nil)
	h.clock.Advance(2 * time.Minute)

	s, err := h.orch.ProcessReadyRetries(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ArticlesCreated)

	a := h.articles.all()[0]
	assert.Equal(t, domain.ArticleStatusSuccess, a.Status)
	assert.Equal(t, "https://publisher.test/a", a.URL())
	assert.Nil(t, a.NextRetryAt)
	assert.Nil(t, a.LastError)
	assert.Equal(t, "Title for https://publisher.test/a", a.OGTitle)
}

func TestProcessReadyRetries_DuplicateDiscoveredOnRetry(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.resolver.setErr("tok-a", transientErr("decoder"))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}
	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	h.resolver.urls["tok-a-2"] = "https://publisher.test/a"
	h.reader.entries[feedURL2] = []aggregator.Entry{entry("tok-a-2")}
	_, err = h.orch.ProcessFeed(context.Background(), "feed-2")
	require.NoError(t, err)
	winner, err := h.articles.FindByFinalURL(context.Background(), "https://publisher.test/a")
	require.NoError(t, err)

	h.resolver.setErr("tok-a", nil)
	h.clock.Advance(2 * time.Minute)

	s, err := h.orch.ProcessReadyRetries(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ArticlesDuplicate)

	for _, a := range h.articles.all() {
		if a.ID == winner.ID {
			continue
		}
		assert.Equal(t, domain.ArticleStatusFailed, a.Status)
		assert.Nil(t, a.NextRetryAt)
		assert.Nil(t, a.FinalURL)
		require.NotNil(t, a.LastError)
		assert.Equal(t, "duplicate of article "+winner.ID, *a.LastError)
	}
}

func TestRetryArticle_ResetsAttempts(t *testing.T) {
	t.Parallel()

	h := newHarness()
	target := "https://publisher.test/a"
	h.fetcher.setErr(target, failure.ClassifyHTTPStatus(403, target))
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}
	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	id := h.articles.all()[0].ID

	outcome, err := h.orch.RetryArticle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeFailed, outcome)
	a, _ := h.articles.FindByID(context.Background(), id)
	assert.Equal(t, 1, a.RetryCount, "manual retry counts from zero")

	h.fetcher.setErr(target, transientErr(target))
	outcome, err = h.orch.RetryArticle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeRetrying, outcome)

	h.fetcher.setErr(target, nil)
	outcome, err = h.orch.RetryArticle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeCreated, outcome)

	a, _ = h.articles.FindByID(context.Background(), id)
	assert.Equal(t, domain.ArticleStatusSuccess, a.Status)

	_, err = h.orch.RetryArticle(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryArticle_RefusesSuccessfulArticle(t *testing.T) {
	t.Parallel()

	h := newHarness()
	target := "https://publisher.test/a"
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}
	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	id := h.articles.all()[0].ID
	h.fetcher.setErr(target, failure.ClassifyHTTPStatus(503, target))

	outcome, err := h.orch.RetryArticle(context.Background(), id)
	require.ErrorIs(t, err, ingest.ErrNotRetryable)
	assert.Empty(t, outcome)

	a, _ := h.articles.FindByID(context.Background(), id)
	assert.Equal(t, domain.ArticleStatusSuccess, a.Status)
	assert.Equal(t, 0, a.RetryCount)
	assert.Nil(t, a.NextRetryAt)
}

func TestProcessAll_FeedFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reader.errs[feedURL2] = failure.ClassifyHTTPStatus(500, feedURL2)
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a"), entry("tok-b"), entry("tok-c")}

	s, err := h.orch.ProcessAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, s.FeedsProcessed)
	assert.Equal(t, 1, s.FeedsFailed)
	assert.Equal(t, 3, s.ArticlesCreated)
}

func TestProcessFeed_Errors(t *testing.T) {
	t.Parallel()

	h := newHarness()

	_, err := h.orch.ProcessFeed(context.Background(), "feed-off")
	require.ErrorIs(t, err, ingest.ErrFeedDisabled)

	_, err = h.orch.ProcessFeed(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_Cooldown(t *testing.T) {
	t.Parallel()

	h := newHarness()

	assert.True(t, h.orch.CanProcessNow("feed-1"))
	h.orch.SetLastProcessTime("feed-1")
	assert.False(t, h.orch.CanProcessNow("feed-1"))

	ok, remaining := h.orch.TryStartFeed("feed-1")
	assert.False(t, ok)
	assert.Equal(t, 5*time.Minute, remaining)

	h.clock.Advance(5 * time.Minute)
	ok, _ = h.orch.TryStartFeed("feed-1")
	assert.True(t, ok)
}

func TestProcessFeed_UnrunnableFeedReleasesCooldown(t *testing.T) {
	t.Parallel()

	h := newHarness()

	for _, tc := range []struct {
		feedID string
		want   error
	}{
		{feedID: "missing-feed", want: domain.ErrNotFound},
		{feedID: "feed-off", want: ingest.ErrFeedDisabled},
	} {
		ok, _ := h.orch.TryStartFeed(tc.feedID)
		require.True(t, ok, tc.feedID)

		_, err := h.orch.ProcessFeed(context.Background(), tc.feedID)
		require.ErrorIs(t, err, tc.want)

		assert.True(t, h.orch.CanProcessNow(tc.feedID), "%s should not hold a cooldown", tc.feedID)
		ok, _ = h.orch.TryStartFeed(tc.feedID)
		assert.True(t, ok, tc.feedID)
	}
}

func TestProcessFeed_SuccessfulRunKeepsCooldown(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.reader.entries[feedURL] = []aggregator.Entry{entry("tok-a")}

	ok, _ := h.orch.TryStartFeed("feed-1")
	require.True(t, ok)
	_, err := h.orch.ProcessFeed(context.Background(), "feed-1")
	require.NoError(t, err)

	ok, remaining := h.orch.TryStartFeed("feed-1")
	assert.False(t, ok)
	assert.Equal(t, 5*time.Minute, remaining)
}

func TestWithCooldown_SharesInjectedCooldown(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cd := admission.NewCooldown(time.Minute, h.clock.Now)
	orch := ingest.New(ingest.Config{Cooldown: time.Hour}, ingest.Deps{
		Feeds:     h.feeds,
		Articles:  h.articles,
		Reader:    h.reader,
		Resolver:  h.resolver,
		Validator: h.validator,
		Fetcher:   h.fetcher,
	},
		ingest.WithClock(h.clock.Now),
		ingest.WithCooldown(cd),
	)

	cd.SetLastProcessTime("feed-1")
	ok, remaining := orch.TryStartFeed("feed-1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, remaining, "the injected interval wins over Config.Cooldown")

	h.clock.Advance(time.Minute)
	ok, _ = orch.TryStartFeed("feed-1")
	require.True(t, ok)
	assert.False(t, cd.CanProcessNow("feed-1"), "starts are recorded on the shared cooldown")
}

func TestOrchestrator_AllowRequest(t *testing.T) {
	t.Parallel()

	h := newHarness()
	for range 60 {
		ok, _ := h.orch.AllowRequest("key-1")
		require.True(t, ok)
	}
	ok, retryAfter := h.orch.AllowRequest("key-1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)

	ok, _ = h.orch.AllowRequest("key-2")
	assert.True(t, ok)
}
