package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/unfurl/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ArticleOutcome(metrics.OutcomeCreated)
	m.ArticleOutcome(metrics.OutcomeCreated)
	m.ArticleOutcome(metrics.OutcomeDuplicate)
	m.Failure("timeout", true)
	m.RetryScheduled()
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.RateLimitRejected()
	m.ObserveDecode(200 * time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues(metrics.OutcomeCreated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues(metrics.OutcomeDuplicate)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("timeout", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RetriesScheduled), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RSSCacheTotal.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RateLimited), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ArticleOutcome(metrics.OutcomeFailed)
		m.Failure("network", true)
		m.RetryScheduled()
		m.FeedRun("ok")
		m.ObserveFetch(time.Second)
		m.CacheLookup(false)
		m.RateLimitRejected()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ArticleOutcome(metrics.OutcomeCreated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `unfurl_articles_total{outcome="created"} 1`)
}
