package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/repository"
)

var feedColumns = []string{
	"id", "topic", "url", "result_limit", "enabled", "last_processed_at", "created_at", "updated_at",
}

var articleColumns = []string{
	"id", "feed_id", "source_link", "source_title", "source_description", "source_name",
	"source_published_at", "final_url", "status", "retry_count", "next_retry_at", "last_error",
	"og_title", "og_description", "og_image", "og_url", "og_site_name", "twitter_image",
	"author", "page_title", "article_content", "word_count", "categories",
	"processed_at", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func articleRow(id, finalURL, status string, now time.Time) []driver.Value {
	return []driver.Value{
		id, "feed-1", "https://news.google.com/rss/articles/" + id, "Source title", "", "Wire",
		now, finalURL, status, 0, nil, nil,
		"OG title", "", "", "", "", "",
		"", "", "body", 1, "{quantum,physics}",
		now, now, now,
	}
}

func TestFeedRepository_FindEnabled(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewFeedRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM feeds WHERE enabled = true ORDER BY topic").
		WillReturnRows(sqlmock.NewRows(feedColumns).
			AddRow("f1", "fusion", "https://news.google.com/rss/search?q=fusion", 10, true, nil, now, now).
			AddRow("f2", "quantum", "https://news.google.com/rss/search?q=quantum", 25, true, now, now, now))

	feeds, err := repo.FindEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "fusion", feeds[0].Topic)
	assert.Nil(t, feeds[0].LastProcessedAt)
	assert.Equal(t, 25, feeds[1].ResultLimit)
	require.NotNil(t, feeds[1].LastProcessedAt)

	expectationsMet(t, mock)
}

func TestFeedRepository_FindEnabledEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewFeedRepository(db)

	mock.ExpectQuery("SELECT .+ FROM feeds").WillReturnRows(sqlmock.NewRows(feedColumns))

	feeds, err := repo.FindEnabled(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, feeds)
	assert.Empty(t, feeds)

	expectationsMet(t, mock)
}

func TestFeedRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewFeedRepository(db)

	mock.ExpectQuery("SELECT .+ FROM feeds WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestFeedRepository_UpdateLastProcessedAt(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewFeedRepository(db)
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE feeds SET last_processed_at = \\$2").
		WithArgs("f1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE feeds SET last_processed_at").
		WithArgs("gone", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateLastProcessedAt(context.Background(), "f1", at))
	require.ErrorIs(t, repo.UpdateLastProcessedAt(context.Background(), "gone", at), domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestArticleRepository_FindByFinalURL(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM articles WHERE final_url = \\$1").
		WithArgs("https://pub.test/a").
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow(articleRow("a1", "https://pub.test/a", "success", now)...))

	article, err := repo.FindByFinalURL(context.Background(), "https://pub.test/a")
	require.NoError(t, err)
	assert.Equal(t, "a1", article.ID)
	assert.Equal(t, "https://pub.test/a", article.URL())
	assert.Equal(t, domain.ArticleStatusSuccess, article.Status)
	assert.Equal(t, domain.Categories{"quantum", "physics"}, article.Categories)
	assert.Equal(t, "OG title", article.OGTitle)

	expectationsMet(t, mock)
}

func TestArticleRepository_FindBySourceLinkNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)

	mock.ExpectQuery("SELECT .+ FROM articles WHERE source_link = \\$1").
		WithArgs("https://news.google.com/rss/articles/x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySourceLink(context.Background(), "https://news.google.com/rss/articles/x")
	require.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestArticleRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	now := time.Now()
	finalURL := "https://pub.test/a"

	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	article := &domain.Article{
		FeedID:     "feed-1",
		SourceLink: "https://news.google.com/rss/articles/tok",
		FinalURL:   &finalURL,
		Status:     domain.ArticleStatusSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), article))
	assert.Len(t, article.ID, 36)
	assert.Equal(t, now, article.CreatedAt)

	expectationsMet(t, mock)
}

func TestArticleRepository_CreateUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	finalURL := "https://pub.test/a"

	mock.ExpectQuery("INSERT INTO articles").
		WillReturnError(&pq.Error{Code: "23505"})

	article := &domain.Article{FeedID: "feed-1", FinalURL: &finalURL, Status: domain.ArticleStatusSuccess}
	err := repo.Create(context.Background(), article)
	require.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Empty(t, article.ID)

	expectationsMet(t, mock)
}

func TestArticleRepository_UpdateFailureKeepsMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	next := time.Date(2026, 10, 1, 9, 1, 0, 0, time.UTC)
	lastErr := "upstream 503"

	mock.ExpectExec(`UPDATE articles SET last_error = \$1, next_retry_at = \$2, retry_count = \$3, status = \$4, updated_at = NOW\(\) WHERE id = \$5`).
		WithArgs(lastErr, next, 1, "failed", "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "a1", domain.ArticleUpdate{
		Status:      domain.ArticleStatusFailed,
		RetryCount:  1,
		NextRetryAt: &next,
		LastError:   &lastErr,
	})
	require.NoError(t, err)

	expectationsMet(t, mock)
}

func TestArticleRepository_UpdateSuccessWritesMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	finalURL := "https://pub.test/a"
	processed := time.Now()

	mock.ExpectExec(`UPDATE articles SET .*final_url = \$.*og_title = \$.*processed_at = \$.* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "a1", domain.ArticleUpdate{
		FinalURL:    &finalURL,
		Status:      domain.ArticleStatusSuccess,
		ProcessedAt: &processed,
		Metadata:    &domain.ArticleMetadata{OGTitle: "T", Categories: domain.Categories{}},
	})
	require.NoError(t, err)

	expectationsMet(t, mock)
}

func TestArticleRepository_UpdateErrors(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	finalURL := "https://pub.test/a"

	mock.ExpectExec("UPDATE articles").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("UPDATE articles").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE articles").WillReturnError(errors.New("connection reset"))

	u := domain.ArticleUpdate{FinalURL: &finalURL, Status: domain.ArticleStatusSuccess}
	require.ErrorIs(t, repo.Update(context.Background(), "a1", u), domain.ErrDuplicate)
	require.ErrorIs(t, repo.Update(context.Background(), "a2", u), domain.ErrNotFound)

	err := repo.Update(context.Background(), "a3", u)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicate)

	expectationsMet(t, mock)
}

func TestArticleRepository_FindReadyForRetry(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 3)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM articles\s+WHERE status = 'failed'\s+AND retry_count < \$1.+ORDER BY next_retry_at ASC\s+LIMIT \$2`).
		WithArgs(3, 50).
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow(articleRow("a1", "https://pub.test/a", "failed", now)...))

	articles, err := repo.FindReadyForRetry(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, domain.ArticleStatusFailed, articles[0].Status)

	expectationsMet(t, mock)
}

func TestArticleRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)
	now := time.Now()

	cols := append(append([]string{}, articleColumns...), "topic")
	row := append(articleRow("a1", "https://pub.test/a", "success", now), "quantum")

	mock.ExpectQuery(`SELECT a\.id, .+, f\.topic FROM articles a JOIN feeds f ON f\.id = a\.feed_id WHERE f\.topic = \$1 AND a\.status = \$2 ORDER BY a\.created_at DESC, a\.id ASC LIMIT 20 OFFSET 40`).
		WithArgs("quantum", "success").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

	articles, err := repo.List(context.Background(), domain.ArticleFilter{
		Topic:  "quantum",
		Status: domain.ArticleStatusSuccess,
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "quantum", articles[0].Topic)

	expectationsMet(t, mock)
}

func TestArticleRepository_ListUnfiltered(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewArticleRepository(db, 0)

	mock.ExpectQuery(`FROM articles a JOIN feeds f ON f\.id = a\.feed_id ORDER BY`).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, articleColumns...), "topic")))

	articles, err := repo.List(context.Background(), domain.ArticleFilter{})
	require.NoError(t, err)
	assert.Empty(t, articles)

	expectationsMet(t, mock)
}

func TestAPIKeyRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := repository.NewAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE key_value = \\$1").
		WithArgs("secret").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "key_value", "enabled", "last_used_at", "created_at"}).
			AddRow("k1", "ops", "secret", false, nil, now))
	mock.ExpectQuery("SELECT .+ FROM api_keys").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("UPDATE api_keys SET last_used_at = NOW\\(\\) WHERE id = \\$1").
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	key, err := repo.FindByKeyValue(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "k1", key.ID)
	assert.False(t, key.Enabled)

	_, err = repo.FindByKeyValue(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.UpdateLastUsedAt(context.Background(), "k1"))

	expectationsMet(t, mock)
}
