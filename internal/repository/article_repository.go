package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

// DefaultMaxAttempts bounds the retry count for FindReadyForRetry.
const DefaultMaxAttempts = 3

var articleColumns = []string{
	"id", "feed_id", "source_link", "source_title", "source_description", "source_name",
	"source_published_at", "final_url", "status", "retry_count", "next_retry_at", "last_error",
	"og_title", "og_description", "og_image", "og_url", "og_site_name", "twitter_image",
	"author", "page_title", "article_content", "word_count", "categories",
	"processed_at", "created_at", "updated_at",
}

var articleSelectColumns = strings.Join(articleColumns, ", ")

func prefixed(alias string) []string {
	cols := make([]string, len(articleColumns))
	for i, c := range articleColumns {
		cols[i] = alias + "." + c
	}
	return cols
}

// ArticleRepository handles database operations for articles.
type ArticleRepository struct {
	db          *sqlx.DB
	maxAttempts int
}

// NewArticleRepository creates a new article repository. maxAttempts <= 0 uses DefaultMaxAttempts.
func NewArticleRepository(db *sqlx.DB, maxAttempts int) *ArticleRepository {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &ArticleRepository{db: db, maxAttempts: maxAttempts}
}

// FindByFinalURL returns the article with the resolved URL or domain.ErrNotFound.
func (r *ArticleRepository) FindByFinalURL(ctx context.Context, finalURL string) (*domain.Article, error) {
	return r.getOne(ctx, "final_url", finalURL)
}

// FindBySourceLink returns the article recorded for an aggregator link or domain.ErrNotFound.
func (r *ArticleRepository) FindBySourceLink(ctx context.Context, link string) (*domain.Article, error) {
	return r.getOne(ctx, "source_link", link)
}

// FindByID returns an article or domain.ErrNotFound.
func (r *ArticleRepository) FindByID(ctx context.Context, id string) (*domain.Article, error) {
	return r.getOne(ctx, "id", id)
}

func (r *ArticleRepository) getOne(ctx context.Context, column, value string) (*domain.Article, error) {
	query := `SELECT ` + articleSelectColumns + ` FROM articles WHERE ` + column + ` = $1 ORDER BY created_at ASC LIMIT 1`

	var article domain.Article
	if err := r.db.GetContext(ctx, &article, query, value); err != nil {
		return nil, fmt.Errorf("failed to get article by %s: %w", column, notFound(err))
	}
	return &article, nil
}

// Create inserts article, assigning its ID and timestamps. A final URL that
// already exists yields domain.ErrDuplicate.
func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	query := `
		INSERT INTO articles (
			id, feed_id, source_link, source_title, source_description, source_name,
			source_published_at, final_url, status, retry_count, next_retry_at, last_error,
			og_title, og_description, og_image, og_url, og_site_name, twitter_image,
			author, page_title, article_content, word_count, categories, processed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		RETURNING created_at, updated_at
	`

	id := uuid.New().String()
	m := article.ArticleMetadata
	err := r.db.QueryRowxContext(ctx, query,
		id, article.FeedID, article.SourceLink, article.SourceTitle, article.SourceDescription, article.SourceName,
		article.SourcePublishedAt, article.FinalURL, article.Status, article.RetryCount, article.NextRetryAt, article.LastError,
		m.OGTitle, m.OGDescription, m.OGImage, m.OGURL, m.OGSiteName, m.TwitterImage,
		m.Author, m.PageTitle, m.ArticleContent, m.WordCount, m.Categories, article.ProcessedAt,
	).Scan(&article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to create article: %w", err)
	}

	article.ID = id
	return nil
}

// Update writes the outcome of a processing attempt. Nil FinalURL, ProcessedAt
// and Metadata keep the stored values; NextRetryAt and LastError are written as given.
func (r *ArticleRepository) Update(ctx context.Context, id string, u domain.ArticleUpdate) error {
	set := map[string]any{
		"status":        u.Status,
		"retry_count":   u.RetryCount,
		"next_retry_at": u.NextRetryAt,
		"last_error":    u.LastError,
		"updated_at":    sq.Expr("NOW()"),
	}
	if u.FinalURL != nil {
		set["final_url"] = *u.FinalURL
	}
	if u.ProcessedAt != nil {
		set["processed_at"] = *u.ProcessedAt
	}
	if m := u.Metadata; m != nil {
		set["og_title"] = m.OGTitle
		set["og_description"] = m.OGDescription
		set["og_image"] = m.OGImage
		set["og_url"] = m.OGURL
		set["og_site_name"] = m.OGSiteName
		set["twitter_image"] = m.TwitterImage
		set["author"] = m.Author
		set["page_title"] = m.PageTitle
		set["article_content"] = m.ArticleContent
		set["word_count"] = m.WordCount
		set["categories"] = m.Categories
	}

	query, args, err := psql.Update("articles").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build article update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err = execRequireRows(result, err); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("failed to update article %s: %w", id, err)
	}
	return nil
}

// FindReadyForRetry returns failed articles whose retry time has passed, oldest first.
func (r *ArticleRepository) FindReadyForRetry(ctx context.Context, limit int) ([]*domain.Article, error) {
	query := `
		SELECT ` + articleSelectColumns + `
		FROM articles
		WHERE status = 'failed'
		  AND retry_count < $1
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC
		LIMIT $2
	`

	var articles []*domain.Article
	if err := r.db.SelectContext(ctx, &articles, query, r.maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list articles ready for retry: %w", err)
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	return articles, nil
}

// List returns articles matching filter joined with their feed topic, newest first.
func (r *ArticleRepository) List(ctx context.Context, filter domain.ArticleFilter) ([]*domain.Article, error) {
	builder := psql.Select(prefixed("a")...).
		Column("f.topic").
		From("articles a").
		Join("feeds f ON f.id = a.feed_id").
		OrderBy("a.created_at DESC", "a.id ASC")

	if filter.Topic != "" {
		builder = builder.Where(sq.Eq{"f.topic": filter.Topic})
	}
	if filter.FeedID != "" {
		builder = builder.Where(sq.Eq{"a.feed_id": filter.FeedID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"a.status": filter.Status})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article list: %w", err)
	}

	var articles []*domain.Article
	if err = r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	return articles, nil
}
