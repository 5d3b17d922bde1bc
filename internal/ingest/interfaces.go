package ingest

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/internal/aggregator"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

// FeedStore is the feed persistence the orchestrator needs.
type FeedStore interface {
	FindEnabled(ctx context.Context) ([]*domain.Feed, error)
	FindByID(ctx context.Context, id string) (*domain.Feed, error)
	UpdateLastProcessedAt(ctx context.Context, id string, at time.Time) error
}

// ArticleStore is the article persistence the orchestrator needs.
// Create and Update return domain.ErrDuplicate on a final URL uniqueness violation.
type ArticleStore interface {
	FindByFinalURL(ctx context.Context, finalURL string) (*domain.Article, error)
	FindBySourceLink(ctx context.Context, link string) (*domain.Article, error)
	FindByID(ctx context.Context, id string) (*domain.Article, error)
	Create(ctx context.Context, article *domain.Article) error
	Update(ctx context.Context, id string, update domain.ArticleUpdate) error
	FindReadyForRetry(ctx context.Context, limit int) ([]*domain.Article, error)
}

// FeedReader reads the entries of a source feed.
type FeedReader interface {
	Read(ctx context.Context, feedURL string, limit int) ([]aggregator.Entry, error)
}

// Resolver turns an obfuscated token into a publisher URL.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Validator rejects unsafe URLs.
type Validator interface {
	Validate(ctx context.Context, rawURL string) error
}

// Fetcher downloads and extracts an article.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*domain.ArticleMetadata, error)
}
