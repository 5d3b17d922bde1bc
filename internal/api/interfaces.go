// Package api exposes the processing and syndication endpoints over Gin.
package api

//go:generate mockgen -destination=../../testutils/mocks/api_mocks.go -package=mocks . Pipeline,KeyStore,FeedGenerator

import (
	"context"
	"net/url"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
)

// Pipeline is the subset of ingest.Orchestrator used by the handlers.
type Pipeline interface {
	ProcessAll(ctx context.Context) (ingest.Summary, error)
	ProcessFeed(ctx context.Context, feedID string) (ingest.Summary, error)
	ProcessReadyRetries(ctx context.Context, limit int) (ingest.Summary, error)
	RetryArticle(ctx context.Context, id string) (ingest.Outcome, error)
	TryStartFeed(feedID string) (bool, time.Duration)
	AllowRequest(key string) (bool, time.Duration)
}

// KeyStore looks up API keys.
type KeyStore interface {
	FindByKeyValue(ctx context.Context, key string) (*domain.APIKey, error)
	UpdateLastUsedAt(ctx context.Context, id string) error
}

// FeedGenerator renders the syndication document.
type FeedGenerator interface {
	ParseQuery(q url.Values) (domain.ArticleFilter, error)
	Generate(ctx context.Context, filter domain.ArticleFilter) (*publisher.Document, error)
}
