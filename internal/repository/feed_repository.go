package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

const feedSelectColumns = `id, topic, url, result_limit, enabled, last_processed_at, created_at, updated_at`

// FeedRepository handles database operations for aggregator feeds.
type FeedRepository struct {
	db *sqlx.DB
}

// NewFeedRepository creates a new feed repository.
func NewFeedRepository(db *sqlx.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// FindEnabled returns enabled feeds ordered by topic.
func (r *FeedRepository) FindEnabled(ctx context.Context) ([]*domain.Feed, error) {
	query := `SELECT ` + feedSelectColumns + ` FROM feeds WHERE enabled = true ORDER BY topic ASC`

	var feeds []*domain.Feed
	if err := r.db.SelectContext(ctx, &feeds, query); err != nil {
		return nil, fmt.Errorf("failed to list enabled feeds: %w", err)
	}
	if feeds == nil {
		feeds = []*domain.Feed{}
	}
	return feeds, nil
}

// List returns every feed ordered by topic.
func (r *FeedRepository) List(ctx context.Context) ([]*domain.Feed, error) {
	query := `SELECT ` + feedSelectColumns + ` FROM feeds ORDER BY topic ASC`

	var feeds []*domain.Feed
	if err := r.db.SelectContext(ctx, &feeds, query); err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	if feeds == nil {
		feeds = []*domain.Feed{}
	}
	return feeds, nil
}

// FindByID returns a feed or domain.ErrNotFound.
func (r *FeedRepository) FindByID(ctx context.Context, id string) (*domain.Feed, error) {
	query := `SELECT ` + feedSelectColumns + ` FROM feeds WHERE id = $1`

	var feed domain.Feed
	if err := r.db.GetContext(ctx, &feed, query, id); err != nil {
		return nil, fmt.Errorf("failed to get feed %s: %w", id, notFound(err))
	}
	return &feed, nil
}

// UpdateLastProcessedAt records the end of a feed run.
func (r *FeedRepository) UpdateLastProcessedAt(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE feeds SET last_processed_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err = execRequireRows(result, err); err != nil {
		return fmt.Errorf("failed to update feed %s: %w", id, err)
	}
	return nil
}
