package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

// APIKeyRepository looks up keys for the processing endpoints.
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// FindByKeyValue returns the key row or domain.ErrNotFound.
func (r *APIKeyRepository) FindByKeyValue(ctx context.Context, key string) (*domain.APIKey, error) {
	query := `SELECT id, name, key_value, enabled, last_used_at, created_at FROM api_keys WHERE key_value = $1`

	var apiKey domain.APIKey
	if err := r.db.GetContext(ctx, &apiKey, query, key); err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", notFound(err))
	}
	return &apiKey, nil
}

// UpdateLastUsedAt stamps the key with the current database time.
func (r *APIKeyRepository) UpdateLastUsedAt(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err = execRequireRows(result, err); err != nil {
		return fmt.Errorf("failed to update api key %s: %w", id, err)
	}
	return nil
}
