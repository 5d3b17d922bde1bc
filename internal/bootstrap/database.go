package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
	"github.com/jonesrussell/north-cloud/unfurl/internal/database"
)

// SetupDatabase creates a database connection, retrying while Postgres starts.
func SetupDatabase(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB
	err := retry.Do(ctx, retry.Config{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn("Database not ready, retrying",
				infralogger.Int("attempt", attempt),
				infralogger.Duration("delay", delay),
				infralogger.Error(err),
			)
		},
	}, func(ctx context.Context) error {
		var connErr error
		db, connErr = database.NewPostgresConnection(ctx, cfg.Database)
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	log.Info("Connected to database",
		infralogger.String("host", cfg.Database.Host),
		infralogger.String("database", cfg.Database.DBName),
	)
	return db, nil
}
