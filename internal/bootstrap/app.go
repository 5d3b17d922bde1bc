// Package bootstrap handles application initialization and lifecycle management
// for the unfurl service.
package bootstrap

import (
	"context"
	"fmt"

	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
)

const (
	serviceName = "unfurl"
	version     = "dev"
)

// Start initializes and runs the unfurl service until it receives a shutdown signal.
func Start() error {
	ctx := context.Background()

	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Setup database
	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", infralogger.Error(closeErr))
		}
	}()

	// Phase 3: Setup RSS cache (Redis optional)
	redisClient, cache := SetupCache(ctx, cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Phase 4: Wire the ingestion pipeline and publisher
	components := SetupComponents(cfg, db, cache, log)

	// Phase 5: Optional scheduler
	sched, err := SetupScheduler(cfg, components.Orchestrator, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	// Phase 6: Setup and run HTTP server
	server := SetupHTTPServer(cfg, db, redisClient, components, log)

	log.Info("Starting HTTP server",
		infralogger.String("host", cfg.Server.Host),
		infralogger.Int("port", cfg.Server.Port),
	)

	if runErr := server.Run(ctx); runErr != nil {
		log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
