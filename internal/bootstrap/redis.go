package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/unfurl/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
)

// SetupCache returns a Redis-backed RSS cache when Redis is enabled and reachable,
// otherwise an in-process cache. The client is nil in the latter case.
func SetupCache(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*redis.Client, publisher.Cache) {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, using in-memory RSS cache")
		return nil, publisher.NewMemoryCache(time.Now)
	}

	client, err := infraredis.NewClient(ctx, infraredis.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis not available, using in-memory RSS cache",
			infralogger.Error(err),
		)
		return nil, publisher.NewMemoryCache(time.Now)
	}

	log.Info("RSS cache backed by Redis",
		infralogger.String("redis_address", cfg.Redis.Address),
	)
	return client, publisher.NewRedisCache(client)
}
