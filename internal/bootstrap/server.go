package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infracontext "github.com/jonesrussell/north-cloud/unfurl/infrastructure/context"
	infragin "github.com/jonesrussell/north-cloud/unfurl/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/api"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
)

const idleTimeoutMultiplier = 2

// SetupHTTPServer creates and configures the HTTP server.
func SetupHTTPServer(
	cfg *config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	c *Components,
	log infralogger.Logger,
) *infragin.Server {
	handler := api.NewHandler(c.Orchestrator, c.Publisher, cfg.Publisher.CacheTTL, log)

	builder := infragin.NewServerBuilder(serviceName, cfg.Server.Port).
		WithHost(cfg.Server.Host).
		WithLogger(log).
		WithDebug(cfg.Debug).
		WithVersion(version).
		WithCORSOrigins(cfg.Server.CORSOrigins).
		WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ReadTimeout*idleTimeoutMultiplier).
		WithDatabaseHealthCheck(func() error {
			ctx, cancel := infracontext.WithPingTimeout(context.Background())
			defer cancel()
			return db.PingContext(ctx)
		}).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, api.RouteDeps{
				Handler: handler,
				Keys:    c.APIKeys,
				Limiter: c.Orchestrator,
				Metrics: c.Metrics.Handler(),
			})
		})

	if redisClient != nil {
		builder = builder.WithRedisHealthCheck(func() error {
			ctx, cancel := infracontext.WithPingTimeout(context.Background())
			defer cancel()
			return redisClient.Ping(ctx).Err()
		})
	}

	return builder.Build()
}
