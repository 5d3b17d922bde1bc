package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteDeps are the pieces SetupRoutes wires together.
type RouteDeps struct {
	Handler *Handler
	Keys    KeyStore
	Limiter RateLimiter
	Metrics http.Handler
}

// SetupRoutes registers the public RSS routes, the metrics endpoint and the
// key-protected processing routes.
func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	router.GET("/rss", deps.Handler.RSS)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/rss", deps.Handler.RSS)

	protected := v1.Group("")
	protected.Use(APIKeyAuth(deps.Keys, deps.Limiter, deps.Handler.log))
	protected.POST("/process", deps.Handler.Process)
	protected.POST("/feeds/:id/process", deps.Handler.ProcessFeed)
	protected.POST("/articles/:id/retry", deps.Handler.RetryArticle)
	protected.POST("/retries/process", deps.Handler.ProcessRetries)
}
