package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
)

const (
	// APIKeyHeader carries the caller's key.
	APIKeyHeader = "X-API-Key"

	apiKeyContextKey   = "api_key_id"
	lastUsedTimeout    = 2 * time.Second
	retryAfterHeader   = "Retry-After"
	msgMissingKey      = "API key required"
	msgInvalidKey      = "Invalid API key"
	msgDisabledKey     = "API key disabled"
	msgRateLimited     = "Rate limit exceeded"
	msgInternal        = "Internal server error"
	msgFeedNotFound    = "Feed not found"
	msgArticleNotFound = "Article not found"
	msgNotRetryable    = "Article already processed successfully"
	msgFeedDisabled    = "Feed is disabled"
	msgCoolingDown     = "Feed was processed recently"
)

// RateLimiter admits or rejects one request for a key.
type RateLimiter interface {
	AllowRequest(key string) (bool, time.Duration)
}

// APIKeyAuth authenticates X-API-Key, then applies the per-key request window.
func APIKeyAuth(keys KeyStore, limiter RateLimiter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		value := c.GetHeader(APIKeyHeader)
		if value == "" {
			abortError(c, http.StatusUnauthorized, msgMissingKey)
			return
		}

		key, err := keys.FindByKeyValue(c.Request.Context(), value)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error("API key lookup failed", logger.Error(err))
				abortError(c, http.StatusInternalServerError, msgInternal)
				return
			}
			abortError(c, http.StatusUnauthorized, msgInvalidKey)
			return
		}
		if !key.Enabled {
			abortError(c, http.StatusForbidden, msgDisabledKey)
			return
		}

		if ok, retryAfter := limiter.AllowRequest(key.ID); !ok {
			log.Warn("API key rate limited",
				logger.String("api_key_id", key.ID),
				logger.Duration("retry_after", retryAfter),
			)
			c.Header(retryAfterHeader, strconv.Itoa(seconds(retryAfter)))
			abortError(c, http.StatusTooManyRequests, msgRateLimited)
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), lastUsedTimeout)
		if updateErr := keys.UpdateLastUsedAt(ctx, key.ID); updateErr != nil {
			log.Warn("Failed to update API key last used time",
				logger.String("api_key_id", key.ID),
				logger.Error(updateErr),
			)
		}
		cancel()

		c.Set(apiKeyContextKey, key.ID)
		c.Next()
	}
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: message})
}

// seconds rounds d up to whole seconds, at least 1.
func seconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
