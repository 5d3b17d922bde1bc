package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/domain"
	"github.com/jonesrussell/north-cloud/unfurl/internal/ingest"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
)

const rssContentType = "application/rss+xml; charset=utf-8"

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type processRequest struct {
	FeedID string `json:"feed_id"`
}

type processResponse struct {
	Success bool `json:"success"`
	ingest.Summary
	Timestamp time.Time `json:"timestamp"`
}

type retryResponse struct {
	Success   bool           `json:"success"`
	ArticleID string         `json:"article_id"`
	Outcome   ingest.Outcome `json:"outcome"`
	Timestamp time.Time      `json:"timestamp"`
}

type cooldownResponse struct {
	errorResponse
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

// Handler serves the processing and RSS endpoints.
type Handler struct {
	pipeline Pipeline
	feeds    FeedGenerator
	log      logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewHandler creates a Handler. cacheTTL sets the RSS Cache-Control max-age.
func NewHandler(pipeline Pipeline, feeds FeedGenerator, cacheTTL time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = publisher.DefaultCacheTTL
	}
	return &Handler{pipeline: pipeline, feeds: feeds, log: log, cacheTTL: cacheTTL, now: time.Now}
}

// Process runs every enabled feed, or the single feed named in the body.
func (h *Handler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if feedID := strings.TrimSpace(req.FeedID); feedID != "" {
		h.processFeed(c, feedID)
		return
	}

	summary, err := h.pipeline.ProcessAll(c.Request.Context())
	if err != nil {
		h.internalError(c, "Process all feeds failed", err)
		return
	}
	h.respondSummary(c, summary)
}

// ProcessFeed runs one feed, subject to the per-feed cooldown.
func (h *Handler) ProcessFeed(c *gin.Context) {
	h.processFeed(c, c.Param("id"))
}

func (h *Handler) processFeed(c *gin.Context, feedID string) {
	if ok, remaining := h.pipeline.TryStartFeed(feedID); !ok {
		c.Header(retryAfterHeader, strconv.Itoa(seconds(remaining)))
		c.JSON(http.StatusTooManyRequests, cooldownResponse{
			errorResponse:     errorResponse{Error: msgCoolingDown},
			RetryAfterSeconds: seconds(remaining),
		})
		return
	}

	summary, err := h.pipeline.ProcessFeed(c.Request.Context(), feedID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: msgFeedNotFound})
	case errors.Is(err, ingest.ErrFeedDisabled):
		c.JSON(http.StatusConflict, errorResponse{Error: msgFeedDisabled})
	case err != nil:
		h.internalError(c, "Process feed failed", err, logger.FeedID(feedID))
	default:
		h.respondSummary(c, summary)
	}
}

// RetryArticle reprocesses one pending or failed article immediately with a fresh attempt count.
func (h *Handler) RetryArticle(c *gin.Context) {
	id := c.Param("id")

	outcome, err := h.pipeline.RetryArticle(c.Request.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: msgArticleNotFound})
		return
	case errors.Is(err, ingest.ErrNotRetryable):
		c.JSON(http.StatusConflict, errorResponse{Error: msgNotRetryable})
		return
	case err != nil:
		h.internalError(c, "Article retry failed", err, logger.ArticleID(id))
		return
	}

	c.JSON(http.StatusOK, retryResponse{
		Success:   true,
		ArticleID: id,
		Outcome:   outcome,
		Timestamp: h.now().UTC(),
	})
}

// ProcessRetries drives articles whose retry time has passed. ?limit caps the batch.
func (h *Handler) ProcessRetries(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	summary, err := h.pipeline.ProcessReadyRetries(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "Process retries failed", err)
		return
	}
	h.respondSummary(c, summary)
}

// RSS serves the syndication document with ETag validation.
func (h *Handler) RSS(c *gin.Context) {
	filter, err := h.feeds.ParseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	doc, err := h.feeds.Generate(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, "RSS generation failed", err)
		return
	}

	c.Header("ETag", doc.ETag)
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.cacheTTL.Seconds())))
	if etagMatches(c.GetHeader("If-None-Match"), doc.ETag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, rssContentType, doc.Body)
}

func (h *Handler) respondSummary(c *gin.Context, summary ingest.Summary) {
	c.JSON(http.StatusOK, processResponse{
		Success:   true,
		Summary:   summary,
		Timestamp: h.now().UTC(),
	})
}

// internalError logs err and returns a generic message; internal text never reaches the client.
func (h *Handler) internalError(c *gin.Context, msg string, err error, fields ...logger.Field) {
	fields = append(fields, logger.Error(err), logger.String("path", c.FullPath()))
	h.log.Error(msg, fields...)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: msgInternal})
}

// etagMatches implements If-None-Match with weak comparison.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
