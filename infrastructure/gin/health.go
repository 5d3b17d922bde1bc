package gin

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Overall health values reported by GET /health.
const (
	HealthStatusOK    = "ok"
	HealthStatusError = "error"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
}

// HealthChecker performs one check.
type HealthChecker func() CheckResult

// HealthOptions configures the health endpoint.
type HealthOptions struct {
	ServiceName    string
	ServiceVersion string
	Checks         map[string]HealthChecker
	// Now is overridable for tests.
	Now func() time.Time
}

// RegisterHealthRoutes adds GET and HEAD /health.
// The overall status is "error" (HTTP 503) when any critical check fails.
func RegisterHealthRoutes(router *gin.Engine, opts HealthOptions) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	handler := healthHandler(opts)
	router.GET("/health", handler)
	router.HEAD("/health", handler)
}

func healthHandler(opts HealthOptions) gin.HandlerFunc {
	names := make([]string, 0, len(opts.Checks))
	for name := range opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    HealthStatusOK,
			Timestamp: opts.Now().UTC(),
			Service:   opts.ServiceName,
			Version:   opts.ServiceVersion,
		}

		if len(names) > 0 {
			response.Checks = make(map[string]CheckResult, len(names))
		}
		for _, name := range names {
			result := opts.Checks[name]()
			response.Checks[name] = result
			if result.Critical && result.Status != HealthStatusOK {
				response.Status = HealthStatusError
			}
		}

		statusCode := http.StatusOK
		if response.Status != HealthStatusOK {
			statusCode = http.StatusServiceUnavailable
		}

		if c.Request.Method == http.MethodHead {
			c.Status(statusCode)
			return
		}
		c.JSON(statusCode, response)
	}
}

// PingChecker wraps a ping function. Failures of a critical check fail the endpoint.
func PingChecker(pingFunc func() error, critical bool) HealthChecker {
	return func() CheckResult {
		start := time.Now()
		err := pingFunc()

		result := CheckResult{
			Status:   HealthStatusOK,
			Critical: critical,
			Latency:  time.Since(start).String(),
		}
		if err != nil {
			result.Status = HealthStatusError
		}
		return result
	}
}
