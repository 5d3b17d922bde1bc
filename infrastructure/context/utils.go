// Package context holds the standard timeouts for background operations.
package context

import (
	"context"
	"time"
)

const (
	// DefaultPingTimeout bounds startup and health-check pings.
	DefaultPingTimeout = 5 * time.Second
	// DefaultRunTimeout bounds one scheduled or CLI-triggered pipeline run.
	DefaultRunTimeout = 30 * time.Minute
)

// WithPingTimeout derives a context bounded by DefaultPingTimeout.
func WithPingTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}

// WithRunTimeout derives a context bounded by DefaultRunTimeout.
func WithRunTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultRunTimeout)
}
