// Package http builds outbound HTTP clients with explicit timeouts.
package http

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout             = 30 * time.Second
	DefaultConnectTimeout      = 5 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// ClientConfig configures an HTTP client. Zero values use the defaults above.
type ClientConfig struct {
	// Timeout bounds the whole exchange, body included.
	Timeout time.Duration
	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	// DialContext replaces the default dialer (used by tests and guarded clients).
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	// CheckRedirect is passed through to http.Client.
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// NewClient creates a client with TLS verification enabled and bounded timeouts.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := orDuration(cfg.Timeout, DefaultTimeout)
	connectTimeout := orDuration(cfg.ConnectTimeout, DefaultConnectTimeout)

	dial := cfg.DialContext
	if dial == nil {
		dial = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	}

	transport := &http.Transport{
		DialContext:           dial,
		MaxIdleConns:          orInt(cfg.MaxIdleConns, DefaultMaxIdleConns),
		MaxIdleConnsPerHost:   orInt(cfg.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost),
		IdleConnTimeout:       orDuration(cfg.IdleConnTimeout, DefaultIdleConnTimeout),
		TLSHandshakeTimeout:   orDuration(cfg.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout),
		ResponseHeaderTimeout: timeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: cfg.CheckRedirect,
	}
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
