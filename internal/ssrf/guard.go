// Package ssrf validates outbound URLs against scheme and private-network rules.
package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/unfurl/internal/failure"
)

const (
	// MaxURLLength is the longest URL the guard accepts.
	MaxURLLength = 2000
	// DefaultMaxRedirects caps the redirect hops a guarded client follows.
	DefaultMaxRedirects   = 5
	defaultResolveTimeout = 5 * time.Second
)

// blockedPrefixes are the loopback, private, link-local and unique-local ranges.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// SecurityError is a rejected URL. It always carries a permanent failure.
type SecurityError struct {
	Reason  string
	URL     string
	Failure *failure.Error
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("url rejected: %s", e.Reason)
}

func (e *SecurityError) Unwrap() error { return e.Failure }

func reject(kind failure.Kind, rawURL, reason string, cause error) *SecurityError {
	if cause == nil {
		cause = errors.New(reason)
	}
	return &SecurityError{
		Reason:  reason,
		URL:     rawURL,
		Failure: failure.Permanent(kind, cause, rawURL),
	}
}

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates URLs. It holds no mutable state and is safe for concurrent use.
type Guard struct {
	resolver       Resolver
	resolveTimeout time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithResolver replaces the system resolver.
func WithResolver(r Resolver) Option {
	return func(g *Guard) { g.resolver = r }
}

// NewGuard creates a Guard backed by net.DefaultResolver unless overridden.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		resolver:       net.DefaultResolver,
		resolveTimeout: defaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate rejects URLs that are malformed, too long, not http(s), unresolvable,
// or that resolve to any blocked address.
func (g *Guard) Validate(ctx context.Context, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return reject(failure.KindInvalidURL, rawURL, "empty url", nil)
	}
	if len(rawURL) > MaxURLLength {
		return reject(failure.KindInvalidURL, rawURL, "url exceeds maximum length", nil)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return reject(failure.KindInvalidURL, rawURL, "unparsable url", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(failure.KindInvalidURL, rawURL, "invalid url scheme", nil)
	}

	host := parsed.Hostname()
	if host == "" {
		return reject(failure.KindInvalidURL, rawURL, "missing host", nil)
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return reject(failure.KindSSRFBlocked, rawURL, "host resolution failed", err)
	}

	for _, addr := range addrs {
		if IsBlocked(addr) {
			return reject(failure.KindSSRFBlocked, rawURL, "resolves to a private address", nil)
		}
	}
	return nil
}

func (g *Guard) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.resolveTimeout)
	defer cancel()

	ipAddrs, err := g.resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, err
	}
	if len(ipAddrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}

	addrs := make([]netip.Addr, 0, len(ipAddrs))
	for _, ipAddr := range ipAddrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok {
			return nil, fmt.Errorf("invalid address %v for %s", ipAddr.IP, host)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// IsBlocked reports whether addr falls in a blocked range.
// IPv4-mapped IPv6 addresses are checked as IPv4; the unspecified address is blocked.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return true
	}
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RedirectPolicy returns an http.Client CheckRedirect that re-validates every
// hop and stops after maxHops redirects.
func (g *Guard) RedirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	if maxHops <= 0 {
		maxHops = DefaultMaxRedirects
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > maxHops {
			return &SecurityError{
				Reason:  ErrTooManyRedirects.Error(),
				URL:     req.URL.String(),
				Failure: failure.Permanent(failure.KindTooManyRedirects, ErrTooManyRedirects, req.URL.String()),
			}
		}
		return g.Validate(req.Context(), req.URL.String())
	}
}

// DialContext resolves and checks the target at connect time, then dials the
// vetted address. This closes the gap between validation and a second DNS answer.
func (g *Guard) DialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		addrs, err := g.resolve(ctx, host)
		if err != nil {
			return nil, reject(failure.KindSSRFBlocked, addr, "host resolution failed", err)
		}
		for _, a := range addrs {
			if IsBlocked(a) {
				return nil, reject(failure.KindSSRFBlocked, addr, "resolves to a private address", nil)
			}
		}

		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].Unmap().String(), port))
	}
}
