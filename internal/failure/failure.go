// Package failure is the failure taxonomy shared by the decoder, the SSRF guard and the extractor.
// Retryability is decided once, where the failure is first observed, and carried as data.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed pipeline step.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindNetwork          Kind = "network"
	KindRateLimited      Kind = "rate_limited"
	KindUpstream         Kind = "upstream_failure"
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindHTTPStatus       Kind = "http_status"
	KindInvalidURL       Kind = "invalid_url"
	KindSSRFBlocked      Kind = "ssrf_blocked"
	KindTooManyRedirects Kind = "too_many_redirects"
	KindUnparsable       Kind = "unparsable_content"
	KindProtocol         Kind = "protocol_error"
	KindUnexpected       Kind = "unexpected"
)

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Retryable  bool
	HTTPStatus int
	URL        string
	Cause      error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: HTTP %d for %s", e.Kind, e.HTTPStatus, e.URL)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// RetryableStatus is the cross-cutting rule: 429 and every 5xx are transient.
func RetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

// ClassifyHTTPStatus builds an Error from a non-2xx response status.
func ClassifyHTTPStatus(statusCode int, url string) *Error {
	e := &Error{
		Retryable:  RetryableStatus(statusCode),
		HTTPStatus: statusCode,
		URL:        url,
		Cause:      fmt.Errorf("HTTP %d", statusCode),
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	case statusCode >= http.StatusInternalServerError:
		e.Kind = KindUpstream
	case statusCode == http.StatusNotFound:
		e.Kind = KindNotFound
	case statusCode == http.StatusForbidden:
		e.Kind = KindForbidden
	default:
		e.Kind = KindHTTPStatus
	}
	return e
}

// ClassifyNetworkError builds a retryable Error for transport failures (DNS, refused, reset, timeout).
func ClassifyNetworkError(cause error, url string) *Error {
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(cause, context.DeadlineExceeded) || (errors.As(cause, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Retryable: true, URL: url, Cause: cause}
}

// Permanent builds a non-retryable Error of the given kind.
func Permanent(kind Kind, cause error, url string) *Error {
	return &Error{Kind: kind, Retryable: false, URL: url, Cause: cause}
}

// From extracts the classified failure from err's chain.
// Unclassified errors are reported as KindUnexpected and never retried.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var f *Error
	if errors.As(err, &f) {
		return f
	}
	return &Error{Kind: KindUnexpected, Cause: err}
}

// IsRetryable reports whether err carries a retryable classification.
func IsRetryable(err error) bool {
	f := From(err)
	return f != nil && f.Retryable
}
