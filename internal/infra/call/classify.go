// Package call wraps external service calls with error classification and
// bounded retries. The classifier is the single place error taxonomy logic
// lives; clients and steps never re-implement it.
package call

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Category is the closed error taxonomy for external failures.
type Category int

const (
	CategoryConnection Category = iota // network-level failure, retryable
	CategoryRateLimit                  // throttled, retryable with suggested delay
	CategoryAuth                       // credentials/config problem, never retried
	CategoryValidation                 // malformed request, never retried
	CategoryNotFound                   // target resource absent, never retried
	CategoryUnknown                    // retryable only when evidence suggests transience
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryAuth:
		return "authentication"
	case CategoryValidation:
		return "validation"
	case CategoryNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified external failure.
type Error struct {
	Category   Category
	StatusCode int           // 0 when the failure never reached HTTP
	Message    string
	RetryAfter time.Duration // server-suggested delay, rate-limit case
	Err        error         // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (http %d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether retrying this failure can plausibly succeed.
// Unknown failures are retried only when they look server-side.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryConnection, CategoryRateLimit:
		return true
	case CategoryUnknown:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// NewHTTPError classifies a non-2xx HTTP response into the taxonomy.
// retryAfter is the parsed Retry-After header, zero when absent.
func NewHTTPError(statusCode int, message string, retryAfter time.Duration) *Error {
	e := &Error{
		StatusCode: statusCode,
		Message:    message,
		RetryAfter: retryAfter,
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		e.Category = CategoryRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Category = CategoryAuth
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		e.Category = CategoryValidation
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		e.Category = CategoryNotFound
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout ||
		statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable:
		e.Category = CategoryConnection
	default:
		e.Category = CategoryUnknown
	}
	return e
}

// ParseRetryAfter reads a Retry-After header value in seconds.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(strings.TrimSpace(v) + "s"); err == nil && secs > 0 {
		return secs
	}
	return 0
}

// Classify maps a raw failure into the taxonomy. Already-classified errors
// pass through unchanged; the mapping is pure.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: CategoryConnection, Message: err.Error(), Err: err}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return &Error{Category: CategoryConnection, Message: err.Error(), Err: err}
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "timeout"),
		strings.Contains(s, "timed out"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "eof"):
		return &Error{Category: CategoryConnection, Message: err.Error(), Err: err}
	case strings.Contains(s, "rate limit"),
		strings.Contains(s, "too many requests"),
		strings.Contains(s, "quota"):
		return &Error{Category: CategoryRateLimit, Message: err.Error(), Err: err}
	case strings.Contains(s, "unauthorized"),
		strings.Contains(s, "invalid api key"),
		strings.Contains(s, "forbidden"),
		strings.Contains(s, "authentication"):
		return &Error{Category: CategoryAuth, Message: err.Error(), Err: err}
	case strings.Contains(s, "not found"):
		return &Error{Category: CategoryNotFound, Message: err.Error(), Err: err}
	case strings.Contains(s, "invalid request"),
		strings.Contains(s, "invalid params"),
		strings.Contains(s, "malformed"):
		return &Error{Category: CategoryValidation, Message: err.Error(), Err: err}
	}

	return &Error{Category: CategoryUnknown, Message: err.Error(), Err: err}
}
