package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound means a remote lookup produced no usable value. Permanent
// HTTP failures, empty results and invalid assets all map to it.
var ErrNotFound = stdErrors.New("not found")

// StatusError reports an unexpected HTTP status from a remote service.
type StatusError struct {
	StatusCode int
	URL        string
	// RetryAfter is the server's Retry-After hint, if any.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Is lets a non-retryable status match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && !e.Retryable()
}

// RetryExhaustedError wraps the last failure after every attempt was used.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient remote failure: a 429 or
// 5xx status, or a network-level error including client timeouts.
// Cancellation is not.
func IsRetryable(err error) bool {
	if err == nil || stdErrors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return stdErrors.As(err, &urlErr)
}
