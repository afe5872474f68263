package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := fmt.Errorf("lookup: %w", err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "rate limited"},
		{"1 second", time.Second, "rate limited (retry after 1s)"},
		{"2 minutes", 2 * time.Minute, "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.want {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.want)
			}
			if err.RetryAfter != tt.duration {
				t.Fatalf("RetryAfter = %v, want %v", err.RetryAfter, tt.duration)
			}
		})
	}
}

func TestStopProcessingError(t *testing.T) {
	err := NewStopProcessingError("user stopped")

	if err.Error() != "user stopped" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "user stopped")
	}

	wrapped := stdErrors.Join(err)
	if !IsStopProcessingError(wrapped) {
		t.Fatalf("IsStopProcessingError returned false for wrapped StopProcessingError")
	}
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{403, false},
		{400, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := fmt.Errorf("get: %w", &StatusError{StatusCode: tt.status, URL: "http://example"})
			if got := IsRetryable(err); got != tt.retryable {
				t.Fatalf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if got := stdErrors.Is(err, ErrNotFound); got == tt.retryable {
				t.Fatalf("errors.Is(ErrNotFound) = %v for status %d", got, tt.status)
			}
		})
	}
}

func TestIsRetryableNetworkErrors(t *testing.T) {
	netErr := &url.Error{Op: "Get", URL: "http://example", Err: stdErrors.New("connection refused")}
	if !IsRetryable(netErr) {
		t.Fatalf("expected url.Error to be retryable")
	}
	if IsRetryable(fmt.Errorf("wait: %w", context.Canceled)) {
		t.Fatalf("expected cancellation not to be retryable")
	}
	if IsRetryable(stdErrors.New("decode failed")) {
		t.Fatalf("expected plain error not to be retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("expected nil not to be retryable")
	}
}

func TestRetryExhaustedErrorUnwraps(t *testing.T) {
	inner := &StatusError{StatusCode: 503, URL: "http://example"}
	err := &RetryExhaustedError{Attempts: 3, Err: inner}

	var statusErr *StatusError
	if !stdErrors.As(err, &statusErr) || statusErr.StatusCode != 503 {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	want := "after 3 attempts: unexpected status 503 (Service Unavailable) from http://example"
	if err.Error() != want {
		t.Fatalf("Error message = %q, want %q", err.Error(), want)
	}
}
