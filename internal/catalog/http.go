package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	shelferrors "github.com/lepinkainen/shelf/internal/errors"
)

type response struct {
	body        []byte
	contentType string
}

// get issues a GET with retries. 429, 5xx and network failures are retried
// with exponential backoff; other statuses fail immediately.
func (c *Client) get(ctx context.Context, endpoint string) (*response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, endpoint)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !shelferrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := c.retryDelay(attempt, err)
		slog.Debug("Retrying request", "url", redactURL(endpoint), "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	var statusErr *shelferrors.StatusError
	if errors.As(lastErr, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		lastErr = fmt.Errorf("%w: %w", shelferrors.NewRateLimitErrorWithRetry("catalog rate limit exceeded", statusErr.RetryAfter), lastErr)
	}
	return nil, &shelferrors.RetryExhaustedError{Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) do(ctx context.Context, endpoint string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &shelferrors.StatusError{
			StatusCode: resp.StatusCode,
			URL:        redactURL(endpoint),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &response{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// retryDelay doubles the base delay per attempt. A longer Retry-After hint
// from the server wins, up to defaultMaxDelay.
func (c *Client) retryDelay(attempt int, err error) time.Duration {
	delay := backoffDelay(c.baseDelay, attempt)
	var statusErr *shelferrors.StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > delay {
		delay = min(statusErr.RetryAfter, defaultMaxDelay)
	}
	return delay
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt-1)
	if delay > defaultMaxDelay || delay < 0 {
		return defaultMaxDelay
	}
	return delay
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// redactURL drops the API key from URLs before they reach logs or errors.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
