package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for rate-limited requests.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// BaseDelay is multiplied by the retry number when the server sends no Retry-After.
	BaseDelay time.Duration
	// MaxDelay caps any single wait, including server-provided Retry-After.
	// Zero means no cap.
	MaxDelay time.Duration
	// RetryableOn determines if a status code should trigger a retry.
	RetryableOn func(statusCode int) bool

	// sleep replaces the timer wait in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the default retry configuration:
// three retries on 429 only, 500ms × retry number between attempts.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultRetryDelay,
		RetryableOn: func(statusCode int) bool {
			return statusCode == http.StatusTooManyRequests
		},
	}
}

// ShouldRetry determines if a request should be retried.
// attempt is the number of retries already performed.
func (r *RetryConfig) ShouldRetry(attempt int, statusCode int) bool {
	if attempt >= r.MaxRetries {
		return false
	}
	if r.RetryableOn == nil {
		return false
	}
	return r.RetryableOn(statusCode)
}

// Delay calculates the wait before retry number retry (1-based).
// A Retry-After header value in seconds (or an HTTP date) wins over the
// linear backoff.
func (r *RetryConfig) Delay(retry int, retryAfter string) time.Duration {
	delay, ok := parseRetryAfter(retryAfter, time.Now())
	if !ok {
		if retry < 1 {
			retry = 1
		}
		delay = r.BaseDelay * time.Duration(retry)
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	return delay
}

// Wait waits for d or until ctx is done.
func (r *RetryConfig) Wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// maxRetryAfterSeconds keeps the seconds-to-Duration conversion in range.
const maxRetryAfterSeconds = float64(math.MaxInt64/int64(time.Second)) - 1

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
			return 0, false
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
