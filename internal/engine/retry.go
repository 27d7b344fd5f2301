package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/stockpile-io/stockpile/internal/logging"
)

// RetryPolicy bounds retries of provider operations that fail
// transiently, throttling above all. The SDK already retries individual
// HTTP requests; this covers whole operations, waiters included.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff capped
// at 30 seconds.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Retry runs fn, retrying transient failures per policy. Non-transient
// errors return immediately, unwrapped. fn must be safe to re-run; every
// provider operation here converges rather than duplicates.
func Retry(ctx context.Context, policy *RetryPolicy, fn func() error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := backoffDelay(attempt, policy.BaseDelay, policy.MaxDelay)
		logging.Debug("transient failure, retrying",
			"attempt", attempt+1, "delay", delay.String(), "error", lastErr)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("gave up after %d retries: %w", policy.MaxRetries, lastErr)
}

// backoffDelay grows exponentially with attempt, capped at max, with
// full jitter to spread concurrent callers.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(max) {
		d = float64(max)
	}
	return time.Duration(rand.Float64() * d)
}

// Markers of transient API and network failures. "timeout" never matches
// the readiness gates, which report "timed out".
var transientMarkers = []string{
	"throttl",
	"rate exceed",
	"too many requests",
	"request limit",
	"service unavailable",
	"internal server error",
	"connection reset",
	"connection refused",
	"timeout",
	"temporary failure",
}

// IsTransient reports whether err looks like a transient API or network
// failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
