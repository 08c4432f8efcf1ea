package shared

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const maxErrorLength = 500

// RetryPolicy controls transient-failure retries for provider calls.
// Delays are exponential in the attempt number, capped, and jittered; an
// upstream Retry-After header overrides the computed delay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 3
}

// Backoff returns the sleep before the given retry (attempt starts at 1 for
// the first retry).
func (p RetryPolicy) Backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay + time.Duration(rand.Int63n(int64(base)))
}

// RetryableStatus reports whether an upstream status warrants another attempt.
func RetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// TruncateError bounds persisted error text.
func TruncateError(message string) string {
	if len(message) <= maxErrorLength {
		return message
	}
	return message[:maxErrorLength]
}

// Sleep waits for the backoff delay or until the context is cancelled.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Redact strips secret material from text destined for logs or storage.
func Redact(message string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		message = strings.ReplaceAll(message, secret, "[redacted]")
	}
	return message
}
