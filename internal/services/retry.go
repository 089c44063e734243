package services

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseBackoff  = 500 * time.Millisecond
	defaultMaxBackoff   = 4 * time.Second
	defaultMaxRetryTime = 15 * time.Second
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts  int           // total attempts, including the first
	BaseBackoff  time.Duration // delay before the second attempt, doubled after each failure
	MaxBackoff   time.Duration // cap on a single delay
	MaxRetryTime time.Duration // cap on time spent in one Call, including delays
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = defaultBaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.MaxRetryTime <= 0 {
		p.MaxRetryTime = defaultMaxRetryTime
	}
	return p
}

// Backoff returns the delay after the given failed attempt (1-based), with equal jitter:
// half the exponential delay is fixed, the other half random.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseBackoff
	for i := 1; i < attempt && delay < p.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}

	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half+1)
}

// parseRetryAfter reads a Retry-After value in delay-seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(value); err == nil {
		if until := when.Sub(now); until > 0 {
			return until
		}
	}

	return 0
}

// sleepWithContext waits for delay or until ctx is done.
func sleepWithContext(ctx context.Context, delay time.Duration) error {
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
