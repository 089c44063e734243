package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Catalog access kinds. Every failure surfaced by the services wraps exactly one of these.
	ErrAuth          = fmt.Errorf("authentication failed")
	ErrRateLimited   = fmt.Errorf("rate limited")
	ErrTransient     = fmt.Errorf("transient failure")
	ErrClient        = fmt.Errorf("client error")
	ErrNoResults     = fmt.Errorf("no playlists found")
	ErrEmptyPlaylist = fmt.Errorf("playlist has no tracks")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// APIError describes a classified failure of a catalog or token call.
//
// Kind is one of [ErrAuth], [ErrTransient], [ErrClient], [ErrNoResults] or [ErrEmptyPlaylist],
// so errors.Is(err, shared.ErrAuth) works through any amount of wrapping.
type APIError struct {
	Kind       error
	Op         string // e.g. "token exchange", "GET /search"
	StatusCode int    // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewAPIError is shorthand for an [APIError] without a status code.
func NewAPIError(kind error, op string, err error) *APIError {
	return &APIError{Kind: kind, Op: op, Err: err}
}

// RateLimitError is returned on HTTP 429. RetryAfter holds the provider's hint, zero when absent.
type RateLimitError struct {
	Op         string
	RetryAfter time.Duration
	Header     string // raw Retry-After value
}

func (e *RateLimitError) Error() string {
	msg := ErrRateLimited.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s, retry after %s", msg, e.RetryAfter)
	}
	return msg
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Kind returns a stable name for the failure kind wrapped by err, or "internal" for anything unclassified.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrEmptyPlaylist):
		return "empty_playlist"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrClient):
		return "client"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// RetryAfter extracts the retry hint from a wrapped [RateLimitError].
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// IsBusinessOutcome reports whether err is an expected, non-fatal outcome (no results, empty playlist)
// rather than an infrastructure failure.
func IsBusinessOutcome(err error) bool {
	return errors.Is(err, ErrNoResults) || errors.Is(err, ErrEmptyPlaylist)
}
