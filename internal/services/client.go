package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failed response is read for its message.
	maxErrorBody = 4 << 10
)

// TokenProvider supplies bearer tokens. [TokenManager] implements it.
type TokenProvider interface {
	Token(ctx context.Context) (models.AccessToken, error)
	Invalidate(rejected string)
}

// Caller performs one classified catalog call and decodes the JSON body into out.
type Caller interface {
	Call(ctx context.Context, method, path string, params url.Values, requiresAuth bool, out any) error
}

// ClientOptions configures a [Client].
type ClientOptions struct {
	BaseURL           string       // defaults to [SpotifyBaseURL]
	HTTPClient        *http.Client // copied; its Timeout is set when zero
	Timeout           time.Duration
	Retry             RetryPolicy
	RequestsPerSecond float64 // 0 disables pacing
	Logger            *log.Logger
}

// Client is the single path through which the services reach the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	retry      RetryPolicy
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewClient creates a [Client]. tokens may be nil when no call requires auth.
func NewClient(tokens TokenProvider, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = SpotifyBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.Timeout
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: hc,
		tokens:     tokens,
		retry:      opts.Retry.withDefaults(),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     opts.Logger,
	}
}

// response is what one attempt produced before classification.
type response struct {
	status int
	header http.Header
	body   []byte
}

// Call performs method on path and decodes a 2xx body into out (skipped when out is nil).
//
// Failures are classified:
//   - 401: the token is invalidated and the call retried once, then [shared.ErrAuth]
//   - 429: [*shared.RateLimitError], not retried
//   - 5xx or network failure: retried with backoff, then [shared.ErrTransient]
//   - other 4xx: [shared.ErrClient], never retried
func (c *Client) Call(ctx context.Context, method, path string, params url.Values, requiresAuth bool, out any) error {
	op := method + " " + path
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if requiresAuth && c.tokens == nil {
		return &shared.APIError{Kind: shared.ErrAuth, Op: op, Message: "no token provider configured"}
	}

	start := time.Now()
	refreshed := false
	failures := 0

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return shared.NewAPIError(shared.ErrTransient, op, err)
		}

		var bearer string
		if requiresAuth {
			tok, err := c.tokens.Token(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			bearer = tok.Value
		}

		resp, err := c.do(ctx, method, endpoint, bearer)

		var failure error
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return shared.NewAPIError(shared.ErrTransient, op, ctx.Err())
			}
			failure = shared.NewAPIError(shared.ErrTransient, op, err)
		case resp.status >= 200 && resp.status < 300:
			c.logger.Debug("catalog call", "op", op, "status", resp.status, "elapsed", time.Since(start).Round(time.Millisecond))
			return decodeBody(op, resp, out)
		case resp.status == http.StatusUnauthorized && requiresAuth && !refreshed:
			c.logger.Debug("catalog call unauthorized, forcing token refresh", "op", op)
			c.tokens.Invalidate(bearer)
			refreshed = true
			continue
		case resp.status == http.StatusUnauthorized:
			return &shared.APIError{Kind: shared.ErrAuth, Op: op, StatusCode: resp.status, Message: apiMessage(resp.body)}
		case resp.status == http.StatusTooManyRequests:
			header := resp.header.Get("Retry-After")
			retryAfter := parseRetryAfter(header, time.Now())
			c.logger.Warn("catalog call rate limited", "op", op, "retry_after", retryAfter)
			return &shared.RateLimitError{Op: op, RetryAfter: retryAfter, Header: header}
		case resp.status >= 500:
			failure = &shared.APIError{Kind: shared.ErrTransient, Op: op, StatusCode: resp.status, Message: apiMessage(resp.body)}
		default:
			return &shared.APIError{Kind: shared.ErrClient, Op: op, StatusCode: resp.status, Message: apiMessage(resp.body)}
		}

		failures++
		if failures >= c.retry.MaxAttempts {
			return failure
		}

		delay := c.retry.Backoff(failures)
		if time.Since(start)+delay > c.retry.MaxRetryTime {
			c.logger.Debug("retry budget exhausted", "op", op, "attempts", failures)
			return failure
		}

		c.logger.Debug("retrying catalog call", "op", op, "attempt", failures, "delay", delay, "error", failure)
		if err := sleepWithContext(ctx, delay); err != nil {
			return shared.NewAPIError(shared.ErrTransient, op, err)
		}
	}
}

func (c *Client) do(ctx context.Context, method, endpoint, bearer string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reader = io.LimitReader(resp.Body, maxErrorBody)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// decodeBody treats an undecodable 2xx body as a transient provider fault.
func decodeBody(op string, resp *response, out any) error {
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &shared.APIError{
			Kind:       shared.ErrTransient,
			Op:         op,
			StatusCode: resp.status,
			Message:    "failed to decode response",
			Err:        err,
		}
	}
	return nil
}

// apiMessage extracts error.message from a Spotify error body, falling back to the raw text.
func apiMessage(body []byte) string {
	var parsed spotifyErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// IsRetryable reports whether a later call with the same input may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, shared.ErrTransient) || errors.Is(err, shared.ErrRateLimited)
}
