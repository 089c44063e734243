package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// MinSafetyMargin is the smallest margin accepted before expires_at.
	MinSafetyMargin     = 30 * time.Second
	DefaultSafetyMargin = time.Minute

	// defaultTokenLifetime applies when the grant response omits expires_in.
	defaultTokenLifetime = time.Hour
	tokenOp              = "token exchange"
)

// TokenOptions configures a [TokenManager].
type TokenOptions struct {
	TokenURL     string        // defaults to [SpotifyTokenURL]
	SafetyMargin time.Duration // clamped to at least [MinSafetyMargin]
	MaxLifetime  time.Duration // caps the cached lifetime when > 0
	HTTPClient   *http.Client  // used for the token endpoint only
	Timeout      time.Duration // per exchange when HTTPClient has none, defaults to [DefaultTimeout]
	Logger       *log.Logger
	Now          func() time.Time
}

// TokenManager owns the access token lifecycle for one set of [models.Credentials].
//
// It is safe for concurrent use. At most one exchange is in flight; callers that find the
// cache stale while an exchange runs wait for it and reuse its token.
type TokenManager struct {
	config       *oauth2.Config
	httpClient   *http.Client
	margin       time.Duration
	maxLifetime  time.Duration
	logger       *log.Logger
	now          func() time.Time
	exchanges    atomic.Int64
	mu           sync.RWMutex
	token        *models.AccessToken
	refreshToken string
}

// NewTokenManager creates a [TokenManager]. Credentials are validated here so that a missing secret
// fails at startup rather than on the first request.
func NewTokenManager(creds models.Credentials, opts TokenOptions) (*TokenManager, error) {
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if opts.TokenURL == "" {
		opts.TokenURL = SpotifyTokenURL
	}
	if opts.SafetyMargin == 0 {
		opts.SafetyMargin = DefaultSafetyMargin
	}
	if opts.SafetyMargin < MinSafetyMargin {
		opts.SafetyMargin = MinSafetyMargin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	hc := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.Timeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient:   hc,
		margin:       opts.SafetyMargin,
		maxLifetime:  opts.MaxLifetime,
		logger:       opts.Logger,
		now:          opts.Now,
		refreshToken: creds.RefreshToken,
	}, nil
}

// Token returns a cached access token, exchanging the refresh token when none is cached
// or the cached one is inside the safety margin.
func (m *TokenManager) Token(ctx context.Context) (models.AccessToken, error) {
	m.mu.RLock()
	cached := m.token
	m.mu.RUnlock()
	if cached != nil && cached.Valid(m.now(), m.margin) {
		return *cached, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while this one waited for the lock.
	if m.token != nil && m.token.Valid(m.now(), m.margin) {
		return *m.token, nil
	}

	fresh, err := m.exchange(ctx)
	if err != nil {
		return models.AccessToken{}, err
	}
	m.token = &fresh
	return fresh, nil
}

// Invalidate drops the cached token if its value is rejected. A token already replaced
// by a concurrent refresh is left alone.
func (m *TokenManager) Invalidate(rejected string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil && m.token.Value == rejected {
		m.logger.Debug("access token rejected, dropping cached token")
		m.token = nil
	}
}

// Exchanges reports how many refresh-token grants have been attempted.
func (m *TokenManager) Exchanges() int64 {
	return m.exchanges.Load()
}

// exchange performs the refresh-token grant. Callers hold m.mu.
func (m *TokenManager) exchange(ctx context.Context) (models.AccessToken, error) {
	m.exchanges.Add(1)
	issuedAt := m.now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken}).Token()
	if err != nil {
		classified := classifyTokenError(err)
		m.logger.Warn("token exchange failed", "kind", shared.Kind(classified))
		return models.AccessToken{}, classified
	}

	if tok.RefreshToken != "" && tok.RefreshToken != m.refreshToken {
		m.logger.Info("refresh token rotated by provider")
		m.refreshToken = tok.RefreshToken
	}

	lifetime := tokenLifetime(tok, issuedAt)
	if m.maxLifetime > 0 && lifetime > m.maxLifetime {
		lifetime = m.maxLifetime
	}

	fresh := models.AccessToken{Value: tok.AccessToken, ExpiresAt: issuedAt.Add(lifetime)}
	m.logger.Debug("access token refreshed", "expires_in", lifetime, "expires_at", fresh.ExpiresAt.Format(time.RFC3339))
	return fresh, nil
}

// tokenLifetime prefers the wire expires_in, then oauth2's computed expiry, then the default.
func tokenLifetime(tok *oauth2.Token, now time.Time) time.Duration {
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		if d := tok.Expiry.Sub(now).Round(time.Second); d > 0 {
			return d
		}
	}
	return defaultTokenLifetime
}

// classifyTokenError maps oauth2 failures onto the error taxonomy.
//
// Rejected client credentials or a revoked refresh token (400/401/403, invalid_grant,
// invalid_client) are auth failures and must not be retried with the same credentials.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		msg := re.ErrorCode
		if re.ErrorDescription != "" {
			msg = strings.TrimSpace(msg + " " + re.ErrorDescription)
		}

		switch {
		case status == http.StatusTooManyRequests:
			header := re.Response.Header.Get("Retry-After")
			return &shared.RateLimitError{Op: tokenOp, RetryAfter: parseRetryAfter(header, time.Now()), Header: header}
		case status >= http.StatusInternalServerError:
			return &shared.APIError{Kind: shared.ErrTransient, Op: tokenOp, StatusCode: status, Message: msg}
		default:
			return &shared.APIError{Kind: shared.ErrAuth, Op: tokenOp, StatusCode: status, Message: msg}
		}
	}

	if isNetworkError(err) {
		return shared.NewAPIError(shared.ErrTransient, tokenOp, err)
	}

	// e.g. a 200 response without an access_token
	return shared.NewAPIError(shared.ErrAuth, tokenOp, err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
