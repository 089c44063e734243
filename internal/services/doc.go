// Package services is the Spotify access layer: token lifecycle, authenticated HTTP access,
// playlist search and track selection.
//
// # Token Management
//
// [TokenManager] exchanges the long-lived refresh token for short-lived access tokens through
// [oauth2.Config.TokenSource] and caches the result until expires_at minus a safety margin.
// The check-and-refresh sequence runs under a lock, so concurrent callers share one exchange.
// [TokenManager.Invalidate] drops a token the API rejected, only if it is still the cached one.
//
// # HTTP Access
//
// [Client.Call] injects the bearer token, applies the per-call timeout and request pacing,
// and classifies every failure:
//   - 401 : one forced refresh-and-retry, then [shared.ErrAuth]
//   - 429 : [shared.RateLimitError] with the Retry-After hint, never retried here
//   - 5xx, network : [shared.ErrTransient], retried with exponential backoff and jitter within a time budget
//   - other 4xx : [shared.ErrClient], never retried
//
// # Search and Selection
//
// [PlaylistSearcher] issues one search for the normalized mood keywords (first page only) and
// picks a playlist with [SelectBest]: keyword relevance in name and description, then track
// count, then the order the catalog returned.
//
// [TrackFetcher] returns the first N tracks of a playlist in catalog order, optionally through
// a [TrackCache].
//
// # Errors
//
// Business outcomes ([shared.ErrNoResults], [shared.ErrEmptyPlaylist]) are distinct from
// infrastructure failures; callers test kinds with errors.Is.
package services
