package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Credentials holds the long-lived secrets used for the refresh-token grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Missing returns the names of empty fields, in declaration order.
func (c Credentials) Missing() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	return missing
}

// AccessToken is a bearer credential usable while now < ExpiresAt - margin.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be sent at now, leaving margin for request latency.
func (t AccessToken) Valid(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// SearchQuery is derived once per request from the caller's mood input.
type SearchQuery struct {
	Raw      string   `json:"raw"`
	Keywords []string `json:"keywords"`
}

// NewSearchQuery builds a [SearchQuery] from one or more mood fragments.
//
// Each fragment is trimmed, lower-cased and split on whitespace; empty tokens are dropped.
func NewSearchQuery(mood ...string) SearchQuery {
	raw := strings.Join(mood, " ")
	return SearchQuery{Raw: raw, Keywords: NormalizeKeywords(mood...)}
}

// NormalizeKeywords trims, lower-cases and splits fragments into ordered keywords.
// Applying it to its own output returns the same keywords.
func NormalizeKeywords(fragments ...string) []string {
	keywords := []string{}
	for _, f := range fragments {
		keywords = append(keywords, strings.Fields(strings.ToLower(strings.TrimSpace(f)))...)
	}
	return keywords
}

// Text is the free-text form sent to the catalog search endpoint.
func (q SearchQuery) Text() string {
	return strings.Join(q.Keywords, " ")
}

// Empty reports whether normalization left no keywords.
func (q SearchQuery) Empty() bool {
	return len(q.Keywords) == 0
}

// PlaylistCandidate is a playlist returned by a catalog search.
type PlaylistCandidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	ExternalURL string `json:"external_url,omitempty"`
	Popularity  *int   `json:"popularity,omitempty"` // follower count; absent in search results
}

// Track is one playlist entry.
type Track struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Artists     []string      `json:"artists"`
	Duration    time.Duration `json:"-"` // serialized as duration_ms
	PreviewURL  string        `json:"preview_url,omitempty"`
	ExternalURL string        `json:"external_url,omitempty"`
}

type trackJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	DurationMS  int64    `json:"duration_ms"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	ExternalURL string   `json:"external_url,omitempty"`
}

// MarshalJSON writes the duration in whole milliseconds, matching the catalog's duration_ms.
func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     t.Artists,
		DurationMS:  t.Duration.Milliseconds(),
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURL,
	})
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var raw trackJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Track{
		ID:          raw.ID,
		Name:        raw.Name,
		Artists:     raw.Artists,
		Duration:    time.Duration(raw.DurationMS) * time.Millisecond,
		PreviewURL:  raw.PreviewURL,
		ExternalURL: raw.ExternalURL,
	}
	return nil
}

// ArtistLine joins artist names the way listings display them.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Link prefers the audio preview and falls back to the track page.
func (t Track) Link() string {
	if t.PreviewURL != "" {
		return t.PreviewURL
	}
	return t.ExternalURL
}

// RecommendationResult is the terminal value returned to the caller.
type RecommendationResult struct {
	Query    SearchQuery       `json:"query"`
	Playlist PlaylistCandidate `json:"playlist"`
	Tracks   []Track           `json:"tracks"`
}

// NewRecommendationResult copies tracks so later mutation of the input cannot leak into the result.
func NewRecommendationResult(q SearchQuery, p PlaylistCandidate, tracks []Track) *RecommendationResult {
	copied := make([]Track, len(tracks))
	copy(copied, tracks)
	return &RecommendationResult{Query: q, Playlist: p, Tracks: copied}
}
