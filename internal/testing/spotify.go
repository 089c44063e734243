package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeSpotify serves the accounts token endpoint and the catalog endpoints the services use:
//
//	POST /api/token
//	GET  /v1/search
//	GET  /v1/playlists/{id}/tracks
//
// Search items and playlist items are raw JSON-shaped maps so tests can include nulls
// and malformed entries. A nil entry encodes as JSON null.
type FakeSpotify struct {
	Server *httptest.Server

	mu            sync.Mutex
	playlists     []map[string]any
	items         map[string][]map[string]any
	tokenStatus   int
	tokenLifetime int
	rotateTo      string
	failures      []int
	retryAfter    string
	issued        map[string]bool
	tokenCalls    int
	apiCalls      int
	queries       []string
	lastAuth      string
}

// NewFakeSpotify starts a fake server closed by t.Cleanup.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		items:         map[string][]map[string]any{},
		issued:        map[string]bool{},
		tokenLifetime: 3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/search", f.handleSearch)
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.handleTracks)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// TokenURL is the fake accounts endpoint.
func (f *FakeSpotify) TokenURL() string { return f.Server.URL + "/api/token" }

// APIURL is the fake catalog base URL.
func (f *FakeSpotify) APIURL() string { return f.Server.URL + "/v1" }

// SetPlaylists replaces the search results.
func (f *FakeSpotify) SetPlaylists(playlists ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists = playlists
}

// SetTracks replaces the items of a playlist.
func (f *FakeSpotify) SetTracks(playlistID string, items ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[playlistID] = items
}

// FailToken makes the token endpoint answer with status (0 restores normal behavior).
func (f *FakeSpotify) FailToken(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
}

// SetTokenLifetime sets expires_in for issued tokens; 0 omits the field.
func (f *FakeSpotify) SetTokenLifetime(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenLifetime = seconds
}

// RotateRefreshToken makes the next grants return a new refresh token.
func (f *FakeSpotify) RotateRefreshToken(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateTo = value
}

// QueueFailures makes the next catalog calls answer with the given statuses, in order.
// A 429 carries the Retry-After value set by [FakeSpotify.SetRetryAfter].
func (f *FakeSpotify) QueueFailures(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, statuses...)
}

func (f *FakeSpotify) SetRetryAfter(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryAfter = value
}

// RevokeTokens makes every issued access token answer 401 until a new one is issued.
func (f *FakeSpotify) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = map[string]bool{}
}

func (f *FakeSpotify) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func (f *FakeSpotify) APICalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apiCalls
}

// Queries returns the q parameters received by /search, in order.
func (f *FakeSpotify) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// LastTokenAuth returns the Authorization header of the last token request.
func (f *FakeSpotify) LastTokenAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokenCalls++
	f.lastAuth = r.Header.Get("Authorization")

	if f.tokenStatus != 0 {
		writeJSON(w, f.tokenStatus, map[string]any{"error": "invalid_grant", "error_description": "Invalid refresh token"})
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	token := fmt.Sprintf("access-%d", f.tokenCalls)
	f.issued[token] = true

	body := map[string]any{"access_token": token, "token_type": "Bearer", "scope": "playlist-read-private"}
	if f.tokenLifetime > 0 {
		body["expires_in"] = f.tokenLifetime
	}
	if f.rotateTo != "" {
		body["refresh_token"] = f.rotateTo
	}
	writeJSON(w, http.StatusOK, body)
}

// authorize applies queued failures and bearer checks. It reports false when a response was written.
func (f *FakeSpotify) authorize(w http.ResponseWriter, r *http.Request) bool {
	f.apiCalls++

	if len(f.failures) > 0 {
		status := f.failures[0]
		f.failures = f.failures[1:]
		if status == http.StatusTooManyRequests && f.retryAfter != "" {
			w.Header().Set("Retry-After", f.retryAfter)
		}
		writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": http.StatusText(status)}})
		return false
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !f.issued[token] {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}})
		return false
	}
	return true
}

func (f *FakeSpotify) handleSearch(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorize(w, r) {
		return
	}
	if r.URL.Query().Get("type") != "playlist" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"status": 400, "message": "unsupported type"}})
		return
	}
	f.queries = append(f.queries, r.URL.Query().Get("q"))

	items := f.playlists
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": map[string]any{"items": items, "total": len(f.playlists), "next": nil}})
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorize(w, r) {
		return
	}

	all, ok := f.items[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Resource not found"}})
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))

	var next any
	if end < len(all) {
		next = fmt.Sprintf("%s%s?offset=%d&limit=%d", f.Server.URL, r.URL.Path, end, limit)
	}
	page := all[offset:end]
	if page == nil {
		page = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": page, "next": next, "total": len(all)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Playlist builds a simplified playlist object as /search returns it.
func Playlist(id, name, description string, tracks int) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"description":   description,
		"owner":         map[string]any{"id": "owner-" + id, "display_name": "Owner " + id},
		"tracks":        map[string]any{"total": tracks},
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/playlist/" + id},
	}
}

// TrackItem builds a playlist item wrapping a track.
func TrackItem(id, name string, artists ...string) map[string]any {
	artistObjs := make([]map[string]any, 0, len(artists))
	for _, a := range artists {
		artistObjs = append(artistObjs, map[string]any{"name": a})
	}
	return map[string]any{
		"is_local": false,
		"track": map[string]any{
			"id":            id,
			"name":          name,
			"type":          "track",
			"is_local":      false,
			"duration_ms":   200000,
			"preview_url":   "https://p.scdn.co/mp3-preview/" + id,
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
			"artists":       artistObjs,
		},
	}
}

// NullTrackItem is a playlist item whose track was removed from the catalog.
func NullTrackItem() map[string]any {
	return map[string]any{"is_local": false, "track": nil}
}

// EpisodeItem is a podcast episode entry.
func EpisodeItem(id string) map[string]any {
	return map[string]any{"is_local": false, "track": map[string]any{"id": id, "name": "Episode " + id, "type": "episode"}}
}

// TrackItems builds n sequential tracks named "Track 1".."Track n".
func TrackItems(n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range n {
		items[i] = TrackItem(fmt.Sprintf("t%d", i+1), fmt.Sprintf("Track %d", i+1), "Artist")
	}
	return items
}
