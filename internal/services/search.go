package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	// minPrefixMatch is the shortest shared word prefix that counts as a close match,
	// so "relaxing" matches "relax" but "calmer" does not match "call".
	minPrefixMatch = 5

	nameWeight        = 2
	descriptionWeight = 1
	searchOp          = "playlist search"
)

// SearchOptions configures a [PlaylistSearcher].
type SearchOptions struct {
	Limit  int // playlists requested per search, 1..50
	Logger *log.Logger
}

// PlaylistSearcher finds the playlist that best fits a mood.
type PlaylistSearcher struct {
	caller Caller
	limit  int
	logger *log.Logger
}

// NewPlaylistSearcher creates a [PlaylistSearcher] that issues its searches through caller.
func NewPlaylistSearcher(caller Caller, opts SearchOptions) *PlaylistSearcher {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.Limit > MaxSearchLimit {
		opts.Limit = MaxSearchLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &PlaylistSearcher{caller: caller, limit: opts.Limit, logger: opts.Logger}
}

// ParseMood normalizes moodKeywords into a [models.SearchQuery]. Input that leaves no keywords
// is a client error wrapping [shared.ErrInvalidInput], returned before any network call.
func ParseMood(moodKeywords []string) (models.SearchQuery, error) {
	query := models.NewSearchQuery(moodKeywords...)
	if query.Empty() {
		return query, &shared.APIError{
			Kind:    shared.ErrClient,
			Op:      searchOp,
			Message: "mood keywords are empty",
			Err:     shared.ErrInvalidInput,
		}
	}
	return query, nil
}

// SearchBestPlaylist normalizes moodKeywords, searches once and returns the top-ranked candidate.
func (s *PlaylistSearcher) SearchBestPlaylist(ctx context.Context, moodKeywords []string) (models.PlaylistCandidate, error) {
	query, err := ParseMood(moodKeywords)
	if err != nil {
		return models.PlaylistCandidate{}, err
	}

	candidates, err := s.Candidates(ctx, query)
	if err != nil {
		return models.PlaylistCandidate{}, err
	}
	return SelectBest(candidates, query)
}

// Candidates returns the first page of playlists matching query, in provider order,
// with null entries dropped.
func (s *PlaylistSearcher) Candidates(ctx context.Context, query models.SearchQuery) ([]models.PlaylistCandidate, error) {
	params := url.Values{}
	params.Set("q", query.Text())
	params.Set("type", "playlist")
	params.Set("limit", strconv.Itoa(s.limit))

	var resp searchResponse
	if err := s.caller.Call(ctx, http.MethodGet, "/search", params, true, &resp); err != nil {
		return nil, err
	}

	candidates := make([]models.PlaylistCandidate, 0, len(resp.Playlists.Items))
	for _, item := range resp.Playlists.Items {
		if item == nil || item.ID == "" {
			continue
		}
		candidates = append(candidates, mapPlaylist(*item))
	}

	s.logger.Debug("playlist search", "query", query.Text(), "returned", len(resp.Playlists.Items), "kept", len(candidates))
	return candidates, nil
}

// RankedCandidate is a candidate with its relevance score and provider position.
type RankedCandidate struct {
	models.PlaylistCandidate
	Score    int `json:"score"`
	Position int `json:"position"`
}

// Rank orders candidates best first: named before unnamed, then relevance, then track count,
// then provider order. The input slice is not modified.
func Rank(candidates []models.PlaylistCandidate, query models.SearchQuery) []RankedCandidate {
	ranked := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedCandidate{PlaylistCandidate: c, Score: Relevance(c, query.Keywords), Position: i}
	}

	slices.SortStableFunc(ranked, func(a, b RankedCandidate) int {
		aNamed, bNamed := a.Name != "", b.Name != ""
		switch {
		case aNamed != bNamed:
			if aNamed {
				return -1
			}
			return 1
		case a.Score != b.Score:
			return b.Score - a.Score
		case a.TrackCount != b.TrackCount:
			return b.TrackCount - a.TrackCount
		default:
			return a.Position - b.Position
		}
	})
	return ranked
}

// SelectBest returns the top-ranked candidate, or [shared.ErrNoResults] when there are none.
func SelectBest(candidates []models.PlaylistCandidate, query models.SearchQuery) (models.PlaylistCandidate, error) {
	if len(candidates) == 0 {
		return models.PlaylistCandidate{}, &shared.APIError{
			Kind:    shared.ErrNoResults,
			Op:      searchOp,
			Message: fmt.Sprintf("no playlists for %q", query.Text()),
		}
	}
	return Rank(candidates, query)[0].PlaylistCandidate, nil
}

// Relevance scores a candidate against keywords: each keyword adds nameWeight when it
// matches the name and descriptionWeight when it matches the description.
func Relevance(c models.PlaylistCandidate, keywords []string) int {
	name := strings.ToLower(c.Name)
	description := strings.ToLower(c.Description)
	nameWords := words(name)
	descriptionWords := words(description)

	score := 0
	for _, kw := range keywords {
		if matches(kw, name, nameWords) {
			score += nameWeight
		}
		if matches(kw, description, descriptionWords) {
			score += descriptionWeight
		}
	}
	return score
}

// matches reports whether keyword occurs in text or shares a long enough prefix with one of its words.
func matches(keyword, text string, textWords []string) bool {
	if keyword == "" || text == "" {
		return false
	}
	if strings.Contains(text, keyword) {
		return true
	}
	for _, w := range textWords {
		if commonPrefix(keyword, w) >= minPrefixMatch {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func commonPrefix(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := 0
	for n < len(ar) && n < len(br) && ar[n] == br[n] {
		n++
	}
	return n
}
