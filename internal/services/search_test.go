package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	tu "github.com/desertthunder/moodmix/internal/testing"
)

func TestRank(t *testing.T) {
	query := models.NewSearchQuery("calm relax")

	t.Run("Description Match Beats Order", func(t *testing.T) {
		relax := models.PlaylistCandidate{ID: "relax", Name: "Evening Mix", Description: "tunes to relax", TrackCount: 10}
		other := models.PlaylistCandidate{ID: "other", Name: "Workout", TrackCount: 80}

		for _, input := range [][]models.PlaylistCandidate{{relax, other}, {other, relax}} {
			best, err := SelectBest(input, query)
			if err != nil {
				t.Fatalf("SelectBest() error = %v", err)
			}
			if best.ID != "relax" {
				t.Errorf("SelectBest() = %q, want relax", best.ID)
			}
		}
	})

	t.Run("Name Match Beats Description Match", func(t *testing.T) {
		candidates := []models.PlaylistCandidate{
			{ID: "desc", Name: "Sunday", Description: "calm songs"},
			{ID: "name", Name: "Calm Vibes"},
		}
		ranked := Rank(candidates, query)
		if ranked[0].ID != "name" || ranked[0].Score != 2 || ranked[1].Score != 1 {
			t.Errorf("unexpected ranking: %+v", ranked)
		}
	})

	t.Run("Name Keyword Outweighs Other Description Keyword", func(t *testing.T) {
		described := models.PlaylistCandidate{ID: "described", Name: "Evening", Description: "music to relax", TrackCount: 90}
		named := models.PlaylistCandidate{ID: "named", Name: "Calm Mix", Description: "evening tunes", TrackCount: 10}

		for _, input := range [][]models.PlaylistCandidate{{described, named}, {named, described}} {
			ranked := Rank(input, query)
			if ranked[0].ID != "named" || ranked[0].Score != nameWeight || ranked[1].Score != descriptionWeight {
				t.Errorf("unexpected ranking: %+v", ranked)
			}
		}
	})

	t.Run("Track Count Breaks Ties", func(t *testing.T) {
		candidates := []models.PlaylistCandidate{
			{ID: "small", Name: "Calm", TrackCount: 12},
			{ID: "large", Name: "Calm", TrackCount: 200},
		}
		if best, _ := SelectBest(candidates, query); best.ID != "large" {
			t.Errorf("SelectBest() = %q, want large", best.ID)
		}
	})

	t.Run("Provider Order Breaks Remaining Ties", func(t *testing.T) {
		candidates := []models.PlaylistCandidate{
			{ID: "a", Name: "Mix", TrackCount: 50},
			{ID: "b", Name: "Mix", TrackCount: 50},
			{ID: "c", Name: "Mix", TrackCount: 50},
		}
		ranked := Rank(candidates, query)
		for i, want := range []string{"a", "b", "c"} {
			if ranked[i].ID != want || ranked[i].Position != i {
				t.Errorf("ranked[%d] = %q (position %d), want %q", i, ranked[i].ID, ranked[i].Position, want)
			}
		}
	})

	t.Run("Unnamed Ranks Last", func(t *testing.T) {
		candidates := []models.PlaylistCandidate{
			{ID: "unnamed", Description: "calm relax calm", TrackCount: 500},
			{ID: "named", Name: "Afternoon", TrackCount: 1},
		}
		if best, _ := SelectBest(candidates, query); best.ID != "named" {
			t.Errorf("SelectBest() = %q, want named", best.ID)
		}
	})

	t.Run("Does Not Modify Input", func(t *testing.T) {
		candidates := []models.PlaylistCandidate{{ID: "x", Name: "Loud"}, {ID: "y", Name: "Calm"}}
		Rank(candidates, query)
		if candidates[0].ID != "x" {
			t.Error("Rank reordered its input")
		}
	})

	t.Run("Empty Is No Results", func(t *testing.T) {
		_, err := SelectBest(nil, query)
		if !errors.Is(err, shared.ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
	})
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name      string
		candidate models.PlaylistCandidate
		keywords  []string
		want      int
	}{
		{name: "Substring", candidate: models.PlaylistCandidate{Name: "Chillhop Essentials"}, keywords: []string{"chill"}, want: 2},
		{name: "Shared Prefix", candidate: models.PlaylistCandidate{Name: "Relax"}, keywords: []string{"relaxing"}, want: 2},
		{name: "Short Prefix Ignored", candidate: models.PlaylistCandidate{Name: "Call Me"}, keywords: []string{"calmer"}, want: 0},
		{name: "Case Insensitive", candidate: models.PlaylistCandidate{Name: "HAPPY Hits", Description: "Happy songs"}, keywords: []string{"happy"}, want: 3},
		{name: "Every Keyword Counts", candidate: models.PlaylistCandidate{Name: "Happy Energetic Pop"}, keywords: []string{"happy", "energetic"}, want: 4},
		{name: "No Keywords", candidate: models.PlaylistCandidate{Name: "Anything"}, keywords: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relevance(tt.candidate, tt.keywords); got != tt.want {
				t.Errorf("Relevance() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseMood(t *testing.T) {
	t.Run("Normalizes", func(t *testing.T) {
		query, err := ParseMood([]string{"  Rainy ", "Day"})
		if err != nil {
			t.Fatalf("ParseMood() error = %v", err)
		}
		if query.Text() != "rainy day" {
			t.Errorf("Text() = %q, want %q", query.Text(), "rainy day")
		}
	})

	t.Run("Blank Is Invalid Input", func(t *testing.T) {
		for _, mood := range [][]string{nil, {""}, {"  ", "\t"}} {
			_, err := ParseMood(mood)
			if !errors.Is(err, shared.ErrClient) || !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("ParseMood(%q) = %v, want a client error wrapping ErrInvalidInput", mood, err)
			}
		}
	})
}

func TestPlaylistSearcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Search Best Playlist", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetPlaylists(
			nil,
			tu.Playlist("p1", "Workout Bangers", "loud", 100),
			tu.Playlist("p2", "Sunday Morning", "<b>calm</b> &amp; relaxed", 40),
		)
		searcher := NewPlaylistSearcher(client, SearchOptions{})

		best, err := searcher.SearchBestPlaylist(ctx, []string{"  Calm ", "Relax"})
		if err != nil {
			t.Fatalf("SearchBestPlaylist() error = %v", err)
		}
		if best.ID != "p2" {
			t.Errorf("best = %q, want p2", best.ID)
		}
		if best.Description != "calm & relaxed" {
			t.Errorf("description = %q, want markup stripped", best.Description)
		}
		if best.Owner != "Owner p2" || best.ExternalURL == "" {
			t.Errorf("unexpected playlist fields: %+v", best)
		}
		if q := fake.Queries(); len(q) != 1 || q[0] != "calm relax" {
			t.Errorf("queries = %v, want [calm relax]", q)
		}
	})

	t.Run("Null Items Dropped", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetPlaylists(nil, tu.Playlist("p1", "Calm", "", 1), nil)
		searcher := NewPlaylistSearcher(client, SearchOptions{})

		candidates, err := searcher.Candidates(ctx, models.NewSearchQuery("calm"))
		if err != nil {
			t.Fatalf("Candidates() error = %v", err)
		}
		if len(candidates) != 1 {
			t.Errorf("expected 1 candidate, got %d", len(candidates))
		}
	})

	t.Run("No Results", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetPlaylists(nil, nil)
		searcher := NewPlaylistSearcher(client, SearchOptions{})

		_, err := searcher.SearchBestPlaylist(ctx, []string{"zzzz"})
		if !errors.Is(err, shared.ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
	})

	t.Run("Empty Mood", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		searcher := NewPlaylistSearcher(client, SearchOptions{})

		_, err := searcher.SearchBestPlaylist(ctx, []string{"   ", ""})
		if !errors.Is(err, shared.ErrClient) || !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected client error for empty mood, got %v", err)
		}
		if fake.APICalls() != 0 {
			t.Errorf("expected no API calls, got %d", fake.APICalls())
		}
	})

	t.Run("Failures Keep Their Kind", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.QueueFailures(http.StatusTooManyRequests)
		searcher := NewPlaylistSearcher(client, SearchOptions{})

		_, err := searcher.SearchBestPlaylist(ctx, []string{"calm"})
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Limit Clamped", func(t *testing.T) {
		if s := NewPlaylistSearcher(nil, SearchOptions{Limit: 500}); s.limit != MaxSearchLimit {
			t.Errorf("limit = %d, want %d", s.limit, MaxSearchLimit)
		}
		if s := NewPlaylistSearcher(nil, SearchOptions{}); s.limit != DefaultSearchLimit {
			t.Errorf("limit = %d, want %d", s.limit, DefaultSearchLimit)
		}
	})
}
