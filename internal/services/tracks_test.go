package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	tu "github.com/desertthunder/moodmix/internal/testing"
)

// memoryCache is an in-process [TrackCache].
type memoryCache struct {
	mu       sync.Mutex
	tracks   map[string][]models.Track
	complete map[string]bool
	stores   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tracks: map[string][]models.Track{}, complete: map[string]bool{}}
}

func (c *memoryCache) CachedTracks(_ context.Context, id string, n int) ([]models.Track, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tracks, ok := c.tracks[id]
	if !ok || (len(tracks) < n && !c.complete[id]) {
		return nil, false, nil
	}
	return tracks, true, nil
}

func (c *memoryCache) StoreTracks(_ context.Context, id string, tracks []models.Track, complete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks[id] = tracks
	c.complete[id] = complete
	c.stores++
	return nil
}

func TestTrackFetcher(t *testing.T) {
	ctx := context.Background()
	playlist := models.PlaylistCandidate{ID: "p1", Name: "Calm"}

	t.Run("Fewer Tracks Than Requested", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(3)...)

		tracks, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, playlist, 5)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(tracks))
		}
		if tracks[0].Name != "Track 1" || tracks[2].Name != "Track 3" {
			t.Errorf("tracks out of playlist order: %+v", tracks)
		}
		if tracks[0].ArtistLine() != "Artist" || tracks[0].PreviewURL == "" || tracks[0].ExternalURL == "" {
			t.Errorf("unexpected track fields: %+v", tracks[0])
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1")

		_, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, playlist, 5)
		if !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
	})

	t.Run("Only Unavailable Entries", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.NullTrackItem(), tu.EpisodeItem("e1"))

		_, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, playlist, 5)
		if !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected ErrEmptyPlaylist, got %v", err)
		}
	})

	t.Run("Unavailable Entries Skipped", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		local := tu.TrackItem("l1", "Local File", "Me")
		local["is_local"] = true
		fake.SetTracks("p1",
			tu.TrackItem("a", "First", "A"),
			tu.NullTrackItem(),
			tu.EpisodeItem("e1"),
			local,
			tu.TrackItem("b", "Second", "B", "C"),
		)

		tracks, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, playlist, 5)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 2 || tracks[0].ID != "a" || tracks[1].ID != "b" {
			t.Fatalf("unexpected tracks: %+v", tracks)
		}
		if tracks[1].ArtistLine() != "B, C" {
			t.Errorf("ArtistLine() = %q", tracks[1].ArtistLine())
		}
	})

	t.Run("Stops Paging At Top N", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(120)...)
		fetcher := NewTrackFetcher(client, TrackOptions{})

		tracks, err := fetcher.TopTracks(ctx, playlist, 5)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 5 || fake.APICalls() != 1 {
			t.Errorf("expected 5 tracks from 1 page, got %d from %d calls", len(tracks), fake.APICalls())
		}
	})

	t.Run("Pages Until Top N", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(120)...)

		tracks, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, playlist, 80)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 80 || tracks[79].Name != "Track 80" {
			t.Errorf("expected tracks 1..80, got %d", len(tracks))
		}
		if fake.APICalls() != 2 {
			t.Errorf("expected 2 pages, got %d", fake.APICalls())
		}
	})

	t.Run("Default And Cap", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(150)...)
		fetcher := NewTrackFetcher(client, TrackOptions{})

		tracks, err := fetcher.TopTracks(ctx, playlist, 0)
		if err != nil || len(tracks) != DefaultTopN {
			t.Errorf("topN=0: got %d tracks, err %v", len(tracks), err)
		}
		tracks, err = fetcher.TopTracks(ctx, playlist, 1000)
		if err != nil || len(tracks) != MaxTopN {
			t.Errorf("topN=1000: got %d tracks, err %v", len(tracks), err)
		}
	})

	t.Run("Missing Playlist ID", func(t *testing.T) {
		_, err := NewTrackFetcher(nil, TrackOptions{}).TopTracks(ctx, models.PlaylistCandidate{}, 5)
		if !errors.Is(err, shared.ErrClient) {
			t.Errorf("expected ErrClient, got %v", err)
		}
	})

	t.Run("Unknown Playlist", func(t *testing.T) {
		_, _, client := newFakeStack(t)
		_, err := NewTrackFetcher(client, TrackOptions{}).TopTracks(ctx, models.PlaylistCandidate{ID: "gone"}, 5)
		if !errors.Is(err, shared.ErrClient) {
			t.Errorf("expected ErrClient, got %v", err)
		}
	})

	t.Run("Cache", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(3)...)
		cache := newMemoryCache()
		fetcher := NewTrackFetcher(client, TrackOptions{Cache: cache})

		if _, err := fetcher.TopTracks(ctx, playlist, 5); err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		calls := fake.APICalls()
		if cache.stores != 1 || !cache.complete["p1"] {
			t.Fatalf("expected a complete cache entry, got %d stores", cache.stores)
		}

		tracks, err := fetcher.TopTracks(ctx, playlist, 10)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 3 || fake.APICalls() != calls {
			t.Errorf("expected cached tracks without new calls, got %d tracks and %d calls", len(tracks), fake.APICalls()-calls)
		}
	})

	t.Run("Partial Cache Refetched", func(t *testing.T) {
		fake, _, client := newFakeStack(t)
		fake.SetTracks("p1", tu.TrackItems(20)...)
		cache := newMemoryCache()
		fetcher := NewTrackFetcher(client, TrackOptions{Cache: cache})

		if _, err := fetcher.TopTracks(ctx, playlist, 2); err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		tracks, err := fetcher.TopTracks(ctx, playlist, 10)
		if err != nil {
			t.Fatalf("TopTracks() error = %v", err)
		}
		if len(tracks) != 10 || fake.APICalls() != 2 {
			t.Errorf("expected a refetch for a larger top N, got %d tracks from %d calls", len(tracks), fake.APICalls())
		}
	})
}

func TestNormalizeTopN(t *testing.T) {
	tests := []struct{ in, want int }{{-3, 5}, {0, 5}, {1, 1}, {100, 100}, {101, 100}}
	for _, tt := range tests {
		if got := NormalizeTopN(tt.in); got != tt.want {
			t.Errorf("NormalizeTopN(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
