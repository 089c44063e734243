package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
)

const (
	DefaultTopN = 5
	MaxTopN     = 100

	trackPageSize = 50
	tracksOp      = "playlist tracks"
)

// TrackCache stores playlist tracks between calls.
//
// CachedTracks reports ok when it holds at least n tracks for the playlist, or the whole
// playlist when it is shorter. complete marks a stored list that reached the end of the playlist.
type TrackCache interface {
	CachedTracks(ctx context.Context, playlistID string, n int) (tracks []models.Track, ok bool, err error)
	StoreTracks(ctx context.Context, playlistID string, tracks []models.Track, complete bool) error
}

// TrackOptions configures a [TrackFetcher].
type TrackOptions struct {
	Cache  TrackCache // optional
	Logger *log.Logger
}

// TrackFetcher reads the leading tracks of a playlist.
type TrackFetcher struct {
	caller Caller
	cache  TrackCache
	logger *log.Logger
}

// NewTrackFetcher creates a [TrackFetcher] that pages through caller.
func NewTrackFetcher(caller Caller, opts TrackOptions) *TrackFetcher {
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &TrackFetcher{caller: caller, cache: opts.Cache, logger: opts.Logger}
}

// NormalizeTopN applies the default to non-positive values and caps at [MaxTopN].
func NormalizeTopN(n int) int {
	switch {
	case n <= 0:
		return DefaultTopN
	case n > MaxTopN:
		return MaxTopN
	default:
		return n
	}
}

// TopTracks returns up to topN tracks of playlist in playlist order. Unavailable entries
// (nulls, local files, episodes) are skipped, and pages are requested only until topN are collected.
func (f *TrackFetcher) TopTracks(ctx context.Context, playlist models.PlaylistCandidate, topN int) ([]models.Track, error) {
	if playlist.ID == "" {
		return nil, &shared.APIError{Kind: shared.ErrClient, Op: tracksOp, Message: "playlist id is empty", Err: shared.ErrInvalidInput}
	}
	topN = NormalizeTopN(topN)

	if tracks, ok := f.fromCache(ctx, playlist.ID, topN); ok {
		return tracks, nil
	}

	tracks, complete, err := f.fetch(ctx, playlist.ID, topN)
	if err != nil {
		return nil, err
	}

	if len(tracks) == 0 {
		return nil, &shared.APIError{
			Kind:    shared.ErrEmptyPlaylist,
			Op:      tracksOp,
			Message: fmt.Sprintf("playlist %s has no playable tracks", playlist.ID),
		}
	}

	if f.cache != nil {
		if err := f.cache.StoreTracks(ctx, playlist.ID, tracks, complete); err != nil {
			f.logger.Warn("failed to cache playlist tracks", "playlist", playlist.ID, "error", err)
		}
	}
	return tracks, nil
}

func (f *TrackFetcher) fromCache(ctx context.Context, playlistID string, n int) ([]models.Track, bool) {
	if f.cache == nil {
		return nil, false
	}

	tracks, ok, err := f.cache.CachedTracks(ctx, playlistID, n)
	if err != nil {
		f.logger.Warn("track cache lookup failed", "playlist", playlistID, "error", err)
		return nil, false
	}
	if !ok || len(tracks) == 0 {
		return nil, false
	}

	f.logger.Debug("track cache hit", "playlist", playlistID, "tracks", len(tracks))
	if len(tracks) > n {
		tracks = tracks[:n]
	}
	return tracks, true
}

// fetch pages through the playlist. complete reports whether the last page was reached.
func (f *TrackFetcher) fetch(ctx context.Context, playlistID string, topN int) ([]models.Track, bool, error) {
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	tracks := make([]models.Track, 0, topN)
	offset := 0

	for {
		params := url.Values{}
		params.Set("fields", playlistTrackFields)
		params.Set("limit", strconv.Itoa(trackPageSize))
		params.Set("offset", strconv.Itoa(offset))

		var page playlistTracksResponse
		if err := f.caller.Call(ctx, http.MethodGet, path, params, true, &page); err != nil {
			return nil, false, err
		}

		for _, item := range page.Items {
			track, ok := mapTrack(item)
			if !ok {
				continue
			}
			tracks = append(tracks, track)
			if len(tracks) == topN {
				return tracks, false, nil
			}
		}

		if page.Next == nil || *page.Next == "" || len(page.Items) == 0 {
			return tracks, true, nil
		}
		offset += len(page.Items)
		f.logger.Debug("fetching next track page", "playlist", playlistID, "offset", offset)
	}
}
