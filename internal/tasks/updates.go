package tasks

import (
	"fmt"

	"github.com/desertthunder/moodmix/internal/models"
)

// ProgressUpdate represents a progress event during a recommendation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	SearchPlaylists Phase = iota
	SelectPlaylist
	FetchTracks
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case SearchPlaylists:
		return "search_playlists"
	case SelectPlaylist:
		return "select_playlist"
	case FetchTracks:
		return "fetch_tracks"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

func searchingUpdate(step, total int, query models.SearchQuery) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Searching playlists for %q...", query.Text()),
		Data:    query,
	}
}

func selectedUpdate(step, total int, playlist models.PlaylistCandidate, candidates int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Picked %q out of %d playlists", playlist.Name, candidates),
		Data:    playlist,
	}
}

func fetchingTracksUpdate(step, total int, playlist models.PlaylistCandidate, topN int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching top %d tracks from %q...", topN, playlist.Name),
		Data:    playlist,
	}
}

func completedUpdate(step, total int, result *models.RecommendationResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Found %d tracks in %q", len(result.Tracks), result.Playlist.Name),
		Data:    result,
	}
}

func failedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: err.Error(),
		Data:    err,
	}
}
