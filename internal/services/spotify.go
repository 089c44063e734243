// Spotify Web API wire types and their mapping onto [models]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/desertthunder/moodmix/internal/models"
)

const (
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	SpotifyBaseURL  = "https://api.spotify.com/v1"
)

// playlistTrackFields trims the playlist-tracks payload to what [models.Track] needs.
const playlistTrackFields = "items(is_local,track(id,name,type,is_local,duration_ms,preview_url,external_urls(spotify),artists(name))),next,total"

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type followers struct {
	Total int `json:"total"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackTotal struct {
	Total int `json:"total"`
}

// spotifyPlaylist is a simplified playlist object as returned by /search.
type spotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Owner        spotifyOwner `json:"owner"`
	Tracks       trackTotal   `json:"tracks"`
	ExternalURLs externalURLs `json:"external_urls"`
	Followers    *followers   `json:"followers"`
}

// searchResponse wraps the playlist page of GET /search. Items may contain nulls.
type searchResponse struct {
	Playlists struct {
		Items []*spotifyPlaylist `json:"items"`
		Total int                `json:"total"`
		Next  *string            `json:"next"`
	} `json:"playlists"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	IsLocal      bool            `json:"is_local"`
	DurationMS   int             `json:"duration_ms"`
	PreviewURL   *string         `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Artists      []spotifyArtist `json:"artists"`
}

type spotifyPlaylistItem struct {
	IsLocal bool          `json:"is_local"`
	Track   *spotifyTrack `json:"track"`
}

// playlistTracksResponse is one page of GET /playlists/{id}/tracks.
type playlistTracksResponse struct {
	Items []*spotifyPlaylistItem `json:"items"`
	Next  *string                `json:"next"`
	Total int                    `json:"total"`
}

// spotifyErrorBody is the regular error object: {"error": {"status": 400, "message": "..."}}.
type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// cleanDescription strips markup and entities that playlist descriptions often carry.
func cleanDescription(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

func mapPlaylist(p spotifyPlaylist) models.PlaylistCandidate {
	candidate := models.PlaylistCandidate{
		ID:          p.ID,
		Name:        strings.TrimSpace(p.Name),
		Description: cleanDescription(p.Description),
		Owner:       p.Owner.DisplayName,
		TrackCount:  p.Tracks.Total,
		ExternalURL: p.ExternalURLs.Spotify,
	}
	if candidate.Owner == "" {
		candidate.Owner = p.Owner.ID
	}
	if p.Followers != nil {
		total := p.Followers.Total
		candidate.Popularity = &total
	}
	return candidate
}

// mapTrack converts a playlist item, reporting false for nulls, local files and podcast episodes.
func mapTrack(item *spotifyPlaylistItem) (models.Track, bool) {
	if item == nil || item.Track == nil || item.IsLocal || item.Track.IsLocal {
		return models.Track{}, false
	}
	t := item.Track
	if t.Type != "" && t.Type != "track" {
		return models.Track{}, false
	}

	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}

	track := models.Track{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     artists,
		Duration:    time.Duration(t.DurationMS) * time.Millisecond,
		ExternalURL: t.ExternalURLs.Spotify,
	}
	if t.PreviewURL != nil {
		track.PreviewURL = *t.PreviewURL
	}
	return track, true
}
