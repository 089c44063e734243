// Package tasks orchestrates a mood recommendation across the catalog services.
//
// # Core Operations
//
// [Recommender] composes the search and track services:
//
//  1. [Recommender.FindPlaylistAndTracks] : mood keywords to a [models.RecommendationResult]
//     - Normalizes the keywords into a [models.SearchQuery]
//     - Searches playlists once and keeps the best-ranked candidate
//     - Fetches the leading tracks of that playlist
//
//  2. [Recommender.SearchCandidates] : the ranked candidate list without fetching tracks
//
//  3. [Recommender.RecommendBatch] : several moods through a bounded worker pool
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends never block;
// a full channel drops the update.
//
// # Errors
//
// Every failure keeps the kind assigned by the services layer, so callers test it with
// errors.Is against the sentinels in the shared package. Nothing is retried or
// swallowed here.
package tasks
