package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
)

// DefaultCacheTTL bounds how long a cached playlist is served.
const DefaultCacheTTL = 6 * time.Hour

// CacheStats summarizes the cache contents.
type CacheStats struct {
	Playlists int        `json:"playlists"`
	Tracks    int        `json:"tracks"`
	Expired   int        `json:"expired"`
	Oldest    *time.Time `json:"oldest,omitempty"`
}

// PlaylistCacheRepository caches playlist tracks in SQLite.
type PlaylistCacheRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPlaylistCacheRepository creates a repository over a migrated database. ttl <= 0 uses [DefaultCacheTTL].
func NewPlaylistCacheRepository(db *sql.DB, ttl time.Duration) *PlaylistCacheRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PlaylistCacheRepository{db: db, ttl: ttl, now: time.Now}
}

// CachedTracks returns the first n cached tracks of a playlist. ok is false when the entry is
// missing, expired, or holds fewer than n tracks without covering the whole playlist.
func (r *PlaylistCacheRepository) CachedTracks(ctx context.Context, playlistID string, n int) ([]models.Track, bool, error) {
	var (
		complete  bool
		fetchedAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT complete, fetched_at FROM playlist_cache WHERE playlist_id = ?`,
		playlistID,
	).Scan(&complete, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if r.now().Sub(fetchedAt) > r.ttl {
		return nil, false, nil
	}

	tracks, err := r.tracks(ctx, playlistID, n)
	if err != nil {
		return nil, false, err
	}
	if len(tracks) < n && !complete {
		return nil, false, nil
	}
	return tracks, true, nil
}

func (r *PlaylistCacheRepository) tracks(ctx context.Context, playlistID string, n int) ([]models.Track, error) {
	query := `
		SELECT track_id, name, artists, duration_ms, preview_url, external_url
		FROM playlist_cache_tracks
		WHERE playlist_id = ?
		ORDER BY position
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]models.Track, 0, n)
	for rows.Next() {
		var (
			track       models.Track
			artists     string
			durationMS  int64
			previewURL  sql.NullString
			externalURL sql.NullString
		)
		if err := rows.Scan(&track.ID, &track.Name, &artists, &durationMS, &previewURL, &externalURL); err != nil {
			return nil, fmt.Errorf("failed to scan cached track: %w", err)
		}
		if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
			return nil, fmt.Errorf("failed to decode artists of %s: %w", track.ID, err)
		}
		track.Duration = time.Duration(durationMS) * time.Millisecond
		track.PreviewURL = previewURL.String
		track.ExternalURL = externalURL.String
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached tracks: %w", err)
	}
	return tracks, nil
}

// StoreTracks replaces the cached tracks of a playlist in one transaction.
func (r *PlaylistCacheRepository) StoreTracks(ctx context.Context, playlistID string, tracks []models.Track, complete bool) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_cache WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to clear cache entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO playlist_cache (playlist_id, complete, fetched_at) VALUES (?, ?, ?)`,
		playlistID, complete, r.now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_cache_tracks (id, playlist_id, position, track_id, name, artists, duration_ms, preview_url, external_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, track := range tracks {
		artists, err := json.Marshal(track.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists of %s: %w", track.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			shared.GenerateID(),
			playlistID,
			i,
			track.ID,
			track.Name,
			string(artists),
			track.Duration.Milliseconds(),
			nullString(track.PreviewURL),
			nullString(track.ExternalURL),
		); err != nil {
			return fmt.Errorf("failed to insert cached track: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Invalidate drops one playlist from the cache. Missing entries are not an error.
func (r *PlaylistCacheRepository) Invalidate(ctx context.Context, playlistID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlist_cache WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many playlists were dropped.
func (r *PlaylistCacheRepository) Purge(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.ttl).UTC()
	result, err := r.db.ExecContext(ctx, `DELETE FROM playlist_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// Clear removes every entry.
func (r *PlaylistCacheRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlist_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats reports entry counts.
func (r *PlaylistCacheRepository) Stats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	cutoff := r.now().Add(-r.ttl).UTC()

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN fetched_at < ? THEN 1 ELSE 0 END), 0)
		FROM playlist_cache
	`, cutoff).Scan(&stats.Playlists, &stats.Expired)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlist_cache_tracks`).Scan(&stats.Tracks); err != nil {
		return nil, fmt.Errorf("failed to count cached tracks: %w", err)
	}

	var oldest time.Time
	err = r.db.QueryRowContext(ctx, `SELECT fetched_at FROM playlist_cache ORDER BY fetched_at LIMIT 1`).Scan(&oldest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read oldest entry: %w", err)
	default:
		stats.Oldest = &oldest
	}
	return &stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
