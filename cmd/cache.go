package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheStats prints the number of cached playlists and tracks.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.openCache()
	if err != nil {
		return err
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlainHeader("Track cache: " + r.cfg().Cache.Path)
	r.writePlain("Playlists: %d (%d expired)\n", stats.Playlists, stats.Expired)
	r.writePlain("Tracks:    %d\n", stats.Tracks)
	if stats.Oldest != nil {
		r.writePlain("Oldest:    %s (%s ago)\n", stats.Oldest.Local().Format(time.RFC3339), shared.FormatDuration(time.Since(*stats.Oldest)))
	}
	return nil
}

// CachePurge removes expired playlists from the cache.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.openCache()
	if err != nil {
		return err
	}

	removed, err := cache.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	r.logger.Info("cache purged", "removed", removed)
	r.writePlain("✓ Removed %d expired playlists\n", removed)
	return nil
}

// CacheClear drops one playlist with --id, or everything.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.openCache()
	if err != nil {
		return err
	}

	if id := cmd.String("id"); id != "" {
		if err := cache.Invalidate(ctx, id); err != nil {
			return fmt.Errorf("failed to drop playlist %s: %w", id, err)
		}
		r.writePlain("✓ Dropped playlist %s\n", id)
		return nil
	}

	if err := cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	r.writePlain("✓ Cache cleared\n")
	return nil
}
