package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
)

const recommendSteps = 3

// PlaylistFinder returns playlists matching a query in provider order.
// [services.PlaylistSearcher] implements it.
type PlaylistFinder interface {
	Candidates(ctx context.Context, query models.SearchQuery) ([]models.PlaylistCandidate, error)
}

// TrackSource returns the leading tracks of a playlist.
// [services.TrackFetcher] implements it.
type TrackSource interface {
	TopTracks(ctx context.Context, playlist models.PlaylistCandidate, topN int) ([]models.Track, error)
}

// RecommenderOpts configures a [Recommender].
type RecommenderOpts struct {
	DefaultTopN int // used when a call passes topN <= 0
	Logger      *log.Logger
}

// Recommender is the single entry point that turns mood keywords into a playlist and its tracks.
// It holds no per-request state and is safe for concurrent use.
type Recommender struct {
	playlists   PlaylistFinder
	tracks      TrackSource
	defaultTopN int
	logger      *log.Logger
}

// NewRecommender creates a [Recommender] over the given services.
func NewRecommender(playlists PlaylistFinder, tracks TrackSource, opts RecommenderOpts) *Recommender {
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = services.DefaultTopN
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &Recommender{
		playlists:   playlists,
		tracks:      tracks,
		defaultTopN: opts.DefaultTopN,
		logger:      opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (r *Recommender) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FindPlaylistAndTracks picks the playlist that best fits moodKeywords and returns up to topN of its tracks.
func (r *Recommender) FindPlaylistAndTracks(ctx context.Context, moodKeywords []string, topN int) (*models.RecommendationResult, error) {
	return r.Recommend(ctx, nil, moodKeywords, topN)
}

// Recommend is [Recommender.FindPlaylistAndTracks] with progress reporting.
func (r *Recommender) Recommend(ctx context.Context, progress chan<- ProgressUpdate, moodKeywords []string, topN int) (*models.RecommendationResult, error) {
	ctx, requestID := shared.EnsureRequestID(ctx)
	logger := shared.WithLogger(r.logger, "request_id", requestID)
	start := time.Now()

	result, err := r.recommend(ctx, progress, logger, moodKeywords, topN)
	if err != nil {
		r.sendProgress(progress, failedUpdate(recommendSteps, recommendSteps, err))
		if shared.IsBusinessOutcome(err) {
			logger.Info("no recommendation", "kind", shared.Kind(err), "reason", err)
		} else {
			logger.Error("recommendation failed", "kind", shared.Kind(err), "err", err)
		}
		return nil, err
	}

	r.sendProgress(progress, completedUpdate(recommendSteps, recommendSteps, result))
	logger.Info("recommendation ready",
		"playlist", result.Playlist.ID,
		"tracks", len(result.Tracks),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

func (r *Recommender) recommend(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
	moodKeywords []string,
	topN int,
) (*models.RecommendationResult, error) {
	query, err := services.ParseMood(moodKeywords)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = r.defaultTopN
	}
	topN = services.NormalizeTopN(topN)

	logger.Debug("searching playlists", "query", query.Text(), "top_n", topN)
	r.sendProgress(progress, searchingUpdate(1, recommendSteps, query))

	candidates, err := r.playlists.Candidates(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search playlists for %q: %w", query.Text(), err)
	}

	best, err := services.SelectBest(candidates, query)
	if err != nil {
		return nil, err
	}
	logger.Debug("selected playlist", "playlist", best.ID, "name", best.Name, "candidates", len(candidates))
	r.sendProgress(progress, selectedUpdate(2, recommendSteps, best, len(candidates)))

	r.sendProgress(progress, fetchingTracksUpdate(3, recommendSteps, best, topN))
	tracks, err := r.tracks.TopTracks(ctx, best, topN)
	if err != nil {
		return nil, fmt.Errorf("fetch tracks of %s: %w", best.ID, err)
	}

	return models.NewRecommendationResult(query, best, tracks), nil
}

// SearchCandidates returns every candidate for moodKeywords, best first, without fetching tracks.
func (r *Recommender) SearchCandidates(ctx context.Context, moodKeywords []string) (models.SearchQuery, []services.RankedCandidate, error) {
	ctx, requestID := shared.EnsureRequestID(ctx)
	logger := shared.WithLogger(r.logger, "request_id", requestID)

	query, err := services.ParseMood(moodKeywords)
	if err != nil {
		return query, nil, err
	}

	candidates, err := r.playlists.Candidates(ctx, query)
	if err != nil {
		logger.Error("playlist search failed", "kind", shared.Kind(err), "err", err)
		return query, nil, fmt.Errorf("search playlists for %q: %w", query.Text(), err)
	}
	if len(candidates) == 0 {
		_, err := services.SelectBest(nil, query)
		return query, nil, err
	}

	logger.Debug("playlist search", "query", query.Text(), "candidates", len(candidates))
	return query, services.Rank(candidates, query), nil
}
