package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/moodmix/internal/models"
	"golang.org/x/time/rate"
)

const (
	defaultBatchWorkers = 4
	maxBatchWorkers     = 10
	defaultBatchRate    = 5.0
)

// BatchOpts contains configuration for [Recommender.RecommendBatch].
type BatchOpts struct {
	TopN       int     // tracks per mood, <= 0 uses the recommender default
	NumWorkers int     // concurrent recommendations (default: 4, max: 10)
	RateLimit  float64 // recommendations started per second (default: 5)
}

// MoodResult is the outcome for one mood of a batch.
type MoodResult struct {
	Index  int                          `json:"index"`
	Mood   string                       `json:"mood"`
	Result *models.RecommendationResult `json:"result,omitempty"`
	Err    error                        `json:"-"`
}

// BatchResult holds the per-mood outcomes in input order.
type BatchResult struct {
	Results   []MoodResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

type moodJob struct {
	index int
	mood  string
}

// RecommendBatch runs one recommendation per mood through a worker pool.
//
// A failing mood does not stop the others; its error is kept on its [MoodResult].
// Moods not started before ctx is done are reported with the limiter's context error.
func (r *Recommender) RecommendBatch(ctx context.Context, progress chan<- ProgressUpdate, moods []string, opts BatchOpts) *BatchResult {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultBatchWorkers
	}
	if opts.NumWorkers > maxBatchWorkers {
		opts.NumWorkers = maxBatchWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultBatchRate
	}

	result := &BatchResult{Results: make([]MoodResult, len(moods))}
	for i, mood := range moods {
		result.Results[i] = MoodResult{Index: i, Mood: mood}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan moodJob)
	done := make(chan MoodResult, len(moods))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go r.batchWorker(ctx, &wg, jobs, done, opts.TopN)
	}

	go func() {
		defer close(jobs)
		for i, mood := range moods {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(moods); j++ {
					done <- MoodResult{Index: j, Mood: moods[j], Err: err}
				}
				return
			}
			jobs <- moodJob{index: i, mood: mood}
		}
	}()

	for completed := 1; completed <= len(moods); completed++ {
		res := <-done
		result.Results[res.Index] = res

		if res.Err != nil {
			result.Failed++
			r.sendProgress(progress, failedUpdate(completed, len(moods), res.Err))
			continue
		}
		result.Succeeded++
		r.sendProgress(progress, completedUpdate(completed, len(moods), res.Result))
	}

	wg.Wait()
	return result
}

// batchWorker recommends moods from jobs until the channel is closed.
func (r *Recommender) batchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan moodJob,
	done chan<- MoodResult,
	topN int,
) {
	defer wg.Done()

	for job := range jobs {
		res := MoodResult{Index: job.index, Mood: job.mood}
		res.Result, res.Err = r.FindPlaylistAndTracks(ctx, []string{job.mood}, topN)
		done <- res
	}
}
