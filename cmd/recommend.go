package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/moodmix/internal/formatter"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/desertthunder/moodmix/internal/tasks"
	"github.com/urfave/cli/v3"
)

func moodArgs(cmd *cli.Command) ([]string, error) {
	mood := cmd.Args().Slice()
	if len(models.NormalizeKeywords(mood...)) == 0 {
		return nil, fmt.Errorf("%w: mood keywords", shared.ErrMissingArgument)
	}
	return mood, nil
}

// Recommend finds the best playlist for the mood given as arguments and prints its top tracks.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	mood, err := moodArgs(cmd)
	if err != nil {
		return err
	}

	format := strings.ToLower(cmd.String("format"))
	if !slices.Contains(formatter.Formats, format) {
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	recommender, err := r.services()
	if err != nil {
		return err
	}

	result, err := recommender.FindPlaylistAndTracks(ctx, mood, cmd.Int("top"))
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(result, format, path); err != nil {
			return err
		}
		r.logger.Info("recommendation saved", "path", path, "format", format)
		r.writePlain("✓ Saved %s (%d tracks) to %s\n", result.Playlist.Name, len(result.Tracks), path)
	} else {
		data, err := formatter.Render(format, result)
		if err != nil {
			return err
		}
		if err := r.writeBytes(data); err != nil {
			return err
		}
	}

	if cmd.Bool("open") {
		if link := result.Playlist.ExternalURL; link != "" {
			if err := shared.OpenBrowser(link); err != nil {
				r.logger.Warn("could not open browser", "url", link, "error", err)
			}
		}
	}
	return nil
}

type candidatesView struct {
	Query      string                     `json:"query"`
	Keywords   []string                   `json:"keywords"`
	Candidates []services.RankedCandidate `json:"candidates"`
}

// Search prints the ranked playlist candidates for a mood without fetching tracks.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	mood, err := moodArgs(cmd)
	if err != nil {
		return err
	}

	recommender, err := r.services()
	if err != nil {
		return err
	}

	query, ranked, err := recommender.SearchCandidates(ctx, mood)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidatesView{Query: query.Text(), Keywords: query.Keywords, Candidates: ranked}, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.CandidatesToText(query, ranked))
}

type batchEntry struct {
	Mood   string                       `json:"mood"`
	Result *models.RecommendationResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
	Kind   string                       `json:"kind,omitempty"`
}

// Batch recommends a playlist for each mood through the worker pool.
//
// Moods come from the arguments and from --file; blank lines and lines starting with # are skipped.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	moods := cmd.Args().Slice()
	if path := cmd.String("file"); path != "" {
		fromFile, err := readMoods(path)
		if err != nil {
			return err
		}
		moods = append(moods, fromFile...)
	}
	if len(moods) == 0 {
		return fmt.Errorf("%w: at least one mood or --file", shared.ErrMissingArgument)
	}

	recommender, err := r.services()
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Debug("batch progress", "phase", update.Phase, "step", update.Step, "total", update.Total, "message", update.Message)
		}
	}()

	start := time.Now()
	result := recommender.RecommendBatch(ctx, progress, moods, tasks.BatchOpts{
		TopN:       cmd.Int("top"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done

	r.logger.Info("batch complete", "moods", len(moods), "succeeded", result.Succeeded, "failed", result.Failed, "elapsed", time.Since(start).Round(time.Millisecond))

	if cmd.Bool("json") {
		entries := make([]batchEntry, len(result.Results))
		for i, mr := range result.Results {
			entries[i] = batchEntry{Mood: mr.Mood, Result: mr.Result}
			if mr.Err != nil {
				entries[i].Error = mr.Err.Error()
				entries[i].Kind = shared.Kind(mr.Err)
			}
		}
		if err := r.writeJSON(entries, true); err != nil {
			return err
		}
	} else {
		for _, mr := range result.Results {
			r.writePlainHeader(mr.Mood)
			if mr.Err != nil {
				r.writePlain("✗ %v\n\n", mr.Err)
				continue
			}
			text, _ := formatter.ToText(mr.Result)
			r.writeBytes(text)
			r.writePlain("\n")
		}
	}

	if result.Succeeded == 0 {
		return fmt.Errorf("all %d moods failed", result.Failed)
	}
	return nil
}

func readMoods(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mood file: %w", err)
	}
	defer f.Close()

	var moods []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		moods = append(moods, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mood file: %w", err)
	}
	return moods, nil
}

// Token performs a refresh-token exchange and reports the expiry. The token itself is never printed.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.services(); err != nil {
		return err
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	remaining := time.Until(token.ExpiresAt).Round(time.Second)
	r.writePlain("✓ Credentials accepted\n")
	r.writePlain("  Access token expires at %s (in %s)\n", token.ExpiresAt.Local().Format(time.RFC3339), remaining)
	r.writePlain("  Exchanges performed: %d\n", r.tokens.Exchanges())
	return nil
}
