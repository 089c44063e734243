package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/repositories"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/desertthunder/moodmix/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The Spotify stack is built on first use so that commands which never reach the catalog
// (setup, cache) run without credentials.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	tokens      *services.TokenManager
	recommender *tasks.Recommender
	db          *sql.DB
	cache       *repositories.PlaylistCacheRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // loaded from --config in [Runner.Before] when nil
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		recommendCommand, searchCommand, batchCommand, tokenCommand, serveCommand, tuiCommand, cacheCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before resolves the configuration from --config, --env-file and the environment.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.config != nil {
		return ctx, nil
	}

	r.configPath = cmd.String("config")
	config, err := shared.Load(r.configPath, cmd.String("env-file"))
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// After releases the cache database if a command opened it. Services built over the
// cache are dropped with it.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.cache = nil, nil
	r.recommender, r.tokens = nil, nil
	return err
}

// SetLogger replaces the logger used by the runner and every component it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// services builds the token manager, HTTP client, search and track services and the recommender.
//
// Missing Spotify secrets fail here, before any request is made.
func (r *Runner) services() (*tasks.Recommender, error) {
	if r.recommender != nil {
		return r.recommender, nil
	}

	config := r.cfg()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tokens, err := services.NewTokenManager(models.Credentials{
		ClientID:     config.Spotify.ClientID,
		ClientSecret: config.Spotify.ClientSecret,
		RefreshToken: config.Spotify.RefreshToken,
	}, services.TokenOptions{
		TokenURL:     config.Spotify.TokenURL,
		SafetyMargin: config.Token.SafetyMargin.Duration,
		MaxLifetime:  config.Token.MaxLifetime.Duration,
		HTTPClient:   r.httpClient,
		Timeout:      config.HTTP.Timeout.Duration,
		Logger:       shared.WithLogger(r.logger, "component", "token"),
	})
	if err != nil {
		return nil, err
	}

	client := services.NewClient(tokens, services.ClientOptions{
		BaseURL:    config.Spotify.APIURL,
		HTTPClient: r.httpClient,
		Timeout:    config.HTTP.Timeout.Duration,
		Retry: services.RetryPolicy{
			MaxAttempts:  config.HTTP.MaxAttempts,
			BaseBackoff:  config.HTTP.BaseBackoff.Duration,
			MaxBackoff:   config.HTTP.MaxBackoff.Duration,
			MaxRetryTime: config.HTTP.MaxRetryTime.Duration,
		},
		RequestsPerSecond: config.HTTP.RequestsPerSecond,
		Logger:            shared.WithLogger(r.logger, "component", "http"),
	})

	trackOpts := services.TrackOptions{Logger: shared.WithLogger(r.logger, "component", "tracks")}
	if config.Cache.Path != "" {
		cache, err := r.openCache()
		if err != nil {
			return nil, err
		}
		trackOpts.Cache = cache
	}

	searcher := services.NewPlaylistSearcher(client, services.SearchOptions{
		Limit:  config.Search.PlaylistLimit,
		Logger: shared.WithLogger(r.logger, "component", "search"),
	})
	fetcher := services.NewTrackFetcher(client, trackOpts)

	r.tokens = tokens
	r.recommender = tasks.NewRecommender(searcher, fetcher, tasks.RecommenderOpts{
		DefaultTopN: config.Search.DefaultTopN,
		Logger:      r.logger,
	})
	return r.recommender, nil
}

// openCache opens (and migrates) the sqlite track cache named by cache.path.
func (r *Runner) openCache() (*repositories.PlaylistCacheRepository, error) {
	if r.cache != nil {
		return r.cache, nil
	}

	config := r.cfg()
	if config.Cache.Path == "" {
		return nil, fmt.Errorf("%w: cache.path is not set", shared.ErrInvalidConfig)
	}

	db, err := shared.OpenMigrated(config.Cache.Path)
	if err != nil {
		return nil, err
	}

	r.db = db
	r.cache = repositories.NewPlaylistCacheRepository(db, config.Cache.TTL.Duration)
	r.logger.Debug("track cache enabled", "path", config.Cache.Path, "ttl", config.Cache.TTL.Duration)
	return r.cache, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
