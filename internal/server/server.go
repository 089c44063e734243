package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Recommender is the facade the handlers call. [tasks.Recommender] implements it.
type Recommender interface {
	FindPlaylistAndTracks(ctx context.Context, moodKeywords []string, topN int) (*models.RecommendationResult, error)
	SearchCandidates(ctx context.Context, moodKeywords []string) (models.SearchQuery, []services.RankedCandidate, error)
}

const shutdownTimeout = 10 * time.Second

// Options configures a [Server].
type Options struct {
	Host   string
	Port   int
	Logger *log.Logger
}

// Server hosts the recommender. Requests run concurrently; the recommender and its token
// cache are shared between them.
type Server struct {
	http   *http.Server
	router *BasicRouter
	logger *log.Logger
}

// New builds a [Server] with request id, logging and recovery middleware.
func New(recommender Recommender, opts Options) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = 3000
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}

	router := NewBasicRouter()
	router.Use(RequestID(), Logging(opts.Logger), Recover(opts.Logger))
	router.Handler(NewRecommendHandler(recommender))
	router.Handle(http.MethodGet, "/health", HealthHandler())

	return &Server{
		http: &http.Server{
			Addr:              net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port)),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		router: router,
		logger: opts.Logger,
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Handler exposes the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
