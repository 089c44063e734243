package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
)

type stubRecommender struct {
	mu        sync.Mutex
	err       error
	moods     [][]string
	topN      int
	requestID string
}

func (s *stubRecommender) FindPlaylistAndTracks(ctx context.Context, mood []string, topN int) (*models.RecommendationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moods = append(s.moods, mood)
	s.topN = topN
	s.requestID = shared.RequestID(ctx)
	if s.err != nil {
		return nil, s.err
	}
	query := models.NewSearchQuery(mood...)
	return models.NewRecommendationResult(query, models.PlaylistCandidate{ID: "p1", Name: "Calm"}, []models.Track{{ID: "t1", Name: "One"}}), nil
}

func (s *stubRecommender) SearchCandidates(ctx context.Context, mood []string) (models.SearchQuery, []services.RankedCandidate, error) {
	if s.err != nil {
		return models.SearchQuery{}, nil, s.err
	}
	query := models.NewSearchQuery(mood...)
	return query, []services.RankedCandidate{{PlaylistCandidate: models.PlaylistCandidate{ID: "p1", Name: "Calm"}, Score: 2}}, nil
}

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestServer(t *testing.T) {
	t.Run("Recommend", func(t *testing.T) {
		stub := &stubRecommender{}
		h := New(stub, Options{}).Handler()

		rec := do(t, h, http.MethodGet, "/recommend?mood=calm+rainy&top=3", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var result models.RecommendationResult
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if result.Playlist.ID != "p1" || len(result.Tracks) != 1 {
			t.Errorf("unexpected result: %+v", result)
		}
		if stub.topN != 3 || stub.moods[0][0] != "calm rainy" {
			t.Errorf("recommender called with %v, %d", stub.moods, stub.topN)
		}
		if id := rec.Header().Get(RequestIDHeader); id == "" || id != stub.requestID {
			t.Errorf("request id %q not propagated to the recommender (%q)", id, stub.requestID)
		}
	})

	t.Run("Incoming Request ID Kept", func(t *testing.T) {
		stub := &stubRecommender{}
		h := New(stub, Options{}).Handler()

		rec := do(t, h, http.MethodGet, "/recommend?mood=calm", http.Header{RequestIDHeader: {"abc-123"}})
		if rec.Header().Get(RequestIDHeader) != "abc-123" || stub.requestID != "abc-123" {
			t.Errorf("expected incoming id to be kept, got %q", rec.Header().Get(RequestIDHeader))
		}

		rec = do(t, h, http.MethodGet, "/recommend?mood=calm", http.Header{RequestIDHeader: {"bad id with spaces"}})
		if got := rec.Header().Get(RequestIDHeader); got == "bad id with spaces" || got == "" {
			t.Errorf("malformed id should be replaced, got %q", got)
		}
	})

	t.Run("Candidates", func(t *testing.T) {
		h := New(&stubRecommender{}, Options{}).Handler()

		rec := do(t, h, http.MethodGet, "/candidates?mood=calm", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body candidatesBody
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if len(body.Candidates) != 1 || body.Candidates[0].Score != 2 || body.Query.Text() != "calm" {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("Health", func(t *testing.T) {
		rec := do(t, New(&stubRecommender{}, Options{}).Handler(), http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("unexpected health response: %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rec := do(t, New(&stubRecommender{}, Options{}).Handler(), http.MethodPost, "/recommend?mood=calm", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("Invalid Top", func(t *testing.T) {
		stub := &stubRecommender{}
		rec := do(t, New(stub, Options{}).Handler(), http.MethodGet, "/recommend?mood=calm&top=lots", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(stub.moods) != 0 {
			t.Error("recommender must not be called with an invalid top")
		}
	})

	t.Run("Error Mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
			kind   string
		}{
			{name: "No Results", err: shared.NewAPIError(shared.ErrNoResults, "search", nil), status: http.StatusNotFound, kind: "no_results"},
			{name: "Empty Playlist", err: shared.NewAPIError(shared.ErrEmptyPlaylist, "tracks", nil), status: http.StatusNotFound, kind: "empty_playlist"},
			{name: "Client", err: shared.NewAPIError(shared.ErrClient, "recommend", shared.ErrInvalidInput), status: http.StatusBadRequest, kind: "client"},
			{name: "Auth", err: shared.NewAPIError(shared.ErrAuth, "token exchange", nil), status: http.StatusServiceUnavailable, kind: "auth"},
			{name: "Transient", err: shared.NewAPIError(shared.ErrTransient, "GET /search", nil), status: http.StatusBadGateway, kind: "transient"},
			{name: "Internal", err: errors.New("boom"), status: http.StatusInternalServerError, kind: "internal"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, New(&stubRecommender{err: tt.err}, Options{}).Handler(), http.MethodGet, "/recommend?mood=calm", nil)
				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d", rec.Code, tt.status)
				}
				body := decodeError(t, rec)
				if body.Kind != tt.kind || body.RequestID == "" {
					t.Errorf("unexpected body: %+v", body)
				}
			})
		}
	})

	t.Run("Rate Limited Sets Retry After", func(t *testing.T) {
		err := &shared.RateLimitError{Op: "GET /search", RetryAfter: 4500 * time.Millisecond}
		rec := do(t, New(&stubRecommender{err: err}, Options{}).Handler(), http.MethodGet, "/recommend?mood=calm", nil)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "5" {
			t.Errorf("Retry-After = %q, want 5", got)
		}
	})

	t.Run("Auth Errors Hide Detail", func(t *testing.T) {
		err := &shared.APIError{Kind: shared.ErrAuth, Op: "token exchange", StatusCode: 400, Message: "invalid_grant"}
		rec := do(t, New(&stubRecommender{err: err}, Options{}).Handler(), http.MethodGet, "/recommend?mood=calm", nil)
		if strings.Contains(rec.Body.String(), "invalid_grant") {
			t.Errorf("auth detail leaked: %s", rec.Body.String())
		}
	})

	t.Run("Serve And Shutdown", func(t *testing.T) {
		srv := New(&stubRecommender{}, Options{})
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Default Address", func(t *testing.T) {
		if addr := New(&stubRecommender{}, Options{}).Addr(); addr != "127.0.0.1:3000" {
			t.Errorf("Addr() = %q", addr)
		}
	})
}

func TestRecover(t *testing.T) {
	router := NewBasicRouter()
	router.Use(RequestID(), Recover(shared.DiscardLogger()))
	router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := do(t, router, http.MethodGet, "/panic", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := decodeError(t, rec); body.Kind != "internal" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestBasicRouterMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(mark("first"), mark("second"))
	router.Handle("get", "/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	do(t, router, http.MethodGet, "/x", nil)
	if got := strings.Join(order, ","); got != "first,second,handler" {
		t.Errorf("order = %s", got)
	}
}
