package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/services"
	"github.com/desertthunder/moodmix/internal/shared"
)

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

type candidatesBody struct {
	Query      models.SearchQuery         `json:"query"`
	Candidates []services.RankedCandidate `json:"candidates"`
}

// RecommendHandler serves /recommend and /candidates.
type RecommendHandler struct {
	recommender Recommender
}

// NewRecommendHandler creates a [RecommendHandler] over recommender.
func NewRecommendHandler(recommender Recommender) *RecommendHandler {
	return &RecommendHandler{recommender: recommender}
}

// Routes returns the HTTP routes this handler serves.
func (h *RecommendHandler) Routes() []string {
	return []string{"GET /recommend", "GET /candidates"}
}

// ServeHTTP dispatches on the request path.
func (h *RecommendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mood := moodParam(r)

	switch r.URL.Path {
	case "/candidates":
		query, ranked, err := h.recommender.SearchCandidates(r.Context(), mood)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, candidatesBody{Query: query, Candidates: ranked})
	default:
		topN, err := topParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := h.recommender.FindPlaylistAndTracks(r.Context(), mood, topN)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HealthHandler reports liveness without touching the catalog.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// moodParam collects every mood value; "mood=calm&mood=rainy" and "mood=calm rainy" are equivalent.
func moodParam(r *http.Request) []string {
	return r.URL.Query()["mood"]
}

func topParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("top"))
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &shared.APIError{
			Kind:    shared.ErrClient,
			Op:      "parse top",
			Message: fmt.Sprintf("top must be a non-negative integer, got %q", raw),
			Err:     shared.ErrInvalidArgument,
		}
	}
	return n, nil
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case shared.IsBusinessOutcome(err):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrAuth):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrClient):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if retryAfter, ok := shared.RetryAfter(err); ok && retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: shared.Kind(err), RequestID: shared.RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
