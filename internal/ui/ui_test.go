package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/desertthunder/moodmix/internal/tasks"
)

type stubRecommender struct {
	calls  chan []string
	result *models.RecommendationResult
	err    error
}

func (s *stubRecommender) Recommend(ctx context.Context, progress chan<- tasks.ProgressUpdate, mood []string, topN int) (*models.RecommendationResult, error) {
	if s.calls != nil {
		s.calls <- mood
	}
	return s.result, s.err
}

func sampleResult() *models.RecommendationResult {
	return &models.RecommendationResult{
		Playlist: models.PlaylistCandidate{
			ID:          "pl1",
			Name:        "Rainy Day Jazz",
			Owner:       "Spotify",
			ExternalURL: "https://open.spotify.com/playlist/pl1",
		},
		Tracks: []models.Track{
			{ID: "t1", Name: "Blue in Green", Artists: []string{"Miles Davis"}, ExternalURL: "https://open.spotify.com/track/t1"},
			{ID: "t2", Name: "Naima", Artists: []string{"John Coltrane"}},
		},
	}
}

func typeText(m *Model, text string) {
	for _, r := range text {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestModel(t *testing.T) {
	t.Run("Starts In Prompt View", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{}, Options{})
		if m.view != PromptView {
			t.Fatalf("expected PromptView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "How are you feeling?") {
			t.Errorf("prompt view missing question: %q", m.View())
		}
	})

	t.Run("Empty Mood Does Not Search", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{}, Options{})
		typeText(m, "   ")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd != nil {
			t.Error("expected no command for an empty mood")
		}
		if m.view != PromptView {
			t.Errorf("expected PromptView, got %v", m.view)
		}
	})

	t.Run("Enter Starts Recommendation", func(t *testing.T) {
		rec := &stubRecommender{calls: make(chan []string, 1), result: sampleResult()}
		m := NewModel(context.Background(), rec, Options{TopN: 3})
		typeText(m, "rainy day")

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatal("expected a command")
		}
		if m.view != SearchingView {
			t.Fatalf("expected SearchingView, got %v", m.view)
		}

		select {
		case mood := <-rec.calls:
			if len(mood) != 1 || mood[0] != "rainy day" {
				t.Errorf("unexpected mood %v", mood)
			}
		case <-time.After(time.Second):
			t.Fatal("recommender was not called")
		}
	})

	t.Run("Result Message Shows Tracks", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{result: sampleResult()}, Options{})
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
		typeText(m, "rainy")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		m.Update(recommendationMsg(m.search, sampleResult(), nil))
		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %v", m.view)
		}
		if got := len(m.trackList.Items()); got != 2 {
			t.Errorf("expected 2 items, got %d", got)
		}
		if !strings.Contains(m.View(), "Rainy Day Jazz") {
			t.Errorf("result view missing playlist name")
		}
	})

	t.Run("Stale Results Are Ignored", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{result: sampleResult()}, Options{})
		typeText(m, "rainy")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		m.Update(recommendationMsg(m.search-1, sampleResult(), nil))
		if m.view != SearchingView {
			t.Errorf("expected SearchingView, got %v", m.view)
		}
	})

	t.Run("Esc Cancels Search", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{result: sampleResult()}, Options{})
		typeText(m, "rainy")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		search := m.search

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != PromptView {
			t.Fatalf("expected PromptView, got %v", m.view)
		}

		m.Update(recommendationMsg(search, sampleResult(), nil))
		if m.view != PromptView {
			t.Errorf("cancelled search result should be ignored, got %v", m.view)
		}
	})

	t.Run("Progress Updates Are Rendered", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{}, Options{})
		typeText(m, "focus")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		m.Update(progressUpdateMsg(m.search, tasks.ProgressUpdate{
			Phase: tasks.FetchTracks, Step: 3, Total: 4, Message: "Fetching tracks from Deep Focus",
		}))
		view := m.View()
		if !strings.Contains(view, "(3/4)") || !strings.Contains(view, "Deep Focus") {
			t.Errorf("progress not rendered: %q", view)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{"No Results", &shared.APIError{Kind: shared.ErrNoResults, Op: "search"}, "No playlists matched"},
			{"Empty Playlist", &shared.APIError{Kind: shared.ErrEmptyPlaylist, Op: "tracks"}, "no playable tracks"},
			{"Rate Limited", &shared.RateLimitError{Op: "search", RetryAfter: 30 * time.Second}, "30s"},
			{"Auth", &shared.APIError{Kind: shared.ErrAuth, Op: "token"}, "rejected the credentials"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := NewModel(context.Background(), &stubRecommender{}, Options{})
				typeText(m, "rainy")
				m.Update(tea.KeyMsg{Type: tea.KeyEnter})
				m.Update(recommendationMsg(m.search, nil, tt.err))

				if m.view != ResultView {
					t.Fatalf("expected ResultView, got %v", m.view)
				}
				if !errors.Is(m.Err(), tt.err) {
					t.Errorf("Err() = %v", m.Err())
				}
				if !strings.Contains(m.View(), tt.want) {
					t.Errorf("view %q does not contain %q", m.View(), tt.want)
				}
			})
		}
	})

	t.Run("Open Playlist", func(t *testing.T) {
		var opened string
		m := NewModel(context.Background(), &stubRecommender{}, Options{
			OpenURL: func(link string) error { opened = link; return nil },
		})
		typeText(m, "rainy")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(recommendationMsg(m.search, sampleResult(), nil))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'o'}})
		if cmd == nil {
			t.Fatal("expected open command")
		}
		m.Update(cmd())

		if opened != "https://open.spotify.com/playlist/pl1" {
			t.Errorf("opened %q", opened)
		}
		if !strings.Contains(m.status, "Opened") {
			t.Errorf("status = %q", m.status)
		}
	})

	t.Run("New Mood Resets", func(t *testing.T) {
		m := NewModel(context.Background(), &stubRecommender{}, Options{})
		typeText(m, "rainy")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(recommendationMsg(m.search, sampleResult(), nil))

		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
		if m.view != PromptView {
			t.Fatalf("expected PromptView, got %v", m.view)
		}
		if m.input.Value() != "" || m.result != nil {
			t.Error("expected state to be reset")
		}
	})
}
