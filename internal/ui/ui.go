package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/desertthunder/moodmix/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PromptView ViewState = iota
	SearchingView
	ResultView
)

// Recommender runs one recommendation with progress. [tasks.Recommender] implements it.
type Recommender interface {
	Recommend(ctx context.Context, progress chan<- tasks.ProgressUpdate, moodKeywords []string, topN int) (*models.RecommendationResult, error)
}

// Options configures a [Model].
type Options struct {
	TopN    int                    // tracks to show, <= 0 uses the recommender default
	Mood    string                 // pre-filled mood
	OpenURL func(link string) error // defaults to [shared.OpenBrowser]
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	recommender Recommender
	topN        int
	openURL     func(string) error
	width       int
	height      int
	input       textinput.Model
	spinner     spinner.Model
	trackList   list.Model
	search      int
	cancel      context.CancelFunc
	progress    tasks.ProgressUpdate
	result      *models.RecommendationResult
	err         error
	status      string
	help        help.Model
	keys        keyMap
}

type recommendation struct {
	result *models.RecommendationResult
	err    error
}

// NewModel creates a new TUI model with the provided recommender.
func NewModel(ctx context.Context, recommender Recommender, opts Options) *Model {
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}

	input := textinput.New()
	input.Placeholder = "rainy sunday, happy energetic, focus..."
	input.Prompt = "› "
	input.CharLimit = 120
	input.SetValue(opts.Mood)
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok))

	trackList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	trackList.SetShowHelp(false)

	return &Model{
		ctx:         ctx,
		view:        PromptView,
		recommender: recommender,
		topN:        opts.TopN,
		openURL:     opts.OpenURL,
		input:       input,
		spinner:     sp,
		trackList:   trackList,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init starts the cursor blinking in the mood prompt.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 20)
		m.trackList.SetSize(max(msg.Width-4, 20), max(msg.Height-10, 5))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PromptView:
			return m.handlePromptKeys(msg)
		case SearchingView:
			return m.handleSearchingKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SearchingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		data := msg.data.(progressData)
		if data.search != m.search || m.view != SearchingView {
			return m, nil
		}
		m.progress = data.update
		return m, nil

	case MsgRecommendationReady:
		data := msg.data.(recommendationData)
		if data.search != m.search || m.view != SearchingView {
			return m, nil
		}
		m.stopSearch()
		m.result, m.err = data.result, data.err
		m.view = ResultView
		if data.result != nil {
			m.trackList.SetItems(trackItems(data.result.Tracks))
			m.trackList.Title = data.result.Playlist.Name
			m.trackList.ResetSelected()
		}
		return m, nil

	case MsgBrowserOpened:
		data := msg.data.(struct {
			link string
			err  error
		})
		if data.err != nil {
			m.status = styles.warn.Render(fmt.Sprintf("Could not open %s: %v", data.link, data.err))
		} else {
			m.status = styles.help.Render("Opened " + data.link)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PromptView:
		return m.renderPrompt()
	case SearchingView:
		return m.renderSearching()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Err returns the failure of the last recommendation, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handlePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		mood := strings.TrimSpace(m.input.Value())
		if len(models.NormalizeKeywords(mood)) == 0 {
			m.status = styles.warn.Render("Type a mood first")
			return m, nil
		}
		return m, m.startRecommendation(mood)
	}

	m.status = ""
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.stopSearch()
		return m, tea.Quit
	case "esc":
		m.stopSearch()
		m.search++
		m.view = PromptView
		m.status = styles.help.Render("Search cancelled")
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n", "esc":
		m.view = PromptView
		m.result, m.err, m.status = nil, nil, ""
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	case "o":
		if m.result != nil && m.result.Playlist.ExternalURL != "" {
			return m, m.open(m.result.Playlist.ExternalURL)
		}
		return m, nil
	case "enter":
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			if link := item.track.Link(); link != "" {
				return m, m.open(link)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

// startRecommendation runs the recommender in the background. Progress and the final result
// arrive as messages tagged with the search id.
func (m *Model) startRecommendation(mood string) tea.Cmd {
	m.stopSearch()
	m.search++
	m.view = SearchingView
	m.status = ""
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan recommendation, 1)
	search, topN, recommender := m.search, m.topN, m.recommender

	go func() {
		result, err := recommender.Recommend(ctx, progress, []string{mood}, topN)
		done <- recommendation{result: result, err: err}
	}()

	return tea.Batch(m.spinner.Tick, waitForRecommendation(search, progress, done))
}

// waitForRecommendation relays progress until the result arrives.
func waitForRecommendation(search int, progress <-chan tasks.ProgressUpdate, done <-chan recommendation) tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-progress:
			return tea.BatchMsg{
				func() tea.Msg { return progressUpdateMsg(search, update) },
				waitForRecommendation(search, progress, done),
			}
		case r := <-done:
			return recommendationMsg(search, r.result, r.err)
		}
	}
}

func (m *Model) stopSearch() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) open(link string) tea.Cmd {
	openURL := m.openURL
	return func() tea.Msg {
		return browserOpenedMsg(link, openURL(link))
	}
}

func (m *Model) renderPrompt() string {
	title := styles.title.Render("moodmix")
	question := "How are you feeling?"

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n%s", title, question, m.input.View(), m.status, helpView)
}

func (m *Model) renderSearching() string {
	title := styles.title.Render("Finding a playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.SearchPlaylists:
		phase = "Searching playlists"
	case tasks.SelectPlaylist:
		phase = "Choosing the best match"
	case tasks.FetchTracks:
		phase = "Fetching tracks"
	default:
		phase = "Working"
	}
	if m.progress.Total > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", phase, m.progress.Step, m.progress.Total)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s %s\n%s\n\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message), helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.again, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s\n\n%s", styles.err.Render("No recommendation"), describeError(m.err), helpView)
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress n to try again, q to quit")
	}

	p := m.result.Playlist
	header := styles.ok.Render(fmt.Sprintf("✓ %s", p.Name))
	if p.Owner != "" {
		header += styles.help.Render(" by " + p.Owner)
	}
	if p.ExternalURL != "" {
		header += "\n" + styles.link.Render(p.ExternalURL)
	}
	if p.Description != "" {
		header += "\n" + p.Description
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.open, m.keys.openPl, m.keys.again, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", header, m.trackList.View(), m.status, helpView)
}

// describeError turns a failure kind into a hint for the user.
func describeError(err error) string {
	switch {
	case errors.Is(err, shared.ErrNoResults):
		return "No playlists matched that mood. Try different words."
	case errors.Is(err, shared.ErrEmptyPlaylist):
		return "The best playlist has no playable tracks. Try again or pick another mood."
	case errors.Is(err, shared.ErrRateLimited):
		if d, ok := shared.RetryAfter(err); ok && d > 0 {
			return styles.warn.Render(fmt.Sprintf("Spotify is rate limiting requests. Try again in %s.", d))
		}
		return styles.warn.Render("Spotify is rate limiting requests. Try again shortly.")
	case errors.Is(err, shared.ErrAuth):
		return styles.err.Render("Spotify rejected the credentials. Check SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REFRESH_TOKEN.")
	case errors.Is(err, shared.ErrTransient):
		return styles.warn.Render("Spotify is not responding right now. Try again in a moment.")
	default:
		return styles.err.Render(err.Error())
	}
}
