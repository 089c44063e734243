package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodmix/internal/models"
	"github.com/desertthunder/moodmix/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgRecommendationReady
	MsgBrowserOpened
)

type progressData struct {
	search int
	update tasks.ProgressUpdate
}

type recommendationData struct {
	search int
	result *models.RecommendationResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(search int, update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressData{search, update}}
}

// recommendationMsg is the constructor for [MsgRecommendationReady]
func recommendationMsg(search int, result *models.RecommendationResult, err error) Msg {
	return Msg{kind: MsgRecommendationReady, data: recommendationData{search, result, err}}
}

// browserOpenedMsg is the constructor for [MsgBrowserOpened]
func browserOpenedMsg(link string, err error) Msg {
	return Msg{
		kind: MsgBrowserOpened,
		data: struct {
			link string
			err  error
		}{link, err},
	}
}
