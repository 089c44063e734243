// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a three-view loop:
//  1. [PromptView] : type a mood
//  2. [SearchingView] : spinner with live progress from the recommender
//  3. [ResultView] : the chosen playlist and its tracks, or the failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the recommender; a search cancelled with esc is dropped by id.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, o, n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
