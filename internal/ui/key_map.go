package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	submit key.Binding
	open   key.Binding
	openPl key.Binding
	cancel key.Binding
	again  key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "find playlist")),
		open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open track")),
		openPl: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open playlist")),
		cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		again:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new mood")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.open},
		{k.openPl, k.again, k.cancel},
		{k.quit},
	}
}
