package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the review.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	approve key.Binding
	reject  key.Binding
	reload  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		approve: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "approve")),
		reject:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "reject")),
		reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.approve, k.reject, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.approve, k.reject},
		{k.reload, k.quit},
	}
}
