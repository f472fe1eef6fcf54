package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the console.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	// Signal history filters
	FilterSymbol    key.Binding
	FilterTimeframe key.Binding
	FilterAction    key.Binding
}

// DefaultKeyMap provides the default key bindings for the console.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	FilterSymbol:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle symbol")),
	FilterTimeframe: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle timeframe")),
	FilterAction:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "cycle action")),
}
