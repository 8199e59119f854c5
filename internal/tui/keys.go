package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the TUI.
type KeyMap struct {
	// Grid
	PrevWeek key.Binding
	NextWeek key.Binding
	Today    key.Binding
	Up       key.Binding
	Down     key.Binding
	Refresh  key.Binding
	Quit     key.Binding

	// Editor
	NextField key.Binding
	PrevField key.Binding
	Save      key.Binding
	Delete    key.Binding
	Link      key.Binding
	Cancel    key.Binding

	// Overload prompt
	Confirm key.Binding
	Decline key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevWeek: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev week")),
		NextWeek: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next week")),
		Today:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Save:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Delete:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete")),
		Link:      key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "link task")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),

		Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "save anyway")),
		Decline: key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "back")),
	}
}

// gridHelp implements help.KeyMap for the grid.
type gridHelp struct{ k KeyMap }

func (h gridHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.PrevWeek, h.k.NextWeek, h.k.Today, h.k.Up, h.k.Down, h.k.Refresh, h.k.Quit}
}

func (h gridHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

// editHelp implements help.KeyMap for the editor panel.
type editHelp struct{ k KeyMap }

func (h editHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.NextField, h.k.Save, h.k.Link, h.k.Delete, h.k.Cancel}
}

func (h editHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }

// confirmHelp implements help.KeyMap for the overload prompt.
type confirmHelp struct{ k KeyMap }

func (h confirmHelp) ShortHelp() []key.Binding { return []key.Binding{h.k.Confirm, h.k.Decline} }

func (h confirmHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }
