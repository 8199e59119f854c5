package tui

import "github.com/charmbracelet/lipgloss"

// Colors is the TUI palette.
var Colors = struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Line    lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Text    lipgloss.Color
	OnBlock lipgloss.Color
	Select  lipgloss.Color
}{
	Primary: lipgloss.Color("#8B5CF6"),
	Muted:   lipgloss.Color("#6B7280"),
	Line:    lipgloss.Color("#1F2937"),
	Error:   lipgloss.Color("#EF4444"),
	Warning: lipgloss.Color("#FBBF24"),
	Text:    lipgloss.Color("#E5E7EB"),
	OnBlock: lipgloss.Color("#0F1115"),
	Select:  lipgloss.Color("#374151"),
}

// Styles contains the lipgloss styles used by the views.
type Styles struct {
	Title      lipgloss.Style
	DayHeader  lipgloss.Style
	Today      lipgloss.Style
	Total      lipgloss.Style
	Over       lipgloss.Style
	Gutter     lipgloss.Style
	Empty      lipgloss.Style
	Selection  lipgloss.Style
	Panel      lipgloss.Style
	Label      lipgloss.Style
	Focused    lipgloss.Style
	Status     lipgloss.Style
	StatusErr  lipgloss.Style
	ConfirmBox lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(Colors.Primary),
		DayHeader:  lipgloss.NewStyle().Bold(true).Foreground(Colors.Text).Align(lipgloss.Center),
		Today:      lipgloss.NewStyle().Bold(true).Foreground(Colors.Primary).Align(lipgloss.Center),
		Total:      lipgloss.NewStyle().Foreground(Colors.Muted).Align(lipgloss.Center),
		Over:       lipgloss.NewStyle().Bold(true).Foreground(Colors.Error).Align(lipgloss.Center),
		Gutter:     lipgloss.NewStyle().Foreground(Colors.Muted),
		Empty:      lipgloss.NewStyle().Foreground(Colors.Line),
		Selection:  lipgloss.NewStyle().Background(Colors.Select).Foreground(Colors.Text),
		Panel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Colors.Primary).Padding(0, 1),
		Label:      lipgloss.NewStyle().Foreground(Colors.Muted).Width(7),
		Focused:    lipgloss.NewStyle().Foreground(Colors.Primary).Bold(true).Width(7),
		Status:     lipgloss.NewStyle().Foreground(Colors.Muted),
		StatusErr:  lipgloss.NewStyle().Foreground(Colors.Error),
		ConfirmBox: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Colors.Warning).Padding(0, 1),
	}
}

// blockStyle paints a block cell in the block's own colour. Habits are
// drawn faint.
func blockStyle(hex string, readOnly bool) lipgloss.Style {
	s := lipgloss.NewStyle().Background(lipgloss.Color(hex)).Foreground(Colors.OnBlock)
	if readOnly {
		s = s.Faint(true)
	}
	return s
}
