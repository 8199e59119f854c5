package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"blockplan/internal/budget"
	"blockplan/internal/editor"
	"blockplan/internal/grid"
	"blockplan/internal/model"
	"blockplan/internal/reconcile"
)

// placed is an occurrence with its minute-of-day bounds.
type placed struct {
	model.Occurrence
	Start, End int
}

// spanMinutes returns occ's bounds as minutes of its start day; a block
// ending on the next midnight ends at 24:00.
func spanMinutes(occ model.Occurrence) (int, int) {
	s, e := occ.Bounds()
	end := grid.MinutesOf(e)
	if !grid.SameDay(s, e) {
		end = grid.MinutesPerDay
	}
	return grid.MinutesOf(s), end
}

// dayBlocks lists the occurrences starting on a visible day.
func dayBlocks(view editor.View, day int) []placed {
	if day < 0 || day > 6 {
		return nil
	}
	var out []placed
	for _, occ := range reconcile.ForDay(view.Occurrences, view.Days[day]) {
		s, e := spanMinutes(occ)
		out = append(out, placed{Occurrence: occ, Start: s, End: e})
	}
	return out
}

// blockRows returns the first and last grid rows an occurrence covers.
func (m *Model) blockRows(occ model.Occurrence) (int, int) {
	s, e := spanMinutes(occ)
	return m.geo.rowOf(s), m.geo.rowOf(max(e-1, s))
}

// View renders the header, the grid and the footer for the current mode.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading…"
	}
	view := m.engine.Render()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(view),
		m.gridView(view),
		m.footerView(),
	)
}

func (m *Model) headerView(view editor.View) string {
	threshold := view.Ledger.Threshold()
	title := m.styles.Title.Render("blockplan") + "  " +
		fmt.Sprintf("%s – %s", view.Days[0].Format("Jan 2"), view.Days[6].Format("Jan 2, 2006")) +
		m.styles.Status.Render(fmt.Sprintf("   budget %s/day", budget.FormatMinutes(threshold)))

	today := grid.DayKey(m.now())
	var names, totals strings.Builder
	names.WriteString(strings.Repeat(" ", gutterWidth))
	totals.WriteString(strings.Repeat(" ", gutterWidth))
	for _, d := range view.Days {
		key := grid.DayKey(d)
		name := m.styles.DayHeader
		if key == today {
			name = m.styles.Today
		}
		names.WriteString(name.Width(m.geo.colWidth).Render(d.Format("Mon 2")))

		total := view.Ledger.Total(key)
		ts := m.styles.Total
		if budget.IsOverloaded(total, threshold) {
			ts = m.styles.Over
		}
		totals.WriteString(ts.Width(m.geo.colWidth).Render(budget.FormatMinutes(total)))
	}
	return strings.Join([]string{title, names.String(), totals.String()}, "\n")
}

type cell struct {
	text  string
	style lipgloss.Style
	set   bool
}

func (m *Model) gridView(view editor.View) string {
	rows := m.geo.visibleRows()
	cells := make([][7]cell, rows)
	paint := func(day, first, last int, style lipgloss.Style, lines ...string) {
		if day < 0 || day > 6 {
			return
		}
		for r := max(first, m.geo.scroll); r <= last && r < m.geo.scroll+rows; r++ {
			text := ""
			if i := r - first; i < len(lines) {
				text = lines[i]
			}
			cells[r-m.geo.scroll][day] = cell{text: text, style: style, set: true}
		}
	}

	for day := range 7 {
		blocks := dayBlocks(view, day)
		// Habits first so persisted blocks draw over them.
		for _, habits := range []bool{true, false} {
			for _, b := range blocks {
				if b.ReadOnly() != habits {
					continue
				}
				paint(day, m.geo.rowOf(b.Start), m.geo.rowOf(max(b.End-1, b.Start)),
					blockStyle(b.Hue(), b.ReadOnly()), b.Label(), clockRange(b.Start, b.End))
			}
		}
	}
	if sel, ok := m.engine.Selection(); ok {
		lo, hi := sel.Bounds()
		paint(sel.DayIndex, m.geo.rowOf(lo), m.geo.rowOf(max(hi-1, lo)), m.styles.Selection, clockRange(lo, hi))
	}
	if d, ok := m.engine.Draft(); ok && d.IsNew() {
		occ := model.PersistedEvent{Event: model.Event{Start: d.Start, End: d.End}}
		s, e := spanMinutes(occ)
		paint(grid.DayIndex(view.Days[0], d.Start), m.geo.rowOf(s), m.geo.rowOf(max(e-1, s)),
			m.styles.Selection, "New block", clockRange(s, e))
	}

	lines := make([]string, 0, rows)
	for i := range rows {
		start := m.geo.rowStart(i + m.geo.scroll)
		label := ""
		if start%60 == 0 {
			label = grid.HourLabel(start / 60)
		}
		var b strings.Builder
		b.WriteString(m.styles.Gutter.Render(fmt.Sprintf("%*s ", gutterWidth-1, label)))
		for day := range 7 {
			c := cells[i][day]
			if !c.set {
				b.WriteString(m.styles.Empty.Render(padRight("┊", m.geo.colWidth)))
				continue
			}
			b.WriteString(c.style.Render(padRight(" "+truncate(c.text, m.geo.colWidth-1), m.geo.colWidth)))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func (m *Model) footerView() string {
	status := m.styles.Status.Render(m.status)
	if m.statusErr {
		status = m.styles.StatusErr.Render(m.status)
	}
	switch m.mode {
	case ModeEdit:
		return lipgloss.JoinVertical(lipgloss.Left, m.editorView(), status, m.help.View(editHelp{m.keys}))
	case ModeConfirm:
		return lipgloss.JoinVertical(lipgloss.Left, m.confirmView(), status, m.help.View(confirmHelp{m.keys}))
	default:
		return lipgloss.JoinVertical(lipgloss.Left, status, m.help.View(gridHelp{m.keys}))
	}
}

func (m *Model) editorView() string {
	d, _ := m.engine.Draft()
	lines := make([]string, 0, fieldCount+1)
	for f := range fieldCount {
		label := m.styles.Label
		if f == m.focus {
			label = m.styles.Focused
		}
		lines = append(lines, label.Render(fieldLabels[f])+m.inputs[f].View())
	}
	task := "none"
	if d.Linked() {
		task = d.TaskID
		for _, t := range m.engine.Tasks() {
			if t.ID == d.TaskID {
				task = t.Title
				break
			}
		}
	}
	lines = append(lines, m.styles.Label.Render("Task")+task)
	return m.styles.Panel.Render(strings.Join(lines, "\n"))
}

func (m *Model) confirmView() string {
	dec := m.decision
	day := dec.DayKey
	if t, err := grid.ParseDayKey(dec.DayKey); err == nil {
		day = t.Format("Mon Jan 2")
	}
	msg := fmt.Sprintf("%s would total %s, over the %s daily budget.",
		day, budget.FormatMinutes(dec.Total()), budget.FormatMinutes(dec.Threshold))
	return m.styles.ConfirmBox.Render(msg + "\nSave anyway?")
}

func clockRange(start, end int) string {
	return model.FormatClock(start) + "-" + model.FormatClock(end)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// padRight pads s with spaces to n runes.
func padRight(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return s + strings.Repeat(" ", n-c)
	}
	return s
}
