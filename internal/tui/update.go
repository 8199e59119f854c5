package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"blockplan/internal/budget"
	"blockplan/internal/editor"
	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
)

// Update handles messages and returns the updated model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.relayout()
		return m, nil

	case MsgLoaded:
		if msg.Err != nil {
			m.setError("load failed", msg.Err)
			return m, nil
		}
		m.engine.Load(msg.Events)
		m.engine.SetTasks(msg.Tasks)
		appLog.Debug("week loaded", "start", grid.DayKey(m.engine.WeekStart()), "events", len(msg.Events))
		return m, nil

	case MsgSaved:
		m.busy = false
		switch {
		case msg.Err != nil:
			m.setError("save failed", msg.Err)
		case msg.Outcome == editor.OutcomeDeclined:
			m.setStatus("Not saved: over the daily budget")
		default:
			m.closeEditor()
			m.setStatus("Saved")
		}
		return m, nil

	case MsgDeleted:
		m.busy = false
		if msg.Err != nil {
			m.setError("delete failed", msg.Err)
			return m, nil
		}
		m.closeEditor()
		if msg.Outcome == editor.OutcomeDeleted {
			m.setStatus("Deleted")
		}
		return m, nil

	case MsgResized:
		if msg.Err != nil {
			m.setError("resize failed", msg.Err)
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeGrid {
		return m, nil
	}
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.geo = m.geo.withScroll(-1)
		case tea.MouseButtonWheelDown:
			m.geo = m.geo.withScroll(1)
		case tea.MouseButtonLeft:
			m.press(msg.X, msg.Y)
		}
	case tea.MouseActionMotion:
		if m.drag.active {
			m.move(msg.X, msg.Y)
		}
	case tea.MouseActionRelease:
		if m.drag.active {
			return m, m.release()
		}
	}
	return m, nil
}

// press starts a resize on a persisted block or a selection on empty space.
func (m *Model) press(x, y int) {
	day, ok := m.geo.dayAt(x)
	if !ok || !m.geo.inGrid(y) {
		return
	}
	row := m.geo.rowAt(y)

	if occ, ok := m.occurrenceAt(m.engine.Render(), day, row); ok {
		if occ.ReadOnly() {
			m.setStatus(occ.Label() + " is a habit; edit its task to change it")
			return
		}
		// Upper half of the block drags the start, lower half the end.
		first, last := m.blockRows(occ)
		edge := editor.EdgeEnd
		if row-first < (last-first+1)/2 {
			edge = editor.EdgeStart
		}
		if err := m.engine.PointerDownOccurrence(occ, day, edge); err != nil {
			m.setError("resize", err)
			return
		}
		m.drag = dragState{active: true, resize: true, edge: edge, eventID: occ.Key(), originRow: row}
		return
	}

	if err := m.engine.PointerDown(day, m.geo.point(x, m.geo.rowStart(row))); err != nil {
		m.setError("select", err)
		return
	}
	m.drag = dragState{active: true, originRow: row}
}

// move feeds the absolute pointer position to the engine. End edges and
// downward selections snap to the bottom of the row under the pointer.
func (m *Model) move(x, y int) {
	row := m.geo.rowAt(y)
	if row != m.drag.originRow {
		m.drag.moved = true
	}
	minute := m.geo.rowStart(row)
	switch {
	case m.drag.resize && m.drag.edge == editor.EdgeEnd:
		minute = m.geo.rowStart(row + 1)
	case !m.drag.resize && row > m.drag.originRow:
		minute = m.geo.rowStart(row + 1)
	}
	m.engine.PointerMove(m.geo.point(x, minute))
}

// release finishes the drag. A selection opens the editor; a resize is
// persisted off the update loop, and a click without movement opens the
// block instead.
func (m *Model) release() tea.Cmd {
	d := m.drag
	m.drag = dragState{}
	if !d.resize {
		// Selections finish locally.
		if err := m.engine.PointerUp(context.Background()); err != nil {
			m.setError("select", err)
			return nil
		}
		m.openEditor()
		return nil
	}
	cmd := m.persistResize()
	if !d.moved {
		if err := m.engine.OpenEvent(d.eventID, editor.Point{}); err != nil {
			m.setError("open", err)
			return cmd
		}
		m.openEditor()
	}
	return cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.mode {
	case ModeConfirm:
		return m.handleConfirmKey(msg)
	case ModeEdit:
		return m.handleEditKey(msg)
	default:
		return m.handleGridKey(msg)
	}
}

func (m *Model) handleGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.PrevWeek):
		m.engine.ShiftWeek(-1)
		return m, m.load()
	case key.Matches(msg, m.keys.NextWeek):
		m.engine.ShiftWeek(1)
		return m, m.load()
	case key.Matches(msg, m.keys.Today):
		m.engine.Today()
		return m, m.load()
	case key.Matches(msg, m.keys.Up):
		m.geo = m.geo.withScroll(-1)
	case key.Matches(msg, m.keys.Down):
		m.geo = m.geo.withScroll(1)
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("Reloading…")
		return m, m.load()
	}
	return m, nil
}

func (m *Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.engine.Cancel()
		m.closeEditor()
		m.setStatus("")
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		m.focusField((m.focus + 1) % fieldCount)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case key.Matches(msg, m.keys.Save):
		return m, m.submit()
	case key.Matches(msg, m.keys.Delete):
		return m, m.remove()
	case key.Matches(msg, m.keys.Link):
		if err := m.cycleTask(); err != nil {
			m.setError("link", err)
			return m, nil
		}
		if d, ok := m.engine.Draft(); ok {
			m.inputs[fieldTitle].SetValue(d.Title)
		}
		return m, nil
	}

	if m.focus == fieldTitle {
		if d, ok := m.engine.Draft(); ok && d.Linked() {
			m.setError("title", editor.ErrTitleLocked)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// submit validates the panel and either saves or asks about the budget.
func (m *Model) submit() tea.Cmd {
	if err := m.applyInputs(); err != nil {
		m.setError("invalid", err)
		return nil
	}
	dec, err := m.engine.PreviewSave()
	if err != nil {
		if errors.Is(err, editor.ErrInvalidRange) {
			m.status = "End time must be after the start time."
			m.statusErr = true
			return nil
		}
		m.setError("save", err)
		return nil
	}
	if dec.NeedsConfirmation {
		m.decision = dec
		m.setMode(ModeConfirm)
		return nil
	}
	return m.save()
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.setMode(ModeEdit)
		return m, m.save()
	case key.Matches(msg, m.keys.Decline):
		m.decision = budget.Decision{}
		m.setMode(ModeEdit)
		m.setStatus("Not saved: over the daily budget")
	}
	return m, nil
}
