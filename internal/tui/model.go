// Package tui is a terminal week grid that drives the block editor with the
// mouse: drag on empty space to create a block, drag a block's top or bottom
// half to resize it, click a block to edit it.
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"blockplan/internal/budget"
	"blockplan/internal/editor"
	"blockplan/internal/grid"
	"blockplan/internal/model"
)

// Backend is what the TUI needs from the server.
type Backend interface {
	editor.Persistence
	ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
}

// Mode is the TUI's input mode.
type Mode int

const (
	ModeGrid Mode = iota
	ModeEdit
	ModeConfirm
)

type field int

const (
	fieldTitle field = iota
	fieldStart
	fieldEnd
	fieldCount
)

var fieldLabels = [fieldCount]string{"Title", "Start", "End"}

// dragState tracks the mouse between press and release.
type dragState struct {
	eventID   string
	originRow int
	edge      editor.Edge
	active    bool
	resize    bool
	moved     bool
}

// noticeLog keeps the engine's latest user-facing message. The engine calls
// it from command goroutines.
type noticeLog struct {
	mu   sync.Mutex
	last string
}

func (n *noticeLog) Notify(msg string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	if err != nil {
		n.last += ": " + err.Error()
	}
}

// take returns and clears the latest message.
func (n *noticeLog) take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.last
	n.last = ""
	return s
}

// Model is the bubbletea model for the week grid.
type Model struct {
	engine  *editor.Engine
	backend Backend
	notices *noticeLog
	now     func() time.Time

	keys   KeyMap
	styles Styles
	help   help.Model
	inputs [fieldCount]textinput.Model

	decision budget.Decision
	geo      geometry
	drag     dragState
	status   string

	mode      Mode
	focus     field
	width     int
	height    int
	busy      bool
	statusErr bool
}

// New creates the TUI on top of a fresh editor engine.
func New(cfg editor.Settings, backend Backend, now func() time.Time) *Model {
	if now == nil {
		now = time.Now
	}
	notices := &noticeLog{}
	engine := editor.New(cfg, editor.Deps{
		Store:    backend,
		Layout:   windowLayout{win: cfg.Window},
		Notifier: notices,
		Now:      now,
	})

	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 5
		inputs[i] = ti
	}
	inputs[fieldTitle].Placeholder = "Untitled block"
	inputs[fieldTitle].CharLimit = 120
	inputs[fieldStart].Placeholder = "HH:MM"
	inputs[fieldEnd].Placeholder = "HH:MM"

	m := &Model{
		engine:  engine,
		backend: backend,
		notices: notices,
		now:     now,
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		help:    help.New(),
		inputs:  inputs,
	}
	m.geo = newGeometry(engine.Settings().Window, 80, 24, m.footerHeight())
	return m
}

// Engine exposes the underlying editor.
func (m *Model) Engine() *editor.Engine { return m.engine }

// Init loads the visible week.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) timeout() time.Duration {
	if t := m.engine.Settings().Timeout; t > 0 {
		return t
	}
	return editor.DefaultSettings().Timeout
}

// load lists the visible week's events and the task snapshot.
func (m *Model) load() tea.Cmd {
	backend := m.backend
	start := m.engine.WeekStart()
	timeout := m.timeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		events, err := backend.ListEvents(ctx, start, grid.AddDays(start, 7))
		if err != nil {
			return MsgLoaded{Err: err}
		}
		tasks, err := backend.ListTasks(ctx)
		return MsgLoaded{Events: events, Tasks: tasks, Err: err}
	}
}

func (m *Model) save() tea.Cmd {
	m.busy = true
	e := m.engine
	return func() tea.Msg {
		// Any overload prompt already happened through PreviewSave.
		out, err := e.Save(context.Background(), editor.AlwaysConfirm)
		return MsgSaved{Outcome: out, Err: err}
	}
}

func (m *Model) remove() tea.Cmd {
	m.busy = true
	e := m.engine
	return func() tea.Msg {
		out, err := e.Delete(context.Background())
		return MsgDeleted{Outcome: out, Err: err}
	}
}

func (m *Model) persistResize() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		return MsgResized{Err: e.PointerUp(context.Background())}
	}
}

func (m *Model) footerHeight() int {
	switch m.mode {
	case ModeEdit:
		// Bordered panel with three fields and the task line, status, help.
		return 8
	case ModeConfirm:
		return 6
	default:
		return 2
	}
}

// relayout recomputes the geometry for the terminal size and mode, keeping
// the scroll position where possible.
func (m *Model) relayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	scroll := m.geo.scroll
	m.geo = newGeometry(m.engine.Settings().Window, m.width, m.height, m.footerHeight()).withScroll(scroll)
	m.help.Width = m.width
}

func (m *Model) setMode(mode Mode) {
	m.mode = mode
	m.relayout()
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(prefix string, err error) {
	msg := m.notices.take()
	if msg == "" {
		msg = prefix + ": " + err.Error()
	}
	m.status = msg
	m.statusErr = true
}

// openEditor fills the inputs from the engine's draft and switches to the
// editor panel.
func (m *Model) openEditor() {
	d, ok := m.engine.Draft()
	if !ok {
		return
	}
	m.syncInputs(d)
	m.focusField(fieldTitle)
	m.setMode(ModeEdit)
}

func (m *Model) syncInputs(d editor.Draft) {
	day := grid.StartOfDay(d.Start)
	m.inputs[fieldTitle].SetValue(d.Title)
	m.inputs[fieldStart].SetValue(model.FormatClock(grid.MinutesOf(d.Start)))
	end := grid.MinutesOf(d.End)
	if !grid.SameDay(day, d.End) {
		end = grid.MinutesPerDay
	}
	m.inputs[fieldEnd].SetValue(model.FormatClock(end))
}

func (m *Model) closeEditor() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.decision = budget.Decision{}
	m.setMode(ModeGrid)
}

func (m *Model) focusField(f field) {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = f
	m.inputs[f].Focus()
}

// applyInputs pushes the text fields into the draft.
func (m *Model) applyInputs() error {
	d, ok := m.engine.Draft()
	if !ok {
		return editor.ErrNoEditor
	}
	if !d.Linked() {
		if err := m.engine.SetTitle(m.inputs[fieldTitle].Value()); err != nil {
			return err
		}
	}
	if err := m.engine.SetStartTime(m.inputs[fieldStart].Value()); err != nil {
		return err
	}
	return m.engine.SetEndTime(m.inputs[fieldEnd].Value())
}

// cycleTask links the draft to the next task, unlinking after the last one.
func (m *Model) cycleTask() error {
	d, ok := m.engine.Draft()
	if !ok {
		return editor.ErrNoEditor
	}
	tasks := m.engine.Tasks()
	next := 0
	for i, t := range tasks {
		if t.ID == d.TaskID {
			next = i + 1
			break
		}
	}
	if next >= len(tasks) {
		return m.engine.UnlinkTask()
	}
	return m.engine.LinkTask(tasks[next])
}

// occurrenceAt finds the block drawn in the given day and grid row.
// Persisted events win over habits that share the row.
func (m *Model) occurrenceAt(view editor.View, day, row int) (model.Occurrence, bool) {
	rowStart := m.geo.rowStart(row)
	rowEnd := rowStart + m.geo.rowMinutes
	var habit model.Occurrence
	for _, occ := range dayBlocks(view, day) {
		if occ.Start >= rowEnd || occ.End <= rowStart {
			continue
		}
		if !occ.ReadOnly() {
			return occ.Occurrence, true
		}
		if habit == nil {
			habit = occ.Occurrence
		}
	}
	return habit, habit != nil
}
