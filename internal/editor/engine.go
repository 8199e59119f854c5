// Package editor is the interaction state machine behind the week grid:
// drag-to-select new blocks, drag-to-resize existing ones and the modal
// edit/save/delete flow, with optimistic local updates reconciled against
// the persistence service.
//
// The engine never reads a UI surface directly. Pointer positions come in as
// plain coordinates and column geometry is asked of a Layout, so the whole
// machine runs headless in tests.
package editor

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"blockplan/internal/budget"
	"blockplan/internal/grid"
	"blockplan/internal/model"
	"blockplan/internal/recur"
	"blockplan/internal/reconcile"
)

var (
	ErrNoEditor     = errors.New("no editor open")
	ErrBusy         = errors.New("a save is already in progress")
	ErrInvalidRange = errors.New("end time must be after the start time")
	ErrInvalidTime  = errors.New("invalid time of day")
	ErrTitleLocked  = errors.New("title follows the linked task")
	ErrNotFound     = errors.New("event not found")
	ErrInvalidDay   = errors.New("day index outside the visible week")
	ErrReadOnly     = errors.New("habit occurrences are read-only")
)

// Persistence is the remote store for events. Calls may block and fail.
type Persistence interface {
	CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Point is a pointer position in the host's coordinate space.
type Point struct {
	X, Y float64
}

// Layout reports where a day column sits, in the same coordinate space as
// pointer positions.
type Layout interface {
	Column(dayIndex int) (top, height float64, ok bool)
}

// Notifier surfaces user-visible messages such as persistence failures.
type Notifier interface {
	Notify(msg string, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string, err error)

func (f NotifierFunc) Notify(msg string, err error) { f(msg, err) }

// Confirmer asks the user whether to exceed the daily budget.
type Confirmer interface {
	ConfirmOverload(ctx context.Context, d budget.Decision) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, d budget.Decision) bool

func (f ConfirmFunc) ConfirmOverload(ctx context.Context, d budget.Decision) bool { return f(ctx, d) }

// AlwaysConfirm accepts every overload; hosts use it after prompting
// through PreviewSave.
var AlwaysConfirm = ConfirmFunc(func(context.Context, budget.Decision) bool { return true })

// Settings are the grid and budget constants the engine works with.
type Settings struct {
	Window       grid.Window
	Snap         int
	MinDuration  int
	DefaultBlock int
	DailyBudget  int
	WeekStart    time.Weekday
	// Timeout bounds each persistence call. Zero means no extra bound.
	Timeout time.Duration
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		Window:       grid.DefaultWindow(),
		Snap:         grid.DefaultSnap,
		MinDuration:  30,
		DefaultBlock: 60,
		DailyBudget:  480,
		WeekStart:    time.Monday,
		Timeout:      15 * time.Second,
	}
}

// Deps are the engine's collaborators. Store is required.
type Deps struct {
	Store    Persistence
	Layout   Layout
	Notifier Notifier
	Now      func() time.Time
}

// Mode is the engine's coarse state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSelecting
	ModeResizing
	ModeEditing
	ModeSaving
)

func (m Mode) String() string {
	switch m {
	case ModeSelecting:
		return "selecting"
	case ModeResizing:
		return "resizing"
	case ModeEditing:
		return "editing"
	case ModeSaving:
		return "saving"
	default:
		return "idle"
	}
}

// Engine owns the local event copy and all transient interaction state.
// It is safe for use from several goroutines, but is designed to be driven
// by one host loop with persistence calls run off that loop.
type Engine struct {
	mu sync.Mutex

	cfg    Settings
	store  Persistence
	layout Layout
	notify Notifier
	now    func() time.Time

	weekStart time.Time
	events    []model.PersistedEvent
	tasks     []model.Task

	selection *Selection
	resize    *Resize
	draft     *Draft
	saving    bool
}

// New builds an engine showing the current week.
func New(cfg Settings, deps Deps) *Engine {
	def := DefaultSettings()
	if cfg.Window.EndHour <= cfg.Window.StartHour {
		cfg.Window = def.Window
	}
	if cfg.Snap <= 0 {
		cfg.Snap = def.Snap
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	if cfg.DefaultBlock < cfg.MinDuration {
		cfg.DefaultBlock = max(def.DefaultBlock, cfg.MinDuration)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(string, error) {})
	}
	e := &Engine{
		cfg:    cfg,
		store:  deps.Store,
		layout: deps.Layout,
		notify: deps.Notifier,
		now:    deps.Now,
	}
	e.weekStart = grid.StartOfWeek(e.now(), cfg.WeekStart)
	return e
}

func (e *Engine) Settings() Settings { return e.cfg }

// SetLayout swaps the column geometry source, e.g. after a terminal resize.
func (e *Engine) SetLayout(l Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout = l
}

// Mode reports the current state. Saving wins over editing; a drag in
// progress wins over both.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.selection != nil:
		return ModeSelecting
	case e.resize != nil:
		return ModeResizing
	case e.saving:
		return ModeSaving
	case e.draft != nil:
		return ModeEditing
	default:
		return ModeIdle
	}
}

// Load replaces the local event copy with a fresh server listing.
func (e *Engine) Load(events []model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = reconcile.Merge(nil, events)
}

// Apply merges server-pushed updates into the local copy.
func (e *Engine) Apply(batch []model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = reconcile.Merge(e.events, batch)
}

// Forget drops an event deleted elsewhere.
func (e *Engine) Forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = reconcile.Remove(e.events, id)
}

// SetTasks replaces the task snapshot used for habit projection.
func (e *Engine) SetTasks(tasks []model.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = slices.Clone(tasks)
}

// Tasks returns the task snapshot.
func (e *Engine) Tasks() []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.tasks)
}

// Events returns a copy of the local events.
func (e *Engine) Events() []model.PersistedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// WeekStart is midnight of the first visible day.
func (e *Engine) WeekStart() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.weekStart
}

// WeekDays lists the visible days.
func (e *Engine) WeekDays() [7]time.Time {
	return grid.WeekDays(e.WeekStart())
}

// ShowWeek moves the view to the week containing t.
func (e *Engine) ShowWeek(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weekStart = grid.StartOfWeek(t, e.cfg.WeekStart)
}

// ShiftWeek moves the view by n weeks.
func (e *Engine) ShiftWeek(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weekStart = grid.AddDays(e.weekStart, 7*n)
}

// Today jumps back to the current week.
func (e *Engine) Today() {
	e.ShowWeek(e.now())
}

// View is a render pass over the visible week.
type View struct {
	Days        [7]time.Time
	Occurrences []model.Occurrence
	Ledger      *budget.Ledger
}

// Render projects habits for the visible week and merges them with the
// local events.
func (e *Engine) Render() View {
	e.mu.Lock()
	events := slices.Clone(e.events)
	tasks := e.tasks
	start := e.weekStart
	threshold := e.cfg.DailyBudget
	e.mu.Unlock()

	days := grid.WeekDays(start)
	habits := recur.Expand(tasks, days[0], days[6], recur.Options{}).Instances
	return View{
		Days:        days,
		Occurrences: reconcile.Render(events, habits),
		Ledger:      budget.NewLedger(reconcile.Events(events), habits, threshold),
	}
}

// ledgerFor builds the budget snapshot for the day containing t.
// Callers hold e.mu.
func (e *Engine) ledgerFor(t time.Time) *budget.Ledger {
	habits := recur.Expand(e.tasks, t, t, recur.Options{}).Instances
	return budget.NewLedger(reconcile.Events(e.events), habits, e.cfg.DailyBudget)
}

// withTimeout applies the configured per-call bound.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}
