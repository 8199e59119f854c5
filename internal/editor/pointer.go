package editor

import (
	"context"
	"fmt"
	"time"

	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/reconcile"
)

// Selection is an in-progress drag over empty grid space.
type Selection struct {
	DayIndex       int
	OriginMinutes  int
	CurrentMinutes int
	Anchor         Point
}

// Bounds returns the selection as an ordered minute range for previews.
func (s Selection) Bounds() (start, end int) {
	return min(s.OriginMinutes, s.CurrentMinutes), max(s.OriginMinutes, s.CurrentMinutes)
}

// Edge is the side of a block being resized.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// Resize is an in-progress drag of one block edge.
type Resize struct {
	EventID  string
	DayIndex int
	Edge     Edge
}

// Selection returns the current drag selection, if any.
func (e *Engine) Selection() (Selection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return Selection{}, false
	}
	return *e.selection, true
}

// Resizing returns the current resize, if any.
func (e *Engine) Resizing() (Resize, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resize == nil {
		return Resize{}, false
	}
	return *e.resize, true
}

// minutesAt reads the pointer's minute of day for a column. Callers hold e.mu.
func (e *Engine) minutesAt(dayIndex int, p Point) float64 {
	w := e.cfg.Window
	if e.layout == nil {
		return float64(w.StartMinutes())
	}
	top, height, ok := e.layout.Column(dayIndex)
	if !ok {
		return float64(w.StartMinutes())
	}
	return w.MinutesAt(p.Y, top, height)
}

// PointerDown starts a selection on empty space in a day column.
func (e *Engine) PointerDown(dayIndex int, p Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dayIndex < 0 || dayIndex > 6 {
		return ErrInvalidDay
	}
	if e.saving {
		return ErrBusy
	}
	if e.resize != nil {
		return nil
	}
	m := grid.Snap(e.minutesAt(dayIndex, p), e.cfg.Snap)
	e.selection = &Selection{
		DayIndex:       dayIndex,
		OriginMinutes:  m,
		CurrentMinutes: m,
		Anchor:         p,
	}
	return nil
}

// PointerDownOccurrence starts a resize on a block's handle. Virtual habit
// occurrences are read-only and ignore the press.
func (e *Engine) PointerDownOccurrence(occ model.Occurrence, dayIndex int, edge Edge) error {
	switch o := occ.(type) {
	case model.PersistedEvent:
		return e.PointerDownHandle(o.ID, dayIndex, edge)
	default:
		return nil
	}
}

// PointerDownHandle starts dragging an edge of a persisted event.
func (e *Engine) PointerDownHandle(eventID string, dayIndex int, edge Edge) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dayIndex < 0 || dayIndex > 6 {
		return ErrInvalidDay
	}
	if e.saving {
		return ErrBusy
	}
	if _, ok := reconcile.Find(e.events, eventID); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	e.selection = nil
	e.resize = &Resize{EventID: eventID, DayIndex: dayIndex, Edge: edge}
	return nil
}

// PointerMove recomputes the active drag from the absolute pointer position.
// It keeps no deltas, so dropped or reordered moves cannot skew the result.
func (e *Engine) PointerMove(p Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.selection != nil:
		e.selection.CurrentMinutes = grid.Snap(e.minutesAt(e.selection.DayIndex, p), e.cfg.Snap)
	case e.resize != nil:
		e.applyResize(p)
	}
}

// applyResize moves the dragged edge optimistically. The edge stops
// MinDuration short of the opposite edge and at the window bounds; a move
// that cannot satisfy both leaves the block as it is. Callers hold e.mu.
func (e *Engine) applyResize(p Point) {
	r := e.resize
	ev, ok := reconcile.Find(e.events, r.EventID)
	if !ok {
		return
	}
	w := e.cfg.Window
	m := grid.Snap(e.minutesAt(r.DayIndex, p), e.cfg.Snap)
	day := grid.StartOfDay(ev.Start)
	startMin := dayMinutes(day, ev.Start)
	endMin := dayMinutes(day, ev.End)

	start, end := ev.Start, ev.End
	switch r.Edge {
	case EdgeStart:
		next := w.ClampMinutes(min(m, endMin-e.cfg.MinDuration))
		if next > endMin-e.cfg.MinDuration {
			return
		}
		start = grid.At(day, next)
	case EdgeEnd:
		next := w.ClampMinutes(max(m, startMin+e.cfg.MinDuration))
		if next < startMin+e.cfg.MinDuration {
			return
		}
		end = grid.At(day, next)
	}
	if start.Equal(ev.Start) && end.Equal(ev.End) {
		return
	}
	e.events, _ = reconcile.MarkPending(e.events, r.EventID, start, end)
}

// dayMinutes is t's offset from day's midnight in minutes; the following
// midnight counts as 24:00.
func dayMinutes(day, t time.Time) int {
	if grid.SameDay(day, t) {
		return grid.MinutesOf(t)
	}
	if t.After(day) {
		return grid.MinutesPerDay + grid.MinutesOf(t)
	}
	return 0
}

// PointerUp ends the active drag. A selection opens the editor on a new
// draft; a resize persists the block as it stands locally. A failed resize
// is reported but the local change is kept.
func (e *Engine) PointerUp(ctx context.Context) error {
	e.mu.Lock()
	if sel := e.selection; sel != nil {
		e.selection = nil
		e.finalizeSelection(*sel)
		e.mu.Unlock()
		return nil
	}
	r := e.resize
	if r == nil {
		e.mu.Unlock()
		return nil
	}
	e.resize = nil
	ev, ok := reconcile.Find(e.events, r.EventID)
	e.mu.Unlock()
	if !ok || !ev.Pending {
		return nil
	}

	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	saved, err := e.store.UpdateEvent(callCtx, ev.ID, model.InputFromEvent(ev.Event))
	if err != nil {
		appLog.Error("resize update failed", err, "event_id", ev.ID, "edge", r.Edge.String())
		e.notify.Notify("Failed to update event", err)
		return fmt.Errorf("resize %s: %w", ev.ID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A later resize of the same block may have started meanwhile; its own
	// release will persist it.
	if cur, ok := reconcile.Find(e.events, ev.ID); ok && cur.Start.Equal(ev.Start) && cur.End.Equal(ev.End) {
		e.events = reconcile.Upsert(e.events, saved)
	}
	return nil
}

// finalizeSelection turns a drag into a draft. Short drags grow forward to
// DefaultBlock; at the bottom of the window the start moves back instead so
// the block keeps MinDuration. Callers hold e.mu.
func (e *Engine) finalizeSelection(sel Selection) {
	w := e.cfg.Window
	lo, hi := sel.Bounds()
	start := w.ClampMinutes(lo)
	end := w.ClampMinutes(hi)
	if end-start < e.cfg.MinDuration {
		end = w.ClampMinutes(min(start+e.cfg.DefaultBlock, w.EndMinutes()))
	}
	if end-start < e.cfg.MinDuration {
		start = end - e.cfg.MinDuration
	}

	day := grid.WeekDays(e.weekStart)[sel.DayIndex]
	e.draft = &Draft{
		Title:  "",
		Start:  grid.At(day, start),
		End:    grid.At(day, end),
		Anchor: sel.Anchor,
		Color:  model.PaletteColor(len(e.events)),
		Kind:   model.KindManual,
	}
}
