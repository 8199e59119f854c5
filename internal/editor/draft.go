package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blockplan/internal/budget"
	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/reconcile"
)

const untitledBlock = "Untitled block"

// Draft is the modal editor's working copy. ID is empty for a block that
// has not been created yet.
type Draft struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Anchor Point
	TaskID string
	Color  string
	Kind   model.EventKind
}

// Linked reports whether the title follows a task.
func (d Draft) Linked() bool { return d.TaskID != "" }

// IsNew reports whether saving creates a block.
func (d Draft) IsNew() bool { return d.ID == "" }

// Outcome is how a Save or Delete ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSaved
	OutcomeDeclined
	OutcomeDeleted
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeDeclined:
		return "declined"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeClosed:
		return "closed"
	default:
		return "none"
	}
}

// Draft returns the open draft, if any.
func (e *Engine) Draft() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return Draft{}, false
	}
	return *e.draft, true
}

// OpenEvent opens the editor on a persisted event.
func (e *Engine) OpenEvent(id string, anchor Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return ErrBusy
	}
	ev, ok := reconcile.Find(e.events, id)
	if !ok {
		if strings.HasPrefix(id, "habit-") {
			return fmt.Errorf("%w: %s", ErrReadOnly, id)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.draft = &Draft{
		ID:     ev.ID,
		Title:  ev.Title,
		Start:  ev.Start,
		End:    ev.End,
		Anchor: anchor,
		TaskID: ev.TaskID,
		Color:  ev.Color,
		Kind:   ev.Kind,
	}
	return nil
}

// OpenOccurrence opens a rendered occurrence. Habit occurrences are
// read-only, so it reports false and leaves the state alone for them.
func (e *Engine) OpenOccurrence(occ model.Occurrence, anchor Point) (bool, error) {
	p, ok := occ.(model.PersistedEvent)
	if !ok {
		return false, nil
	}
	if err := e.OpenEvent(p.ID, anchor); err != nil {
		return false, err
	}
	return true, nil
}

// editDraft runs fn on the open draft under the lock.
func (e *Engine) editDraft(fn func(d *Draft) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNoEditor
	}
	if e.saving {
		return ErrBusy
	}
	return fn(e.draft)
}

// SetTitle edits the title of an unlinked draft.
func (e *Engine) SetTitle(title string) error {
	return e.editDraft(func(d *Draft) error {
		if d.Linked() {
			return ErrTitleLocked
		}
		d.Title = title
		return nil
	})
}

// SetStartTime sets the start from an "HH:MM" value on the draft's day.
func (e *Engine) SetStartTime(hhmm string) error {
	return e.editDraft(func(d *Draft) error {
		t, err := onDraftDay(d, hhmm)
		if err != nil {
			return err
		}
		d.Start = t
		return nil
	})
}

// SetEndTime sets the end from an "HH:MM" value on the draft's day.
// "24:00" means the following midnight.
func (e *Engine) SetEndTime(hhmm string) error {
	return e.editDraft(func(d *Draft) error {
		t, err := onDraftDay(d, hhmm)
		if err != nil {
			return err
		}
		d.End = t
		return nil
	})
}

func onDraftDay(d *Draft, hhmm string) (time.Time, error) {
	m, err := model.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return grid.At(grid.StartOfDay(d.Start), m), nil
}

// LinkTask ties the draft to a task; the title follows the task's title.
func (e *Engine) LinkTask(task model.Task) error {
	return e.editDraft(func(d *Draft) error {
		d.TaskID = task.ID
		d.Title = task.Title
		return nil
	})
}

// UnlinkTask releases the title for editing again, keeping its text.
func (e *Engine) UnlinkTask() error {
	return e.editDraft(func(d *Draft) error {
		d.TaskID = ""
		return nil
	})
}

// Cancel closes the editor without saving. It is ignored while a save is in
// flight.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saving {
		return
	}
	e.draft = nil
}

// PreviewSave returns the budget decision Save would make for the open
// draft, without changing state. Hosts that prompt asynchronously ask this
// first and then Save with AlwaysConfirm.
func (e *Engine) PreviewSave() (budget.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return budget.Decision{}, ErrNoEditor
	}
	d := *e.draft
	if !d.End.After(d.Start) {
		return budget.Decision{}, ErrInvalidRange
	}
	return e.decide(d), nil
}

// decide evaluates the draft against the daily budget. Callers hold e.mu.
func (e *Engine) decide(d Draft) budget.Decision {
	return e.ledgerFor(d.Start).Confirm(grid.DayKey(d.Start), model.SpanMinutes(d.Start, d.End), d.ID)
}

// Save validates the draft, checks the daily budget and persists it. An
// overload needs c to agree; a refusal returns OutcomeDeclined and keeps the
// editor open. A persistence failure is reported through the Notifier and
// also keeps the editor open.
func (e *Engine) Save(ctx context.Context, c Confirmer) (Outcome, error) {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return OutcomeNone, ErrNoEditor
	}
	if e.saving {
		e.mu.Unlock()
		return OutcomeNone, ErrBusy
	}
	open := e.draft
	d := *open
	if !d.End.After(d.Start) {
		e.mu.Unlock()
		e.notify.Notify("End time must be after the start time.", ErrInvalidRange)
		return OutcomeNone, ErrInvalidRange
	}
	decision := e.decide(d)
	e.saving = true
	e.mu.Unlock()

	if decision.NeedsConfirmation && (c == nil || !c.ConfirmOverload(ctx, decision)) {
		e.finishSaving()
		appLog.Info("save declined over budget", "day", decision.DayKey, "total", decision.Total(), "threshold", decision.Threshold)
		return OutcomeDeclined, nil
	}

	in := draftInput(d)
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	var (
		saved model.Event
		err   error
	)
	if d.IsNew() {
		saved, err = e.store.CreateEvent(callCtx, in)
	} else {
		saved, err = e.store.UpdateEvent(callCtx, d.ID, in)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		appLog.Error("save event failed", err, "event_id", d.ID)
		e.notify.Notify("Failed to save event", err)
		return OutcomeNone, fmt.Errorf("save event: %w", err)
	}
	e.events = reconcile.Upsert(e.events, saved)
	// A draft opened after this save began stays open.
	if e.draft == open {
		e.draft = nil
	}
	return OutcomeSaved, nil
}

func (e *Engine) finishSaving() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
}

func draftInput(d Draft) model.EventInput {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = untitledBlock
	}
	kind := d.Kind
	if kind == "" {
		kind = model.KindManual
	}
	in := model.EventInput{Title: title, Start: d.Start, End: d.End, Kind: kind}
	if d.TaskID != "" {
		id := d.TaskID
		in.TaskID = &id
	}
	if d.Color != "" {
		c := d.Color
		in.Color = &c
	}
	return in
}

// Delete removes the draft's block. A draft that was never saved just
// closes. On failure the local events and the open draft stay as they were.
func (e *Engine) Delete(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return OutcomeNone, ErrNoEditor
	}
	if e.saving {
		e.mu.Unlock()
		return OutcomeNone, ErrBusy
	}
	if e.draft.IsNew() {
		e.draft = nil
		e.mu.Unlock()
		return OutcomeClosed, nil
	}
	open := e.draft
	id := open.ID
	e.saving = true
	e.mu.Unlock()

	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	err := e.store.DeleteEvent(callCtx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		appLog.Error("delete event failed", err, "event_id", id)
		e.notify.Notify("Failed to delete event", err)
		return OutcomeNone, fmt.Errorf("delete event: %w", err)
	}
	e.events = reconcile.Remove(e.events, id)
	if e.draft == open {
		e.draft = nil
	}
	return OutcomeDeleted, nil
}
