// Package reconcile folds server responses into the engine's local event copy
// and builds the render-ready occurrence list.
package reconcile

import (
	"cmp"
	"slices"
	"time"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

// Merge applies a batch of persisted events onto local. Records are matched
// by id; an incoming record replaces the local copy and clears its pending
// marker. A manual event linked to a task also replaces any other manual
// event linked to that task. The result is sorted by start and Merge is
// idempotent.
func Merge(local []model.PersistedEvent, incoming []model.Event) []model.PersistedEvent {
	out := slices.Clone(local)
	for _, ev := range incoming {
		out = upsert(out, ev)
	}
	sortEvents(out)
	return out
}

// Upsert merges a single event.
func Upsert(local []model.PersistedEvent, ev model.Event) []model.PersistedEvent {
	return Merge(local, []model.Event{ev})
}

func upsert(local []model.PersistedEvent, ev model.Event) []model.PersistedEvent {
	out := local[:0:0]
	for _, existing := range local {
		if existing.ID == ev.ID {
			continue
		}
		if ev.LinkedManual() && existing.LinkedManual() && existing.TaskID == ev.TaskID {
			continue
		}
		out = append(out, existing)
	}
	return append(out, model.PersistedEvent{Event: ev})
}

// Remove drops the event with id.
func Remove(local []model.PersistedEvent, id string) []model.PersistedEvent {
	return slices.DeleteFunc(slices.Clone(local), func(p model.PersistedEvent) bool {
		return p.ID == id
	})
}

// MarkPending sets new bounds on a local event and flags it unconfirmed.
// It reports false if id is unknown.
func MarkPending(local []model.PersistedEvent, id string, start, end time.Time) ([]model.PersistedEvent, bool) {
	out := slices.Clone(local)
	for i := range out {
		if out[i].ID == id {
			out[i].Start = start
			out[i].End = end
			out[i].Pending = true
			return out, true
		}
	}
	return out, false
}

// Find returns the local event with id.
func Find(local []model.PersistedEvent, id string) (model.PersistedEvent, bool) {
	i := slices.IndexFunc(local, func(p model.PersistedEvent) bool { return p.ID == id })
	if i < 0 {
		return model.PersistedEvent{}, false
	}
	return local[i], true
}

// Events unwraps the persisted events.
func Events(local []model.PersistedEvent) []model.Event {
	out := make([]model.Event, len(local))
	for i, p := range local {
		out[i] = p.Event
	}
	return out
}

// Render combines local events and virtual instances sorted by start. On
// equal starts persisted events come first, then ordering is by key.
func Render(local []model.PersistedEvent, virtual []model.HabitInstance) []model.Occurrence {
	out := make([]model.Occurrence, 0, len(local)+len(virtual))
	for _, p := range local {
		out = append(out, p)
	}
	for _, v := range virtual {
		out = append(out, model.VirtualOccurrence{HabitInstance: v})
	}
	slices.SortStableFunc(out, func(a, b model.Occurrence) int {
		as, _ := a.Bounds()
		bs, _ := b.Bounds()
		if c := as.Compare(bs); c != 0 {
			return c
		}
		if a.ReadOnly() != b.ReadOnly() {
			if a.ReadOnly() {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.Key(), b.Key())
	})
	return out
}

// ForDay keeps the occurrences starting on day.
func ForDay(list []model.Occurrence, day time.Time) []model.Occurrence {
	var out []model.Occurrence
	for _, occ := range list {
		start, _ := occ.Bounds()
		if grid.SameDay(start, day) {
			out = append(out, occ)
		}
	}
	return out
}

func sortEvents(events []model.PersistedEvent) {
	slices.SortStableFunc(events, func(a, b model.PersistedEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
