// Package budget totals committed minutes per calendar day and reports when
// a day would exceed the soft daily budget. It never blocks anything; callers
// decide what to do with a Decision.
package budget

import (
	"fmt"
	"slices"
	"time"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

// Totals maps a day key (grid.DayKey) to committed minutes.
type Totals map[string]int

// Span is anything with a start and an end.
type Span interface {
	Bounds() (start, end time.Time)
}

// Aggregate sums span minutes per start day.
func Aggregate[S Span](spans []S) Totals {
	out := make(Totals)
	for _, s := range spans {
		start, end := s.Bounds()
		out[grid.DayKey(start)] += model.SpanMinutes(start, end)
	}
	return out
}

// AggregateEvents is Aggregate for plain persisted events.
func AggregateEvents(events []model.Event) Totals {
	out := make(Totals)
	for _, e := range events {
		out[grid.DayKey(e.Start)] += e.Minutes()
	}
	return out
}

// AggregateInstances is Aggregate for habit instances.
func AggregateInstances(instances []model.HabitInstance) Totals {
	out := make(Totals)
	for _, inst := range instances {
		out[grid.DayKey(inst.Start)] += model.SpanMinutes(inst.Start, inst.End)
	}
	return out
}

// Combine sums totals per key into a new map.
func Combine(parts ...Totals) Totals {
	out := make(Totals)
	for _, p := range parts {
		for k, v := range p {
			out[k] += v
		}
	}
	return out
}

// IsOverloaded reports whether total exceeds threshold.
func IsOverloaded(total, threshold int) bool {
	return total > threshold
}

// Decision is the outcome of Ledger.Confirm.
type Decision struct {
	DayKey            string
	Baseline          int
	Proposed          int
	Threshold         int
	NeedsConfirmation bool
}

// Total is the minutes the day would hold after the change.
func (d Decision) Total() int {
	return d.Baseline + d.Proposed
}

// Ledger is a snapshot of committed minutes for a set of events and habit
// instances, used to evaluate proposed changes.
type Ledger struct {
	threshold int
	events    []model.Event
	totals    Totals
}

// NewLedger aggregates persisted events and virtual instances separately and
// combines them.
func NewLedger(events []model.Event, instances []model.HabitInstance, threshold int) *Ledger {
	return &Ledger{
		threshold: threshold,
		events:    events,
		totals:    Combine(AggregateEvents(events), AggregateInstances(instances)),
	}
}

func (l *Ledger) Threshold() int { return l.threshold }

// Totals returns a copy of the combined per-day totals.
func (l *Ledger) Totals() Totals {
	return Combine(l.totals)
}

// Total returns committed minutes for dayKey.
func (l *Ledger) Total(dayKey string) int {
	return l.totals[dayKey]
}

// BaselineFor is the day's total minus the event being edited, so an edit is
// not counted against itself.
func (l *Ledger) BaselineFor(dayKey, excludingID string) int {
	total := l.totals[dayKey]
	if excludingID == "" {
		return total
	}
	for _, e := range l.events {
		if e.ID == excludingID && grid.DayKey(e.Start) == dayKey {
			total -= e.Minutes()
			break
		}
	}
	return total
}

// Confirm evaluates adding proposed minutes to dayKey.
func (l *Ledger) Confirm(dayKey string, proposed int, excludingID string) Decision {
	baseline := l.BaselineFor(dayKey, excludingID)
	return Decision{
		DayKey:            dayKey,
		Baseline:          baseline,
		Proposed:          proposed,
		Threshold:         l.threshold,
		NeedsConfirmation: IsOverloaded(baseline+proposed, l.threshold),
	}
}

// Overloaded lists the day keys already over the threshold, sorted.
func (l *Ledger) Overloaded() []string {
	var out []string
	for k, v := range l.totals {
		if IsOverloaded(v, l.threshold) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// FormatMinutes renders 90 as "1h 30m".
func FormatMinutes(m int) string {
	h, rem := m/60, m%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", rem)
	case rem == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, rem)
	}
}
