// Package ics renders blocks and habits as an iCalendar feed so other
// calendar apps can subscribe to the plan.
package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
	"blockplan/internal/recur"
)

const (
	ProductID = "-//blockplan//week planner//EN"

	propKind ical.ComponentProperty = "X-BLOCKPLAN-KIND"
	uidHost                         = "@blockplan"
)

// Options controls the feed header.
type Options struct {
	Name string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Export builds a calendar with one VEVENT per block and one recurring VEVENT
// per habit task. Habits are anchored at their first occurrence on or after
// from, so the RRULE reproduces what recur.Expand shows.
func Export(events []model.Event, tasks []model.Task, from time.Time, opts Options) *ical.Calendar {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		vev := cal.AddEvent(ev.ID + uidHost)
		vev.SetDtStampTime(now)
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
		vev.SetSummary(ev.Title)
		if ev.Color != "" {
			vev.SetProperty(ical.ComponentPropertyColor, ev.Color)
		}
		kind := ev.Kind
		if kind == "" {
			kind = model.KindManual
		}
		vev.SetProperty(propKind, string(kind))
		if ev.TaskID != "" {
			vev.SetProperty(ical.ComponentPropertyRelatedTo, ev.TaskID+uidHost)
		}
	}

	exported := 0
	for _, task := range tasks {
		if addHabit(cal, task, from, now) {
			exported++
		}
	}

	appLog.Debug("ics export", "events", len(events), "habits", exported)
	return cal
}

// addHabit appends the recurring VEVENT for task; it reports false when the
// task does not recur or has no occurrence in the week after from.
func addHabit(cal *ical.Calendar, task model.Task, from time.Time, now time.Time) bool {
	rec := task.Recurrence
	if !rec.Valid() {
		return false
	}
	week := recur.Expand([]model.Task{task}, from, grid.AddDays(from, 6), recur.Options{}).Instances
	if len(week) == 0 {
		return false
	}
	recur.SortByStart(week)
	inst := week[0]

	opt := recur.RuleOption(rec, inst.Start)
	vev := cal.AddEvent(recur.InstanceID(task.ID, "series") + uidHost)
	vev.SetDtStampTime(now)
	vev.SetStartAt(inst.Start)
	vev.SetEndAt(inst.End)
	vev.SetSummary(task.Title)
	vev.SetProperty(ical.ComponentPropertyColor, inst.Color)
	vev.SetProperty(propKind, "habit")
	vev.AddProperty(ical.ComponentPropertyRrule, ruleOnly(opt.RRuleString()))
	return true
}

// ruleOnly strips a DTSTART line if the rule string carries one; DTSTART is
// its own property in a VEVENT.
func ruleOnly(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "DTSTART") {
			continue
		}
		return strings.TrimPrefix(line, "RRULE:")
	}
	return s
}

// Serialize renders the calendar as text/calendar.
func Serialize(cal *ical.Calendar) []byte {
	return []byte(cal.Serialize())
}
