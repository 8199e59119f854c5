// Package recur projects recurring tasks onto concrete, read-only habit
// occurrences for a date range.
package recur

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"blockplan/internal/grid"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
)

const defaultMaxPerTask = 5000

// Options controls expansion.
type Options struct {
	// MaxPerTask caps the occurrences emitted for a single task. If zero,
	// defaultMaxPerTask is used.
	MaxPerTask int
}

// Result holds the expanded instances and the tasks that hit the cap.
type Result struct {
	Instances      []model.HabitInstance
	TruncatedTasks []string
}

// Expand emits one HabitInstance for every day in [start, end] (calendar
// days, both inclusive) whose weekday matches a task's recurrence. Tasks
// without a valid recurrence contribute nothing. The output order is
// unspecified; use SortByStart before rendering.
//
// An instance whose time of day plus duration runs past midnight is still a
// single instance keyed to its start day; it is not split or wrapped.
//
// Expand has no side effects besides logging truncation, so callers are free
// to memoise it on (tasks, range).
func Expand(tasks []model.Task, start, end time.Time, opts Options) Result {
	var res Result
	if opts.MaxPerTask <= 0 {
		opts.MaxPerTask = defaultMaxPerTask
	}

	firstDay := grid.StartOfDay(start)
	lastDay := grid.StartOfDay(end)
	if lastDay.Before(firstDay) {
		return res
	}

	for _, task := range tasks {
		instances, hitCap := expandTask(task, firstDay, lastDay, opts.MaxPerTask)
		res.Instances = append(res.Instances, instances...)
		if hitCap {
			res.TruncatedTasks = append(res.TruncatedTasks, task.ID)
			appLog.Error("recur: truncated occurrences for task due to cap",
				errors.New("max occurrences reached"),
				"task_id", task.ID,
				"cap", opts.MaxPerTask,
			)
		}
	}
	return res
}

func expandTask(task model.Task, firstDay, lastDay time.Time, maxPerTask int) ([]model.HabitInstance, bool) {
	rec := task.Recurrence
	if !rec.Valid() {
		return nil, false
	}

	r, err := ruleFor(rec, firstDay)
	if err != nil {
		appLog.Error("recur: failed to build rule", err, "task_id", task.ID)
		return nil, false
	}

	// Every occurrence sits at TimeOfDay, so the last candidate is the last
	// day at that time; both bounds are inclusive.
	starts := r.Between(grid.At(firstDay, rec.TimeOfDay), grid.At(lastDay, rec.TimeOfDay), true)

	hitCap := false
	if len(starts) > maxPerTask {
		starts = starts[:maxPerTask]
		hitCap = true
	}

	color := model.CategoryColor("habit")
	out := make([]model.HabitInstance, 0, len(starts))
	for _, s := range starts {
		key := grid.DayKey(s)
		out = append(out, model.HabitInstance{
			ID:              InstanceID(task.ID, key),
			TaskID:          task.ID,
			Title:           task.Title,
			Start:           s,
			End:             s.Add(time.Duration(rec.DurationMinutes) * time.Minute),
			Color:           color,
			DayKey:          key,
			DurationMinutes: rec.DurationMinutes,
		})
	}
	return out, hitCap
}

// RuleOption translates a recurrence into a weekly rrule option anchored at
// dtstart's day and the recurrence's time of day.
func RuleOption(rec *model.Recurrence, dtstart time.Time) rrule.ROption {
	days := rec.Weekdays()
	byDay := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byDay = append(byDay, weekdays[d])
	}

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  1,
		Dtstart:   grid.At(dtstart, rec.TimeOfDay),
		Byweekday: byDay,
		Wkst:      rrule.MO,
	}
	if rec.Until != nil {
		// Until is a whole day: anything starting on it still counts.
		opt.Until = grid.At(*rec.Until, grid.MinutesPerDay).Add(-time.Second)
	}
	return opt
}

func ruleFor(rec *model.Recurrence, dtstart time.Time) (*rrule.RRule, error) {
	r, err := rrule.NewRRule(RuleOption(rec, dtstart))
	if err != nil {
		return nil, fmt.Errorf("recur: %w", err)
	}
	return r, nil
}

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// InstanceID derives the stable id of a task's occurrence on a day.
func InstanceID(taskID, dayKey string) string {
	return "habit-" + taskID + "-" + dayKey
}

// SortByStart orders instances by start, then id.
func SortByStart(instances []model.HabitInstance) {
	slices.SortStableFunc(instances, func(a, b model.HabitInstance) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
