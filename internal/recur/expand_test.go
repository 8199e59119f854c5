package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

func deepWork() model.Task {
	return model.Task{
		ID:       "deep-work",
		Title:    "Deep Work",
		Category: "habit",
		Recurrence: &model.Recurrence{
			Rule:            model.RepeatCustomDays,
			Days:            []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			TimeOfDay:       9 * 60,
			DurationMinutes: 90,
		},
	}
}

// monday is the Monday of a fixed week used throughout.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.Local)

func TestExpand_DeepWorkWeek(t *testing.T) {
	res := Expand([]model.Task{deepWork()}, monday, grid.AddDays(monday, 6), Options{})
	require.Len(t, res.Instances, 3)
	SortByStart(res.Instances)

	wantDays := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	for i, inst := range res.Instances {
		assert.Equal(t, wantDays[i], inst.Start.Weekday())
		assert.Equal(t, 9, inst.Start.Hour())
		assert.Equal(t, 0, inst.Start.Minute())
		assert.Equal(t, 10, inst.End.Hour())
		assert.Equal(t, 30, inst.End.Minute())
		assert.Equal(t, 90, inst.DurationMinutes)
		assert.Equal(t, "habit-deep-work-"+grid.DayKey(inst.Start), inst.ID)
		assert.Equal(t, model.CategoryColor("habit"), inst.Color)
	}
	assert.Empty(t, res.TruncatedTasks)
}

func TestExpand_OneInstancePerMatchingDay(t *testing.T) {
	task := deepWork()
	start := time.Date(2025, 2, 12, 15, 0, 0, 0, time.Local) // a Wednesday afternoon
	end := time.Date(2025, 4, 1, 8, 0, 0, 0, time.Local)

	res := Expand([]model.Task{task}, start, end, Options{})

	want := 0
	seen := map[string]bool{}
	for d := grid.StartOfDay(start); !d.After(grid.StartOfDay(end)); d = grid.AddDays(d, 1) {
		switch d.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			want++
		}
	}
	require.Len(t, res.Instances, want)
	for _, inst := range res.Instances {
		assert.Equal(t, 90*time.Minute, inst.End.Sub(inst.Start))
		assert.False(t, seen[inst.DayKey], "duplicate day %s", inst.DayKey)
		seen[inst.DayKey] = true
	}
	// The first day counts even though the range starts after 09:00 on it.
	assert.True(t, seen["2025-02-12"])
}

func TestExpand_RepeatRules(t *testing.T) {
	weekEnd := grid.AddDays(monday, 6)
	tests := []struct {
		name string
		rec  *model.Recurrence
		want int
	}{
		{"daily", &model.Recurrence{Rule: model.RepeatDaily, TimeOfDay: 420, DurationMinutes: 30}, 7},
		{"weekdays", &model.Recurrence{Rule: model.RepeatWeekdays, TimeOfDay: 420, DurationMinutes: 30}, 5},
		{"none", &model.Recurrence{Rule: model.RepeatNone, TimeOfDay: 420, DurationMinutes: 30}, 0},
		{"nil", nil, 0},
		{"missing duration", &model.Recurrence{Rule: model.RepeatDaily, TimeOfDay: 420}, 0},
		{"empty custom days", &model.Recurrence{Rule: model.RepeatCustomDays, TimeOfDay: 420, DurationMinutes: 30}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := model.Task{ID: "t", Title: "t", Recurrence: tt.rec}
			res := Expand([]model.Task{task}, monday, weekEnd, Options{})
			assert.Len(t, res.Instances, tt.want)
		})
	}
}

func TestExpand_UntilIsInclusive(t *testing.T) {
	until := grid.AddDays(monday, 2) // Wednesday
	task := model.Task{ID: "t", Recurrence: &model.Recurrence{
		Rule: model.RepeatDaily, TimeOfDay: 23 * 60, DurationMinutes: 30, Until: &until,
	}}
	res := Expand([]model.Task{task}, monday, grid.AddDays(monday, 6), Options{})
	assert.Len(t, res.Instances, 3)
}

func TestExpand_PastMidnightStaysOnStartDay(t *testing.T) {
	task := model.Task{ID: "late", Recurrence: &model.Recurrence{
		Rule: model.RepeatCustomDays, Days: []time.Weekday{time.Tuesday}, TimeOfDay: 23 * 60, DurationMinutes: 120,
	}}
	res := Expand([]model.Task{task}, monday, grid.AddDays(monday, 6), Options{})
	require.Len(t, res.Instances, 1)
	inst := res.Instances[0]
	assert.Equal(t, "2025-03-04", inst.DayKey)
	assert.Equal(t, 120*time.Minute, inst.End.Sub(inst.Start))
}

func TestExpand_ReversedRangeIsEmpty(t *testing.T) {
	res := Expand([]model.Task{deepWork()}, grid.AddDays(monday, 6), monday, Options{})
	assert.Empty(t, res.Instances)
}

func TestExpand_Cap(t *testing.T) {
	task := model.Task{ID: "daily", Recurrence: &model.Recurrence{Rule: model.RepeatDaily, TimeOfDay: 60, DurationMinutes: 15}}
	res := Expand([]model.Task{task}, monday, grid.AddDays(monday, 30), Options{MaxPerTask: 10})
	assert.Len(t, res.Instances, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedTasks)
}

func TestRuleOption(t *testing.T) {
	opt := RuleOption(deepWork().Recurrence, monday)
	rule := opt.RRuleString()
	assert.Contains(t, rule, "FREQ=WEEKLY")
	assert.Contains(t, rule, "BYDAY=MO,WE,FR")
	assert.NotContains(t, rule, "UNTIL")
}
