package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.Local)

func input(title string, startMin, minutes int) model.EventInput {
	return model.EventInput{
		Title: title,
		Start: grid.At(monday, startMin),
		End:   grid.At(monday, startMin+minutes),
	}
}

func ptr(s string) *string { return &s }

func TestEventStore_CRUDPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.json")
	s, err := OpenEvents(path)
	require.NoError(t, err)

	created, err := s.CreateEvent(ctx, input("  ", 9*60, 60))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Untitled block", created.Title)
	assert.Equal(t, model.DefaultEventColor, created.Color)
	assert.Equal(t, model.KindManual, created.Kind)

	upd := input("Deep work", 9*60, 90)
	upd.Color = ptr("#22d3ee")
	updated, err := s.UpdateEvent(ctx, created.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, 90, updated.Minutes())

	// An update without a colour keeps the stored one.
	updated, err = s.UpdateEvent(ctx, created.ID, input("Deep work", 9*60, 120))
	require.NoError(t, err)
	assert.Equal(t, "#22d3ee", updated.Color)

	reopened, err := OpenEvents(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deep work", got.Title)
	assert.Equal(t, 120, got.Minutes())

	require.NoError(t, reopened.DeleteEvent(ctx, created.ID))
	assert.ErrorIs(t, reopened.DeleteEvent(ctx, created.ID), ErrNotFound)
	_, err = reopened.UpdateEvent(ctx, created.ID, upd)
	assert.ErrorIs(t, err, ErrNotFound)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEventStore_RejectsInvalidRange(t *testing.T) {
	s := NewMemory()
	_, err := s.CreateEvent(context.Background(), input("x", 600, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = s.CreateEvent(context.Background(), model.EventInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestEventStore_ListRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for i := range 5 {
		in := input(fmt.Sprintf("day %d", i), 9*60, 60)
		in.Start = grid.AddDays(in.Start, i)
		in.End = grid.AddDays(in.End, i)
		_, err := s.CreateEvent(ctx, in)
		require.NoError(t, err)
	}

	got, err := s.List(ctx, grid.AddDays(monday, 1), grid.AddDays(monday, 3))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "day 1", got[0].Title)
	assert.Equal(t, "day 2", got[1].Title)

	all, err := s.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestEventStore_OneManualEventPerTask(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	first := input("Essay", 9*60, 60)
	first.TaskID = ptr("essay")
	a, err := s.CreateEvent(ctx, first)
	require.NoError(t, err)

	plan := input("Essay study block", 14*60, 50)
	plan.TaskID = ptr("essay")
	plan.Kind = model.KindAutoPlan
	_, err = s.CreateEvent(ctx, plan)
	require.NoError(t, err)

	second := input("Essay", 11*60, 60)
	second.TaskID = ptr("essay")
	b, err := s.CreateEvent(ctx, second)
	require.NoError(t, err)

	all, err := s.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	_, err = s.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, b.ID)
	assert.NoError(t, err)
}

func TestEventStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dir, 0o700))
	s, err := OpenEvents(filepath.Join(dir, "events.json"))
	require.NoError(t, err)

	in := input("Essay", 9*60, 60)
	in.TaskID = ptr("essay")
	first, err := s.CreateEvent(ctx, in)
	require.NoError(t, err)

	// Replace the directory with a file so every flush fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o600))

	_, err = s.CreateEvent(ctx, input("Other", 12*60, 30))
	require.Error(t, err)

	replacing := input("Essay again", 15*60, 60)
	replacing.TaskID = ptr("essay")
	_, err = s.CreateEvent(ctx, replacing)
	require.Error(t, err)

	_, err = s.UpdateEvent(ctx, first.ID, input("Moved", 10*60, 60))
	require.Error(t, err)

	require.Error(t, s.DeleteEvent(ctx, first.ID))

	events, err := s.List(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, first, events[0])
}

func TestEventStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().CreateEvent(ctx, input("x", 600, 60))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tasks:
  - id: deep
    title: Deep Work
    category: habit
    recurrence:
      rule: custom_days
      days: [mon, wed, fri]
      at: "09:00"
      duration_minutes: 60
  - id: essay
    title: Essay
    category: assignment
`), 0o600))

	src := NewTaskSource(path)
	require.NoError(t, src.Reload())
	tasks := src.List()
	require.Len(t, tasks, 2)
	require.NotNil(t, tasks[0].Recurrence)
	assert.Equal(t, 9*60, tasks[0].Recurrence.TimeOfDay)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, tasks[0].Recurrence.Weekdays())
	assert.Nil(t, tasks[1].Recurrence)

	// A broken file keeps the last good snapshot.
	require.NoError(t, os.WriteFile(path, []byte("tasks: [oops"), 0o600))
	require.Error(t, src.Reload())
	assert.Len(t, src.List(), 2)
}

func TestLoadTasks_Missing(t *testing.T) {
	tasks, err := LoadTasks(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, StaticTasks(nil).List())
}
