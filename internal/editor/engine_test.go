package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockplan/internal/budget"
	"blockplan/internal/grid"
	"blockplan/internal/model"
	"blockplan/internal/reconcile"
	"blockplan/internal/testutil"
)

var (
	monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.Local)
	now    = time.Date(2025, 3, 5, 10, 0, 0, 0, time.Local)
)

// The layout maps one pixel to one minute, starting at 01:00.
func y(minutes int) Point { return Point{X: 10, Y: float64(minutes - 60)} }

type fixture struct {
	engine   *Engine
	store    *testutil.MockPersistence
	notifier *testutil.MockNotifier
}

func newFixture(t *testing.T, events ...model.Event) fixture {
	t.Helper()
	store := testutil.NewMockPersistence(events...)
	notifier := &testutil.MockNotifier{}
	clock := &testutil.MockClock{NowTime: now}
	cfg := DefaultSettings()
	e := New(cfg, Deps{
		Store:    store,
		Layout:   testutil.MockLayout{Top: 0, Height: cfg.Window.Height()},
		Notifier: notifier,
		Now:      clock.Now,
	})
	e.Load(events)
	return fixture{engine: e, store: store, notifier: notifier}
}

func event(id string, startMin, minutes int) model.Event {
	return model.Event{
		ID:    id,
		Title: id,
		Start: grid.At(monday, startMin),
		End:   grid.At(monday, startMin+minutes),
		Color: "#22d3ee",
		Kind:  model.KindManual,
	}
}

func drag(t *testing.T, e *Engine, day int, from, to int) {
	t.Helper()
	require.NoError(t, e.PointerDown(day, y(from)))
	e.PointerMove(y(to))
	require.NoError(t, e.PointerUp(context.Background()))
}

func TestNew_ShowsCurrentWeek(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, monday, f.engine.WeekStart())
	assert.Equal(t, ModeIdle, f.engine.Mode())
}

func TestSelection_ShortDragGrowsToDefaultBlock(t *testing.T) {
	f := newFixture(t)
	e := f.engine

	require.NoError(t, e.PointerDown(0, y(10*60+5)))
	sel, ok := e.Selection()
	require.True(t, ok)
	assert.Equal(t, 600, sel.OriginMinutes)
	assert.Equal(t, ModeSelecting, e.Mode())

	e.PointerMove(y(10*60 + 12))
	sel, _ = e.Selection()
	assert.Equal(t, 615, sel.CurrentMinutes)

	require.NoError(t, e.PointerUp(context.Background()))
	d, ok := e.Draft()
	require.True(t, ok)
	assert.True(t, d.IsNew())
	assert.Equal(t, grid.At(monday, 600), d.Start)
	assert.Equal(t, grid.At(monday, 660), d.End)
	assert.Equal(t, model.PaletteColor(0), d.Color)
	assert.Equal(t, ModeEditing, e.Mode())
	assert.Zero(t, f.store.CallCount())
}

func TestSelection_Finalize(t *testing.T) {
	tests := []struct {
		name      string
		day       int
		from, to  int
		wantStart int
		wantEnd   int
	}{
		{"upward drag is ordered", 1, 14 * 60, 12 * 60, 12 * 60, 14 * 60},
		{"long drag kept", 2, 9 * 60, 11*60 + 30, 9 * 60, 11*60 + 30},
		{"bottom edge moves start back", 0, 23*60 + 50, 23*60 + 50, 23*60 + 30, 24 * 60},
		{"below the column clamps", 0, 30 * 60, 30 * 60, 23*60 + 30, 24 * 60},
		{"above the column clamps", 3, 0, 0, 60, 120},
		{"min duration kept", 4, 8 * 60, 8*60 + 30, 8 * 60, 8*60 + 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			drag(t, f.engine, tt.day, tt.from, tt.to)

			d, ok := f.engine.Draft()
			require.True(t, ok)
			day := grid.AddDays(monday, tt.day)
			assert.Equal(t, grid.At(day, tt.wantStart), d.Start)
			assert.Equal(t, grid.At(day, tt.wantEnd), d.End)
			assert.GreaterOrEqual(t, model.SpanMinutes(d.Start, d.End), 30)
		})
	}
}

func TestPointerDown_InvalidDay(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.PointerDown(7, y(600)), ErrInvalidDay)
	assert.ErrorIs(t, f.engine.PointerDownHandle("x", -1, EdgeEnd), ErrInvalidDay)
}

func TestResize_ClampsToMinDuration(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	e := f.engine

	require.NoError(t, e.PointerDownHandle("e1", 0, EdgeEnd))
	assert.Equal(t, ModeResizing, e.Mode())
	e.PointerMove(y(9*60 + 10))

	got, ok := reconcile.Find(e.Events(), "e1")
	require.True(t, ok)
	assert.True(t, got.Pending)
	assert.Equal(t, grid.At(monday, 9*60), got.Start)
	assert.Equal(t, grid.At(monday, 9*60+30), got.End)

	require.NoError(t, e.PointerUp(context.Background()))
	call, ok := f.store.LastCall()
	require.True(t, ok)
	assert.Equal(t, "update", call.Op)
	assert.Equal(t, grid.At(monday, 9*60+30), call.Input.End)

	got, _ = reconcile.Find(e.Events(), "e1")
	assert.False(t, got.Pending)
	assert.Equal(t, 30, got.Minutes())
	assert.Equal(t, ModeIdle, e.Mode())
}

func TestResize_StartEdge(t *testing.T) {
	tests := []struct {
		name      string
		pointer   int
		wantStart int
	}{
		{"stops short of end", 9*60 + 50, 9*60 + 30},
		{"moves earlier", 7*60 + 20, 7*60 + 15},
		{"clamps at window top", -100, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, event("e1", 9*60, 60))
			require.NoError(t, f.engine.PointerDownHandle("e1", 0, EdgeStart))
			f.engine.PointerMove(y(tt.pointer))

			got, _ := reconcile.Find(f.engine.Events(), "e1")
			assert.Equal(t, grid.At(monday, tt.wantStart), got.Start)
			assert.Equal(t, grid.At(monday, 10*60), got.End, "untouched edge moved")
		})
	}
}

func TestResize_EndClampsAtMidnight(t *testing.T) {
	f := newFixture(t, event("late", 22*60, 60))
	require.NoError(t, f.engine.PointerDownHandle("late", 0, EdgeEnd))
	f.engine.PointerMove(y(26 * 60))

	got, _ := reconcile.Find(f.engine.Events(), "late")
	assert.Equal(t, grid.At(monday, 24*60), got.End)

	// Dragging the start of a block ending at midnight still works.
	require.NoError(t, f.engine.PointerUp(context.Background()))
	require.NoError(t, f.engine.PointerDownHandle("late", 0, EdgeStart))
	f.engine.PointerMove(y(23*60 + 50))
	got, _ = reconcile.Find(f.engine.Events(), "late")
	assert.Equal(t, grid.At(monday, 23*60+30), got.Start)
}

func TestResize_UntouchedWhenNothingMoves(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	require.NoError(t, f.engine.PointerDownHandle("e1", 0, EdgeEnd))
	f.engine.PointerMove(y(10 * 60))
	require.NoError(t, f.engine.PointerUp(context.Background()))
	assert.Zero(t, f.store.CallCount())
}

func TestResize_FailureKeepsLocalChange(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	f.store.UpdateErr = errors.New("boom")

	require.NoError(t, f.engine.PointerDownHandle("e1", 0, EdgeEnd))
	f.engine.PointerMove(y(11 * 60))
	err := f.engine.PointerUp(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, f.notifier.Count())
	got, _ := reconcile.Find(f.engine.Events(), "e1")
	assert.True(t, got.Pending)
	assert.Equal(t, grid.At(monday, 11*60), got.End)
}

func TestResize_UnknownEvent(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.PointerDownHandle("nope", 0, EdgeEnd), ErrNotFound)
}

func TestVirtualOccurrencesAreInert(t *testing.T) {
	f := newFixture(t)
	habit := model.VirtualOccurrence{HabitInstance: model.HabitInstance{
		ID:    "habit-run-2025-03-03",
		Start: grid.At(monday, 7*60),
		End:   grid.At(monday, 7*60+30),
	}}

	require.NoError(t, f.engine.PointerDownOccurrence(habit, 0, EdgeEnd))
	assert.Equal(t, ModeIdle, f.engine.Mode())

	opened, err := f.engine.OpenOccurrence(habit, Point{})
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, ModeIdle, f.engine.Mode())

	assert.ErrorIs(t, f.engine.OpenEvent(habit.ID, Point{}), ErrReadOnly)
}

func TestOpenOccurrence_Persisted(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	list := f.engine.Render().Occurrences
	require.Len(t, list, 1)

	opened, err := f.engine.OpenOccurrence(list[0], Point{X: 5, Y: 5})
	require.NoError(t, err)
	assert.True(t, opened)
	d, _ := f.engine.Draft()
	assert.Equal(t, "e1", d.ID)
	assert.Equal(t, Point{X: 5, Y: 5}, d.Anchor)
}

func TestSave_OverloadDeclinedThenConfirmed(t *testing.T) {
	f := newFixture(t, event("e1", 8*60, 240), event("e2", 13*60, 180))
	e := f.engine
	drag(t, e, 0, 16*60, 17*60+30)
	require.NoError(t, e.SetTitle("Reading"))

	preview, err := e.PreviewSave()
	require.NoError(t, err)
	assert.True(t, preview.NeedsConfirmation)
	assert.Equal(t, 510, preview.Total())

	var seen budget.Decision
	outcome, err := e.Save(context.Background(), ConfirmFunc(func(_ context.Context, d budget.Decision) bool {
		seen = d
		return false
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, outcome)
	assert.Equal(t, 420, seen.Baseline)
	assert.Equal(t, 90, seen.Proposed)
	assert.Zero(t, f.store.CallCount())
	assert.Equal(t, ModeEditing, e.Mode())
	assert.Len(t, e.Events(), 2)

	outcome, err = e.Save(context.Background(), AlwaysConfirm)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
	assert.Equal(t, 1, f.store.CallCount())
	assert.Equal(t, ModeIdle, e.Mode())

	events := e.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "Reading", events[2].Title)
	assert.False(t, events[2].Pending)
	assert.Equal(t, 510, e.Render().Ledger.Total("2025-03-03"))
}

func TestSave_NilConfirmerDeclinesOverload(t *testing.T) {
	f := newFixture(t, event("e1", 8*60, 470))
	drag(t, f.engine, 0, 20*60, 21*60)
	outcome, err := f.engine.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, outcome)
}

func TestSave_EditDoesNotCountItself(t *testing.T) {
	f := newFixture(t, event("big", 8*60, 480))
	require.NoError(t, f.engine.OpenEvent("big", Point{}))
	require.NoError(t, f.engine.SetTitle("Renamed"))

	outcome, err := f.engine.Save(context.Background(), ConfirmFunc(func(context.Context, budget.Decision) bool {
		t.Fatal("confirmation not expected")
		return false
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)

	call, _ := f.store.LastCall()
	assert.Equal(t, "update", call.Op)
	assert.Equal(t, "big", call.ID)
	assert.Equal(t, "Renamed", call.Input.Title)
}

func TestSave_Validation(t *testing.T) {
	f := newFixture(t)
	drag(t, f.engine, 0, 9*60, 10*60)
	require.NoError(t, f.engine.SetEndTime("08:00"))

	outcome, err := f.engine.Save(context.Background(), AlwaysConfirm)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Zero(t, f.store.CallCount())
	assert.Equal(t, 1, f.notifier.Count())
	assert.Equal(t, ModeEditing, f.engine.Mode())

	_, err = f.engine.PreviewSave()
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestSave_EmptyTitleBecomesUntitled(t *testing.T) {
	f := newFixture(t)
	drag(t, f.engine, 0, 9*60, 10*60)
	require.NoError(t, f.engine.SetTitle("   "))

	_, err := f.engine.Save(context.Background(), AlwaysConfirm)
	require.NoError(t, err)
	call, _ := f.store.LastCall()
	assert.Equal(t, "Untitled block", call.Input.Title)
	assert.Equal(t, model.KindManual, call.Input.Kind)
	require.NotNil(t, call.Input.Color)
}

func TestSave_FailureKeepsEditorOpen(t *testing.T) {
	f := newFixture(t)
	f.store.CreateErr = errors.New("offline")
	drag(t, f.engine, 0, 9*60, 10*60)

	_, err := f.engine.Save(context.Background(), AlwaysConfirm)
	require.Error(t, err)
	assert.Equal(t, 1, f.notifier.Count())
	assert.Equal(t, ModeEditing, f.engine.Mode())
	assert.Empty(t, f.engine.Events())
}

func TestSave_Timeout(t *testing.T) {
	store := testutil.NewMockPersistence()
	store.Block = make(chan struct{})
	cfg := DefaultSettings()
	cfg.Timeout = 20 * time.Millisecond
	e := New(cfg, Deps{Store: store, Layout: testutil.MockLayout{Height: 1380}, Now: func() time.Time { return now }})
	drag(t, e, 0, 9*60, 10*60)

	_, err := e.Save(context.Background(), AlwaysConfirm)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ModeEditing, e.Mode())
}

func TestSave_BusyWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.store.Block = make(chan struct{})
	drag(t, f.engine, 0, 9*60, 10*60)

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := f.engine.Save(context.Background(), AlwaysConfirm)
		done <- outcome
	}()
	require.Eventually(t, func() bool { return f.engine.Mode() == ModeSaving }, time.Second, time.Millisecond)

	_, err := f.engine.Save(context.Background(), AlwaysConfirm)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.engine.Delete(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, f.engine.SetTitle("x"), ErrBusy)
	f.engine.Cancel()

	close(f.store.Block)
	assert.Equal(t, OutcomeSaved, <-done)
	assert.Len(t, f.engine.Events(), 1)
}

func TestSave_PointerBusyWhileInFlight(t *testing.T) {
	f := newFixture(t, event("a", 14*60, 60))
	f.store.Block = make(chan struct{})
	drag(t, f.engine, 0, 9*60, 10*60)

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := f.engine.Save(context.Background(), AlwaysConfirm)
		done <- outcome
	}()
	require.Eventually(t, func() bool { return f.engine.Mode() == ModeSaving }, time.Second, time.Millisecond)

	assert.ErrorIs(t, f.engine.PointerDown(1, y(14*60)), ErrBusy)
	assert.ErrorIs(t, f.engine.PointerDownHandle("a", 0, EdgeEnd), ErrBusy)
	_, ok := f.engine.Selection()
	assert.False(t, ok)
	_, ok = f.engine.Resizing()
	assert.False(t, ok)

	close(f.store.Block)
	assert.Equal(t, OutcomeSaved, <-done)
	assert.Equal(t, ModeIdle, f.engine.Mode())
}

func TestSave_KeepsDraftOpenedDuringSave(t *testing.T) {
	f := newFixture(t, event("a", 14*60, 60))
	f.store.Block = make(chan struct{})
	drag(t, f.engine, 0, 9*60, 10*60)

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := f.engine.Save(context.Background(), AlwaysConfirm)
		done <- outcome
	}()
	require.Eventually(t, func() bool { return f.engine.Mode() == ModeSaving }, time.Second, time.Millisecond)

	// Opening another block swaps the draft while the first save is held.
	f.engine.mu.Lock()
	f.engine.draft = &Draft{ID: "a", Title: "a", Start: grid.At(monday, 14*60), End: grid.At(monday, 15*60)}
	f.engine.mu.Unlock()

	close(f.store.Block)
	assert.Equal(t, OutcomeSaved, <-done)
	d, ok := f.engine.Draft()
	require.True(t, ok, "draft opened during the save must survive it")
	assert.Equal(t, "a", d.ID)
}

func TestDraftEditing(t *testing.T) {
	f := newFixture(t)
	e := f.engine

	assert.ErrorIs(t, e.SetTitle("x"), ErrNoEditor)
	_, err := e.Save(context.Background(), AlwaysConfirm)
	assert.ErrorIs(t, err, ErrNoEditor)

	drag(t, e, 2, 9*60, 10*60)
	wednesday := grid.AddDays(monday, 2)

	require.NoError(t, e.SetStartTime("13:15"))
	require.NoError(t, e.SetEndTime("24:00"))
	d, _ := e.Draft()
	assert.Equal(t, grid.At(wednesday, 13*60+15), d.Start)
	assert.Equal(t, grid.AddDays(wednesday, 1), d.End)

	assert.ErrorIs(t, e.SetStartTime("25:99"), ErrInvalidTime)
	assert.ErrorIs(t, e.SetEndTime("noon"), ErrInvalidTime)

	task := model.Task{ID: "t1", Title: "Linear algebra"}
	require.NoError(t, e.LinkTask(task))
	assert.ErrorIs(t, e.SetTitle("other"), ErrTitleLocked)
	d, _ = e.Draft()
	assert.Equal(t, "Linear algebra", d.Title)
	assert.True(t, d.Linked())

	require.NoError(t, e.UnlinkTask())
	require.NoError(t, e.SetTitle("other"))
	require.NoError(t, e.LinkTask(task))

	_, err = e.Save(context.Background(), AlwaysConfirm)
	require.NoError(t, err)
	call, _ := f.store.LastCall()
	require.NotNil(t, call.Input.TaskID)
	assert.Equal(t, "t1", *call.Input.TaskID)
	assert.Equal(t, "Linear algebra", call.Input.Title)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	drag(t, f.engine, 0, 9*60, 10*60)
	f.engine.Cancel()
	_, ok := f.engine.Draft()
	assert.False(t, ok)
	assert.Zero(t, f.store.CallCount())
}

func TestDelete(t *testing.T) {
	t.Run("unsaved draft closes", func(t *testing.T) {
		f := newFixture(t)
		drag(t, f.engine, 0, 9*60, 10*60)
		outcome, err := f.engine.Delete(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeClosed, outcome)
		assert.Zero(t, f.store.CallCount())
	})

	t.Run("persisted event removed", func(t *testing.T) {
		f := newFixture(t, event("e1", 9*60, 60), event("e2", 11*60, 60))
		require.NoError(t, f.engine.OpenEvent("e1", Point{}))
		outcome, err := f.engine.Delete(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeleted, outcome)
		require.Len(t, f.engine.Events(), 1)
		assert.Equal(t, "e2", f.engine.Events()[0].ID)
		assert.NotContains(t, f.store.Events, "e1")
	})

	t.Run("failure leaves state unchanged", func(t *testing.T) {
		f := newFixture(t, event("e1", 9*60, 60))
		f.store.DeleteErr = errors.New("denied")
		require.NoError(t, f.engine.OpenEvent("e1", Point{}))
		before := f.engine.Events()

		_, err := f.engine.Delete(context.Background())
		require.Error(t, err)
		assert.Equal(t, before, f.engine.Events())
		assert.Equal(t, ModeEditing, f.engine.Mode())
		assert.Equal(t, 1, f.notifier.Count())
	})
}

func TestApplyAndForget(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	pushed := event("e1", 9*60, 90)
	pushed.Title = "remote"
	f.engine.Apply([]model.Event{pushed, event("e3", 14*60, 30)})

	events := f.engine.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "remote", events[0].Title)

	f.engine.Forget("e3")
	assert.Len(t, f.engine.Events(), 1)
}

func TestWeekNavigationAndRender(t *testing.T) {
	f := newFixture(t, event("e1", 9*60, 60))
	e := f.engine
	e.SetTasks([]model.Task{{
		ID:    "run",
		Title: "Run",
		Recurrence: &model.Recurrence{
			Rule:            model.RepeatDaily,
			TimeOfDay:       7 * 60,
			DurationMinutes: 30,
		},
	}})

	view := e.Render()
	assert.Equal(t, monday, view.Days[0])
	assert.Len(t, view.Occurrences, 8)
	assert.Equal(t, 90, view.Ledger.Total("2025-03-03"))
	assert.Equal(t, 30, view.Ledger.Total("2025-03-09"))

	e.ShiftWeek(1)
	assert.Equal(t, grid.AddDays(monday, 7), e.WeekStart())
	view = e.Render()
	assert.Len(t, view.Occurrences, 7, "only habits next week")

	e.ShiftWeek(-2)
	assert.Equal(t, grid.AddDays(monday, -7), e.WeekDays()[0])

	e.Today()
	assert.Equal(t, monday, e.WeekStart())

	e.ShowWeek(time.Date(2025, 4, 17, 12, 0, 0, 0, time.Local))
	assert.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.Local), e.WeekStart())
}
