package model

import (
	"strings"
	"time"
)

// EventKind tells manually drawn blocks apart from auto-planned study blocks.
type EventKind string

const (
	KindManual   EventKind = "manual"
	KindAutoPlan EventKind = "auto_plan"
)

// Event is a persisted time block. The persistence service owns it; the
// engine only holds a cached copy. Duration is implied by Start/End.
type Event struct {
	ID     string    `json:"id" yaml:"id"`
	Title  string    `json:"title" yaml:"title"`
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
	Color  string    `json:"color" yaml:"color"`
	TaskID string    `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	Kind   EventKind `json:"kind" yaml:"kind"`
}

// Minutes returns the event length in whole minutes.
func (e Event) Minutes() int {
	return SpanMinutes(e.Start, e.End)
}

// LinkedManual reports whether e is a hand-drawn block linked to a task.
// A task has at most one of these; a newer one replaces the rest.
func (e Event) LinkedManual() bool {
	return e.TaskID != "" && e.Kind == KindManual
}

// EventInput is the request body for create/update calls.
type EventInput struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	TaskID *string   `json:"taskId"`
	Color  *string   `json:"color"`
	Kind   EventKind `json:"kind,omitempty"`
}

// InputFromEvent builds the update payload matching e.
func InputFromEvent(e Event) EventInput {
	in := EventInput{
		Title: e.Title,
		Start: e.Start,
		End:   e.End,
		Kind:  e.Kind,
	}
	if e.TaskID != "" {
		id := e.TaskID
		in.TaskID = &id
	}
	if e.Color != "" {
		c := e.Color
		in.Color = &c
	}
	return in
}

// Task is an entry from the task source. Only tasks with a Recurrence
// take part in habit expansion.
type Task struct {
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title" yaml:"title"`
	Category   string      `json:"category,omitempty" yaml:"category,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
}

// HabitInstance is a virtual, read-only occurrence of a recurring task.
// It is regenerated on every render and never sent to the persistence service.
type HabitInstance struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Color           string    `json:"color"`
	DayKey          string    `json:"day_key"`
	DurationMinutes int       `json:"duration_minutes"`
}

// SpanMinutes returns the rounded number of minutes between start and end,
// never negative.
func SpanMinutes(start, end time.Time) int {
	d := end.Sub(start).Round(time.Minute)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

const DefaultEventColor = "#8b5cf6"

var categoryColors = map[string]string{
	"assignment": "#60a5fa",
	"exam":       "#f87171",
	"project":    "#a78bfa",
	"habit":      "#4ade80",
	"other":      "#9ca3af",
}

// CategoryColor maps a task category onto its display colour.
func CategoryColor(category string) string {
	if c, ok := categoryColors[strings.ToLower(strings.TrimSpace(category))]; ok {
		return c
	}
	return DefaultEventColor
}

// BlockPalette is cycled through for new manual blocks.
var BlockPalette = []string{"#9b7bff", "#f472b6", "#22d3ee", "#34d399", "#facc15"}

// PaletteColor picks the palette entry for the n-th block.
func PaletteColor(n int) string {
	if n < 0 {
		n = -n
	}
	return BlockPalette[n%len(BlockPalette)]
}
