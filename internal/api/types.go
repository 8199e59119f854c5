// Package api holds the JSON shapes exchanged between the blockplan server
// and its clients.
package api

import (
	"time"

	"blockplan/internal/grid"
	"blockplan/internal/model"
)

type EventsResponse struct {
	Events []model.Event `json:"events"`
}

type EventResponse struct {
	Event model.Event `json:"event"`
}

type DeletedResponse struct {
	DeletedEventID string `json:"deleted_event_id"`
}

type TasksResponse struct {
	Tasks []model.Task `json:"tasks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Occurrence is a JSON view of a rendered block, persisted or virtual.
type Occurrence struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Color    string    `json:"color"`
	ReadOnly bool      `json:"read_only"`
	DayKey   string    `json:"day_key"`
	Minutes  int       `json:"minutes"`
}

// WeekResponse is the render model of one week.
type WeekResponse struct {
	Start          time.Time      `json:"start"`
	Days           []string       `json:"days"`
	Occurrences    []Occurrence   `json:"occurrences"`
	Totals         map[string]int `json:"totals"`
	Overloaded     []string       `json:"overloaded"`
	Threshold      int            `json:"threshold"`
	TruncatedTasks []string       `json:"truncated_tasks,omitempty"`
	WeekStart      string         `json:"week_start"`
}

// FromOccurrence converts a rendered occurrence.
func FromOccurrence(occ model.Occurrence) Occurrence {
	start, end := occ.Bounds()
	return Occurrence{
		Key:      occ.Key(),
		Title:    occ.Label(),
		Start:    start,
		End:      end,
		Color:    occ.Hue(),
		ReadOnly: occ.ReadOnly(),
		DayKey:   grid.DayKey(start),
		Minutes:  model.SpanMinutes(start, end),
	}
}
