package model

import "time"

// Occurrence is one block on the grid: either a persisted event or a virtual
// habit occurrence. The interface is sealed; only the two variants below
// implement it.
type Occurrence interface {
	Key() string
	Bounds() (start, end time.Time)
	Label() string
	Hue() string
	ReadOnly() bool
	occurrence()
}

// PersistedEvent wraps an Event held by the engine. Pending marks a local
// optimistic change the server has not confirmed yet.
type PersistedEvent struct {
	Event
	Pending bool `json:"pending,omitempty"`
}

func (p PersistedEvent) Key() string                    { return p.ID }
func (p PersistedEvent) Bounds() (time.Time, time.Time) { return p.Start, p.End }
func (p PersistedEvent) Label() string                  { return p.Title }
func (p PersistedEvent) Hue() string                    { return p.Color }
func (PersistedEvent) ReadOnly() bool                   { return false }
func (PersistedEvent) occurrence()                      {}

// VirtualOccurrence is a projected habit instance.
type VirtualOccurrence struct {
	HabitInstance
}

func (v VirtualOccurrence) Key() string                    { return v.ID }
func (v VirtualOccurrence) Bounds() (time.Time, time.Time) { return v.Start, v.End }
func (v VirtualOccurrence) Label() string                  { return v.Title }
func (v VirtualOccurrence) Hue() string                    { return v.Color }
func (VirtualOccurrence) ReadOnly() bool                   { return true }
func (VirtualOccurrence) occurrence()                      {}

var (
	_ Occurrence = PersistedEvent{}
	_ Occurrence = VirtualOccurrence{}
)
