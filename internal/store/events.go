// Package store is the server-side persistence: a JSON file of events and a
// YAML file of tasks.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blockplan/internal/fsutil"
	appLog "blockplan/internal/log"
	"blockplan/internal/model"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidRange = errors.New("end must be after start")
)

const untitled = "Untitled block"

type eventFile struct {
	Events []model.Event `json:"events"`
}

// EventStore keeps events in memory and rewrites the backing file on every
// change.
type EventStore struct {
	mu     sync.RWMutex
	path   string
	events map[string]model.Event
	newID  func() string
}

// OpenEvents loads the store at path. A missing file is an empty store; it is
// created on the first write.
func OpenEvents(path string) (*EventStore, error) {
	s := &EventStore{
		path:   path,
		events: make(map[string]model.Event),
		newID:  uuid.NewString,
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	var f eventFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse event store %s: %w", path, err)
	}
	for _, ev := range f.Events {
		s.events[ev.ID] = ev
	}
	appLog.Info("event store loaded", "path", path, "events", len(s.events))
	return s, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory(events ...model.Event) *EventStore {
	s, _ := OpenEvents("")
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

// List returns the events starting in [start, end), sorted by start. A zero
// bound is open.
func (s *EventStore) List(_ context.Context, start, end time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		if !start.IsZero() && ev.Start.Before(start) {
			continue
		}
		if !end.IsZero() && !ev.Start.Before(end) {
			continue
		}
		out = append(out, ev)
	}
	sortEvents(out)
	return out, nil
}

// Get returns one event.
func (s *EventStore) Get(_ context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ev, nil
}

// CreateEvent stores a new event under a fresh id. A manual event linked to a
// task replaces any other manual event for that task.
func (s *EventStore) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	ev, err := build(in, model.Event{})
	if err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.newID()
	if err := s.commit(func() { s.put(ev) }); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// UpdateEvent replaces the fields of an existing event.
func (s *EventStore) UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ev, err := build(in, prev)
	if err != nil {
		return model.Event{}, err
	}
	ev.ID = id
	if err := s.commit(func() { s.put(ev) }); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// DeleteEvent removes an event.
func (s *EventStore) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.commit(func() { delete(s.events, id) })
}

// commit applies change and flushes. If the write fails the in-memory state
// is restored, so callers never see an event the file does not hold.
// Callers hold s.mu.
func (s *EventStore) commit(change func()) error {
	prev := maps.Clone(s.events)
	change()
	if err := s.flush(); err != nil {
		s.events = prev
		return err
	}
	return nil
}

// put stores ev, dropping other manual events linked to the same task.
// Callers hold s.mu.
func (s *EventStore) put(ev model.Event) {
	if ev.LinkedManual() {
		for id, other := range s.events {
			if id != ev.ID && other.TaskID == ev.TaskID && other.LinkedManual() {
				delete(s.events, id)
			}
		}
	}
	s.events[ev.ID] = ev
}

// flush rewrites the backing file. Callers hold s.mu.
func (s *EventStore) flush() error {
	if s.path == "" {
		return nil
	}
	list := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		list = append(list, ev)
	}
	sortEvents(list)
	data, err := json.MarshalIndent(eventFile{Events: list}, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write event store: %w", err)
	}
	return nil
}

// build applies an input onto prev. Absent optional fields keep prev's
// values, so a resize that only sends times does not drop the colour.
func build(in model.EventInput, prev model.Event) (model.Event, error) {
	if in.Start.IsZero() || in.End.IsZero() || !in.End.After(in.Start) {
		return model.Event{}, ErrInvalidRange
	}
	ev := prev
	ev.Title = strings.TrimSpace(in.Title)
	if ev.Title == "" {
		ev.Title = untitled
	}
	ev.Start = in.Start
	ev.End = in.End
	if in.TaskID != nil {
		ev.TaskID = *in.TaskID
	}
	if in.Color != nil && *in.Color != "" {
		ev.Color = *in.Color
	}
	if ev.Color == "" {
		ev.Color = model.DefaultEventColor
	}
	if in.Kind != "" {
		ev.Kind = in.Kind
	}
	if ev.Kind == "" {
		ev.Kind = model.KindManual
	}
	return ev, nil
}

func sortEvents(events []model.Event) {
	slices.SortFunc(events, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
