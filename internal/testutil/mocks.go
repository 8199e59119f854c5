// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blockplan/internal/model"
)

// MockClock is a fixed clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// Call records one persistence call.
type Call struct {
	Op    string
	ID    string
	Input model.EventInput
}

// MockPersistence is an in-memory event service. Set the *Err fields to make
// the matching call fail; Block, when non-nil, is received from before each
// call returns so tests can hold a call in flight.
type MockPersistence struct {
	mu sync.Mutex

	Events    map[string]model.Event
	Calls     []Call
	CreateErr error
	UpdateErr error
	DeleteErr error
	Block     chan struct{}
	NextIDN   int
}

// NewMockPersistence seeds the mock with events.
func NewMockPersistence(events ...model.Event) *MockPersistence {
	m := &MockPersistence{Events: make(map[string]model.Event), NextIDN: 1}
	for _, ev := range events {
		m.Events[ev.ID] = ev
	}
	return m
}

func (m *MockPersistence) wait(ctx context.Context) error {
	if m.Block == nil {
		return nil
	}
	select {
	case <-m.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockPersistence) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// CallCount returns the number of recorded calls.
func (m *MockPersistence) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call.
func (m *MockPersistence) LastCall() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Call{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}

// CreateEvent stores in under a new sequential id.
func (m *MockPersistence) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	m.record(Call{Op: "create", Input: in})
	if err := m.wait(ctx); err != nil {
		return model.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return model.Event{}, m.CreateErr
	}
	ev := fromInput(fmt.Sprintf("evt-%d", m.NextIDN), in)
	m.NextIDN++
	m.Events[ev.ID] = ev
	return ev, nil
}

// UpdateEvent replaces the event with id.
func (m *MockPersistence) UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error) {
	m.record(Call{Op: "update", ID: id, Input: in})
	if err := m.wait(ctx); err != nil {
		return model.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return model.Event{}, m.UpdateErr
	}
	if _, ok := m.Events[id]; !ok {
		return model.Event{}, fmt.Errorf("event %s not found", id)
	}
	ev := fromInput(id, in)
	m.Events[id] = ev
	return ev, nil
}

// DeleteEvent removes the event with id.
func (m *MockPersistence) DeleteEvent(ctx context.Context, id string) error {
	m.record(Call{Op: "delete", ID: id})
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Events, id)
	return nil
}

func fromInput(id string, in model.EventInput) model.Event {
	ev := model.Event{ID: id, Title: in.Title, Start: in.Start, End: in.End, Kind: in.Kind}
	if in.TaskID != nil {
		ev.TaskID = *in.TaskID
	}
	if in.Color != nil {
		ev.Color = *in.Color
	}
	return ev
}

// MockLayout gives every day column the same top and height.
type MockLayout struct {
	Top    float64
	Height float64
}

// Column implements editor.Layout.
func (m MockLayout) Column(dayIndex int) (float64, float64, bool) {
	if dayIndex < 0 || dayIndex > 6 {
		return 0, 0, false
	}
	return m.Top, m.Height, true
}

// Notice is one recorded notification.
type Notice struct {
	Msg string
	Err error
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu      sync.Mutex
	Notices []Notice
}

// Notify implements editor.Notifier.
func (m *MockNotifier) Notify(msg string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, Notice{Msg: msg, Err: err})
}

// Count returns the number of notifications.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notices)
}
