package tui

import (
	"blockplan/internal/editor"
	"blockplan/internal/model"
)

// Msg is the sealed interface for TUI messages.
type Msg interface {
	sealed()
}

// MsgLoaded carries a fresh listing for the visible week.
type MsgLoaded struct {
	Events []model.Event
	Tasks  []model.Task
	Err    error
}

func (MsgLoaded) sealed() {}

// MsgSaved is sent when a save finished.
type MsgSaved struct {
	Outcome editor.Outcome
	Err     error
}

func (MsgSaved) sealed() {}

// MsgDeleted is sent when a delete finished.
type MsgDeleted struct {
	Outcome editor.Outcome
	Err     error
}

func (MsgDeleted) sealed() {}

// MsgResized is sent when a resize was persisted (or failed to be).
type MsgResized struct {
	Err error
}

func (MsgResized) sealed() {}
