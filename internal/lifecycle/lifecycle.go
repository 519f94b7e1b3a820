// Package lifecycle holds the document lifecycle reducer. Transition is total:
// unknown actions return the state unchanged.
package lifecycle

import (
	"fmt"
	"time"
)

type DocState string

const (
	Uninitialized DocState = "UNINITIALIZED"
	Untitled      DocState = "UNTITLED"
	Editing       DocState = "EDITING"
	Dirty         DocState = "DIRTY"
	Saved         DocState = "SAVED"
	Closing       DocState = "CLOSING"
)

type Action string

const (
	Initialize      Action = "initialize"
	Edit            Action = "edit"
	Save            Action = "save"
	SaveAs          Action = "saveAs"
	Close           Action = "close"
	Discard         Action = "discard"
	RestoreSnapshot Action = "restoreSnapshot"
)

type Autosave string

const (
	AutosaveActive   Autosave = "active"
	AutosaveInactive Autosave = "inactive"
)

type Origin string

const (
	OriginNone     Origin = ""
	OriginManual   Origin = "manual"
	OriginRecovery Origin = "recovery"
	OriginTemplate Origin = "template"
)

type State struct {
	CurrentState      DocState `json:"currentState" enum:"UNINITIALIZED,UNTITLED,EDITING,DIRTY,SAVED,CLOSING"`
	HasUnsavedChanges bool     `json:"hasUnsavedChanges"`
	IsUntitled        bool     `json:"isUntitled"`
	LastModified      string   `json:"lastModified,omitempty" format:"date-time"`
	AutosaveTimer     Autosave `json:"autosaveTimer" enum:"active,inactive"`
	OpenedFrom        Origin   `json:"openedFrom,omitempty"`
}

// Initial is the state a store starts in before any document is touched.
func Initial() State {
	return State{
		CurrentState:  Saved,
		AutosaveTimer: AutosaveActive,
	}
}

func States() []DocState {
	return []DocState{Uninitialized, Untitled, Editing, Dirty, Saved, Closing}
}

func Actions() []Action {
	return []Action{Initialize, Edit, Save, SaveAs, Close, Discard, RestoreSnapshot}
}

// ParseAction maps a wire name onto an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown lifecycle action %q", s)
}

// Transition applies action to s. now stamps LastModified for actions that
// touch the document.
func Transition(s State, action Action, now time.Time) State {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	switch action {
	case Initialize:
		s.CurrentState = Untitled
		s.HasUnsavedChanges = true
		s.IsUntitled = true
		s.OpenedFrom = OriginManual
		s.LastModified = stamp
	case Edit:
		s.CurrentState = Dirty
		s.HasUnsavedChanges = true
		s.LastModified = stamp
	case Save, SaveAs:
		s.CurrentState = Saved
		s.HasUnsavedChanges = false
		s.IsUntitled = false
		s.LastModified = stamp
	case Close:
		s.CurrentState = Closing
	case Discard:
		if s.IsUntitled {
			s.CurrentState = Untitled
		} else {
			s.CurrentState = Uninitialized
		}
		s.HasUnsavedChanges = false
	case RestoreSnapshot:
		s.CurrentState = Editing
		s.HasUnsavedChanges = true
		s.IsUntitled = false
		s.OpenedFrom = OriginRecovery
		s.LastModified = stamp
	}
	return s
}

// WithAutosave flips the autosave flag; no action touches it.
func (s State) WithAutosave(active bool) State {
	if active {
		s.AutosaveTimer = AutosaveActive
	} else {
		s.AutosaveTimer = AutosaveInactive
	}
	return s
}

// SaveRequired reports whether the document has edits not yet saved.
func (s State) SaveRequired() bool {
	return s.HasUnsavedChanges
}

// AutosaveDue reports whether an autosave tick should snapshot.
func (s State) AutosaveDue() bool {
	return s.AutosaveTimer == AutosaveActive && s.HasUnsavedChanges
}
