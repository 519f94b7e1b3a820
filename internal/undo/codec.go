package undo

import (
	"encoding/json"
	"fmt"
	"strings"

	"mpproj/internal/domain"
)

// wireChange is the persisted form of a Change.
type wireChange struct {
	Type     string            `json:"type"`
	TargetID string            `json:"targetId"`
	Index    *int              `json:"index,omitempty"`
	Before   json.RawMessage   `json:"beforeState,omitempty"`
	After    json.RawMessage   `json:"afterState,omitempty"`
	Changes  []json.RawMessage `json:"changes,omitempty"`
}

type decoder func(op Op, w wireChange) (Change, error)

var registry = map[string]decoder{
	taskKind.name:      func(op Op, w wireChange) (Change, error) { return decodeEntity(&taskKind, op, w) },
	resourceKind.name:  func(op Op, w wireChange) (Change, error) { return decodeEntity(&resourceKind, op, w) },
	milestoneKind.name: func(op Op, w wireChange) (Change, error) { return decodeEntity(&milestoneKind, op, w) },
	teamKind.name:      func(op Op, w wireChange) (Change, error) { return decodeEntity(&teamKind, op, w) },
	costKind.name:      func(op Op, w wireChange) (Change, error) { return decodeEntity(&costKind, op, w) },
	riskKind.name:      func(op Op, w wireChange) (Change, error) { return decodeEntity(&riskKind, op, w) },
}

// MarshalChange encodes c as {type, targetId, beforeState, afterState}.
func MarshalChange(c Change) ([]byte, error) {
	w, err := toWire(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalChange decodes a change produced by MarshalChange.
func UnmarshalChange(data []byte) (Change, error) {
	var w wireChange
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return fromWire(w)
}

func toWire(c Change) (wireChange, error) {
	w := wireChange{Type: c.Type(), TargetID: c.TargetID()}
	switch v := c.(type) {
	case *budgetChange:
		var err error
		if w.Before, err = json.Marshal(v.before); err != nil {
			return w, err
		}
		if w.After, err = json.Marshal(v.after); err != nil {
			return w, err
		}
	case *batchChange:
		for _, inner := range v.changes {
			raw, err := MarshalChange(inner)
			if err != nil {
				return w, err
			}
			w.Changes = append(w.Changes, raw)
		}
	case interface{ wire() (wireChange, error) }:
		return v.wire()
	default:
		return w, fmt.Errorf("unsupported change %T", c)
	}
	return w, nil
}

func (c *entityChange[T]) wire() (wireChange, error) {
	w := wireChange{Type: c.Type(), TargetID: c.target}
	if c.op == OpDelete {
		idx := c.index
		w.Index = &idx
	}
	var err error
	if c.before != nil {
		if w.Before, err = json.Marshal(c.before); err != nil {
			return w, err
		}
	}
	if c.after != nil {
		if w.After, err = json.Marshal(c.after); err != nil {
			return w, err
		}
	}
	return w, nil
}

func fromWire(w wireChange) (Change, error) {
	switch w.Type {
	case "batch":
		b := &batchChange{target: w.TargetID}
		for _, raw := range w.Changes {
			inner, err := UnmarshalChange(raw)
			if err != nil {
				return nil, err
			}
			b.changes = append(b.changes, inner)
		}
		return b, nil
	case "update-budget":
		c := &budgetChange{}
		if err := json.Unmarshal(w.Before, &c.before); err != nil {
			return nil, fmt.Errorf("decode budget before: %w", err)
		}
		if err := json.Unmarshal(w.After, &c.after); err != nil {
			return nil, fmt.Errorf("decode budget after: %w", err)
		}
		return c, nil
	}
	opName, kindName, ok := strings.Cut(w.Type, "-")
	if !ok {
		return nil, fmt.Errorf("unknown change type %q", w.Type)
	}
	op := Op(opName)
	if op != OpAdd && op != OpUpdate && op != OpDelete {
		return nil, fmt.Errorf("unknown change op %q", opName)
	}
	dec, ok := registry[kindName]
	if !ok {
		return nil, fmt.Errorf("unknown change kind %q", kindName)
	}
	return dec(op, w)
}

func decodeEntity[T domain.Entity](k *kind[T], op Op, w wireChange) (Change, error) {
	c := &entityChange[T]{op: op, kind: k, target: w.TargetID, index: -1}
	if w.Index != nil {
		c.index = *w.Index
	}
	var err error
	if c.before, err = decodeState[T](w.Before); err != nil {
		return nil, fmt.Errorf("%s before: %w", w.Type, err)
	}
	if c.after, err = decodeState[T](w.After); err != nil {
		return nil, fmt.Errorf("%s after: %w", w.Type, err)
	}
	switch {
	case op == OpAdd && c.after == nil,
		op == OpUpdate && (c.before == nil || c.after == nil),
		op == OpDelete && c.before == nil:
		return nil, fmt.Errorf("%s %s: missing state", w.Type, w.TargetID)
	}
	return c, nil
}

func decodeState[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

type wireLog struct {
	Undo []json.RawMessage `json:"undo"`
	Redo []json.RawMessage `json:"redo"`
}

// MarshalJSON encodes both stacks oldest first.
func (l *Log) MarshalJSON() ([]byte, error) {
	var w wireLog
	for _, c := range l.undo {
		raw, err := MarshalChange(c)
		if err != nil {
			return nil, err
		}
		w.Undo = append(w.Undo, raw)
	}
	for _, c := range l.redo {
		raw, err := MarshalChange(c)
		if err != nil {
			return nil, err
		}
		w.Redo = append(w.Redo, raw)
	}
	return json.Marshal(w)
}

// UnmarshalJSON restores both stacks. Depth and Strict are left as set.
func (l *Log) UnmarshalJSON(data []byte) error {
	var w wireLog
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	undo := make([]Change, 0, len(w.Undo))
	for _, raw := range w.Undo {
		c, err := UnmarshalChange(raw)
		if err != nil {
			return err
		}
		undo = append(undo, c)
	}
	redo := make([]Change, 0, len(w.Redo))
	for _, raw := range w.Redo {
		c, err := UnmarshalChange(raw)
		if err != nil {
			return err
		}
		redo = append(redo, c)
	}
	if over := len(undo) - l.depth(); over > 0 {
		undo = undo[over:]
	}
	l.undo, l.redo = undo, redo
	return nil
}
