// Package undo keeps the bounded undo and redo stacks of document changes.
package undo

import "mpproj/internal/domain"

// DefaultDepth is the number of undo entries kept before the oldest drops.
const DefaultDepth = 50

// Log is not safe for concurrent use; the engine serialises access.
type Log struct {
	// Depth caps the undo stack. Zero means DefaultDepth.
	Depth int
	// Strict rejects changes whose target no longer matches with ErrStale.
	Strict bool

	undo []Change
	redo []Change
}

func NewLog(depth int, strict bool) *Log {
	return &Log{Depth: depth, Strict: strict}
}

func (l *Log) depth() int {
	if l.Depth <= 0 {
		return DefaultDepth
	}
	return l.Depth
}

// Push records c as the newest undo entry and drops all redo entries.
func (l *Log) Push(c Change) {
	l.undo = append(l.undo, c)
	if over := len(l.undo) - l.depth(); over > 0 {
		l.undo = append([]Change{}, l.undo[over:]...)
	}
	l.redo = nil
}

// Undo reverts the newest entry against p. A nil Change means the stack was
// empty. On error p is returned as given and both stacks are unchanged.
func (l *Log) Undo(p domain.Project) (domain.Project, Change, error) {
	if len(l.undo) == 0 {
		return p, nil, nil
	}
	c := l.undo[len(l.undo)-1]
	out, err := c.revert(p.Clone(), l.Strict)
	if err != nil {
		return p, c, err
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, c)
	return out.Clone(), c, nil
}

// Redo reapplies the newest redo entry against p, mirroring Undo.
func (l *Log) Redo(p domain.Project) (domain.Project, Change, error) {
	if len(l.redo) == 0 {
		return p, nil, nil
	}
	c := l.redo[len(l.redo)-1]
	out, err := c.replay(p.Clone(), l.Strict)
	if err != nil {
		return p, c, err
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, c)
	return out.Clone(), c, nil
}

// Mark holds copies of both stacks taken by Checkpoint.
type Mark struct {
	undo []Change
	redo []Change
}

// Checkpoint copies both stacks so a failed write can put them back.
func (l *Log) Checkpoint() Mark {
	return Mark{undo: append([]Change(nil), l.undo...), redo: append([]Change(nil), l.redo...)}
}

// Rollback restores the stacks saved by Checkpoint.
func (l *Log) Rollback(m Mark) {
	l.undo = append([]Change(nil), m.undo...)
	l.redo = append([]Change(nil), m.redo...)
}

func (l *Log) Clear() {
	l.undo = nil
	l.redo = nil
}

func (l *Log) Len() int      { return len(l.undo) }
func (l *Log) RedoLen() int  { return len(l.redo) }
func (l *Log) CanUndo() bool { return len(l.undo) > 0 }
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }

// Undoable returns the undo stack oldest first.
func (l *Log) Undoable() []Change { return append([]Change{}, l.undo...) }

// Redoable returns the redo stack oldest first.
func (l *Log) Redoable() []Change { return append([]Change{}, l.redo...) }
