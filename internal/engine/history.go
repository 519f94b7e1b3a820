package engine

import (
	"context"
	"errors"
	"fmt"

	"mpproj/internal/domain"
	"mpproj/internal/events"
	"mpproj/internal/undo"
)

// Undo reverts the newest recorded change of the active project. It returns
// a nil change when there is nothing to undo or no project is active.
func (e *Engine) Undo(ctx context.Context) (undo.Change, error) {
	return e.step(ctx, "undo", e.history.Undo)
}

// Redo replays the newest undone change.
func (e *Engine) Redo(ctx context.Context) (undo.Change, error) {
	return e.step(ctx, "redo", e.history.Redo)
}

func (e *Engine) step(ctx context.Context, op string, apply func(p domain.Project) (domain.Project, undo.Change, error)) (undo.Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if errors.Is(err, ErrNoActiveProject) {
		return nil, nil
	}
	cp := e.checkpoint()
	out, change, err := apply(p)
	if err != nil {
		e.Log.Warn().Err(err).Str("op", op).Msg("history step rejected")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if change == nil {
		return nil, nil
	}
	if _, err := e.commit(ctx, cp, out); err != nil {
		return change, err
	}
	e.Log.Debug().Str("op", op).Str("type", change.Type()).Str("target_id", change.TargetID()).Msg("history")
	e.record(ctx, "history."+op, out.ID, "change", change.TargetID(), events.EventPayload{"type": change.Type()})
	return change, nil
}
