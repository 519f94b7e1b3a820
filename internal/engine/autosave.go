package engine

import (
	"context"
	"fmt"
	"time"

	"mpproj/internal/archive"
)

// DefaultAutosaveInterval is used when neither the caller nor the config
// names one.
const DefaultAutosaveInterval = 10 * time.Minute

// Autosave snapshots the active project when autosave is active and there
// are unsaved changes. Lifecycle and history are not touched. It reports
// whether a snapshot was written.
func (e *Engine) Autosave(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.AutosaveDue() {
		return false, nil
	}
	p, err := e.active()
	if err != nil {
		return false, nil
	}
	entry, err := e.snaps.Save(ctx, archive.New(p, e.now(), e.platform))
	if err != nil {
		return false, fmt.Errorf("autosave: %w", err)
	}
	e.Log.Debug().Str("project_id", p.ID).Str("snapshot", entry.Name).Msg("autosaved")
	e.record(ctx, "project.autosave", p.ID, "snapshot", entry.Name, nil)
	return true, nil
}

// RunAutosave calls Autosave every interval until ctx is done. Failures are
// logged and the loop keeps going. interval <= 0 uses the configured one.
func (e *Engine) RunAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = e.autosave
	}
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.Log.Info().Dur("interval", interval).Msg("autosave running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Autosave(ctx); err != nil {
				e.Log.Warn().Err(err).Msg("autosave failed")
			}
		}
	}
}
