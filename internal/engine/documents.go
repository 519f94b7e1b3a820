package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"mpproj/internal/archive"
	"mpproj/internal/domain"
	"mpproj/internal/events"
	"mpproj/internal/lifecycle"
	"mpproj/internal/snapshot"
)

// SaveProject snapshots the active project, marks it saved and clears the
// undo history. A failed snapshot leaves everything as it was.
func (e *Engine) SaveProject(ctx context.Context) (snapshot.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return snapshot.Entry{}, err
	}
	entry, err := e.snaps.Save(ctx, archive.New(p, e.now(), e.platform))
	if err != nil {
		e.Log.Error().Err(err).Str("project_id", p.ID).Msg("save failed")
		return snapshot.Entry{}, fmt.Errorf("save project: %w", err)
	}
	cp := e.checkpoint()
	e.state = lifecycle.Transition(e.state, lifecycle.Save, e.now())
	e.history.Clear()
	if err := e.persistSession(ctx); err != nil {
		return entry, e.rollback(ctx, cp, err)
	}
	if err := e.touchRecent(ctx, RecentProject{FileName: p.Name, ProjectUUID: p.ID}); err != nil {
		return entry, err
	}
	e.Log.Info().Str("project_id", p.ID).Str("snapshot", entry.Name).Msg("project saved")
	e.record(ctx, "project.save", p.ID, "snapshot", entry.Name, nil)
	return entry, nil
}

// ExportProjectFile writes the active project as an archive to w and marks
// it saved. An auto snapshot is taken as well; its failure is only logged.
func (e *Engine) ExportProjectFile(ctx context.Context, w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return err
	}
	pkg := archive.New(p, e.now(), e.platform)
	if err := archive.Encode(w, pkg); err != nil {
		e.Log.Error().Err(err).Str("project_id", p.ID).Msg("export failed")
		return fmt.Errorf("export project: %w", err)
	}
	if _, err := e.snaps.Save(ctx, pkg); err != nil {
		e.Log.Warn().Err(err).Str("project_id", p.ID).Msg("export snapshot failed")
	}
	cp := e.checkpoint()
	e.state = lifecycle.Transition(e.state, lifecycle.Save, e.now())
	if err := e.persistSession(ctx); err != nil {
		return e.rollback(ctx, cp, err)
	}
	e.Log.Info().Str("project_id", p.ID).Msg("project exported")
	e.record(ctx, "project.export", p.ID, "project", p.ID, nil)
	return nil
}

// OpenProjectFile reads an archive and makes its project active. The undo
// history does not carry over to the opened document.
func (e *Engine) OpenProjectFile(ctx context.Context, r io.ReaderAt, size int64, filePath string) (domain.Project, error) {
	pkg, err := archive.Decode(r, size)
	if err != nil {
		return domain.Project{}, fmt.Errorf("open %s: %w", filePath, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := pkg.Assemble()
	cp := e.checkpoint()
	e.history.Clear()
	out, err := e.setCurrent(ctx, cp, p)
	if err != nil {
		return out, err
	}
	e.state = lifecycle.Transition(e.state, lifecycle.Save, e.now())
	if err := e.persistSession(ctx); err != nil {
		return out, e.rollback(ctx, cp, err)
	}
	name := filepath.Base(filePath)
	if filePath == "" {
		name = out.Name + archive.Extension
	}
	if err := e.touchRecent(ctx, RecentProject{FileName: name, FilePath: filePath, ProjectUUID: out.ID}); err != nil {
		return out, err
	}
	e.Log.Info().Str("project_id", out.ID).Str("path", filePath).Msg("project opened")
	e.record(ctx, "project.open", out.ID, "project", out.ID, events.EventPayload{"path": filePath})
	return out, nil
}

// RestoreSnapshot makes the project stored in the named snapshot active.
func (e *Engine) RestoreSnapshot(ctx context.Context, name string) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restore(ctx, name)
}

func (e *Engine) restore(ctx context.Context, name string) (domain.Project, error) {
	pkg, err := e.snaps.Load(ctx, name)
	if err != nil {
		return domain.Project{}, err
	}
	if pkg == nil {
		return domain.Project{}, fmt.Errorf("snapshot %s: %w", name, ErrSnapshotNotFound)
	}
	p := pkg.Assemble()
	cp := e.checkpoint()
	e.history.Clear()
	out, err := e.setCurrent(ctx, cp, p)
	if err != nil {
		return out, err
	}
	e.state = lifecycle.Transition(e.state, lifecycle.RestoreSnapshot, e.now())
	if err := e.persistSession(ctx); err != nil {
		return out, e.rollback(ctx, cp, err)
	}
	if err := e.touchRecent(ctx, RecentProject{FileName: out.Name, ProjectUUID: out.ID}); err != nil {
		return out, err
	}
	e.Log.Info().Str("project_id", out.ID).Str("snapshot", name).Msg("snapshot restored")
	e.record(ctx, "snapshot.restore", out.ID, "snapshot", name, nil)
	return out, nil
}

func (e *Engine) ListSnapshots(ctx context.Context) ([]snapshot.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snaps.List(ctx)
}

// LatestSnapshot returns nil when there are no snapshots.
func (e *Engine) LatestSnapshot(ctx context.Context) (*snapshot.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snaps.Latest(ctx)
}

func (e *Engine) RemoveSnapshot(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.snaps.Delete(ctx, name); err != nil {
		return err
	}
	e.record(ctx, "snapshot.delete", "", "snapshot", name, nil)
	return nil
}

// InitializeFromLatestSnapshot restores the newest snapshot. With no
// snapshot and no stored projects it creates an untitled project instead.
func (e *Engine) InitializeFromLatestSnapshot(ctx context.Context) (domain.Project, error) {
	e.mu.Lock()
	latest, err := e.snaps.Latest(ctx)
	if err != nil {
		e.mu.Unlock()
		return domain.Project{}, err
	}
	if latest != nil {
		defer e.mu.Unlock()
		return e.restore(ctx, latest.Name)
	}
	if len(e.projects) > 0 {
		defer e.mu.Unlock()
		if p, err := e.active(); err == nil {
			return p, nil
		}
		return e.setCurrent(ctx, e.checkpoint(), e.projects[0])
	}
	e.mu.Unlock()
	return e.CreateProject(ctx, "")
}

// Close marks the document as closing.
func (e *Engine) Close(ctx context.Context) (lifecycle.State, error) {
	return e.transition(ctx, lifecycle.Close)
}

// Discard drops the unsaved flag. Project data is left as stored.
func (e *Engine) Discard(ctx context.Context) (lifecycle.State, error) {
	return e.transition(ctx, lifecycle.Discard)
}

func (e *Engine) transition(ctx context.Context, action lifecycle.Action) (lifecycle.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.checkpoint()
	e.state = lifecycle.Transition(e.state, action, e.now())
	if err := e.persistSession(ctx); err != nil {
		err = e.rollback(ctx, cp, err)
		return e.state, err
	}
	return e.state, nil
}

// SetAutosave turns the autosave timer on or off.
func (e *Engine) SetAutosave(ctx context.Context, active bool) (lifecycle.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.checkpoint()
	e.state = e.state.WithAutosave(active)
	if err := e.persistSession(ctx); err != nil {
		err = e.rollback(ctx, cp, err)
		return e.state, err
	}
	return e.state, nil
}

// Metrics summarizes the active project.
func (e *Engine) Metrics() (domain.Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return domain.Metrics{}, err
	}
	return domain.ComputeMetrics(p, e.now()), nil
}

// Issues runs the advisory validator over the active project.
func (e *Engine) Issues() ([]domain.Issue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return nil, err
	}
	issues := domain.Validate(p)
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}
