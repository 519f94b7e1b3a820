package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mpproj/internal/config"
	"mpproj/internal/domain"
	"mpproj/internal/events"
	"mpproj/internal/kv"
	"mpproj/internal/lifecycle"
	"mpproj/internal/snapshot"
	"mpproj/internal/undo"
)

// Storage keys.
const (
	KeyProjects = "saved_projects"
	KeyCurrent  = "current_project_id"
	KeyRecent   = "recent_projects"
	KeySession  = "session"
)

var (
	ErrNoActiveProject  = errors.New("no active project")
	ErrNotFound         = errors.New("not found")
	ErrExists           = errors.New("already exists")
	ErrReferenced       = errors.New("still referenced")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrStaleHistory is returned by Undo and Redo when the recorded change
	// no longer matches the project.
	ErrStaleHistory = undo.ErrStale
)

// Journal records engine activity. events.Writer satisfies it.
type Journal interface {
	Append(ctx context.Context, evtType, projectID, entityKind, entityID string, payload events.EventPayload) error
}

// Engine is the project store. All methods are safe for concurrent use;
// each one runs under a single lock.
type Engine struct {
	Now     func() time.Time
	Log     zerolog.Logger
	Journal Journal

	mu       sync.Mutex
	kv       kv.Store
	snaps    *snapshot.Store
	history  *undo.Log
	state    lifecycle.State
	projects []domain.Project
	current  string
	policy   string
	platform string
	autosave time.Duration
}

// New builds an engine over store. Call Load before use to pick up state
// persisted by an earlier session.
func New(store kv.Store, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		Now:      time.Now,
		Log:      zerolog.Nop(),
		kv:       store,
		history:  undo.NewLog(cfg.History.Depth, cfg.References.Policy == config.PolicyReject),
		state:    lifecycle.Initial(),
		projects: []domain.Project{},
		policy:   cfg.References.Policy,
		platform: cfg.Archive.Platform,
		autosave: cfg.Autosave.Interval.Std(),
	}
	if !cfg.Autosave.Enabled {
		e.state = e.state.WithAutosave(false)
	}
	e.snaps = snapshot.New(store, cfg.Snapshots.Limit)
	e.snaps.Now = e.now
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// SetLogger replaces the logger of the engine and its snapshot store.
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Log = l
	e.snaps.Log = l
}

type session struct {
	State   lifecycle.State `json:"state"`
	History json.RawMessage `json:"history,omitempty"`
}

// Load restores projects, the active id and the session from storage.
// A corrupt session is logged and reset rather than failing.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, err := e.kv.Get(ctx, KeyProjects)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		e.projects = []domain.Project{}
	case err != nil:
		return fmt.Errorf("read projects: %w", err)
	default:
		var projects []domain.Project
		if err := json.Unmarshal(data, &projects); err != nil {
			return fmt.Errorf("decode projects: %w", err)
		}
		e.projects = make([]domain.Project, 0, len(projects))
		for _, p := range projects {
			e.projects = append(e.projects, p.Normalize())
		}
	}
	cur, err := e.kv.Get(ctx, KeyCurrent)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		e.current = ""
	case err != nil:
		return fmt.Errorf("read current project: %w", err)
	default:
		e.current = string(cur)
		if e.indexOf(e.current) < 0 {
			e.current = ""
		}
	}
	raw, err := e.kv.Get(ctx, KeySession)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		e.Log.Warn().Err(err).Msg("corrupt session; starting fresh")
		return nil
	}
	e.state = s.State
	e.history.Clear()
	if len(s.History) > 0 {
		if err := json.Unmarshal(s.History, e.history); err != nil {
			e.Log.Warn().Err(err).Msg("corrupt undo history; clearing")
			e.history.Clear()
		}
	}
	return nil
}

// persist writes the project list, the active id and the session.
func (e *Engine) persist(ctx context.Context) error {
	data, err := json.Marshal(e.projects)
	if err != nil {
		return fmt.Errorf("encode projects: %w", err)
	}
	if err := e.kv.Set(ctx, KeyProjects, data); err != nil {
		e.Log.Error().Err(err).Msg("persist projects")
		return fmt.Errorf("persist projects: %w", err)
	}
	if e.current == "" {
		err = e.kv.Delete(ctx, KeyCurrent)
	} else {
		err = e.kv.Set(ctx, KeyCurrent, []byte(e.current))
	}
	if err != nil {
		e.Log.Error().Err(err).Msg("persist current project")
		return fmt.Errorf("persist current project: %w", err)
	}
	return e.persistSession(ctx)
}

func (e *Engine) persistSession(ctx context.Context) error {
	hist, err := json.Marshal(e.history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	data, err := json.Marshal(session{State: e.state, History: hist})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := e.kv.Set(ctx, KeySession, data); err != nil {
		e.Log.Error().Err(err).Msg("persist session")
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, evtType, projectID, kind, id string, payload events.EventPayload) {
	if e.Journal == nil {
		return
	}
	if err := e.Journal.Append(ctx, evtType, projectID, kind, id, payload); err != nil {
		e.Log.Warn().Err(err).Str("event", evtType).Msg("journal append failed")
	}
}

func (e *Engine) indexOf(id string) int {
	for i, p := range e.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) active() (domain.Project, error) {
	i := e.indexOf(e.current)
	if e.current == "" || i < 0 {
		return domain.Project{}, ErrNoActiveProject
	}
	return e.projects[i].Clone(), nil
}

// upsert replaces the project with p's id or appends it.
func (e *Engine) upsert(p domain.Project) {
	next := make([]domain.Project, 0, len(e.projects)+1)
	found := false
	for _, existing := range e.projects {
		if existing.ID == p.ID {
			next = append(next, p)
			found = true
		} else {
			next = append(next, existing)
		}
	}
	if !found {
		next = append(next, p)
	}
	e.projects = next
}

// commit recomputes progress, stamps updatedAt, stores p as the active
// project, marks the document edited and persists. A failed write restores
// cp.
func (e *Engine) commit(ctx context.Context, cp checkpoint, p domain.Project) (domain.Project, error) {
	now := e.now()
	p.Progress = domain.CalculateProjectProgress(p.Tasks)
	p.UpdatedAt = domain.Timestamp(now)
	e.upsert(p)
	e.current = p.ID
	e.state = lifecycle.Transition(e.state, lifecycle.Edit, now)
	if err := e.persist(ctx); err != nil {
		return p.Clone(), e.rollback(ctx, cp, err)
	}
	return p.Clone(), nil
}

// checkpoint is the in-memory document state taken before a mutation.
type checkpoint struct {
	projects []domain.Project
	current  string
	state    lifecycle.State
	history  undo.Mark
}

func (e *Engine) checkpoint() checkpoint {
	return checkpoint{
		projects: append([]domain.Project(nil), e.projects...),
		current:  e.current,
		state:    e.state,
		history:  e.history.Checkpoint(),
	}
}

// rollback puts cp back after a failed write and rewrites it so the store
// matches memory again. cause is returned unchanged.
func (e *Engine) rollback(ctx context.Context, cp checkpoint, cause error) error {
	e.projects = cp.projects
	e.current = cp.current
	e.state = cp.state
	e.history.Rollback(cp.history)
	if err := e.persist(ctx); err != nil {
		e.Log.Error().Err(err).Msg("restore after failed write")
	}
	return cause
}

// Current returns the active project.
func (e *Engine) Current() (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active()
}

// Projects returns every stored project.
func (e *Engine) Projects() []domain.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Project, len(e.projects))
	for i, p := range e.projects {
		out[i] = p.Clone()
	}
	return out
}

// Project returns a stored project by id.
func (e *Engine) Project(id string) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return e.projects[i].Clone(), nil
}

func (e *Engine) State() lifecycle.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// History returns the undo and redo stacks, oldest first.
func (e *Engine) History() (undoable, redoable []undo.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Undoable(), e.history.Redoable()
}

func (e *Engine) UndoLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Len()
}

func (e *Engine) RedoLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.RedoLen()
}

// Policy reports the configured dangling-reference policy.
func (e *Engine) Policy() string {
	return e.policy
}

// CreateProject makes a fresh untitled document the active project and
// clears history.
func (e *Engine) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	p := domain.NewProject(now, name)
	cp := e.checkpoint()
	e.projects = append(e.projects, p)
	e.current = p.ID
	e.state = lifecycle.Transition(e.state, lifecycle.Initialize, now)
	e.history.Clear()
	if err := e.persist(ctx); err != nil {
		return p.Clone(), e.rollback(ctx, cp, err)
	}
	if err := e.touchRecent(ctx, RecentProject{FileName: p.Name, ProjectUUID: p.ID, IsTemporary: true}); err != nil {
		return p.Clone(), err
	}
	e.Log.Info().Str("project_id", p.ID).Str("name", p.Name).Msg("project created")
	e.record(ctx, "project.create", p.ID, "project", p.ID, events.EventPayload{"name": p.Name})
	return p.Clone(), nil
}

// SetCurrentProject stores p, replacing any project with the same id, and
// makes it active. Lifecycle and history are left alone.
func (e *Engine) SetCurrentProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setCurrent(ctx, e.checkpoint(), p)
}

func (e *Engine) setCurrent(ctx context.Context, cp checkpoint, p domain.Project) (domain.Project, error) {
	if p.ID == "" {
		return domain.Project{}, errors.New("project id is required")
	}
	p = p.Clone().Normalize()
	e.upsert(p)
	e.current = p.ID
	if err := e.persist(ctx); err != nil {
		return p.Clone(), e.rollback(ctx, cp, err)
	}
	return p.Clone(), nil
}

// UseProject makes an already stored project active.
func (e *Engine) UseProject(ctx context.Context, id string) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	cp := e.checkpoint()
	if e.current != id {
		e.history.Clear()
	}
	return e.setCurrent(ctx, cp, e.projects[i])
}

// UpdateProject replaces the header fields and collections of a stored
// project. Progress is always recomputed. It is not recorded in history.
func (e *Engine) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexOf(p.ID) < 0 {
		return domain.Project{}, fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	cp := e.checkpoint()
	if p.ID != e.current {
		e.history.Clear()
	}
	out, err := e.commit(ctx, cp, p.Clone().Normalize())
	if err != nil {
		return out, err
	}
	e.Log.Debug().Str("op", "update").Str("type", "project").Str("target_id", p.ID).Msg("mutation")
	e.record(ctx, "project.update", p.ID, "project", p.ID, nil)
	return out, nil
}

// DeleteProject removes a project. Deleting the active project activates
// the first remaining one, or none.
func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	cp := e.checkpoint()
	e.projects = append(e.projects[:i:i], e.projects[i+1:]...)
	if e.current == id {
		e.current = ""
		e.history.Clear()
		if len(e.projects) > 0 {
			e.current = e.projects[0].ID
		}
	}
	if err := e.persist(ctx); err != nil {
		return e.rollback(ctx, cp, err)
	}
	e.Log.Info().Str("project_id", id).Msg("project deleted")
	e.record(ctx, "project.delete", id, "project", id, nil)
	return nil
}
