package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mpproj/internal/config"
	"mpproj/internal/domain"
	"mpproj/internal/events"
	"mpproj/internal/undo"
)

// collection wires one entity kind to its project field, its history
// constructors and its reference handling.
type collection[T domain.Entity] struct {
	kind   string
	get    func(domain.Project) []T
	set    func(*domain.Project, []T)
	touch  func(T, string) T
	add    func(T) undo.Change
	update func(before, after T) undo.Change
	remove func(T, int) undo.Change
	// detach strips references to id from other records and returns the
	// updated project with one change per touched record.
	detach func(p domain.Project, id string) (domain.Project, []undo.Change)
}

func addEntity[T domain.Entity](ctx context.Context, e *Engine, c collection[T], v T) (T, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	p, err := e.active()
	if err != nil {
		return zero, err
	}
	if v.Key() == "" {
		return zero, fmt.Errorf("%s id is required", c.kind)
	}
	for _, it := range c.get(p) {
		if it.Key() == v.Key() {
			return zero, fmt.Errorf("%s %s: %w", c.kind, v.Key(), ErrExists)
		}
	}
	cp := e.checkpoint()
	c.set(&p, append(c.get(p), v))
	e.history.Push(c.add(v))
	if _, err := e.commit(ctx, cp, p); err != nil {
		return v, err
	}
	e.logMutation(ctx, p.ID, "add", c.kind, v.Key())
	return v, nil
}

func updateEntity[T domain.Entity](ctx context.Context, e *Engine, c collection[T], v T) (T, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero T
	p, err := e.active()
	if err != nil {
		return zero, err
	}
	items := c.get(p)
	idx := -1
	for i, it := range items {
		if it.Key() == v.Key() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return zero, fmt.Errorf("%s %s: %w", c.kind, v.Key(), ErrNotFound)
	}
	if c.touch != nil {
		v = c.touch(v, domain.Timestamp(e.now()))
	}
	before := items[idx]
	next := make([]T, len(items))
	copy(next, items)
	next[idx] = v
	c.set(&p, next)
	cp := e.checkpoint()
	e.history.Push(c.update(before, v))
	if _, err := e.commit(ctx, cp, p); err != nil {
		return v, err
	}
	e.logMutation(ctx, p.ID, "update", c.kind, v.Key())
	return v, nil
}

func deleteEntity[T domain.Entity](ctx context.Context, e *Engine, c collection[T], id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return err
	}
	items := c.get(p)
	idx := -1
	for i, it := range items {
		if it.Key() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%s %s: %w", c.kind, id, ErrNotFound)
	}
	victim := items[idx]
	change := c.remove(victim, idx)
	if c.detach != nil && e.policy != config.PolicyLeave {
		detached, related := c.detach(p, id)
		if len(related) > 0 {
			if e.policy == config.PolicyReject {
				ids := make([]string, 0, len(related))
				for _, r := range related {
					ids = append(ids, r.TargetID())
				}
				return fmt.Errorf("%s %s is referenced by %s: %w", c.kind, id, strings.Join(ids, ", "), ErrReferenced)
			}
			p = detached
			change = undo.Batch(append(related, change)...)
		}
	}
	kept := make([]T, 0, len(items)-1)
	kept = append(kept, items[:idx]...)
	kept = append(kept, items[idx+1:]...)
	c.set(&p, kept)
	cp := e.checkpoint()
	e.history.Push(change)
	if _, err := e.commit(ctx, cp, p); err != nil {
		return err
	}
	e.logMutation(ctx, p.ID, "delete", c.kind, id)
	return nil
}

func (e *Engine) logMutation(ctx context.Context, projectID, op, kind, id string) {
	e.Log.Debug().Str("op", op).Str("type", kind).Str("target_id", id).Msg("mutation")
	e.record(ctx, kind+"."+op, projectID, kind, id, nil)
}

var tasks = collection[domain.Task]{
	kind:   "task",
	get:    func(p domain.Project) []domain.Task { return p.Tasks },
	set:    func(p *domain.Project, v []domain.Task) { p.Tasks = v },
	touch:  func(t domain.Task, ts string) domain.Task { t.UpdatedAt = ts; return t },
	add:    undo.AddTask,
	update: undo.UpdateTask,
	remove: undo.DeleteTask,
	detach: func(p domain.Project, id string) (domain.Project, []undo.Change) {
		var changes []undo.Change
		refs := domain.ReferencesToTask(p, id)
		for i, t := range p.Tasks {
			if contains(refs.Tasks, t.ID) {
				next := t.WithoutTaskRef(id)
				changes = append(changes, undo.UpdateTask(t, next))
				p.Tasks[i] = next
			}
		}
		for i, m := range p.Milestones {
			if contains(refs.Milestones, m.ID) {
				next := m.WithoutTaskRef(id)
				changes = append(changes, undo.UpdateMilestone(m, next))
				p.Milestones[i] = next
			}
		}
		return p, changes
	},
}

var resources = collection[domain.Resource]{
	kind:   "resource",
	get:    func(p domain.Project) []domain.Resource { return p.Resources },
	set:    func(p *domain.Project, v []domain.Resource) { p.Resources = v },
	touch:  func(r domain.Resource, ts string) domain.Resource { r.UpdatedAt = ts; return r },
	add:    undo.AddResource,
	update: undo.UpdateResource,
	remove: undo.DeleteResource,
	detach: func(p domain.Project, id string) (domain.Project, []undo.Change) {
		var changes []undo.Change
		refs := domain.ReferencesToResource(p, id)
		for i, t := range p.Tasks {
			if contains(refs.Tasks, t.ID) {
				next := t.WithoutResourceRef(id)
				changes = append(changes, undo.UpdateTask(t, next))
				p.Tasks[i] = next
			}
		}
		for i, tm := range p.Teams {
			if contains(refs.Teams, tm.ID) {
				next := tm.WithoutMember(id)
				changes = append(changes, undo.UpdateTeam(tm, next))
				p.Teams[i] = next
			}
		}
		return p, changes
	},
}

var milestones = collection[domain.Milestone]{
	kind:   "milestone",
	get:    func(p domain.Project) []domain.Milestone { return p.Milestones },
	set:    func(p *domain.Project, v []domain.Milestone) { p.Milestones = v },
	touch:  func(m domain.Milestone, ts string) domain.Milestone { m.UpdatedAt = ts; return m },
	add:    undo.AddMilestone,
	update: undo.UpdateMilestone,
	remove: undo.DeleteMilestone,
	detach: func(p domain.Project, id string) (domain.Project, []undo.Change) {
		var changes []undo.Change
		for i, t := range p.Tasks {
			if t.MilestoneID == id {
				next := t.Clone()
				next.MilestoneID = ""
				changes = append(changes, undo.UpdateTask(t, next))
				p.Tasks[i] = next
			}
		}
		return p, changes
	},
}

var teams = collection[domain.Team]{
	kind:   "team",
	get:    func(p domain.Project) []domain.Team { return p.Teams },
	set:    func(p *domain.Project, v []domain.Team) { p.Teams = v },
	touch:  func(t domain.Team, ts string) domain.Team { t.UpdatedAt = ts; return t },
	add:    undo.AddTeam,
	update: undo.UpdateTeam,
	remove: undo.DeleteTeam,
	detach: func(p domain.Project, id string) (domain.Project, []undo.Change) {
		var changes []undo.Change
		for i, r := range p.Resources {
			if r.TeamID == id {
				next := r.Clone()
				next.TeamID = ""
				changes = append(changes, undo.UpdateResource(r, next))
				p.Resources[i] = next
			}
		}
		return p, changes
	},
}

var costs = collection[domain.CostRecord]{
	kind:   "cost",
	get:    func(p domain.Project) []domain.CostRecord { return p.Costs },
	set:    func(p *domain.Project, v []domain.CostRecord) { p.Costs = v },
	add:    undo.AddCost,
	update: undo.UpdateCost,
	remove: undo.DeleteCost,
}

var risks = collection[domain.Risk]{
	kind:   "risk",
	get:    func(p domain.Project) []domain.Risk { return p.Risks },
	set:    func(p *domain.Project, v []domain.Risk) { p.Risks = v },
	touch:  func(r domain.Risk, ts string) domain.Risk { r.UpdatedAt = ts; return r },
	add:    undo.AddRisk,
	update: undo.UpdateRisk,
	remove: undo.DeleteRisk,
}

func (e *Engine) AddTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return addEntity(ctx, e, tasks, t.Clone())
}

func (e *Engine) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return updateEntity(ctx, e, tasks, t.Clone())
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, tasks, id)
}

func (e *Engine) AddResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	return addEntity(ctx, e, resources, r.Clone())
}

func (e *Engine) UpdateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	return updateEntity(ctx, e, resources, r.Clone())
}

func (e *Engine) DeleteResource(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, resources, id)
}

func (e *Engine) AddMilestone(ctx context.Context, m domain.Milestone) (domain.Milestone, error) {
	return addEntity(ctx, e, milestones, m.Clone())
}

func (e *Engine) UpdateMilestone(ctx context.Context, m domain.Milestone) (domain.Milestone, error) {
	return updateEntity(ctx, e, milestones, m.Clone())
}

func (e *Engine) DeleteMilestone(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, milestones, id)
}

func (e *Engine) AddTeam(ctx context.Context, t domain.Team) (domain.Team, error) {
	return addEntity(ctx, e, teams, t.Clone())
}

func (e *Engine) UpdateTeam(ctx context.Context, t domain.Team) (domain.Team, error) {
	return updateEntity(ctx, e, teams, t.Clone())
}

func (e *Engine) DeleteTeam(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, teams, id)
}

func (e *Engine) AddCost(ctx context.Context, c domain.CostRecord) (domain.CostRecord, error) {
	return addEntity(ctx, e, costs, c)
}

func (e *Engine) UpdateCost(ctx context.Context, c domain.CostRecord) (domain.CostRecord, error) {
	return updateEntity(ctx, e, costs, c)
}

func (e *Engine) DeleteCost(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, costs, id)
}

func (e *Engine) AddRisk(ctx context.Context, r domain.Risk) (domain.Risk, error) {
	return addEntity(ctx, e, risks, r)
}

func (e *Engine) UpdateRisk(ctx context.Context, r domain.Risk) (domain.Risk, error) {
	return updateEntity(ctx, e, risks, r)
}

func (e *Engine) DeleteRisk(ctx context.Context, id string) error {
	return deleteEntity(ctx, e, risks, id)
}

// UpdateBudget replaces the active project's budget. Remaining is stored as
// given; domain.BudgetRemaining is the derived figure.
func (e *Engine) UpdateBudget(ctx context.Context, b domain.Budget) (domain.Budget, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.active()
	if err != nil {
		return domain.Budget{}, err
	}
	if b.Categories == nil {
		b.Categories = []domain.BudgetCategory{}
	}
	if b.Currency == "" {
		return domain.Budget{}, errors.New("budget currency is required")
	}
	cp := e.checkpoint()
	e.history.Push(undo.UpdateBudget(p.Budget, b))
	p.Budget = b.Clone()
	if _, err := e.commit(ctx, cp, p); err != nil {
		return b, err
	}
	e.Log.Debug().Str("op", "update").Str("type", "budget").Str("target_id", p.ID).Msg("mutation")
	e.record(ctx, "budget.update", p.ID, "budget", p.ID, events.EventPayload{"total": b.Total, "spent": b.Spent})
	return b, nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
