package undo

import (
	"errors"
	"fmt"

	"mpproj/internal/domain"
)

// ErrStale is returned in strict mode when a change no longer matches the
// project it is applied to.
var ErrStale = errors.New("stale history entry")

type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one recorded mutation. Implementations come only from the
// constructors in this package.
type Change interface {
	Type() string
	TargetID() string
	revert(p domain.Project, strict bool) (domain.Project, error)
	replay(p domain.Project, strict bool) (domain.Project, error)
}

// kind binds an entity type to its project collection.
type kind[T domain.Entity] struct {
	name string
	get  func(domain.Project) []T
	set  func(*domain.Project, []T)
}

var (
	taskKind = kind[domain.Task]{
		name: "task",
		get:  func(p domain.Project) []domain.Task { return p.Tasks },
		set:  func(p *domain.Project, v []domain.Task) { p.Tasks = v },
	}
	resourceKind = kind[domain.Resource]{
		name: "resource",
		get:  func(p domain.Project) []domain.Resource { return p.Resources },
		set:  func(p *domain.Project, v []domain.Resource) { p.Resources = v },
	}
	milestoneKind = kind[domain.Milestone]{
		name: "milestone",
		get:  func(p domain.Project) []domain.Milestone { return p.Milestones },
		set:  func(p *domain.Project, v []domain.Milestone) { p.Milestones = v },
	}
	teamKind = kind[domain.Team]{
		name: "team",
		get:  func(p domain.Project) []domain.Team { return p.Teams },
		set:  func(p *domain.Project, v []domain.Team) { p.Teams = v },
	}
	costKind = kind[domain.CostRecord]{
		name: "cost",
		get:  func(p domain.Project) []domain.CostRecord { return p.Costs },
		set:  func(p *domain.Project, v []domain.CostRecord) { p.Costs = v },
	}
	riskKind = kind[domain.Risk]{
		name: "risk",
		get:  func(p domain.Project) []domain.Risk { return p.Risks },
		set:  func(p *domain.Project, v []domain.Risk) { p.Risks = v },
	}
)

// entityChange records an add, update or delete of one collection record.
// Index is the position a deleted record held, so undo can put it back.
type entityChange[T domain.Entity] struct {
	op     Op
	kind   *kind[T]
	target string
	before *T
	after  *T
	index  int
}

func (c *entityChange[T]) Type() string     { return string(c.op) + "-" + c.kind.name }
func (c *entityChange[T]) TargetID() string { return c.target }

func (c *entityChange[T]) revert(p domain.Project, strict bool) (domain.Project, error) {
	switch c.op {
	case OpAdd:
		return c.remove(p, strict)
	case OpUpdate:
		return c.replace(p, *c.before, strict)
	default:
		return c.insert(p, *c.before, c.index, strict)
	}
}

func (c *entityChange[T]) replay(p domain.Project, strict bool) (domain.Project, error) {
	switch c.op {
	case OpAdd:
		return c.insert(p, *c.after, -1, strict)
	case OpUpdate:
		return c.replace(p, *c.after, strict)
	default:
		return c.remove(p, strict)
	}
}

func (c *entityChange[T]) position(items []T) int {
	for i, it := range items {
		if it.Key() == c.target {
			return i
		}
	}
	return -1
}

func (c *entityChange[T]) remove(p domain.Project, strict bool) (domain.Project, error) {
	items := c.kind.get(p)
	if strict && c.position(items) < 0 {
		return p, c.stale("target missing")
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Key() != c.target {
			out = append(out, it)
		}
	}
	c.kind.set(&p, out)
	return p, nil
}

func (c *entityChange[T]) replace(p domain.Project, v T, strict bool) (domain.Project, error) {
	items := c.kind.get(p)
	if strict && c.position(items) < 0 {
		return p, c.stale("target missing")
	}
	out := make([]T, len(items))
	for i, it := range items {
		if it.Key() == c.target {
			out[i] = v
		} else {
			out[i] = it
		}
	}
	c.kind.set(&p, out)
	return p, nil
}

// insert places v at idx, or appends when idx is negative or past the end.
func (c *entityChange[T]) insert(p domain.Project, v T, idx int, strict bool) (domain.Project, error) {
	items := c.kind.get(p)
	if strict && c.position(items) >= 0 {
		return p, c.stale("target already present")
	}
	if idx < 0 || idx > len(items) {
		idx = len(items)
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:idx]...)
	out = append(out, v)
	out = append(out, items[idx:]...)
	c.kind.set(&p, out)
	return p, nil
}

func (c *entityChange[T]) stale(reason string) error {
	return fmt.Errorf("%s %s: %s: %w", c.Type(), c.target, reason, ErrStale)
}

func newAdd[T domain.Entity](k *kind[T], v T) Change {
	return &entityChange[T]{op: OpAdd, kind: k, target: v.Key(), after: &v, index: -1}
}

func newUpdate[T domain.Entity](k *kind[T], before, after T) Change {
	return &entityChange[T]{op: OpUpdate, kind: k, target: before.Key(), before: &before, after: &after, index: -1}
}

func newDelete[T domain.Entity](k *kind[T], v T, index int) Change {
	return &entityChange[T]{op: OpDelete, kind: k, target: v.Key(), before: &v, index: index}
}

func AddTask(t domain.Task) Change                { return newAdd(&taskKind, t.Clone()) }
func UpdateTask(before, after domain.Task) Change { return newUpdate(&taskKind, before.Clone(), after.Clone()) }
func DeleteTask(t domain.Task, index int) Change  { return newDelete(&taskKind, t.Clone(), index) }

func AddResource(r domain.Resource) Change { return newAdd(&resourceKind, r.Clone()) }
func UpdateResource(before, after domain.Resource) Change {
	return newUpdate(&resourceKind, before.Clone(), after.Clone())
}
func DeleteResource(r domain.Resource, index int) Change {
	return newDelete(&resourceKind, r.Clone(), index)
}

func AddMilestone(m domain.Milestone) Change { return newAdd(&milestoneKind, m.Clone()) }
func UpdateMilestone(before, after domain.Milestone) Change {
	return newUpdate(&milestoneKind, before.Clone(), after.Clone())
}
func DeleteMilestone(m domain.Milestone, index int) Change {
	return newDelete(&milestoneKind, m.Clone(), index)
}

func AddTeam(t domain.Team) Change                { return newAdd(&teamKind, t.Clone()) }
func UpdateTeam(before, after domain.Team) Change { return newUpdate(&teamKind, before.Clone(), after.Clone()) }
func DeleteTeam(t domain.Team, index int) Change  { return newDelete(&teamKind, t.Clone(), index) }

func AddCost(c domain.CostRecord) Change                { return newAdd(&costKind, c) }
func UpdateCost(before, after domain.CostRecord) Change { return newUpdate(&costKind, before, after) }
func DeleteCost(c domain.CostRecord, index int) Change  { return newDelete(&costKind, c, index) }

func AddRisk(r domain.Risk) Change                { return newAdd(&riskKind, r) }
func UpdateRisk(before, after domain.Risk) Change { return newUpdate(&riskKind, before, after) }
func DeleteRisk(r domain.Risk, index int) Change  { return newDelete(&riskKind, r, index) }

type budgetChange struct {
	before domain.Budget
	after  domain.Budget
}

// UpdateBudget records a whole-budget replacement.
func UpdateBudget(before, after domain.Budget) Change {
	return &budgetChange{before: before.Clone(), after: after.Clone()}
}

func (c *budgetChange) Type() string     { return "update-budget" }
func (c *budgetChange) TargetID() string { return "budget" }

func (c *budgetChange) revert(p domain.Project, _ bool) (domain.Project, error) {
	p.Budget = c.before.Clone()
	return p, nil
}

func (c *budgetChange) replay(p domain.Project, _ bool) (domain.Project, error) {
	p.Budget = c.after.Clone()
	return p, nil
}

// batchChange groups changes that must undo and redo together.
type batchChange struct {
	target  string
	changes []Change
}

// Batch composes changes into one entry. Undo reverts them newest first.
// The first change names the entry's target.
func Batch(changes ...Change) Change {
	b := &batchChange{changes: append([]Change{}, changes...)}
	if len(changes) > 0 {
		b.target = changes[0].TargetID()
	}
	return b
}

func (b *batchChange) Type() string     { return "batch" }
func (b *batchChange) TargetID() string { return b.target }

func (b *batchChange) revert(p domain.Project, strict bool) (domain.Project, error) {
	var err error
	for i := len(b.changes) - 1; i >= 0; i-- {
		if p, err = b.changes[i].revert(p, strict); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (b *batchChange) replay(p domain.Project, strict bool) (domain.Project, error) {
	var err error
	for _, c := range b.changes {
		if p, err = c.replay(p, strict); err != nil {
			return p, err
		}
	}
	return p, nil
}
