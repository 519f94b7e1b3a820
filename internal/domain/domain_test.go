package domain_test

import (
	"strings"
	"testing"
	"time"

	"mpproj/internal/domain"
)

var fixedNow = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

func TestNewProjectDefaults(t *testing.T) {
	p := domain.NewProject(fixedNow, "")
	if !strings.HasPrefix(p.Name, "New Project ") {
		t.Fatalf("expected generated name, got %q", p.Name)
	}
	if p.Status != "planning" || p.Progress != 0 {
		t.Fatalf("unexpected status/progress %s/%d", p.Status, p.Progress)
	}
	if p.StartDate != "2024-03-01" || p.EndDate != "2024-05-30" {
		t.Fatalf("unexpected range %s..%s", p.StartDate, p.EndDate)
	}
	if p.Budget.Total != 100000 || p.Budget.Remaining != 100000 || p.Budget.Currency != "TWD" {
		t.Fatalf("unexpected budget %+v", p.Budget)
	}
	if len(p.Budget.Categories) != 3 {
		t.Fatalf("expected 3 budget categories, got %d", len(p.Budget.Categories))
	}
	if p.Tasks == nil || p.Resources == nil || p.Costs == nil || p.Risks == nil {
		t.Fatalf("collections must be non-nil")
	}
	if p.CreatedAt != "2024-03-01T08:30:00.000Z" {
		t.Fatalf("unexpected timestamp %s", p.CreatedAt)
	}
	other := domain.NewProject(fixedNow, "Named")
	if other.ID == p.ID {
		t.Fatalf("ids must be unique")
	}
	if other.Name != "Named" {
		t.Fatalf("name not kept: %s", other.Name)
	}
}

func TestTaskDuration(t *testing.T) {
	cases := []struct {
		start, end string
		want       int
	}{
		{"2024-01-01", "2024-01-01", 1},
		{"2024-01-01", "2024-01-10", 10},
		{"2024-01-10", "2024-01-01", 1},
		{"bad", "2024-01-01", 1},
	}
	for _, tc := range cases {
		if got := domain.TaskDuration(tc.start, tc.end); got != tc.want {
			t.Fatalf("duration(%s,%s)=%d want %d", tc.start, tc.end, got, tc.want)
		}
	}
	task := domain.NewTask(fixedNow, "A", "2024-01-01", "2024-01-03", "")
	if task.Duration != 3 || task.Status != "not-started" || task.Priority != "medium" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestNewResourceByType(t *testing.T) {
	human := domain.NewResource(fixedNow, "Ann", "human")
	if human.Cost != 1000 || len(human.Availability) != 5 {
		t.Fatalf("unexpected human resource %+v", human)
	}
	if human.Availability[0].DayOfWeek != 1 || human.Availability[4].DayOfWeek != 5 {
		t.Fatalf("expected Monday to Friday, got %+v", human.Availability)
	}
	crane := domain.NewResource(fixedNow, "Crane", "equipment")
	if crane.Cost != 500 || len(crane.Availability) != 0 {
		t.Fatalf("unexpected equipment resource %+v", crane)
	}
}

func TestOtherFactories(t *testing.T) {
	if m := domain.NewMilestone(fixedNow, "M1", "2024-04-01", ""); m.Status != "upcoming" || m.TaskIDs == nil {
		t.Fatalf("unexpected milestone %+v", m)
	}
	if c := domain.NewCostRecord(fixedNow, "task-1"); c.Status != "pending" || c.Date != "2024-03-01" || c.Category != domain.DefaultCostCategory {
		t.Fatalf("unexpected cost %+v", c)
	}
	if r := domain.NewRisk(fixedNow, "Slip"); r.Impact != "medium" || r.Probability != "medium" || r.Status != "identified" {
		t.Fatalf("unexpected risk %+v", r)
	}
	if tm := domain.NewTeam(fixedNow, "Core", ""); tm.Members == nil {
		t.Fatalf("team members must be non-nil")
	}
}

func TestCalculateProjectProgress(t *testing.T) {
	if got := domain.CalculateProjectProgress(nil); got != 0 {
		t.Fatalf("empty progress = %d", got)
	}
	tasks := []domain.Task{{Progress: 0}, {Progress: 100}, {Progress: 50}}
	if got := domain.CalculateProjectProgress(tasks); got != 50 {
		t.Fatalf("progress = %d", got)
	}
	// 0.5 rounds up
	if got := domain.CalculateProjectProgress([]domain.Task{{Progress: 0}, {Progress: 1}}); got != 1 {
		t.Fatalf("half progress = %d", got)
	}
}

func TestBudgetProjections(t *testing.T) {
	b := domain.Budget{Total: 1000, Spent: 250, Remaining: 999}
	if domain.BudgetRemaining(b) != 750 {
		t.Fatalf("remaining = %v", domain.BudgetRemaining(b))
	}
	if b.Remaining != 999 {
		t.Fatalf("stored remaining must be untouched")
	}
	if domain.BudgetUsage(b) != 25 {
		t.Fatalf("usage = %d", domain.BudgetUsage(b))
	}
	if domain.BudgetUsage(domain.Budget{}) != 0 {
		t.Fatalf("zero total usage must be 0")
	}
}

func TestComputeMetrics(t *testing.T) {
	p := domain.NewProject(fixedNow, "P")
	p.Tasks = []domain.Task{{ID: "a", Status: "completed"}, {ID: "b", Status: "in-progress"}}
	p.Milestones = []domain.Milestone{
		{ID: "m1", Status: "upcoming", Date: "2024-03-10"},
		{ID: "m2", Status: "upcoming", Date: "2024-06-10"},
		{ID: "m3", Status: "reached", Date: "2024-03-05"},
	}
	p.Risks = []domain.Risk{
		{Impact: "low", Probability: "low"},
		{Impact: "medium", Probability: "low"},
		{Impact: "high", Probability: "low"},
	}
	p.Budget.Spent = 90000
	m := domain.ComputeMetrics(p, fixedNow)
	if m.TaskCompletion != 50 || m.UpcomingMilestones != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.BudgetStatus != "on-track" || m.BudgetPercentage != 90 {
		t.Fatalf("unexpected budget status %+v", m)
	}
	if m.Risks.Low != 1 || m.Risks.Medium != 1 || m.Risks.High != 1 {
		t.Fatalf("unexpected risk summary %+v", m.Risks)
	}
}

func TestValidate(t *testing.T) {
	p := domain.NewProject(fixedNow, "P")
	if issues := domain.Validate(p); len(issues) != 0 {
		t.Fatalf("fresh project should be valid: %v", issues)
	}
	p.Name = " "
	p.EndDate = p.StartDate
	p.Tasks = []domain.Task{{ID: "a", Name: "A", Duration: 1, Progress: 120, Dependencies: []string{"ghost"}}}
	p.Budget.Spent = p.Budget.Total + 1
	issues := domain.Validate(p)
	fields := map[string]bool{}
	for _, is := range issues {
		fields[is.Field] = true
	}
	for _, want := range []string{"name", "dates", "tasks[0].progress", "tasks[0].dependencies", "budget.spent"} {
		if !fields[want] {
			t.Fatalf("expected issue for %s, got %v", want, issues)
		}
	}
}

func TestDependencyCycles(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"c"}},
		{ID: "c", Dependencies: []string{"a"}},
		{ID: "d", Dependencies: []string{"missing"}},
	}
	cycles := domain.DependencyCycles(tasks)
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %v", cycles)
	}
	if got := strings.Join(cycles[0], ","); got != "a,b,c,a" {
		t.Fatalf("unexpected cycle %s", got)
	}
	if len(domain.DependencyCycles(tasks[3:])) != 0 {
		t.Fatalf("acyclic tasks reported a cycle")
	}
}

func TestReferences(t *testing.T) {
	p := domain.NewProject(fixedNow, "P")
	p.Tasks = []domain.Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}, AssignedTo: []string{"r1"}},
	}
	p.Milestones = []domain.Milestone{{ID: "m", TaskIDs: []string{"a"}}}
	p.Teams = []domain.Team{{ID: "t", Members: []string{"r1"}}}
	refs := domain.ReferencesToTask(p, "a")
	if refs.Empty() || len(refs.Tasks) != 1 || len(refs.Milestones) != 1 {
		t.Fatalf("unexpected task refs %+v", refs)
	}
	if !domain.ReferencesToTask(p, "b").Empty() {
		t.Fatalf("b is not referenced")
	}
	rr := domain.ReferencesToResource(p, "r1")
	if len(rr.Tasks) != 1 || len(rr.Teams) != 1 {
		t.Fatalf("unexpected resource refs %+v", rr)
	}
	stripped := p.Tasks[1].WithoutTaskRef("a")
	if len(stripped.Dependencies) != 0 || len(p.Tasks[1].Dependencies) != 1 {
		t.Fatalf("strip must copy: %+v / %+v", stripped, p.Tasks[1])
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	p := domain.NewProject(fixedNow, "P")
	p.Tasks = []domain.Task{{ID: "a", AssignedTo: []string{"r"}}}
	c := p.Clone()
	c.Tasks[0].AssignedTo[0] = "x"
	c.Budget.Categories[0].Planned = 1
	if p.Tasks[0].AssignedTo[0] != "r" || p.Budget.Categories[0].Planned != 60000 {
		t.Fatalf("clone aliases original")
	}
}
