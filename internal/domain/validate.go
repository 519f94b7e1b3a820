package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Issue is one advisory finding from Validate.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Message
}

// Validate reports data-integrity problems without rejecting anything.
func Validate(p Project) []Issue {
	var issues []Issue
	add := func(field, format string, args ...any) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	if strings.TrimSpace(p.Name) == "" {
		add("name", "project name must not be empty")
	}
	if p.StartDate == "" || p.EndDate == "" {
		add("dates", "project start and end dates are required")
	} else {
		start, errS := time.Parse(DateLayout, p.StartDate)
		end, errE := time.Parse(DateLayout, p.EndDate)
		switch {
		case errS != nil || errE != nil:
			add("dates", "project dates must be YYYY-MM-DD")
		case !start.Before(end):
			add("dates", "project end date must be after start date")
		}
	}
	known := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		known[t.ID] = true
	}
	for i, t := range p.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			add(field+".name", "task %d name must not be empty", i+1)
		}
		if t.Duration <= 0 {
			add(field+".duration", "task %q duration must be greater than 0", t.Name)
		}
		if t.Progress < 0 || t.Progress > 100 {
			add(field+".progress", "task %q progress must be between 0 and 100", t.Name)
		}
		for _, dep := range t.Dependencies {
			if !known[dep] {
				add(field+".dependencies", "task %q depends on missing task %s", t.Name, dep)
			}
		}
	}
	for _, cycle := range DependencyCycles(p.Tasks) {
		add("tasks.dependencies", "dependency cycle: %s", strings.Join(cycle, " -> "))
	}
	for i, r := range p.Resources {
		field := fmt.Sprintf("resources[%d]", i)
		if strings.TrimSpace(r.Name) == "" {
			add(field+".name", "resource %d name must not be empty", i+1)
		}
		if r.Cost < 0 {
			add(field+".cost", "resource %q cost must not be negative", r.Name)
		}
		if r.Utilization < 0 || r.Utilization > 100 {
			add(field+".utilization", "resource %q utilization must be between 0 and 100", r.Name)
		}
	}
	if p.Budget.Total <= 0 {
		add("budget.total", "total budget must be greater than 0")
	}
	if p.Budget.Spent < 0 {
		add("budget.spent", "spent budget must not be negative")
	}
	if p.Budget.Spent > p.Budget.Total {
		add("budget.spent", "spent budget must not exceed total")
	}
	return issues
}

// DependencyCycles returns each dependency cycle found among tasks, as task
// ids with the first id repeated at the end. Missing dependencies are ignored.
func DependencyCycles(tasks []Task) [][]string {
	deps := make(map[string][]string, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = t.Dependencies
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(tasks))
	var stack []string
	var cycles [][]string
	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if _, ok := deps[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle := append([]string{}, stack[i:]...)
						cycles = append(cycles, append(cycle, dep))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}
	for _, id := range ids {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}
