package domain

import (
	"math"
	"time"
)

// CalculateProjectProgress is the rounded mean of task progress, 0 when
// there are no tasks. Halves round up.
func CalculateProjectProgress(tasks []Task) int {
	if len(tasks) == 0 {
		return 0
	}
	total := 0
	for _, t := range tasks {
		total += t.Progress
	}
	return roundHalfUp(float64(total) / float64(len(tasks)))
}

// BudgetRemaining projects total minus spent. The stored Remaining field is
// left as the caller wrote it.
func BudgetRemaining(b Budget) float64 {
	return b.Total - b.Spent
}

// BudgetUsage returns spent as a rounded percentage of total.
func BudgetUsage(b Budget) int {
	if b.Total == 0 {
		return 0
	}
	return roundHalfUp(b.Spent / b.Total * 100)
}

// AssignmentLoad counts task assignments per resource id.
func AssignmentLoad(p Project) map[string]int {
	load := make(map[string]int, len(p.Resources))
	for _, r := range p.Resources {
		load[r.ID] = 0
	}
	for _, t := range p.Tasks {
		for _, id := range t.AssignedTo {
			load[id]++
		}
	}
	return load
}

// Metrics is the dashboard summary of a project.
type Metrics struct {
	TaskCompletion      int         `json:"taskCompletion"`
	UpcomingMilestones  int         `json:"upcomingMilestones"`
	ResourceUtilization int         `json:"resourceUtilization"`
	BudgetPercentage    int         `json:"budgetPercentage"`
	BudgetStatus        string      `json:"budgetStatus" enum:"under,on-track,over"`
	Risks               RiskSummary `json:"risks"`
}

type RiskSummary struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// ComputeMetrics summarizes p as of now. Milestones count as upcoming when
// they fall within the next 30 days.
func ComputeMetrics(p Project, now time.Time) Metrics {
	var m Metrics
	if len(p.Tasks) > 0 {
		done := 0
		for _, t := range p.Tasks {
			if t.Status == "completed" {
				done++
			}
		}
		m.TaskCompletion = roundHalfUp(float64(done) / float64(len(p.Tasks)) * 100)
	}
	for _, ms := range p.Milestones {
		if ms.Status != "upcoming" {
			continue
		}
		date, err := time.Parse(DateLayout, ms.Date)
		if err != nil {
			continue
		}
		days := date.Sub(now).Hours() / 24
		if days > 0 && days <= 30 {
			m.UpcomingMilestones++
		}
	}
	if len(p.Resources) > 0 {
		var sum float64
		for _, r := range p.Resources {
			sum += r.Utilization
		}
		m.ResourceUtilization = roundHalfUp(sum / float64(len(p.Resources)))
	}
	m.BudgetPercentage = BudgetUsage(p.Budget)
	switch {
	case m.BudgetPercentage < 80:
		m.BudgetStatus = "under"
	case m.BudgetPercentage <= 100:
		m.BudgetStatus = "on-track"
	default:
		m.BudgetStatus = "over"
	}
	for _, r := range p.Risks {
		switch {
		case r.Impact == "high" || r.Probability == "high":
			m.Risks.High++
		case r.Impact == "low" && r.Probability == "low":
			m.Risks.Low++
		default:
			m.Risks.Medium++
		}
	}
	return m
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
