package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCurrency     = "TWD"
	DefaultBudgetTotal  = 100000
	DefaultCostCategory = "Other"
	defaultProjectSpan  = 90 * 24 * time.Hour
	day                 = 24 * time.Hour
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// NewProject returns an empty planning project spanning the next 90 days.
// An empty name is replaced by a generated one.
func NewProject(now time.Time, name string) Project {
	if name == "" {
		name = fmt.Sprintf("New Project %d", now.UnixMilli())
	}
	ts := Timestamp(now)
	return Project{
		ID:          NewID(),
		Name:        name,
		Description: "Newly created project",
		StartDate:   Date(now),
		EndDate:     Date(now.Add(defaultProjectSpan)),
		Status:      "planning",
		Progress:    0,
		Tasks:       []Task{},
		Resources:   []Resource{},
		Milestones:  []Milestone{},
		Teams:       []Team{},
		Costs:       []CostRecord{},
		Risks:       []Risk{},
		Budget:      NewBudget(),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// NewBudget returns the default budget with its three planned categories.
func NewBudget() Budget {
	return Budget{
		Total:     DefaultBudgetTotal,
		Spent:     0,
		Remaining: DefaultBudgetTotal,
		Currency:  DefaultCurrency,
		Categories: []BudgetCategory{
			{ID: "1", Name: "Personnel", Planned: 60000, Actual: 0},
			{ID: "2", Name: "Equipment", Planned: 25000, Actual: 0},
			{ID: "3", Name: "Other", Planned: 15000, Actual: 0},
		},
	}
}

// NewTask builds a not-started task. Duration counts both end days and is
// never below one.
func NewTask(now time.Time, name, startDate, endDate, description string) Task {
	ts := Timestamp(now)
	return Task{
		ID:           NewID(),
		Name:         name,
		Description:  description,
		StartDate:    startDate,
		EndDate:      endDate,
		Duration:     TaskDuration(startDate, endDate),
		Progress:     0,
		Status:       "not-started",
		Priority:     "medium",
		AssignedTo:   []string{},
		Dependencies: []string{},
		IsMilestone:  false,
		Notes:        "",
		Attachments:  []AttachmentRef{},
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

// TaskDuration returns the inclusive day count between two dates, at least 1.
// Unparseable dates yield 1.
func TaskDuration(startDate, endDate string) int {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return 1
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return 1
	}
	d := int(math.Ceil(float64(end.Sub(start))/float64(day))) + 1
	if d < 1 {
		return 1
	}
	return d
}

// NewResource builds a resource. Human resources get a weekday 09:00-17:00
// availability and a higher default cost.
func NewResource(now time.Time, name, kind string) Resource {
	ts := Timestamp(now)
	r := Resource{
		ID:           NewID(),
		Name:         name,
		Type:         kind,
		Cost:         500,
		Availability: []Availability{},
		Utilization:  0,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if kind == "human" {
		r.Cost = 1000
		for d := 1; d <= 5; d++ {
			r.Availability = append(r.Availability, Availability{DayOfWeek: d, StartTime: "09:00", EndTime: "17:00"})
		}
	}
	return r
}

func NewMilestone(now time.Time, name, date, description string) Milestone {
	ts := Timestamp(now)
	return Milestone{
		ID:          NewID(),
		Name:        name,
		Description: description,
		Date:        date,
		Status:      "upcoming",
		TaskIDs:     []string{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func NewTeam(now time.Time, name, description string) Team {
	ts := Timestamp(now)
	return Team{
		ID:          NewID(),
		Name:        name,
		Description: description,
		Members:     []string{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// NewCostRecord builds a pending zero-amount cost dated today.
func NewCostRecord(now time.Time, taskID string) CostRecord {
	return CostRecord{
		ID:       NewID(),
		TaskID:   taskID,
		Amount:   0,
		Category: DefaultCostCategory,
		Currency: DefaultCurrency,
		Date:     Date(now),
		Status:   "pending",
	}
}

func NewRisk(now time.Time, name string) Risk {
	ts := Timestamp(now)
	return Risk{
		ID:          NewID(),
		Name:        name,
		Probability: "medium",
		Impact:      "medium",
		Status:      "identified",
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}
