package domain

import "time"

// TimeLayout is the millisecond ISO-8601 form used for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is the calendar date form used for start, end and due dates.
const DateLayout = "2006-01-02"

// Timestamp formats t in UTC using TimeLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Date formats t as a calendar date in UTC.
func Date(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseTimestamp accepts TimeLayout and plain RFC3339 values.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartDate   string       `json:"startDate"`
	EndDate     string       `json:"endDate"`
	Status      string       `json:"status" enum:"planning,active,completed,on-hold"`
	Progress    int          `json:"progress"`
	Tasks       []Task       `json:"tasks"`
	Resources   []Resource   `json:"resources"`
	Milestones  []Milestone  `json:"milestones"`
	Teams       []Team       `json:"teams"`
	Costs       []CostRecord `json:"costs"`
	Risks       []Risk       `json:"risks"`
	Budget      Budget       `json:"budget"`
	CreatedAt   string       `json:"createdAt" format:"date-time"`
	UpdatedAt   string       `json:"updatedAt" format:"date-time"`
}

type Task struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	Duration     int             `json:"duration"`
	Progress     int             `json:"progress"`
	Status       string          `json:"status" enum:"not-started,in-progress,completed,delayed"`
	Priority     string          `json:"priority" enum:"low,medium,high,urgent"`
	AssignedTo   []string        `json:"assignedTo"`
	Dependencies []string        `json:"dependencies"`
	MilestoneID  string          `json:"milestoneId,omitempty"`
	IsMilestone  bool            `json:"isMilestone"`
	Notes        string          `json:"notes"`
	Attachments  []AttachmentRef `json:"attachments"`
	CreatedAt    string          `json:"createdAt" format:"date-time"`
	UpdatedAt    string          `json:"updatedAt" format:"date-time"`
}

type AttachmentRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	UploadedBy string `json:"uploadedBy"`
	UploadedAt string `json:"uploadedAt" format:"date-time"`
}

type Resource struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type" enum:"human,material,equipment"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	Skills       []string       `json:"skills,omitempty"`
	Cost         float64        `json:"cost"`
	Availability []Availability `json:"availability"`
	Utilization  float64        `json:"utilization"`
	TeamID       string         `json:"teamId,omitempty"`
	Avatar       string         `json:"avatar,omitempty"`
	CreatedAt    string         `json:"createdAt" format:"date-time"`
	UpdatedAt    string         `json:"updatedAt" format:"date-time"`
}

// Availability is a weekly window; DayOfWeek 0 is Sunday.
type Availability struct {
	DayOfWeek int    `json:"dayOfWeek" minimum:"0" maximum:"6"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type Milestone struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Status      string   `json:"status" enum:"upcoming,reached,missed"`
	TaskIDs     []string `json:"taskIds"`
	CreatedAt   string   `json:"createdAt" format:"date-time"`
	UpdatedAt   string   `json:"updatedAt" format:"date-time"`
}

type Team struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"createdAt" format:"date-time"`
	UpdatedAt   string   `json:"updatedAt" format:"date-time"`
}

type CostRecord struct {
	ID        string  `json:"id"`
	TaskID    string  `json:"taskId"`
	Amount    float64 `json:"amount"`
	Category  string  `json:"category"`
	Currency  string  `json:"currency"`
	Date      string  `json:"date"`
	InvoiceID string  `json:"invoiceId"`
	Status    string  `json:"status" enum:"pending,paid"`
	Note      string  `json:"note"`
}

type Risk struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Probability string `json:"probability" enum:"low,medium,high"`
	Impact      string `json:"impact" enum:"low,medium,high"`
	Status      string `json:"status" enum:"identified,mitigated,occurred"`
	Mitigation  string `json:"mitigation"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"createdAt" format:"date-time"`
	UpdatedAt   string `json:"updatedAt" format:"date-time"`
}

type Budget struct {
	Total      float64          `json:"total"`
	Spent      float64          `json:"spent"`
	Remaining  float64          `json:"remaining"`
	Currency   string           `json:"currency"`
	Categories []BudgetCategory `json:"categories"`
}

type BudgetCategory struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Planned float64 `json:"planned"`
	Actual  float64 `json:"actual"`
}

// Entity is implemented by every record kept in a project collection.
type Entity interface {
	Task | Resource | Milestone | Team | CostRecord | Risk
	Key() string
}

func (t Task) Key() string       { return t.ID }
func (r Resource) Key() string   { return r.ID }
func (m Milestone) Key() string  { return m.ID }
func (t Team) Key() string       { return t.ID }
func (c CostRecord) Key() string { return c.ID }
func (r Risk) Key() string       { return r.ID }

// Clone returns a deep copy so callers can mutate collections without
// aliasing the original slices.
func (p Project) Clone() Project {
	out := p
	out.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		out.Tasks[i] = t.Clone()
	}
	out.Resources = make([]Resource, len(p.Resources))
	for i, r := range p.Resources {
		out.Resources[i] = r.Clone()
	}
	out.Milestones = make([]Milestone, len(p.Milestones))
	for i, m := range p.Milestones {
		out.Milestones[i] = m.Clone()
	}
	out.Teams = make([]Team, len(p.Teams))
	for i, t := range p.Teams {
		out.Teams[i] = t.Clone()
	}
	out.Costs = append([]CostRecord{}, p.Costs...)
	out.Risks = append([]Risk{}, p.Risks...)
	out.Budget = p.Budget.Clone()
	return out
}

func (t Task) Clone() Task {
	t.AssignedTo = cloneStrings(t.AssignedTo)
	t.Dependencies = cloneStrings(t.Dependencies)
	t.Attachments = append([]AttachmentRef{}, t.Attachments...)
	return t
}

func (r Resource) Clone() Resource {
	if r.Skills != nil {
		r.Skills = cloneStrings(r.Skills)
	}
	r.Availability = append([]Availability{}, r.Availability...)
	return r
}

func (m Milestone) Clone() Milestone {
	m.TaskIDs = cloneStrings(m.TaskIDs)
	return m
}

func (t Team) Clone() Team {
	t.Members = cloneStrings(t.Members)
	return t
}

func (b Budget) Clone() Budget {
	b.Categories = append([]BudgetCategory{}, b.Categories...)
	return b
}

// Normalize replaces nil collections with empty ones so JSON documents
// always carry arrays.
func (p Project) Normalize() Project {
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	for i := range p.Tasks {
		if p.Tasks[i].AssignedTo == nil {
			p.Tasks[i].AssignedTo = []string{}
		}
		if p.Tasks[i].Dependencies == nil {
			p.Tasks[i].Dependencies = []string{}
		}
		if p.Tasks[i].Attachments == nil {
			p.Tasks[i].Attachments = []AttachmentRef{}
		}
	}
	if p.Resources == nil {
		p.Resources = []Resource{}
	}
	for i := range p.Resources {
		if p.Resources[i].Availability == nil {
			p.Resources[i].Availability = []Availability{}
		}
	}
	if p.Milestones == nil {
		p.Milestones = []Milestone{}
	}
	for i := range p.Milestones {
		if p.Milestones[i].TaskIDs == nil {
			p.Milestones[i].TaskIDs = []string{}
		}
	}
	if p.Teams == nil {
		p.Teams = []Team{}
	}
	for i := range p.Teams {
		if p.Teams[i].Members == nil {
			p.Teams[i].Members = []string{}
		}
	}
	if p.Costs == nil {
		p.Costs = []CostRecord{}
	}
	if p.Risks == nil {
		p.Risks = []Risk{}
	}
	if p.Budget.Categories == nil {
		p.Budget.Categories = []BudgetCategory{}
	}
	return p
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
