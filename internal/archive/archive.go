// Package archive reads and writes .mpproj project packages: a zip holding a
// manifest, the project header, one JSON document per collection and an
// attachments/ folder.
package archive

import (
	"errors"
	"runtime"
	"time"

	"mpproj/internal/domain"
)

const (
	// CurrentSchema is the schema_version written by this package.
	CurrentSchema = 2
	// FileVersion is the semver format marker kept for older readers.
	FileVersion        = "1.0.0"
	CreatedWithVersion = "1.0.0"
	Extension          = ".mpproj"
)

var (
	ErrCorrupt           = errors.New("corrupt project archive")
	ErrUnsupportedSchema = errors.New("unsupported archive schema")
)

// Document names inside the zip.
const (
	ManifestDoc   = "manifest.json"
	ProjectDoc    = "project.json"
	TasksDoc      = "tasks.json"
	ResourcesDoc  = "resources.json"
	MilestonesDoc = "milestones.json"
	TeamsDoc      = "teams.json"
	BudgetDoc     = "budget.json"
	CostsDoc      = "costs.json"
	RisksDoc      = "risklog.json"
	AttachmentDir = "attachments/"
)

type Manifest struct {
	ProjectUUID        string `json:"project_uuid"`
	SchemaVersion      int    `json:"schema_version"`
	FileVersion        string `json:"file_version"`
	CreatedPlatform    string `json:"created_platform" enum:"Windows,macOS,Linux,Web"`
	CreatedWithVersion string `json:"created_with_version"`
	CreatedAt          string `json:"created_at" format:"date-time"`
	UpdatedAt          string `json:"updated_at" format:"date-time"`
}

// Header is project.json: the project without its owned collections.
type Header struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Attachment is a binary file stored under attachments/.
type Attachment struct {
	Name string
	Data []byte
}

type Package struct {
	Manifest    Manifest
	Project     Header
	Tasks       []domain.Task
	Resources   []domain.Resource
	Milestones  []domain.Milestone
	Teams       []domain.Team
	Costs       []domain.CostRecord
	Risks       []domain.Risk
	Budget      domain.Budget
	Attachments []Attachment
}

// Platform names the host the way the manifest records it.
func Platform() string {
	switch runtime.GOOS {
	case "windows":
		return "Windows"
	case "darwin":
		return "macOS"
	case "js", "wasip1":
		return "Web"
	default:
		return "Linux"
	}
}

// New splits p into a package stamped at now. An empty platform uses
// Platform().
func New(p domain.Project, now time.Time, platform string) Package {
	if platform == "" {
		platform = Platform()
	}
	id := p.ID
	if id == "" {
		id = domain.NewID()
	}
	ts := domain.Timestamp(now)
	p = p.Clone().Normalize()
	return Package{
		Manifest: Manifest{
			ProjectUUID:        id,
			SchemaVersion:      CurrentSchema,
			FileVersion:        FileVersion,
			CreatedPlatform:    platform,
			CreatedWithVersion: CreatedWithVersion,
			CreatedAt:          ts,
			UpdatedAt:          ts,
		},
		Project: Header{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
			Status:      p.Status,
			Progress:    p.Progress,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		},
		Tasks:       p.Tasks,
		Resources:   p.Resources,
		Milestones:  p.Milestones,
		Teams:       p.Teams,
		Costs:       p.Costs,
		Risks:       p.Risks,
		Budget:      p.Budget,
		Attachments: []Attachment{},
	}
}

// Assemble rebuilds the project aggregate from the package documents.
func (pkg Package) Assemble() domain.Project {
	h := pkg.Project
	if h.ID == "" {
		h.ID = pkg.Manifest.ProjectUUID
	}
	p := domain.Project{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		StartDate:   h.StartDate,
		EndDate:     h.EndDate,
		Status:      h.Status,
		Progress:    h.Progress,
		Tasks:       pkg.Tasks,
		Resources:   pkg.Resources,
		Milestones:  pkg.Milestones,
		Teams:       pkg.Teams,
		Costs:       pkg.Costs,
		Risks:       pkg.Risks,
		Budget:      pkg.Budget,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
	return p.Clone().Normalize()
}

// DefaultBudget is what an archive without budget.json carries.
func DefaultBudget() domain.Budget {
	return domain.Budget{Currency: domain.DefaultCurrency, Categories: []domain.BudgetCategory{}}
}
