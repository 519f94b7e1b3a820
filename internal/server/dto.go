package server

import (
	"mpproj/internal/domain"
	"mpproj/internal/engine"
	"mpproj/internal/lifecycle"
	"mpproj/internal/undo"
)

// Request payloads

type CreateProjectRequest struct {
	Name string `json:"name,omitempty" doc:"Empty picks a generated name"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
	Status      *string `json:"status,omitempty" enum:"planning,active,completed,on-hold"`
}

type AutosaveRequest struct {
	Active bool `json:"active"`
}

// Response payloads

type ProjectSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	UpdatedAt string `json:"updatedAt"`
	Active    bool   `json:"active"`
}

type StateResponse struct {
	State           lifecycle.State `json:"state"`
	ActiveProjectID string          `json:"activeProjectId,omitempty"`
	UndoDepth       int             `json:"undoDepth"`
	RedoDepth       int             `json:"redoDepth"`
	Policy          string          `json:"referencePolicy" enum:"reject,cascade,leave"`
}

type ChangeResponse struct {
	Applied  bool            `json:"applied"`
	Type     string          `json:"type,omitempty"`
	TargetID string          `json:"targetId,omitempty"`
	State    lifecycle.State `json:"state"`
}

type HistoryResponse struct {
	Undo []ChangeSummary `json:"undo"`
	Redo []ChangeSummary `json:"redo"`
}

type ChangeSummary struct {
	Type     string `json:"type"`
	TargetID string `json:"targetId"`
}

func projectSummary(p domain.Project, activeID string) ProjectSummary {
	return ProjectSummary{
		ID:        p.ID,
		Name:      p.Name,
		Status:    p.Status,
		Progress:  p.Progress,
		UpdatedAt: p.UpdatedAt,
		Active:    p.ID == activeID,
	}
}

func mapProjects(items []domain.Project, activeID string) []ProjectSummary {
	out := make([]ProjectSummary, 0, len(items))
	for _, p := range items {
		out = append(out, projectSummary(p, activeID))
	}
	return out
}

func activeID(e *engine.Engine) string {
	if p, err := e.Current(); err == nil {
		return p.ID
	}
	return ""
}

func stateResponse(e *engine.Engine) StateResponse {
	return StateResponse{
		State:           e.State(),
		ActiveProjectID: activeID(e),
		UndoDepth:       e.UndoLen(),
		RedoDepth:       e.RedoLen(),
		Policy:          e.Policy(),
	}
}

func changeResponse(c undo.Change, state lifecycle.State) ChangeResponse {
	if c == nil {
		return ChangeResponse{State: state}
	}
	return ChangeResponse{Applied: true, Type: c.Type(), TargetID: c.TargetID(), State: state}
}

func summarize(changes []undo.Change) []ChangeSummary {
	out := make([]ChangeSummary, 0, len(changes))
	for _, c := range changes {
		out = append(out, ChangeSummary{Type: c.Type(), TargetID: c.TargetID()})
	}
	return out
}

func (r UpdateProjectRequest) apply(p domain.Project) domain.Project {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.StartDate != nil {
		p.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		p.EndDate = *r.EndDate
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	return p
}
