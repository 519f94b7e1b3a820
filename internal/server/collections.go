package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mpproj/internal/domain"
	"mpproj/internal/engine"
)

// collectionRoutes binds one project collection to its engine operations.
type collectionRoutes[T domain.Entity] struct {
	plural   string
	singular string
	list     func(domain.Project) []T
	withID   func(T, string) T
	add      func(context.Context, T) (T, error)
	update   func(context.Context, T) (T, error)
	remove   func(context.Context, string) error
}

func registerCollections(api huma.API, e *engine.Engine) {
	registerCollection(api, e, collectionRoutes[domain.Task]{
		plural: "tasks", singular: "task",
		list:   func(p domain.Project) []domain.Task { return p.Tasks },
		withID: func(t domain.Task, id string) domain.Task { t.ID = id; return t },
		add:    e.AddTask, update: e.UpdateTask, remove: e.DeleteTask,
	})
	registerCollection(api, e, collectionRoutes[domain.Resource]{
		plural: "resources", singular: "resource",
		list:   func(p domain.Project) []domain.Resource { return p.Resources },
		withID: func(r domain.Resource, id string) domain.Resource { r.ID = id; return r },
		add:    e.AddResource, update: e.UpdateResource, remove: e.DeleteResource,
	})
	registerCollection(api, e, collectionRoutes[domain.Milestone]{
		plural: "milestones", singular: "milestone",
		list:   func(p domain.Project) []domain.Milestone { return p.Milestones },
		withID: func(m domain.Milestone, id string) domain.Milestone { m.ID = id; return m },
		add:    e.AddMilestone, update: e.UpdateMilestone, remove: e.DeleteMilestone,
	})
	registerCollection(api, e, collectionRoutes[domain.Team]{
		plural: "teams", singular: "team",
		list:   func(p domain.Project) []domain.Team { return p.Teams },
		withID: func(t domain.Team, id string) domain.Team { t.ID = id; return t },
		add:    e.AddTeam, update: e.UpdateTeam, remove: e.DeleteTeam,
	})
	registerCollection(api, e, collectionRoutes[domain.CostRecord]{
		plural: "costs", singular: "cost",
		list:   func(p domain.Project) []domain.CostRecord { return p.Costs },
		withID: func(c domain.CostRecord, id string) domain.CostRecord { c.ID = id; return c },
		add:    e.AddCost, update: e.UpdateCost, remove: e.DeleteCost,
	})
	registerCollection(api, e, collectionRoutes[domain.Risk]{
		plural: "risks", singular: "risk",
		list:   func(p domain.Project) []domain.Risk { return p.Risks },
		withID: func(r domain.Risk, id string) domain.Risk { r.ID = id; return r },
		add:    e.AddRisk, update: e.UpdateRisk, remove: e.DeleteRisk,
	})
}

type itemOutput[T any] struct {
	Body T `json:"body"`
}

// Request bodies are full records, as GET returns them. An empty id on add
// gets a generated one.
func registerCollection[T domain.Entity](api huma.API, e *engine.Engine, c collectionRoutes[T]) {
	huma.Register(api, huma.Operation{
		OperationID: "list-" + c.plural,
		Method:      http.MethodGet,
		Path:        "/current/" + c.plural,
		Summary:     "List " + c.plural + " of the active project",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []T `json:"body"`
	}, error) {
		p, err := e.Current()
		if err != nil {
			return nil, handleError(err)
		}
		items := c.list(p)
		if items == nil {
			items = []T{}
		}
		return &struct {
			Body []T `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-" + c.singular,
		Method:        http.MethodPost,
		Path:          "/current/" + c.plural,
		Summary:       "Add a " + c.singular + " to the active project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body T `json:"body"`
	}) (*itemOutput[T], error) {
		v := input.Body
		if v.Key() == "" {
			v = c.withID(v, domain.NewID())
		}
		out, err := c.add(ctx, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput[T]{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + c.singular,
		Method:      http.MethodPut,
		Path:        "/current/" + c.plural + "/{id}",
		Summary:     "Replace a " + c.singular + " of the active project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body T      `json:"body"`
	}) (*itemOutput[T], error) {
		out, err := c.update(ctx, c.withID(input.Body, input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &itemOutput[T]{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-" + c.singular,
		Method:        http.MethodDelete,
		Path:          "/current/" + c.plural + "/{id}",
		Summary:       "Delete a " + c.singular + " from the active project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := c.remove(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerBudget(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "update-budget",
		Method:      http.MethodPut,
		Path:        "/current/budget",
		Summary:     "Replace the active project's budget",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body domain.Budget `json:"body"`
	}) (*struct {
		Body domain.Budget `json:"body"`
	}, error) {
		b, err := e.UpdateBudget(ctx, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Budget `json:"body"`
		}{Body: b}, nil
	})
}
