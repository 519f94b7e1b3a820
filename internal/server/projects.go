package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mpproj/internal/domain"
	"mpproj/internal/engine"
)

type projectOutput struct {
	Body domain.Project `json:"body"`
}

func registerProjects(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List stored projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectSummary `json:"body"`
	}, error) {
		return &struct {
			Body []ProjectSummary `json:"body"`
		}{Body: mapProjects(e.Projects(), activeID(e))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create an untitled project and make it active",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*projectOutput, error) {
		p, err := e.CreateProject(ctx, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "initialize-project",
		Method:      http.MethodPost,
		Path:        "/projects/initialize",
		Summary:     "Restore the latest snapshot, or create a project when there is none",
	}, func(ctx context.Context, _ *struct{}) (*projectOutput, error) {
		p, err := e.InitializeFromLatestSnapshot(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a stored project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*projectOutput, error) {
		p, err := e.Project(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}",
		Summary:     "Edit project header fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*projectOutput, error) {
		p, err := e.Project(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err = e.UpdateProject(ctx, input.Body.apply(p))
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete a stored project",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "use-project",
		Method:      http.MethodPut,
		Path:        "/projects/current/{id}",
		Summary:     "Make a stored project active",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*projectOutput, error) {
		p, err := e.UseProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current",
		Method:      http.MethodGet,
		Path:        "/current",
		Summary:     "Get the active project",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*projectOutput, error) {
		p, err := e.Current()
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-recent",
		Method:      http.MethodGet,
		Path:        "/recent",
		Summary:     "Recently opened projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.RecentProject `json:"body"`
	}, error) {
		items, err := e.RecentProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.RecentProject `json:"body"`
		}{Body: items}, nil
	})
}
