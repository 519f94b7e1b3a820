package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"mpproj/internal/archive"
	"mpproj/internal/domain"
	"mpproj/internal/engine"
	"mpproj/internal/export"
	"mpproj/internal/snapshot"
	"mpproj/internal/undo"
)

// fileOutput is a raw download.
type fileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func registerHistory(api huma.API, e *engine.Engine) {
	steps := map[string]func(context.Context) (undo.Change, error){
		"undo": e.Undo,
		"redo": e.Redo,
	}
	for name, step := range steps {
		name, step := name, step
		huma.Register(api, huma.Operation{
			OperationID: name,
			Method:      http.MethodPost,
			Path:        "/" + name,
			Summary:     "Apply " + name + " to the active project",
			Errors:      []int{http.StatusConflict},
		}, func(ctx context.Context, _ *struct{}) (*struct {
			Body ChangeResponse `json:"body"`
		}, error) {
			c, err := step(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body ChangeResponse `json:"body"`
			}{Body: changeResponse(c, e.State())}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Undo and redo stacks, oldest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		u, r := e.History()
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{Undo: summarize(u), Redo: summarize(r)}}, nil
	})
}

func registerDocuments(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "save",
		Method:      http.MethodPost,
		Path:        "/save",
		Summary:     "Snapshot the active project and clear its history",
		Errors:      []int{http.StatusConflict, http.StatusInsufficientStorage},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body snapshot.Entry `json:"body"`
	}, error) {
		entry, err := e.SaveProject(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body snapshot.Entry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export",
		Method:      http.MethodGet,
		Path:        "/export",
		Summary:     "Download the active project as a .mpproj archive",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*fileOutput, error) {
		p, err := e.Current()
		if err != nil {
			return nil, handleError(err)
		}
		var buf bytes.Buffer
		if err := e.ExportProjectFile(ctx, &buf); err != nil {
			return nil, handleError(err)
		}
		return &fileOutput{
			ContentType:        "application/zip",
			ContentDisposition: attachment(p.Name + archive.Extension),
			Body:               buf.Bytes(),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "open",
		Method:      http.MethodPost,
		Path:        "/open",
		Summary:     "Open a .mpproj archive sent as the request body",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		FilePath string `query:"path" doc:"Where the archive came from, kept in the recent list"`
		RawBody  []byte `contentType:"application/zip"`
	}) (*projectOutput, error) {
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "archive body required", nil)
		}
		p, err := e.OpenProjectFile(ctx, bytes.NewReader(input.RawBody), int64(len(input.RawBody)), input.FilePath)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})
}

func registerSnapshots(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/snapshots",
		Summary:     "List the snapshot catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []snapshot.Entry `json:"body"`
	}, error) {
		items, err := e.ListSnapshots(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []snapshot.Entry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "latest-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshots/latest",
		Summary:     "Newest snapshot entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body snapshot.Entry `json:"body"`
	}, error) {
		latest, err := e.LatestSnapshot(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if latest == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no snapshots", nil)
		}
		return &struct {
			Body snapshot.Entry `json:"body"`
		}{Body: *latest}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-snapshot",
		Method:      http.MethodPost,
		Path:        "/snapshots/{name}/restore",
		Summary:     "Make the project stored in a snapshot active",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*projectOutput, error) {
		p, err := e.RestoreSnapshot(ctx, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-snapshot",
		Method:        http.MethodDelete,
		Path:          "/snapshots/{name}",
		Summary:       "Delete a snapshot and its catalog entry",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct{}, error) {
		if err := e.RemoveSnapshot(ctx, input.Name); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerReports(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "export-csv",
		Method:      http.MethodGet,
		Path:        "/current/csv/{kind}",
		Summary:     "Download a collection of the active project as CSV",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Kind string `path:"kind" enum:"costs,risks,tasks"`
	}) (*fileOutput, error) {
		kind, err := export.ParseKind(input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.Current()
		if err != nil {
			return nil, handleError(err)
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, p, kind); err != nil {
			return nil, handleError(err)
		}
		return &fileOutput{
			ContentType:        "text/csv; charset=utf-8",
			ContentDisposition: attachment(export.FileName(p.Name, kind)),
			Body:               buf.Bytes(),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/current/issues",
		Summary:     "Advisory data-integrity findings for the active project",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Issue `json:"body"`
	}, error) {
		issues, err := e.Issues()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Issue `json:"body"`
		}{Body: issues}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/current/metrics",
		Summary:     "Dashboard summary of the active project",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Metrics `json:"body"`
	}, error) {
		m, err := e.Metrics()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Metrics `json:"body"`
		}{Body: m}, nil
	})
}
