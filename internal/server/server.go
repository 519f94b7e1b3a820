package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mpproj/internal/archive"
	"mpproj/internal/engine"
	"mpproj/internal/events"
	"mpproj/internal/kv"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Log      zerolog.Logger
	// Events backs GET /events. It may be nil.
	Events *events.Writer
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"referenced"`
	Message string         `json:"message" example:"task 1 is referenced by 2: still referenced"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the document engine.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Log))
	router.Use(middleware.Recoverer)
	hcfg := huma.DefaultConfig("mpproj API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	e := cfg.Engine
	registerHealth(group)
	registerState(group, e)
	registerProjects(group, e)
	registerCollections(group, e)
	registerBudget(group, e)
	registerHistory(group, e)
	registerDocuments(group, e)
	registerSnapshots(group, e)
	registerReports(group, e)
	registerEvents(group, cfg.Events)
	registerDocs(router, api, basePath)

	return router, nil
}

// requestLogger logs one line per request, at warn for 4xx and error for
// 5xx.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = log.Error()
			case status >= 400:
				event = log.Warn()
			default:
				event = log.Info()
			}
			event.
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// errorCodes maps engine and storage errors onto the envelope. The first
// match wins.
var errorCodes = []struct {
	target error
	status int
	code   string
}{
	{engine.ErrNotFound, http.StatusNotFound, "not_found"},
	{engine.ErrSnapshotNotFound, http.StatusNotFound, "not_found"},
	{engine.ErrNoActiveProject, http.StatusConflict, "no_active_project"},
	{engine.ErrReferenced, http.StatusConflict, "referenced"},
	{engine.ErrStaleHistory, http.StatusConflict, "stale_history"},
	{engine.ErrExists, http.StatusConflict, "conflict"},
	{kv.ErrQuotaExceeded, http.StatusInsufficientStorage, "quota_exceeded"},
	{archive.ErrCorrupt, http.StatusBadRequest, "bad_archive"},
	{archive.ErrUnsupportedSchema, http.StatusBadRequest, "bad_archive"},
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, m := range errorCodes {
		if errors.Is(err, m.target) {
			return newAPIError(m.status, m.code, msg, nil)
		}
	}
	lowered := strings.ToLower(msg)
	for _, word := range []string{"invalid", "unknown", "required"} {
		if strings.Contains(lowered, word) {
			return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
		}
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerState(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/state",
		Summary:     "Document lifecycle state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StateResponse `json:"body"`
	}, error) {
		return &struct {
			Body StateResponse `json:"body"`
		}{Body: stateResponse(e)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-autosave",
		Method:      http.MethodPut,
		Path:        "/state/autosave",
		Summary:     "Turn autosave on or off",
	}, func(ctx context.Context, input *struct {
		Body AutosaveRequest `json:"body"`
	}) (*struct {
		Body StateResponse `json:"body"`
	}, error) {
		if _, err := e.SetAutosave(ctx, input.Body.Active); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StateResponse `json:"body"`
		}{Body: stateResponse(e)}, nil
	})

	for _, action := range []string{"close", "discard"} {
		action := action
		huma.Register(api, huma.Operation{
			OperationID: action + "-document",
			Method:      http.MethodPost,
			Path:        "/state/" + action,
			Summary:     "Apply the " + action + " lifecycle action",
		}, func(ctx context.Context, _ *struct{}) (*struct {
			Body StateResponse `json:"body"`
		}, error) {
			var err error
			if action == "close" {
				_, err = e.Close(ctx)
			} else {
				_, err = e.Discard(ctx)
			}
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body StateResponse `json:"body"`
			}{Body: stateResponse(e)}, nil
		})
	}
}

func registerEvents(api huma.API, w *events.Writer) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []events.Event `json:"body"`
	}, error) {
		items := []events.Event{}
		if w != nil {
			listed, err := w.List(ctx, input.ProjectID, normalizeLimit(input.Limit))
			if err != nil {
				return nil, handleError(err)
			}
			items = append(items, listed...)
		}
		return &struct {
			Body []events.Event `json:"body"`
		}{Body: items}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 500 {
		return 500
	}
	return in
}
