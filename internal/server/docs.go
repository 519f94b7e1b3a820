package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

const docsPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>mpproj API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => SwaggerUIBundle({ url: '{{spec}}', dom_id: '#swagger-ui' });
    </script>
  </body>
</html>`

// registerDocs serves the Swagger UI at /docs and the OpenAPI document at
// basePath/openapi.json. The document is built on first request, after
// every operation has been registered.
func registerDocs(r chi.Router, api huma.API, basePath string) {
	specPath := path.Join("/", basePath, "openapi.json")
	page := []byte(strings.ReplaceAll(docsPage, "{{spec}}", specPath))
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})

	var (
		once    sync.Once
		spec    []byte
		specErr error
	)
	r.Get(specPath, func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			addErrorResponses(oas)
			spec, specErr = json.Marshal(oas)
		})
		if specErr != nil {
			http.Error(w, specErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

// addErrorResponses documents the error envelope as the default response of
// every operation.
func addErrorResponses(oas *huma.OpenAPI) {
	if oas == nil {
		return
	}
	envelope := &huma.Response{
		Description: "Error",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for _, item := range oas.Paths {
		ops := []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch}
		for _, op := range ops {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = envelope
		}
	}
}
