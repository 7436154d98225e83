package handlers

import (
	_ "embed"
	"html/template"
	"log/slog"
	"net/http"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/pkg/version"
)

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPISpec returns the embedded OpenAPI document.
func OpenAPISpec() []byte {
	return openAPISpec
}

// DocsHandler serves the API documentation and build information.
type DocsHandler struct {
	logger      *slog.Logger
	swaggerHTML *template.Template
}

// NewDocsHandler creates a new docs handler.
func NewDocsHandler(logger *slog.Logger) *DocsHandler {
	return &DocsHandler{
		logger:      logger,
		swaggerHTML: template.Must(template.New("swagger").Parse(swaggerUITemplate)),
	}
}

// ServeSwaggerUI serves the Swagger UI at /api/docs.
func (h *DocsHandler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct {
		SpecURL string
		Title   string
	}{
		SpecURL: "/api/docs/openapi.yaml",
		Title:   "MockTraffic API",
	}

	if err := h.swaggerHTML.Execute(w, data); err != nil {
		h.logger.Error("failed to render Swagger UI", "error", err)
	}
}

// ServeOpenAPISpec serves the OpenAPI document at /api/docs/openapi.yaml.
func (h *DocsHandler) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

// Version handles GET /version.
func (h *DocsHandler) Version(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, version.Info())
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        body { margin: 0; background: #fafafa; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "{{.SpecURL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                persistAuthorization: true,
                displayRequestDuration: true
            });
        };
    </script>
</body>
</html>`
