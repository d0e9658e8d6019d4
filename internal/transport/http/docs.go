package transporthttp

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Version}}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: {{.SpecURL}}, dom_id: "#docs", tryItOutEnabled: true});
</script>
</body>
</html>`))

// apiDocs serves the embedded OpenAPI document as YAML, as JSON and as an
// interactive page. Everything is rendered once at startup.
type apiDocs struct {
	yaml []byte
	json []byte
	page []byte
	etag string
}

func newAPIDocs() (*apiDocs, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(openAPIYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}

	var info struct {
		Info struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
	}
	if err := yaml.Unmarshal(openAPIYAML, &info); err != nil {
		return nil, err
	}
	var page bytes.Buffer
	err = docsPage.Execute(&page, map[string]string{
		"Title":   info.Info.Title,
		"Version": info.Info.Version,
		"SpecURL": "/docs/openapi.json",
	})
	if err != nil {
		return nil, fmt.Errorf("render docs page: %w", err)
	}

	sum := sha256.Sum256(openAPIYAML)
	return &apiDocs{
		yaml: openAPIYAML,
		json: asJSON,
		page: page.Bytes(),
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
	}, nil
}

func (d *apiDocs) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /docs", d.serve("text/html; charset=utf-8", d.page))
	mux.HandleFunc("GET /docs/openapi.yaml", d.serve("application/yaml", d.yaml))
	mux.HandleFunc("GET /docs/openapi.json", d.serve("application/json", d.json))
	mux.Handle("GET /swagger", http.RedirectHandler("/docs", http.StatusMovedPermanently))
}

func (d *apiDocs) serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", d.etag)
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Header.Get("If-None-Match") == d.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}
