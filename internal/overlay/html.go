package overlay

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/overlay.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.New("overlay.html.tmpl").ParseFS(templateFS, "templates/overlay.html.tmpl"))

// RenderHTML produces the standalone overlay page for a browser source.
// All headline text is escaped by the template engine.
func RenderHTML(r Rendered) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render overlay html: %w", err)
	}
	return buf.Bytes(), nil
}
