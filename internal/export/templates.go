package export

import (
	"bytes"
	"html/template"
	"time"
)

var documentTemplate = template.Must(template.New("document").Parse(documentTemplateHTML))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	ContentHTML template.HTML
	Author      string
	ExportedAt  time.Time
}

// RenderDocumentHTML renders the export page shell with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .todo { margin: 0.25rem 0; }
    .row { display: flex; gap: 1rem; }
    .column { flex: 1; }
    .board { display: flex; gap: 1rem; align-items: flex-start; }
    .lane { background: #f5f5f5; padding: 0.75rem; border-radius: 4px; flex: 1; }
    .card { background: #fff; border: 1px solid #ddd; border-radius: 4px; padding: 0.5rem; margin: 0.5rem 0; }
    .suggestion { color: #555; font-style: italic; }
    blockquote { border-left: 3px solid #333; margin-left: 0; padding-left: 1rem; color: #444; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #ccc; padding: 0.4rem; }
    figure { margin: 1rem 0; }
    img { max-width: 100%; }
  </style>
</head>
<body>
  <div class="meta">{{if .Author}}{{.Author}} | {{end}}{{.ExportedAt.Format "Jan 2, 2006"}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
