package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	DocumentName string
	ProjectName  string
	UpdatedBy    string
	UpdatedAt    time.Time
	Version      int
	Comments     []TemplateComment
	Versions     []TemplateVersion
}

// TemplateComment holds one comment for the template. BodyHTML is rendered
// raw so the mention spans keep their markup.
type TemplateComment struct {
	Author    string
	BodyHTML  template.HTML
	Page      int
	CreatedAt time.Time
}

// TemplateVersion holds one version-history row for the template
type TemplateVersion struct {
	Version    int
	UploadedBy string
	SizeBytes  int64
	Note       string
	CreatedAt  time.Time
}

// RenderReportHTML renders the comment report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.DocumentName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .comment .who { font-weight: bold; }
    .comment .when { color: #666; font-size: 0.85em; }
    .comment .mention { background: #d6e4ff; border-radius: 3px; padding: 0 2px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
  </style>
</head>
<body>
  <h1>{{.DocumentName}}</h1>
  <div class="meta">{{.ProjectName}} | v{{.Version}} | {{.UpdatedBy}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>

  <h2>Comments</h2>
  {{if .Comments}}
  {{range .Comments}}
  <div class="comment">
    <div><span class="who">{{.Author}}</span> <span class="when">{{.CreatedAt.Format "Jan 2, 2006 15:04"}}{{if .Page}} &middot; page {{.Page}}{{end}}</span></div>
    <div>{{.BodyHTML | safeHTML}}</div>
  </div>
  {{end}}
  {{else}}
  <p>No comments.</p>
  {{end}}

  {{if .Versions}}
  <h2>Version History</h2>
  <table>
    <tr><th>Version</th><th>Uploaded By</th><th>Size</th><th>Note</th><th>Date</th></tr>
    {{range .Versions}}
    <tr><td>v{{.Version}}</td><td>{{.UploadedBy}}</td><td>{{.SizeBytes}}</td><td>{{.Note}}</td><td>{{.CreatedAt.Format "Jan 2, 2006"}}</td></tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
