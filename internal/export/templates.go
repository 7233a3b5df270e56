package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var prdTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower":     strings.ToLower,
		"titleCase": titleCase,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	prdTemplate = template.Must(template.New("prd").Funcs(funcMap).Parse(prdTemplateHTML))
}

// TemplateData holds data for PRD template rendering
type TemplateData struct {
	Info     PRDInfo
	Sections []SectionInfo
	Comments []CommentInfo
}

// RenderPRDHTML renders the PRD template with provided data
func RenderPRDHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := prdTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const prdTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Info.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .summary { font-style: italic; color: #444; }
    .section-body { white-space: pre-wrap; }
    .comment { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    .comment .who { font-weight: bold; }
    .comment .state { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Info.Title}}</h1>
  {{if .Info.Summary}}<p class="summary">{{.Info.Summary}}</p>{{end}}
  <div class="meta">{{.Info.TeamName}}{{if .Info.Author}} | {{.Info.Author}}{{end}}{{if not .Info.UpdatedAt.IsZero}} | {{formatDate .Info.UpdatedAt "Jan 2, 2006"}}{{end}}</div>
  {{range .Sections}}
  <h2>{{titleCase .Name}}</h2>
  <div class="section-body">{{.Body}}</div>
  {{end}}
  {{if .Comments}}
  <h2>Comments</h2>
  {{range .Comments}}
  <div class="comment">
    <span class="who">{{.Author}}</span> on {{titleCase .Section}}
    <span class="state">{{if .Resolved}}resolved{{else}}open{{end}}</span>
    <p>{{.Content}}</p>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
