package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/morezero/channel-gateway/pkg/registry"
)

// homePageTemplate is the HTML for the gateway home page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Name}} - Channel Gateway</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  {{if .Description}}<p class="meta">{{.Description}}</p>{{end}}

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Channels loaded: {{.Health.Channels}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Channels</h2>
    {{if not .List.Channels}}
    <p>No channels configured.</p>
    {{else}}
    <p class="meta">Showing {{len .List.Channels}} of {{.List.Pagination.Total}}.</p>
    <table>
      <thead>
        <tr><th>Channel</th><th>Getter</th><th>Setter</th></tr>
      </thead>
      <tbody>
        {{range .List.Channels}}
        <tr>
          <td><a href="/channels/{{.Channel}}">{{.Channel}}</a>{{if .Wildcard}} (pattern){{end}}</td>
          <td>{{.GetterType}}</td>
          <td>{{.SetterType}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

type homeData struct {
	Name        string
	Description string
	Health      *registry.HealthOutput
	List        *registry.ListOutput
}

// handleHome returns an HTTP handler for the gateway home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		data := homeData{
			Name:        s.reg.Name(),
			Description: s.reg.Description(),
			Health:      s.healthReport(),
			List:        s.reg.List(&registry.ListInput{Limit: 500}),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
