package host

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/morezero/console-bridge/pkg/session"
)

// homePageTemplate is the HTML for the host status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Console Bridge</title>
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
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Console Bridge</h1>
  <p class="meta">Host status and live panel sessions.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>Broker: {{if index .Health.Checks "broker"}}<span class="stat">OK</span>{{else}}<span class="status-unhealthy">Down</span>{{end}}</p>
    <p>Timestamp: {{.Health.Time}}</p>
  </section>

  <section>
    <h2>Sessions</h2>
    <p>Live sessions: <span class="stat">{{.Health.Sessions}}</span></p>
    {{if not .Sessions}}
    <p>No panels open.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Session</th><th>Panel</th><th>Singleton</th></tr>
      </thead>
      <tbody>
        {{range .Sessions}}
        <tr>
          <td>{{.ID}}</td>
          <td>{{.PanelType}}</td>
          <td>{{if .PanelType.Singleton}}yes{{else}}no{{end}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health   *healthReport
	Sessions []*session.Session
}

// handleHome returns an HTTP handler for the host status page.
func (h *Host) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health:   h.health(ctx),
			Sessions: h.manager.Sessions(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
