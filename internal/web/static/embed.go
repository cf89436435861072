package static

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dashboard parses the dashboard page template.
func Dashboard() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/dashboard.html")
}
