package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

// DashboardHandler renders the HTML dashboard page.
type DashboardHandler struct {
	config    *config.Config
	rosters   *roster.Store
	summaries *summaries
	page      *template.Template
	logger    *slog.Logger
	now       func() time.Time
}

type dashboardView struct {
	Classes       []string
	Class         string
	Date          string
	Theme         string
	ToggleTheme   string
	ChartAssetURL string
	Summary       *report.Summary
	Chart         template.HTML
	Error         string
}

// NewDashboardHandler creates a new dashboard handler. Pass the attendance
// handler so both share one summary cache.
func NewDashboardHandler(cfg *config.Config, deps Deps, api *AttendanceHandler) (*DashboardHandler, error) {
	page, err := static.Dashboard()
	if err != nil {
		return nil, err
	}
	return &DashboardHandler{
		config:    cfg,
		rosters:   deps.Rosters,
		summaries: api.summaries,
		page:      page,
		logger:    api.logger,
		now:       time.Now,
	}, nil
}

// Page handles GET /?class=&date=&theme=
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := dashboardView{
		Theme:         "light",
		ToggleTheme:   "dark",
		ChartAssetURL: report.ChartAssetURL,
		Date:          h.now().Format(attendance.DateLayout),
	}
	if q.Get("theme") == "dark" {
		view.Theme, view.ToggleTheme = "dark", "light"
	}
	status := http.StatusOK

	classes, err := h.rosters.ListClasses()
	if err != nil {
		h.logger.Error("failed to list classes", "error", err)
		view.Error = "failed to list classes"
		h.render(w, http.StatusInternalServerError, view)
		return
	}
	view.Classes = classes

	view.Class = h.pickClass(q.Get("class"), classes)
	if view.Class == "" {
		view.Error = "no class rosters found"
		h.render(w, status, view)
		return
	}

	date := h.now()
	if raw := q.Get("date"); raw != "" {
		view.Date = raw
		if date, err = parseDate(raw); err != nil {
			view.Error = err.Error()
			h.render(w, http.StatusBadRequest, view)
			return
		}
	}

	class, err := parseClass(view.Class)
	if err != nil {
		view.Error = err.Error()
		h.render(w, http.StatusBadRequest, view)
		return
	}

	s, err := h.summaries.get(class, date)
	if err != nil {
		status, view.Error = statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to load attendance", "class", class, "error", err)
		}
		h.render(w, status, view)
		return
	}
	view.Summary = s

	if s.Total() > 0 {
		chart, err := report.RenderPieChart(s, view.Theme)
		if err != nil {
			h.logger.Warn("failed to render chart", "class", class, "error", err)
		} else {
			view.Chart = chart
		}
	}

	h.render(w, status, view)
}

// pickClass keeps the requested class, else the configured default when it
// has a roster, else the first roster found.
func (h *DashboardHandler) pickClass(requested string, classes []string) string {
	if requested != "" {
		return config.NormalizeClass(requested)
	}
	if slices.Contains(classes, h.config.Classes.Default) {
		return h.config.Classes.Default
	}
	if len(classes) > 0 {
		return classes[0]
	}
	return ""
}

func (h *DashboardHandler) render(w http.ResponseWriter, status int, view dashboardView) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, view); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
