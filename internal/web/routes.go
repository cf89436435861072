package web

import (
	"fmt"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() error {
	attendanceHandler := handlers.NewAttendanceHandler(s.config, s.deps)
	dashboardHandler, err := handlers.NewDashboardHandler(s.config, s.deps, attendanceHandler)
	if err != nil {
		return fmt.Errorf("failed to load dashboard template: %w", err)
	}

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/classes", attendanceHandler.Classes)

		r.Route("/classes/{class}/attendance/{date}", func(r chi.Router) {
			r.Get("/", attendanceHandler.Summary)
			r.Get("/pdf", attendanceHandler.PDF)
			r.Post("/email", attendanceHandler.Email)
		})
	})

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Get("/", dashboardHandler.Page)
	return nil
}
