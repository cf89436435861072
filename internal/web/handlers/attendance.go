package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/mailer"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// AttendanceHandler serves the class and attendance API.
type AttendanceHandler struct {
	config    *config.Config
	rosters   *roster.Store
	files     *attendance.Store
	mailer    *mailer.Mailer
	metrics   *metrics.Metrics
	summaries *summaries
	logger    *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(cfg *config.Config, deps Deps) *AttendanceHandler {
	return newAttendanceHandler(cfg, deps, newSummaries(deps))
}

func newAttendanceHandler(cfg *config.Config, deps Deps, s *summaries) *AttendanceHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{
		config:    cfg,
		rosters:   deps.Rosters,
		files:     deps.Files,
		mailer:    deps.Mailer,
		metrics:   deps.Metrics,
		summaries: s,
		logger:    logger,
	}
}

// ClassesResponse lists the classes with a roster file.
type ClassesResponse struct {
	Classes []string `json:"classes"`
	Default string   `json:"default"`
}

// Classes handles GET /api/v1/classes
func (h *AttendanceHandler) Classes(w http.ResponseWriter, r *http.Request) {
	classes, err := h.rosters.ListClasses()
	if err != nil {
		h.logger.Error("failed to list classes", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}

	respondJSON(w, http.StatusOK, ClassesResponse{
		Classes: classes,
		Default: h.config.Classes.Default,
	})
}

// Summary handles GET /api/v1/classes/{class}/attendance/{date}
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	class, date, err := classAndDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.summaries.get(class, date)
	if err != nil {
		h.fail(w, err, "failed to load attendance", class)
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// PDF handles GET /api/v1/classes/{class}/attendance/{date}/pdf
func (h *AttendanceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	class, date, err := classAndDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.summaries.get(class, date)
	if err != nil {
		h.fail(w, err, "failed to load attendance", class)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, s); err != nil {
		h.fail(w, err, "failed to render pdf", class)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.PDFFileName(s)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// EmailResponse reports a sent report mail.
type EmailResponse struct {
	Status     string   `json:"status"`
	Recipients []string `json:"recipients"`
}

// Email handles POST /api/v1/classes/{class}/attendance/{date}/email
// and mails the day's CSV file to the configured recipients.
func (h *AttendanceHandler) Email(w http.ResponseWriter, r *http.Request) {
	class, date, err := classAndDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.mailer == nil {
		respondError(w, http.StatusServiceUnavailable, "mail is not configured")
		return
	}

	if _, err := h.files.Stat(class, date); err != nil {
		h.fail(w, err, "failed to stat attendance file", class)
		return
	}

	msg, err := h.mailer.Compose(class, date.Format(attendance.DateLayout), h.files.Path(class, date))
	if err != nil {
		h.fail(w, err, "failed to compose mail", class)
		return
	}

	err = h.mailer.Send(r.Context(), msg)
	h.metrics.ObserveMail(err)
	if err != nil {
		h.fail(w, err, "failed to send mail", class)
		return
	}

	h.logger.Info("attendance report mailed", "class", class, "date", date.Format(attendance.DateLayout), "recipients", len(msg.To))
	respondJSON(w, http.StatusOK, EmailResponse{Status: "sent", Recipients: msg.To})
}

func (h *AttendanceHandler) fail(w http.ResponseWriter, err error, msg, class string) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "class", class, "error", err)
	} else {
		h.logger.Debug(msg, "class", class, "error", err)
	}
	respondError(w, status, message)
}
