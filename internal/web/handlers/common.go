package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/mailer"
	"github.com/kozaktomas/face-attendance/internal/report"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// classPattern keeps class identifiers inside the data directory.
var classPattern = regexp.MustCompile(`^[A-Z0-9_-]+$`)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// parseClass normalizes a class identifier taken from a URL or form.
func parseClass(raw string) (string, error) {
	class := config.NormalizeClass(raw)
	if !classPattern.MatchString(class) {
		return "", fmt.Errorf("invalid class %q", sanitizeForLog(raw))
	}
	return class, nil
}

// parseDate accepts YYYY-MM-DD in local time.
func parseDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(attendance.DateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", sanitizeForLog(raw))
	}
	return date, nil
}

// classAndDate reads the {class} and {date} route parameters.
func classAndDate(r *http.Request) (string, time.Time, error) {
	class, err := parseClass(chi.URLParam(r, "class"))
	if err != nil {
		return "", time.Time{}, err
	}
	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		return "", time.Time{}, err
	}
	return class, date, nil
}

// statusFor maps domain errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, roster.ErrRosterNotFound):
		return http.StatusNotFound, "roster not found"
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, report.ErrNoData):
		return http.StatusNotFound, "no attendance data"
	case errors.Is(err, attendance.ErrParse):
		return http.StatusUnprocessableEntity, "attendance file is malformed"
	case errors.Is(err, mailer.ErrNotConfigured):
		return http.StatusServiceUnavailable, "mail is not configured"
	case errors.Is(err, mailer.ErrTransport):
		return http.StatusBadGateway, "failed to send mail"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
