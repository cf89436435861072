package handlers

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/mailer"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/report"
)

func TestAttendanceHandler_Classes(t *testing.T) {
	deps := testDeps(t, "")
	handler := NewAttendanceHandler(testConfig(), deps)

	recorder := httptest.NewRecorder()
	handler.Classes(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/classes", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result ClassesResponse
	parseJSONResponse(t, recorder, &result)
	if len(result.Classes) != 1 || result.Classes[0] != "CSE-A" {
		t.Errorf("expected [CSE-A], got %v", result.Classes)
	}
	if result.Default != "CSE-A" {
		t.Errorf("expected default CSE-A, got %s", result.Default)
	}
}

func TestAttendanceHandler_Summary(t *testing.T) {
	handler := NewAttendanceHandler(testConfig(), testDeps(t, testAttendance))

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, attendanceRequest(http.MethodGet, "cse-a", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusOK)
	var s report.Summary
	parseJSONResponse(t, recorder, &s)

	if s.Class != "CSE-A" || s.Date != "2024-03-01" || s.NoData {
		t.Errorf("unexpected summary header %+v", s)
	}
	if len(s.Present) != 1 || s.Present[0] != "Alice" {
		t.Errorf("expected Alice present, got %v", s.Present)
	}
	if strings.Join(s.Absent, ",") != "Bob,Carol" {
		t.Errorf("expected Bob,Carol absent, got %v", s.Absent)
	}
	if len(s.Entries) != 1 || s.Entries[0].Login != "09:00:00" {
		t.Errorf("unexpected entries %+v", s.Entries)
	}
}

func TestAttendanceHandler_SummaryNoData(t *testing.T) {
	handler := NewAttendanceHandler(testConfig(), testDeps(t, ""))

	recorder := httptest.NewRecorder()
	handler.Summary(recorder, attendanceRequest(http.MethodGet, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusOK)
	var s report.Summary
	parseJSONResponse(t, recorder, &s)
	if !s.NoData {
		t.Error("expected no_data for a missing file")
	}
	if len(s.Absent) != 3 || len(s.Present) != 0 {
		t.Errorf("expected everyone absent, got present=%v absent=%v", s.Present, s.Absent)
	}
}

func TestAttendanceHandler_SummaryErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		class      string
		date       string
		wantStatus int
		wantError  string
	}{
		{"unknown roster", "", "CSE-B", "2024-03-01", http.StatusNotFound, "roster not found"},
		{"bad date", "", "CSE-A", "01.03.2024", http.StatusBadRequest, `invalid date "01.03.2024", expected YYYY-MM-DD`},
		{"bad class", "", "..", "2024-03-01", http.StatusBadRequest, `invalid class ".."`},
		{"malformed file", "Name,Date\nAlice,2024-03-01\n", "CSE-A", "2024-03-01", http.StatusUnprocessableEntity, "attendance file is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAttendanceHandler(testConfig(), testDeps(t, tt.content))

			recorder := httptest.NewRecorder()
			handler.Summary(recorder, attendanceRequest(http.MethodGet, tt.class, tt.date))

			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantError)
		})
	}
}

func TestAttendanceHandler_SummaryCacheFollowsFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}
	deps := testDeps(t, testAttendance)
	deps.Metrics = m
	handler := NewAttendanceHandler(testConfig(), deps)

	get := func() report.Summary {
		recorder := httptest.NewRecorder()
		handler.Summary(recorder, attendanceRequest(http.MethodGet, "CSE-A", "2024-03-01"))
		assertStatusCode(t, recorder, http.StatusOK)
		var s report.Summary
		parseJSONResponse(t, recorder, &s)
		return s
	}

	get()
	get()
	if got := testutil.ToFloat64(m.ReportLoadsTotal.WithLabelValues("cached")); got != 1 {
		t.Errorf("expected one cached load, got %v", got)
	}

	writeFile(t, deps.Files.Path("CSE-A", mustDate(t, "2024-03-01")), testAttendance+
		"Bob,2024-03-01,09:10:00,09:12:00,Present\n")

	s := get()
	if strings.Join(s.Present, ",") != "Alice,Bob" {
		t.Errorf("expected rewritten file to be reloaded, got present=%v", s.Present)
	}
	if got := testutil.ToFloat64(m.ReportLoadsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected two fresh loads, got %v", got)
	}
}

func TestAttendanceHandler_PDF(t *testing.T) {
	handler := NewAttendanceHandler(testConfig(), testDeps(t, testAttendance))

	recorder := httptest.NewRecorder()
	handler.PDF(recorder, attendanceRequest(http.MethodGet, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/pdf")
	if !bytes.HasPrefix(recorder.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected a PDF document")
	}
	want := `attachment; filename="Attendance_CSE-A_2024-03-01.pdf"`
	if got := recorder.Header().Get("Content-Disposition"); got != want {
		t.Errorf("expected disposition %s, got %s", want, got)
	}
	if got := recorder.Header().Get("Content-Length"); got != strconv.Itoa(recorder.Body.Len()) {
		t.Errorf("content length %s does not match body %d", got, recorder.Body.Len())
	}
}

func TestAttendanceHandler_PDFNoData(t *testing.T) {
	handler := NewAttendanceHandler(testConfig(), testDeps(t, ""))

	recorder := httptest.NewRecorder()
	handler.PDF(recorder, attendanceRequest(http.MethodGet, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no attendance data")
}

func TestAttendanceHandler_EmailWithoutMailer(t *testing.T) {
	handler := NewAttendanceHandler(testConfig(), testDeps(t, testAttendance))

	recorder := httptest.NewRecorder()
	handler.Email(recorder, attendanceRequest(http.MethodPost, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "mail is not configured")
}

func TestAttendanceHandler_EmailMissingFile(t *testing.T) {
	deps := testDeps(t, "")
	deps.Mailer = newTestMailer(t, config.SMTPConfig{})
	handler := NewAttendanceHandler(testConfig(), deps)

	recorder := httptest.NewRecorder()
	handler.Email(recorder, attendanceRequest(http.MethodPost, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "no attendance data")
}

func TestAttendanceHandler_EmailTransportError(t *testing.T) {
	// Reserve a port and close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	t.Setenv("SMTP_HOST", "127.0.0.1")
	t.Setenv("SMTP_PORT", strconv.Itoa(port))
	t.Setenv("SMTP_USERNAME", "faculty@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("MAIL_RECIPIENTS", "hod@example.com")
	cfg := config.Load()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}

	deps := testDeps(t, testAttendance)
	deps.Mailer = newTestMailer(t, cfg.SMTP)
	deps.Metrics = m
	handler := NewAttendanceHandler(testConfig(), deps)

	recorder := httptest.NewRecorder()
	handler.Email(recorder, attendanceRequest(http.MethodPost, "CSE-A", "2024-03-01"))

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "failed to send mail")
	if got := testutil.ToFloat64(m.MailsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected one failed mail, got %v", got)
	}
}

func newTestMailer(t *testing.T, smtp config.SMTPConfig) *mailer.Mailer {
	t.Helper()
	m, err := mailer.New(smtp, config.MailConfig{Subject: "Attendance {{.Class}}", Body: "Report for {{.Date}}"})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := parseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
