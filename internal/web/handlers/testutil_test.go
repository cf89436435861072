package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

const testAttendance = "Name,Date,Login Time,Logout Time,Status\n" +
	"Alice,2024-03-01,09:00:00,09:05:00,Present\n"

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Classes: config.ClassesConfig{Valid: []string{"CSE-A", "CSE-B"}, Default: "CSE-A"},
	}
}

// testDeps creates stores over a temp data dir with one roster "CSE-A" and,
// when attendanceContent is set, its file for 2024-03-01.
func testDeps(t *testing.T, attendanceContent string) Deps {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "classes", "CSE-A.txt"), "Alice\nBob\nCarol\n")
	if attendanceContent != "" {
		writeFile(t, filepath.Join(dir, "attendance", "CSE-A", "2024-03-01.csv"), attendanceContent)
	}

	return Deps{
		Rosters: roster.NewStore(filepath.Join(dir, "classes"), filepath.Join(dir, "faces")),
		Files:   attendance.NewStore(filepath.Join(dir, "attendance")),
		Logger:  logging.Discard(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// attendanceRequest builds a request for a class day endpoint
func attendanceRequest(method, class, date string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/classes/"+class+"/attendance/"+date, nil)
	return requestWithChiParams(req, map[string]string{"class": class, "date": date})
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
