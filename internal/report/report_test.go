package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestReader(t *testing.T, rosterContent string) (*Reader, *attendance.Store, string) {
	t.Helper()
	dir := t.TempDir()
	rosters := roster.NewStore(filepath.Join(dir, "classes"), filepath.Join(dir, "faces"))
	if rosterContent != "" {
		if err := os.MkdirAll(filepath.Join(dir, "classes"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "classes", "CSE-A.txt"), []byte(rosterContent), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files := attendance.NewStore(filepath.Join(dir, "attendance"))
	return NewReader(rosters, files), files, dir
}

func writeAttendance(t *testing.T, files *attendance.Store, content string) {
	t.Helper()
	path := files.Path("CSE-A", day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReconcile(t *testing.T) {
	reader, files, _ := newTestReader(t, "Alice\nBob\nCarol\n")
	writeAttendance(t, files, "Name,Date,Login Time,Logout Time,Status\n"+
		"Bob,2024-03-01,09:02:00,09:02:00,Present\n"+
		"Mallory,2024-03-01,09:03:00,09:03:00,Present\n"+
		"Carol,2024-03-01,,,\n"+
		"Alice,2024-03-01,09:00:05,09:10:00,Present\n")

	s, err := reader.Reconcile("CSE-A", day)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if s.NoData {
		t.Error("expected data")
	}
	if !slices.Equal(s.Present, []string{"Alice", "Bob"}) {
		t.Errorf("present = %v", s.Present)
	}
	if !slices.Equal(s.Absent, []string{"Carol"}) {
		t.Errorf("absent = %v", s.Absent)
	}

	// rows of students outside the roster are not shown
	if len(s.Entries) != 3 {
		t.Fatalf("expected 3 roster rows, got %+v", s.Entries)
	}
	if s.Entries[0].Name != "Bob" || s.Entries[2].Name != "Alice" {
		t.Errorf("expected file order, got %+v", s.Entries)
	}
	if s.Total() != 3 {
		t.Errorf("expected total 3, got %d", s.Total())
	}
}

func TestReconcile_NoFile(t *testing.T) {
	reader, _, _ := newTestReader(t, "Alice\nBob\n")

	s, err := reader.Reconcile("CSE-A", day)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !s.NoData {
		t.Error("expected NoData")
	}
	if len(s.Present) != 0 || !slices.Equal(s.Absent, []string{"Alice", "Bob"}) {
		t.Errorf("expected everyone absent, got present=%v absent=%v", s.Present, s.Absent)
	}
}

func TestReconcile_RosterNotFound(t *testing.T) {
	reader, _, _ := newTestReader(t, "")

	_, err := reader.Reconcile("CSE-A", day)
	if !errors.Is(err, roster.ErrRosterNotFound) {
		t.Errorf("expected ErrRosterNotFound, got %v", err)
	}
}

func TestReconcile_ParseError(t *testing.T) {
	reader, files, _ := newTestReader(t, "Alice\n")
	writeAttendance(t, files, "Name,Login Time\nAlice,09:00:00\n")

	_, err := reader.Reconcile("CSE-A", day)
	if !errors.Is(err, attendance.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestReconcile_MatchesSessionFinalize(t *testing.T) {
	reader, files, _ := newTestReader(t, "Alice\nBob\nCarol\n")

	l := ledger.New([]string{"Alice", "Bob", "Carol"})
	_ = l.Start()
	l.RecordSighting("Alice", day.Add(9*time.Hour))
	l.RecordSighting("Alice", day.Add(9*time.Hour+5*time.Minute))
	entries, _ := l.Stop()

	path, err := files.Flush("CSE-A", day, attendance.FromLedger(day, entries))
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	expected := "Name,Date,Login Time,Logout Time,Status\nAlice,2024-03-01,09:00:00,09:05:00,Present\n"
	if string(data) != expected {
		t.Errorf("file content:\n%s\nwant:\n%s", data, expected)
	}

	present, absent := l.Finalize()
	s, err := reader.Reconcile("CSE-A", day)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !slices.Equal(s.Present, present) || !slices.Equal(s.Absent, absent) {
		t.Errorf("reconcile (%v, %v) differs from finalize (%v, %v)", s.Present, s.Absent, present, absent)
	}
	if !slices.Equal(absent, []string{"Bob", "Carol"}) {
		t.Errorf("absent = %v", absent)
	}
}

func sampleSummary() *Summary {
	return &Summary{
		Class: "CSE-A",
		Date:  "2024-03-01",
		Entries: []attendance.Entry{
			{Name: "Alice", Date: "2024-03-01", Login: "09:00:05", Logout: "09:10:00", Status: "Present"},
			{Name: "Jiří", Date: "2024-03-01", Login: "09:02:00", Logout: "09:02:00", Status: "Present"},
		},
		Present: []string{"Alice", "Jiří"},
		Absent:  []string{"Carol"},
	}
}

func TestExportPDF(t *testing.T) {
	dir := t.TempDir()

	path, err := ExportPDF(sampleSummary(), dir)
	if err != nil {
		t.Fatalf("ExportPDF failed: %v", err)
	}
	if filepath.Base(path) != "Attendance_CSE-A_2024-03-01.pdf" {
		t.Errorf("unexpected file name %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("expected PDF header, got %q", data[:min(len(data), 8)])
	}
}

func TestExportPDF_NoData(t *testing.T) {
	s := &Summary{Class: "CSE-A", Date: "2024-03-01", NoData: true, Absent: []string{"Alice"}}

	_, err := ExportPDF(s, t.TempDir())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRenderPieChart(t *testing.T) {
	html, err := RenderPieChart(sampleSummary(), "dark")
	if err != nil {
		t.Fatalf("RenderPieChart failed: %v", err)
	}

	out := string(html)
	for _, want := range []string{"Present", "Absent", colorPresent, colorAbsent} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in chart output", want)
		}
	}
}
