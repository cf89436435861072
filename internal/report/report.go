// Package report rebuilds present/absent partitions from a day's attendance
// file and renders them as PDF or chart.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no attendance data")

// Summary is the reconciled attendance of one class on one day.
type Summary struct {
	Class   string             `json:"class"`
	Date    string             `json:"date"`
	Entries []attendance.Entry `json:"entries"` // file rows of roster members, in file order
	Present []string           `json:"present"` // roster order
	Absent  []string           `json:"absent"`  // roster order
	NoData  bool               `json:"no_data"` // no file exists for the day
}

// Total returns the roster size.
func (s *Summary) Total() int {
	return len(s.Present) + len(s.Absent)
}

// Reader loads rosters and attendance files. It never writes.
type Reader struct {
	rosters *roster.Store
	files   *attendance.Store
}

// NewReader creates a reader over the given stores.
func NewReader(rosters *roster.Store, files *attendance.Store) *Reader {
	return &Reader{rosters: rosters, files: files}
}

// LoadAttendance returns the rows of a day's file. A missing file yields
// attendance.ErrNotFound, which callers treat as "no data".
func (r *Reader) LoadAttendance(classID string, date time.Time) ([]attendance.Entry, error) {
	return r.files.Load(classID, date)
}

// Reconcile partitions the class roster by the day's file. A student is present
// when the file has a row for them with a login time. A missing file is not an
// error: everyone is absent and NoData is set.
func (r *Reader) Reconcile(classID string, date time.Time) (*Summary, error) {
	names, err := r.rosters.LoadRoster(classID)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Class:   classID,
		Date:    date.Format(attendance.DateLayout),
		Entries: []attendance.Entry{},
	}

	entries, err := r.LoadAttendance(classID, date)
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		s.NoData = true
	case err != nil:
		return nil, fmt.Errorf("failed to load attendance for %s on %s: %w", classID, s.Date, err)
	}

	members := make(map[string]struct{}, len(names))
	for _, n := range names {
		members[facematch.FoldName(n)] = struct{}{}
	}

	loggedIn := make(map[string]struct{})
	for _, e := range entries {
		key := facematch.FoldName(e.Name)
		if _, ok := members[key]; !ok {
			continue
		}
		s.Entries = append(s.Entries, e)
		if e.Login != "" {
			loggedIn[key] = struct{}{}
		}
	}

	s.Present, s.Absent = []string{}, []string{}
	for _, n := range names {
		if _, ok := loggedIn[facematch.FoldName(n)]; ok {
			s.Present = append(s.Present, n)
		} else {
			s.Absent = append(s.Absent, n)
		}
	}
	return s, nil
}
