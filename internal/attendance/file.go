// Package attendance reads and writes the per-class daily attendance files
// stored as attendance/<ClassId>/<YYYY-MM-DD>.csv.
package attendance

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Column names
const (
	ColName   = "Name"
	ColDate   = "Date"
	ColLogin  = "Login Time"
	ColLogout = "Logout Time"
	ColStatus = "Status"
)

// Header is the column order written by Flush. Files without Status are still readable.
var Header = []string{ColName, ColDate, ColLogin, ColLogout, ColStatus}

var requiredColumns = []string{ColName, ColDate, ColLogin, ColLogout}

var (
	ErrNotFound    = errors.New("attendance file not found")
	ErrParse       = errors.New("malformed attendance file")
	ErrPersistence = errors.New("failed to persist attendance")
)

// ParseError describes why an attendance file could not be read. It matches ErrParse.
type ParseError struct {
	Path string
	Line int // 1-based, 0 when not tied to a line
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Entry is one row of an attendance file.
type Entry struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Login  string `json:"login_time"`
	Logout string `json:"logout_time"`
	Status string `json:"status"`
}

// FromLedger converts session entries into rows for the given day.
func FromLedger(date time.Time, entries []ledger.Entry) []Entry {
	rows := make([]Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Entry{
			Name:   e.Name,
			Date:   date.Format(DateLayout),
			Login:  e.Login.Format(TimeLayout),
			Logout: e.Logout.Format(TimeLayout),
			Status: e.Status,
		})
	}
	return rows
}

// Store locates attendance files below one directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the attendance directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns attendance/<classID>/<YYYY-MM-DD>.csv.
func (s *Store) Path(classID string, date time.Time) string {
	return filepath.Join(s.dir, classID, date.Format(DateLayout)+".csv")
}

// Load reads the rows of a day's file in file order.
func (s *Store) Load(classID string, date time.Time) ([]Entry, error) {
	t, err := readTable(s.Path(classID, date))
	if err != nil {
		return nil, err
	}
	return t.entries(), nil
}

// Stat returns the file info of a day's file, ErrNotFound when it is missing.
func (s *Store) Stat(classID string, date time.Time) (os.FileInfo, error) {
	path := s.Path(classID, date)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return info, err
}

// table is a parsed file that keeps the raw bytes of every record so
// untouched rows are written back exactly as read.
type table struct {
	header    []string
	rawHeader []byte // nil once the header changed
	cols      map[string]int
	rows      [][]string
	raw       [][]byte       // per row, nil once the row changed
	byName    map[string]int // folded name -> first row index
	crlf      bool           // the file ends its lines with \r\n
}

func newTable(header []string) *table {
	t := &table{header: header, cols: make(map[string]int), byName: make(map[string]int)}
	for i, h := range header {
		if _, ok := t.cols[h]; !ok {
			t.cols[h] = i
		}
	}
	return t
}

func (t *table) field(row []string, col string) string {
	if i, ok := t.cols[col]; ok && i < len(row) {
		return row[i]
	}
	return ""
}

func (t *table) entries() []Entry {
	out := make([]Entry, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, Entry{
			Name:   t.field(row, ColName),
			Date:   t.field(row, ColDate),
			Login:  t.field(row, ColLogin),
			Logout: t.field(row, ColLogout),
			Status: t.field(row, ColStatus),
		})
	}
	return out
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer f.Close()
	return parseTable(path, f)
}

func parseTable(path string, r io.Reader) (*table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return newTable(slices.Clone(Header)), nil
	}
	if err != nil {
		return nil, csvError(path, err)
	}

	t := newTable(header)
	offset := cr.InputOffset()
	t.rawHeader = data[:offset]
	t.crlf = bytes.HasSuffix(t.rawHeader, []byte("\r\n"))
	for _, col := range requiredColumns {
		if _, ok := t.cols[col]; !ok {
			return nil, &ParseError{Path: path, Line: 1, Msg: fmt.Sprintf("missing column %q", col)}
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(path, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) != len(header) {
			return nil, &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("expected %d fields, got %d", len(header), len(row))}
		}
		name := t.field(row, ColName)
		if name == "" {
			return nil, &ParseError{Path: path, Line: line, Msg: "empty name"}
		}
		key := facematch.FoldName(name)
		if _, ok := t.byName[key]; !ok {
			t.byName[key] = len(t.rows)
		}
		next := cr.InputOffset()
		t.rows = append(t.rows, row)
		t.raw = append(t.raw, data[offset:next])
		offset = next
	}
	return t, nil
}

func csvError(path string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Path: path, Line: pe.Line, Msg: pe.Err.Error()}
	}
	return &ParseError{Path: path, Msg: err.Error()}
}
