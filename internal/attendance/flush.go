package attendance

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Flush merges the session rows into the day's file and returns its path.
//
// Rows of students seen in this session replace their persisted rows in full;
// students new to the file are appended in session order and every other row
// is written back untouched. The file is replaced atomically, so a failed
// flush leaves the previous content in place. A malformed existing file is
// never overwritten; its *ParseError is returned instead.
func (s *Store) Flush(classID string, date time.Time, session []Entry) (string, error) {
	path := s.Path(classID, date)

	t, err := readTable(path)
	switch {
	case errors.Is(err, ErrNotFound):
		t = newTable(slices.Clone(Header))
	case err != nil:
		return "", err
	}

	t.ensureColumns(Header)
	seen := make(map[string]struct{}, len(session))
	for _, e := range session {
		seen[facematch.FoldName(e.Name)] = struct{}{}
		t.upsert(e)
	}

	if err := t.write(path, seen); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
	}
	return path, nil
}

// ensureColumns appends missing columns to the header and pads existing rows.
func (t *table) ensureColumns(cols []string) {
	for _, col := range cols {
		if _, ok := t.cols[col]; ok {
			continue
		}
		t.cols[col] = len(t.header)
		t.header = append(t.header, col)
		t.rawHeader = nil
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], "")
			t.raw[i] = nil
		}
	}
}

func (t *table) upsert(e Entry) {
	row := make([]string, len(t.header))
	row[t.cols[ColName]] = e.Name
	row[t.cols[ColDate]] = e.Date
	row[t.cols[ColLogin]] = e.Login
	row[t.cols[ColLogout]] = e.Logout
	row[t.cols[ColStatus]] = e.Status

	key := facematch.FoldName(e.Name)
	if i, ok := t.byName[key]; ok {
		t.rows[i] = row
		t.raw[i] = nil
		return
	}
	t.byName[key] = len(t.rows)
	t.rows = append(t.rows, row)
	t.raw = append(t.raw, nil)
}

// write replaces path with the table. Later duplicates of names in replaced
// are dropped so each student keeps a single row.
func (t *table) write(path string, replaced map[string]struct{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	pending, err := renameio.TempFile(dir, path)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	var buf bytes.Buffer
	if err := t.writeRecord(&buf, t.header, t.rawHeader); err != nil {
		return err
	}
	for i, row := range t.rows {
		key := facematch.FoldName(t.field(row, ColName))
		if _, ok := replaced[key]; ok && t.byName[key] != i {
			continue
		}
		if err := t.writeRecord(&buf, row, t.raw[i]); err != nil {
			return err
		}
	}
	if _, err := pending.Write(buf.Bytes()); err != nil {
		return err
	}

	if err := pending.Chmod(0o644); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// writeRecord copies raw when the record was not changed and encodes fields
// with the file's line terminator otherwise.
func (t *table) writeRecord(buf *bytes.Buffer, fields []string, raw []byte) error {
	if raw != nil {
		buf.Write(raw)
		if !bytes.HasSuffix(raw, []byte("\n")) {
			buf.WriteString(t.newline())
		}
		return nil
	}
	w := csv.NewWriter(buf)
	w.UseCRLF = t.crlf
	if err := w.Write(fields); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (t *table) newline() string {
	if t.crlf {
		return "\r\n"
	}
	return "\n"
}
