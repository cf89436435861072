package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/google/renameio"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// RegisterResult describes what a registration changed.
type RegisterResult struct {
	Name          string
	ImagePath     string // empty when no image was given
	AlreadyExists bool   // the roster already had the name and was left untouched
}

// RegisterStudent enrolls a student in a class. When image is non-empty it is
// stored as the reference image, replacing an older one. The roster file is
// created when missing and the name appended unless it is already listed
// (case-insensitive). When enc is non-nil the image must contain a face;
// otherwise nothing is written.
func (s *Store) RegisterStudent(ctx context.Context, classID, name string, image []byte, enc Encoder) (RegisterResult, error) {
	name = strings.TrimSpace(name)
	if err := checkName(name); err != nil {
		return RegisterResult{}, err
	}
	res := RegisterResult{Name: name}

	if len(image) > 0 && enc != nil {
		faces, err := enc.DetectFaces(ctx, image)
		if err != nil {
			return res, fmt.Errorf("failed to check reference image: %w", err)
		}
		if len(faces) == 0 {
			return res, ErrNoFaceInImage
		}
	}

	if len(image) > 0 {
		if err := os.MkdirAll(s.facesDir, 0o755); err != nil {
			return res, fmt.Errorf("failed to create faces directory: %w", err)
		}
		path := s.FacePath(name)
		if err := renameio.WriteFile(path, image, 0o644); err != nil {
			return res, fmt.Errorf("failed to save reference image: %w", err)
		}
		res.ImagePath = path
	}

	added, err := s.appendName(classID, name)
	if err != nil {
		return res, err
	}
	res.AlreadyExists = !added
	return res, nil
}

// checkName rejects names that cannot serve as both a roster line and a
// file name under the faces directory.
func checkName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsFunc(name, unicode.IsControl):
		return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
	}
	return nil
}

// appendName adds name to the roster unless present. Reports whether it was added.
func (s *Store) appendName(classID, name string) (bool, error) {
	path := s.RosterPath(classID)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read roster %s: %w", classID, err)
	}

	for line := range strings.Lines(string(data)) {
		if facematch.SameName(line, name) {
			return false, nil
		}
	}

	if err := os.MkdirAll(s.classesDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create classes directory: %w", err)
	}

	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteByte('\n')

	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, fmt.Errorf("failed to write roster %s: %w", classID, err)
	}
	return true, nil
}
