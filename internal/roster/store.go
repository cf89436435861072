// Package roster reads and maintains class rosters and the reference face
// images of enrolled students.
//
// Layout under the data directory:
//
//	classes/<ClassId>.txt      one student name per line
//	faces/<lower(name)>.jpg    reference image
package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-attendance/internal/faceclient"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	ErrRosterNotFound   = errors.New("roster not found")
	ErrMissingEmbedding = errors.New("missing embedding")
	ErrNoFaceInImage    = errors.New("no face detected in image")
	ErrInvalidName      = errors.New("invalid student name")
)

const (
	rosterExt = ".txt"
	faceExt   = ".jpg"
)

// Encoder detects faces in an encoded image and returns their embeddings.
type Encoder interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]faceclient.Face, error)
}

// Store gives access to rosters and reference images below one data directory.
type Store struct {
	classesDir string
	facesDir   string
	logger     *slog.Logger
	progress   io.Writer
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for skipped students.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithProgress renders a progress bar to w while embeddings are computed.
func WithProgress(w io.Writer) Option {
	return func(s *Store) { s.progress = w }
}

// NewStore creates a store for the given classes and faces directories.
func NewStore(classesDir, facesDir string, opts ...Option) *Store {
	s := &Store{
		classesDir: classesDir,
		facesDir:   facesDir,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RosterPath returns the roster file of a class.
func (s *Store) RosterPath(classID string) string {
	return filepath.Join(s.classesDir, classID+rosterExt)
}

// FacePath returns the reference image path of a student.
func (s *Store) FacePath(name string) string {
	return filepath.Join(s.facesDir, facematch.FaceFileStem(name)+faceExt)
}

// LoadRoster returns the ordered student names of a class. Lines are trimmed,
// blank lines skipped and repeated names (case-insensitive) kept once.
func (s *Store) LoadRoster(classID string) ([]string, error) {
	data, err := os.ReadFile(s.RosterPath(classID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRosterNotFound, classID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", classID, err)
	}
	return parseRoster(string(data)), nil
}

func parseRoster(content string) []string {
	names := []string{}
	seen := make(map[string]struct{})
	for line := range strings.Lines(content) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		key := facematch.FoldName(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ListClasses returns the sorted class identifiers that have a roster file.
func (s *Store) ListClasses() ([]string, error) {
	entries, err := os.ReadDir(s.classesDir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	classes := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != rosterExt {
			continue
		}
		classes = append(classes, strings.TrimSuffix(e.Name(), rosterExt))
	}
	sort.Strings(classes)
	return classes, nil
}

// Skipped records a student left out of matching and why.
type Skipped struct {
	Name   string
	Reason error // wraps ErrMissingEmbedding
}

// Embeddings holds the known faces of a class. Names[i] belongs to Vectors[i],
// both in roster order.
type Embeddings struct {
	Names   []string
	Vectors [][]float32
	Skipped []Skipped
}

// Len returns the number of usable embeddings.
func (e *Embeddings) Len() int {
	return len(e.Vectors)
}

// LoadEmbeddings computes one embedding per roster member from their reference
// image. Students without an image or without a detectable face are skipped and
// logged; they stay on the roster but can never be matched.
func (s *Store) LoadEmbeddings(ctx context.Context, classID string, enc Encoder) (*Embeddings, error) {
	names, err := s.LoadRoster(classID)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if s.progress != nil {
		bar = progressbar.NewOptions(len(names),
			progressbar.OptionSetWriter(s.progress),
			progressbar.OptionSetDescription("Encoding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	emb := &Embeddings{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := s.encode(ctx, name, enc)
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			s.logger.Warn("student skipped from matching", "class", classID, "student", name, "reason", err)
			emb.Skipped = append(emb.Skipped, Skipped{Name: name, Reason: err})
			continue
		}
		emb.Names = append(emb.Names, name)
		emb.Vectors = append(emb.Vectors, vec)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	return emb, nil
}

func (s *Store) encode(ctx context.Context, name string, enc Encoder) ([]float32, error) {
	if err := checkName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingEmbedding, err)
	}
	data, err := os.ReadFile(s.FacePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no reference image", ErrMissingEmbedding)
		}
		return nil, fmt.Errorf("%w: %w", ErrMissingEmbedding, err)
	}

	faces, err := enc.DetectFaces(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingEmbedding, err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no face in reference image", ErrMissingEmbedding)
	}
	return faces[0].Embedding, nil
}
