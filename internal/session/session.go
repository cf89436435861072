// Package session runs one live recognition session: it reads frames from a
// capture device, identifies faces against the class embeddings, records
// sightings in the ledger and flushes the ledger when stopped.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/faceclient"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// ErrNoEmbeddings is returned when no roster member has a usable reference face.
var ErrNoEmbeddings = errors.New("no usable face embeddings for class")

var errStopRequested = errors.New("stop requested")

const defaultTick = 100 * time.Millisecond

// Encoder detects faces in an encoded frame.
type Encoder interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]faceclient.Face, error)
}

// Flusher persists the session rows of one day.
type Flusher interface {
	Flush(classID string, date time.Time, rows []attendance.Entry) (string, error)
	Stat(classID string, date time.Time) (os.FileInfo, error)
}

// Detection is one face found in a frame.
type Detection struct {
	Rect     image.Rectangle // full-frame pixel coordinates
	Name     string          // empty when not matched
	Distance float64
	Matched  bool
}

// FrameObserver is called after every processed frame. Returning true stops the session loop.
type FrameObserver func(frame capture.Frame, detections []Detection) bool

// Options configures a Session.
type Options struct {
	ClassID    string
	Date       time.Time // attendance day, defaults to today
	Roster     []string
	Embeddings *roster.Embeddings
	Matcher    *facematch.Matcher
	Encoder    Encoder
	Device     capture.Device
	Files      Flusher
	Tick       time.Duration
	Scale      float64 // frame downscale before detection, 1 disables
	Clock      func() time.Time
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	OnFrame    FrameObserver
}

// Result is what a stopped session reports.
type Result struct {
	ID      string
	ClassID string
	Date    time.Time
	Present []string
	Absent  []string
	Entries []ledger.Entry
	Path    string // attendance file, empty when the flush failed or nothing was written
}

// Session owns the state of one recognition session.
type Session struct {
	id         string
	classID    string
	date       time.Time
	embeddings *roster.Embeddings
	matcher    *facematch.Matcher
	encoder    Encoder
	device     capture.Device
	files      Flusher
	tick       time.Duration
	scale      float64
	clock      func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
	onFrame    FrameObserver

	ledger *ledger.Ledger
	seen   map[string]struct{}
}

// New validates the options and creates a session in the NotStarted state.
func New(opts Options) (*Session, error) {
	switch {
	case opts.ClassID == "":
		return nil, errors.New("class is required")
	case opts.Device == nil:
		return nil, errors.New("capture device is required")
	case opts.Encoder == nil:
		return nil, errors.New("face encoder is required")
	case opts.Files == nil:
		return nil, errors.New("attendance store is required")
	case opts.Embeddings == nil || opts.Embeddings.Len() == 0:
		return nil, fmt.Errorf("%w: %s", ErrNoEmbeddings, opts.ClassID)
	}

	s := &Session{
		id:         uuid.NewString(),
		classID:    opts.ClassID,
		embeddings: opts.Embeddings,
		matcher:    opts.Matcher,
		encoder:    opts.Encoder,
		device:     opts.Device,
		files:      opts.Files,
		tick:       opts.Tick,
		scale:      opts.Scale,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		onFrame:    opts.OnFrame,
		ledger:     ledger.New(opts.Roster),
		seen:       make(map[string]struct{}),
	}
	if s.matcher == nil {
		s.matcher = facematch.NewMatcher(facematch.MetricEuclidean, 0)
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	if s.scale <= 0 || s.scale > 1 {
		s.scale = 1
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.date = opts.Date
	if s.date.IsZero() {
		s.date = s.clock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With("session", s.id, "class", s.classID)

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the ledger state.
func (s *Session) State() ledger.State { return s.ledger.State() }

// Start begins recording sightings.
func (s *Session) Start() error {
	if err := s.ledger.Start(); err != nil {
		return err
	}
	s.logger.Info("session started",
		"date", s.date.Format(attendance.DateLayout),
		"known_faces", s.embeddings.Len(),
		"skipped", len(s.embeddings.Skipped),
	)
	return nil
}

// Run starts the session if needed and processes one frame per tick until ctx
// is cancelled, the frame observer asks to stop or the source is exhausted.
// Cancellation is only observed between ticks. A device failure ends Run with
// an error wrapping capture.ErrCaptureDevice.
func (s *Session) Run(ctx context.Context) error {
	switch s.ledger.State() {
	case ledger.NotStarted:
		if err := s.Start(); err != nil {
			return err
		}
	case ledger.Stopped:
		return fmt.Errorf("%w: session already stopped", ledger.ErrInvalidState)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for ctx.Err() == nil {
		if err := s.Tick(ctx); err != nil {
			switch {
			case errors.Is(err, errStopRequested):
				s.logger.Info("stop requested by operator")
				return nil
			case errors.Is(err, io.EOF):
				s.logger.Info("frame source exhausted")
				return nil
			case ctx.Err() != nil:
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	return nil
}

// Tick runs exactly one capture, detect and match cycle. Detection service
// errors are logged and the frame is dropped. Once a frame is read, its
// detection runs to completion even if ctx is cancelled.
func (s *Session) Tick(ctx context.Context) error {
	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started)) }()

	frame, err := s.device.Read(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, capture.ErrCaptureDevice) || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %w", capture.ErrCaptureDevice, err)
	}
	now := s.clock()

	data, err := capture.EncodeJPEG(capture.Downscale(frame.Image, s.scale))
	if err != nil {
		s.logger.Warn("failed to encode frame", "error", err)
		return nil
	}

	faces, err := s.encoder.DetectFaces(context.WithoutCancel(ctx), data)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("face detection failed, frame skipped", "error", err)
		return nil
	}

	detections := make([]Detection, 0, len(faces))
	for _, f := range faces {
		detections = append(detections, s.identify(f, frame.Image.Bounds(), now))
	}

	if s.onFrame != nil && s.onFrame(frame, detections) {
		return errStopRequested
	}
	return nil
}

func (s *Session) identify(f faceclient.Face, bounds image.Rectangle, now time.Time) Detection {
	det := Detection{Rect: facematch.BBoxRect(facematch.ScaleBBox(f.BBox, s.scale), bounds)}

	res, ok := s.matcher.Match(f.Embedding, s.embeddings.Vectors)
	det.Distance = res.Distance
	s.metrics.ObserveMatch(res.Distance, ok)
	if !ok {
		return det
	}

	name := s.embeddings.Names[res.Index]
	det.Name, det.Matched = name, true
	if !s.ledger.RecordSighting(name, now) {
		return det
	}
	s.metrics.ObserveSighting(s.classID)

	if _, seen := s.seen[name]; !seen {
		s.seen[name] = struct{}{}
		s.logger.Info("student recognized", "student", name, "distance", res.Distance, "at", now.Format(attendance.TimeLayout))
	} else {
		s.logger.Debug("student seen again", "student", name, "distance", res.Distance)
	}
	return det
}

// Stop ends the session, releases the device and flushes the ledger. The
// present/absent partition is returned even when the flush fails. A session
// without sightings creates no file for the day.
func (s *Session) Stop() (*Result, error) {
	entries, err := s.ledger.Stop()
	if err != nil {
		return nil, err
	}
	if err := s.device.Close(); err != nil {
		s.logger.Warn("failed to close capture device", "error", err)
	}

	present, absent := s.ledger.Finalize()
	res := &Result{
		ID:      s.id,
		ClassID: s.classID,
		Date:    s.date,
		Present: present,
		Absent:  absent,
		Entries: entries,
	}

	if len(entries) == 0 {
		if _, err := s.files.Stat(s.classID, s.date); errors.Is(err, attendance.ErrNotFound) {
			s.logger.Info("session stopped, nothing recorded", "absent", len(absent))
			return res, nil
		}
	}

	path, err := s.files.Flush(s.classID, s.date, attendance.FromLedger(s.date, entries))
	s.metrics.ObserveFlush(s.classID, err)
	if err != nil {
		s.logger.Error("failed to save attendance", "error", err)
		return res, err
	}
	res.Path = path

	s.logger.Info("session stopped", "present", len(present), "absent", len(absent), "file", path)
	return res, nil
}
