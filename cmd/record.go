package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/capture/webcam"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/faceclient"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/mailer"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run a live attendance session",
	Long: `Run a live attendance session for one class.

Reference faces of the class roster are encoded first, then the camera is
polled once per tick. Every recognised student gets a login time on first
sighting and a logout time that follows the last sighting. Press Ctrl+C (or q
in the preview window) to stop; the session is then merged into
attendance/<class>/<date>.csv.

An unknown class falls back to the default class.

Examples:
  # Prompt for the class and use the first camera
  face-attendance record

  # Record CSE-B with a preview window and mail the file afterwards
  face-attendance record --class CSE-B --preview --email

  # Replay a directory of frames instead of a camera
  face-attendance record --class CSE-A --replay ./frames`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().String("class", "", "Class to record (prompted when empty)")
	recordCmd.Flags().Int("device", -1, "Camera index (defaults to CAMERA_DEVICE)")
	recordCmd.Flags().String("replay", "", "Read frames from this directory instead of a camera")
	recordCmd.Flags().Bool("loop", false, "Loop the replay directory until stopped")
	recordCmd.Flags().Bool("preview", false, "Show annotated frames in a window")
	recordCmd.Flags().Bool("email", false, "Mail the attendance file after the session")
	recordCmd.Flags().Duration("tick", 0, "Capture interval (defaults to CAPTURE_TICK)")
	recordCmd.Flags().Float64("tolerance", 0, "Maximum match distance (defaults to MATCH_TOLERANCE)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, roster.WithProgress(os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	input := mustGetString(cmd, "class")
	if input == "" {
		input = promptClass(out, cmd.InOrStdin(), a.cfg.Classes)
	}
	classID := resolveClass(out, input, &a.cfg.Classes)

	names, err := a.rosters.LoadRoster(classID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encoder := faceclient.New(a.cfg.Embedding.URL)
	fmt.Fprintf(out, "Encoding %d reference faces for %s...\n", len(names), classID)
	embeddings, err := a.rosters.LoadEmbeddings(ctx, classID, encoder)
	if err != nil {
		return err
	}
	for _, s := range embeddings.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", s.Name, s.Reason)
	}

	device, err := openDevice(cmd, a)
	if err != nil {
		return err
	}

	tick := mustGetDuration(cmd, "tick")
	if tick <= 0 {
		tick = a.cfg.Capture.Tick
	}
	tolerance := mustGetFloat64(cmd, "tolerance")
	if tolerance <= 0 {
		tolerance = a.cfg.Matcher.Tolerance
	}

	opts := session.Options{
		ClassID:    classID,
		Date:       time.Now(),
		Roster:     names,
		Embeddings: embeddings,
		Matcher:    facematch.NewMatcher(facematch.Metric(a.cfg.Matcher.Metric), tolerance),
		Encoder:    encoder,
		Device:     device,
		Files:      a.files,
		Tick:       tick,
		Scale:      a.cfg.Capture.Scale,
		Logger:     a.logger,
	}

	if mustGetBool(cmd, "preview") {
		preview := webcam.NewPreview("Face Attendance - " + classID)
		defer preview.Close()
		opts.OnFrame = previewObserver(preview, a)
	}

	sess, err := session.New(opts)
	if err != nil {
		device.Close()
		return err
	}

	fmt.Fprintf(out, "Recording attendance for %s (%d students). Press Ctrl+C to stop.\n", classID, len(names))
	runErr := sess.Run(ctx)

	res, stopErr := sess.Stop()
	if res != nil {
		printEntries(out, attendance.FromLedger(res.Date, res.Entries))
		printPartition(out, res.Present, res.Absent)
		if res.Path != "" {
			fmt.Fprintf(out, "\nAttendance saved to %s\n", res.Path)
			notifySession(a, res)
			if mustGetBool(cmd, "email") {
				mailAttendance(cmd.Context(), a, res)
			}
		}
	}

	if runErr != nil {
		return runErr
	}
	return stopErr
}

// resolveClass maps the class input to a configured class. An empty input
// selects the default silently, an unknown one with a warning.
func resolveClass(w io.Writer, input string, classes *config.ClassesConfig) string {
	classID, ok := classes.ResolveClass(input)
	if !ok && strings.TrimSpace(input) != "" {
		fmt.Fprintf(w, "Invalid class %q, using default %s\n", input, classID)
	}
	return classID
}

func openDevice(cmd *cobra.Command, a *app) (capture.Device, error) {
	if dir := mustGetString(cmd, "replay"); dir != "" {
		return capture.OpenDirectory(dir, mustGetBool(cmd, "loop"))
	}
	device := mustGetInt(cmd, "device")
	if device < 0 {
		device = a.cfg.Capture.Device
	}
	return webcam.Open(device)
}

// previewObserver draws detections onto each frame and stops the session
// when the operator presses q.
func previewObserver(p *webcam.Preview, a *app) session.FrameObserver {
	return func(frame capture.Frame, detections []session.Detection) bool {
		labels := make([]capture.Label, 0, len(detections))
		for _, d := range detections {
			text := "Unknown"
			if d.Matched {
				text = d.Name
			}
			labels = append(labels, capture.Label{Rect: d.Rect, Text: text})
		}
		quit, err := p.Show(capture.Annotate(frame.Image, labels))
		if err != nil {
			a.logger.Warn("failed to show preview", "error", err)
		}
		return quit
	}
}

func notifySession(a *app, res *session.Result) {
	notifier, err := notify.New(a.cfg.Notify.URLs, a.logger)
	if err != nil {
		a.logger.Warn("notifications disabled", "error", err)
		return
	}
	if !notifier.Enabled() {
		return
	}
	date := res.Date.Format(attendance.DateLayout)
	notifier.Notify("Attendance "+res.ClassID, notify.SessionSummary(res.ClassID, date, res.Present, res.Absent))
}

// mailAttendance sends the flushed file. Failures are reported, not returned:
// the attendance is already on disk.
func mailAttendance(ctx context.Context, a *app, res *session.Result) {
	if err := sendReport(ctx, a, res.ClassID, res.Date.Format(attendance.DateLayout), res.Path); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			fmt.Fprintln(os.Stderr, "Warning: e-mail skipped, SMTP is not configured")
			return
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to send e-mail: %v\n", err)
		return
	}
	fmt.Printf("Attendance e-mailed to %d recipient(s)\n", len(a.cfg.SMTP.Recipients))
}

func sendReport(ctx context.Context, a *app, classID, date, path string) error {
	m, err := mailer.New(a.cfg.SMTP, a.cfg.Mail)
	if err != nil {
		return err
	}
	msg, err := m.Compose(classID, date, path)
	if err != nil {
		return err
	}
	return m.Send(ctx, msg)
}
