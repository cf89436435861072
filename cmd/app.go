package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// app bundles what every command needs: config, logger and the file stores.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	rosters *roster.Store
	files   *attendance.Store
}

// newApp loads configuration, applies the persistent flag overrides and sets
// up logging. Extra roster options are passed through to the store.
func newApp(cmd *cobra.Command, opts ...roster.Option) (*app, error) {
	cfg := config.Load()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Paths.DataDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, closer, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	opts = append([]roster.Option{roster.WithLogger(logger)}, opts...)
	return &app{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		rosters: roster.NewStore(cfg.Paths.ClassesDir(), cfg.Paths.FacesDir(), opts...),
		files:   attendance.NewStore(cfg.Paths.AttendanceDir()),
	}, nil
}

func (a *app) Close() {
	if err := a.closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
}

// parseDay parses a --date flag value. Empty means today.
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	date, err := time.ParseInLocation(attendance.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return date, nil
}

// promptClass asks the operator for a class on r. An empty answer or EOF
// returns the empty string.
func promptClass(w io.Writer, r io.Reader, classes config.ClassesConfig) string {
	fmt.Fprintf(w, "Enter class (%s) [%s]: ", strings.Join(classes.Valid, "/"), classes.Default)
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimSpace(line)
}

// printEntries writes attendance rows as an aligned table.
func printEntries(out io.Writer, entries []attendance.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No attendance entries.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE\tLOGIN\tLOGOUT\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Date, e.Login, e.Logout, e.Status)
	}
	w.Flush()
}

// printPartition writes the present and absent lists.
func printPartition(out io.Writer, present, absent []string) {
	fmt.Fprintf(out, "\nPresent (%d): %s\n", len(present), joinOrNone(present))
	fmt.Fprintf(out, "Absent (%d): %s\n", len(absent), joinOrNone(absent))
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
