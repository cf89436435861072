package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect, export and mail attendance files",
}

var reportShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a day's attendance and the present/absent partition",
	RunE:  runReportShow,
}

var reportPDFCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Export a day's attendance as Attendance_<class>_<date>.pdf",
	RunE:  runReportPDF,
}

var reportEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Mail a day's attendance file to the configured recipients",
	RunE:  runReportEmail,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportShowCmd, reportPDFCmd, reportEmailCmd)

	reportCmd.PersistentFlags().String("class", "", "Class (defaults to DEFAULT_CLASS)")
	reportCmd.PersistentFlags().String("date", "", "Day as YYYY-MM-DD (defaults to today)")

	reportShowCmd.Flags().Bool("json", false, "Output as JSON")
	reportPDFCmd.Flags().String("out", ".", "Directory to write the PDF into")
}

// reportArgs resolves --class and --date for the report subcommands.
func reportArgs(cmd *cobra.Command, a *app) (string, time.Time, error) {
	classID := config.NormalizeClass(mustGetString(cmd, "class"))
	if classID == "" {
		classID = a.cfg.Classes.Default
	}
	date, err := parseDay(mustGetString(cmd, "date"), time.Now())
	return classID, date, err
}

func runReportShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	classID, date, err := reportArgs(cmd, a)
	if err != nil {
		return err
	}

	s, err := report.NewReader(a.rosters, a.files).Reconcile(classID, date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(out, "Attendance for %s on %s\n\n", s.Class, s.Date)
	if s.NoData {
		fmt.Fprintln(out, "No attendance data for this day.")
	} else {
		printEntries(out, s.Entries)
	}
	printPartition(out, s.Present, s.Absent)
	return nil
}

func runReportPDF(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	classID, date, err := reportArgs(cmd, a)
	if err != nil {
		return err
	}

	s, err := report.NewReader(a.rosters, a.files).Reconcile(classID, date)
	if err != nil {
		return err
	}

	path, err := report.ExportPDF(s, mustGetString(cmd, "out"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "PDF exported to %s\n", path)
	return nil
}

func runReportEmail(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	classID, date, err := reportArgs(cmd, a)
	if err != nil {
		return err
	}

	if _, err := a.files.Stat(classID, date); err != nil {
		return err
	}

	day := date.Format(attendance.DateLayout)
	if err := sendReport(cmd.Context(), a, classID, day, a.files.Path(classID, date)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attendance for %s on %s e-mailed to %d recipient(s)\n",
		classID, day, len(a.cfg.SMTP.Recipients))
	return nil
}
