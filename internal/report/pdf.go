package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// PDFFileName returns Attendance_<class>_<date>.pdf.
func PDFFileName(s *Summary) string {
	return fmt.Sprintf("Attendance_%s_%s.pdf", s.Class, s.Date)
}

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Name", 50},
	{"Date", 30},
	{"Login Time", 35},
	{"Logout Time", 35},
	{"Status", 30},
}

// WritePDF renders the summary table as a PDF document.
func WritePDF(w io.Writer, s *Summary) error {
	if len(s.Entries) == 0 {
		return ErrNoData
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Attendance Report: %s - %s", s.Class, s.Date), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Attendance Report: %s - %s", s.Class, s.Date)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Present: %d   Absent: %d", len(s.Present), len(s.Absent)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(200, 220, 255)
	for i, col := range pdfColumns {
		ln := 0
		if i == len(pdfColumns)-1 {
			ln = 1
		}
		pdf.CellFormat(col.width, 8, col.title, "1", ln, "C", true, 0, "")
	}

	for _, e := range s.Entries {
		values := []string{e.Name, e.Date, e.Login, e.Logout, e.Status}
		for i, v := range values {
			ln := 0
			if i == len(values)-1 {
				ln = 1
			}
			pdf.CellFormat(pdfColumns[i].width, 8, tr(v), "1", ln, "", false, 0, "")
		}
	}

	return pdf.Output(w)
}

// ExportPDF writes the report into dir and returns the file path.
func ExportPDF(s *Summary, dir string) (string, error) {
	if len(s.Entries) == 0 {
		return "", ErrNoData
	}

	path := filepath.Join(dir, PDFFileName(s))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WritePDF(f, s); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to render PDF: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
