package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a Timetable into an A4 PDF with one shaded
// banner per weekday followed by that day's slot rows.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

var pdfColumnWidths = map[string]float64{
	"Slot":    25,
	"Time":    30,
	"Subject": 55,
	"Teacher": 50,
	"Room":    30,
}

var pdfColumnOrder = []string{"Slot", "Time", "Subject", "Teacher", "Room"}

// Render creates the PDF document. Days without lessons render a
// single muted placeholder row so the week stays visually complete.
func (e *PDFExporter) Render(tt Timetable) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if tt.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(tt.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for _, day := range tt.Days {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(190, 8, day.Day, "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "B", 9)
		for _, col := range pdfColumnOrder {
			pdf.CellFormat(pdfColumnWidths[col], 7, col, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		if len(day.Entries) == 0 {
			pdf.SetTextColor(128, 128, 128)
			pdf.CellFormat(190, 7, "no lessons scheduled", "1", 1, "C", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
		for _, entry := range day.Entries {
			values := []string{entry.Slot, entry.Time, entry.Subject, entry.Teacher, entry.Room}
			for i, col := range pdfColumnOrder {
				pdf.CellFormat(pdfColumnWidths[col], 7, values[i], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(3)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
