package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Entry is one scheduled lesson in a rendered timetable.
type Entry struct {
	Slot    string
	Time    string
	Subject string
	Teacher string
	Room    string
}

// DaySection groups one weekday's lessons in slot order.
type DaySection struct {
	Day     string
	Entries []Entry
}

// Timetable is a class week flattened for rendering.
type Timetable struct {
	Title string
	Days  []DaySection
}

var timetableColumns = []string{"Day", "Slot", "Time", "Subject", "Teacher", "Room"}

// CSVExporter renders a Timetable into CSV bytes, one lesson per row.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the timetable.
func (e *CSVExporter) Render(tt Timetable) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(timetableColumns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, day := range tt.Days {
		for _, entry := range day.Entries {
			record := []string{day.Day, entry.Slot, entry.Time, entry.Subject, entry.Teacher, entry.Room}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
