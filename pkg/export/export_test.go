package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTimetable() Timetable {
	return Timetable{
		Title: "Timetable X IPA 1 2025/2026 ODD",
		Days: []DaySection{
			{
				Day: "MONDAY",
				Entries: []Entry{
					{Slot: "Jam 1", Time: "07:00-07:45", Subject: "Matematika", Teacher: "Siti Aminah", Room: "R-101"},
					{Slot: "Jam 2", Time: "07:45-08:30", Subject: "Fisika", Teacher: "Budi Santoso", Room: ""},
				},
			},
			{Day: "TUESDAY"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	rendered, err := NewCSVExporter().Render(sampleTimetable())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(rendered)).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"Day", "Slot", "Time", "Subject", "Teacher", "Room"}, records[0])
	assert.Equal(t, []string{"MONDAY", "Jam 1", "07:00-07:45", "Matematika", "Siti Aminah", "R-101"}, records[1])
	assert.Equal(t, "Fisika", records[2][3])
}

func TestCSVExporterRenderEmptyWeek(t *testing.T) {
	rendered, err := NewCSVExporter().Render(Timetable{Days: []DaySection{{Day: "MONDAY"}}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(rendered)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestPDFExporterRender(t *testing.T) {
	rendered, err := NewPDFExporter().Render(sampleTimetable())
	require.NoError(t, err)
	require.NotEmpty(t, rendered)
	assert.True(t, bytes.HasPrefix(rendered, []byte("%PDF")))
}
