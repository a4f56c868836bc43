package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type timetableSourceStub struct{}

func (timetableSourceStub) GetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, error) {
	week := make(dto.WeeklySchedule)
	for _, day := range models.GenerationWeekdays() {
		week[day] = nil
	}
	room := "R-101"
	week[models.Monday] = []models.AssignmentView{
		{
			ID:            "a1",
			ClassID:       classID,
			ClassName:     "X IPA 1",
			SubjectName:   "Matematika",
			TeacherName:   "Siti Aminah",
			DayOfWeek:     models.Monday,
			SlotName:      "Jam 1",
			SlotSequence:  1,
			SlotStartTime: "07:00",
			SlotEndTime:   "07:45",
			Room:          &room,
			SchoolYear:    schoolYear,
			Semester:      semester,
		},
	}
	return week, nil
}

type exportClassStub struct {
	missing bool
}

func (s exportClassStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if s.missing {
		return nil, appErrors.ErrNotFound
	}
	return &models.Class{ID: id, Name: "X IPA 1", Grade: 10, Track: "IPA"}, nil
}

func newExportServiceForTest(t *testing.T, classes exportClassStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(timetableSourceStub{}, classes, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceEnqueueRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportClassStub{})

	_, err := svc.Enqueue(context.Background(), dto.ExportTimetableRequest{
		ClassID:    "class-1",
		SchoolYear: "2025/2026",
		Semester:   "ODD",
		Format:     "xlsx",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceEnqueueRejectsMissingClass(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportClassStub{missing: true})

	_, err := svc.Enqueue(context.Background(), dto.ExportTimetableRequest{
		ClassID:    "missing",
		SchoolYear: "2025/2026",
		Semester:   "ODD",
		Format:     dto.ExportFormatCSV,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t, exportClassStub{})
	status := &dto.ExportJobStatus{JobID: "job-1", Status: dto.ExportStatusPending, Format: dto.ExportFormatCSV, ClassID: "class-1"}
	svc.jobs[status.JobID] = status

	err := svc.renderAndStore(context.Background(), exportJobPayload{
		JobID: "job-1",
		Request: dto.ExportTimetableRequest{
			ClassID:    "class-1",
			SchoolYear: "2025/2026",
			Semester:   "ODD",
			Format:     dto.ExportFormatCSV,
		},
	})
	require.NoError(t, err)

	final, err := svc.Status("job-1")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportStatusCompleted, final.Status)
	assert.Contains(t, final.DownloadURL, "/api/v1/exports/download/")
	require.NotNil(t, final.CompletedAt)

	info, err := os.Stat(store.Path(final.FileName))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t, exportClassStub{})
	status := &dto.ExportJobStatus{JobID: "job-2", Status: dto.ExportStatusPending, Format: dto.ExportFormatPDF, ClassID: "class-1"}
	svc.jobs[status.JobID] = status

	err := svc.renderAndStore(context.Background(), exportJobPayload{
		JobID: "job-2",
		Request: dto.ExportTimetableRequest{
			ClassID:    "class-1",
			SchoolYear: "2025/2026",
			Semester:   "EVEN",
			Format:     dto.ExportFormatPDF,
		},
	})
	require.NoError(t, err)

	final, err := svc.Status("job-2")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportStatusCompleted, final.Status)

	info, err := os.Stat(store.Path(final.FileName))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceDownloadTokenRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportClassStub{})
	status := &dto.ExportJobStatus{JobID: "job-3", Status: dto.ExportStatusPending, Format: dto.ExportFormatCSV, ClassID: "class-1"}
	svc.jobs[status.JobID] = status

	err := svc.renderAndStore(context.Background(), exportJobPayload{
		JobID: "job-3",
		Request: dto.ExportTimetableRequest{
			ClassID:    "class-1",
			SchoolYear: "2025/2026",
			Semester:   "ODD",
			Format:     dto.ExportFormatCSV,
		},
	})
	require.NoError(t, err)

	final, err := svc.Status("job-3")
	require.NoError(t, err)
	token := final.DownloadURL[len("/api/v1/exports/download/"):]

	jobID, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-3", jobID)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
