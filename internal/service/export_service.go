package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/storage"
)

type timetableSource interface {
	GetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, error)
}

type exportClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(tt export.Timetable) ([]byte, error)
}

type pdfRenderer interface {
	Render(tt export.Timetable) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix         string
	ResultTTL         time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

type exportJobPayload struct {
	JobID   string
	Request dto.ExportTimetableRequest
}

// ExportService renders class timetables to CSV or PDF in the
// background and hands out signed download URLs.
type ExportService struct {
	schedules timetableSource
	classes   exportClassReader
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	logger    *zap.Logger
	cfg       ExportConfig

	mu   sync.RWMutex
	jobs map[string]*dto.ExportJobStatus
}

// NewExportService constructs an ExportService and its worker queue.
// Start must be called before Enqueue.
func NewExportService(
	schedules timetableSource,
	classes exportClassReader,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
	csv csvRenderer,
	pdf pdfRenderer,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	s := &ExportService{
		schedules: schedules,
		classes:   classes,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		jobs:      make(map[string]*dto.ExportJobStatus),
	}
	s.queue = jobs.NewQueue("timetable-exports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue validates the request and schedules an export job.
func (s *ExportService) Enqueue(ctx context.Context, req dto.ExportTimetableRequest) (*dto.ExportJobStatus, error) {
	if req.Format != dto.ExportFormatCSV && req.Format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	semester := models.Semester(req.Semester)
	if !semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be ODD or EVEN")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	status := &dto.ExportJobStatus{
		JobID:      uuid.NewString(),
		Status:     dto.ExportStatusPending,
		Format:     req.Format,
		ClassID:    req.ClassID,
		EnqueuedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[status.JobID] = status
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{
		ID:      status.JobID,
		Type:    "timetable-export",
		Payload: exportJobPayload{JobID: status.JobID, Request: req},
	}); err != nil {
		s.setJobFailure(status.JobID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return status, nil
}

// Status reports the state of one export job.
func (s *ExportService) Status(jobID string) (*dto.ExportJobStatus, error) {
	s.mu.RLock()
	status, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	copied := *status
	return &copied, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured
// ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportJobPayload)
	if !ok {
		return fmt.Errorf("unexpected export payload type %T", job.Payload)
	}
	s.setJobRunning(payload.JobID)

	if err := s.renderAndStore(ctx, payload); err != nil {
		s.setJobFailure(payload.JobID, err)
		return err
	}
	return nil
}

func (s *ExportService) renderAndStore(ctx context.Context, payload exportJobPayload) error {
	req := payload.Request
	semester := models.Semester(req.Semester)

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		return fmt.Errorf("load class: %w", err)
	}
	week, err := s.schedules.GetClassWeek(ctx, req.ClassID, req.SchoolYear, semester)
	if err != nil {
		return fmt.Errorf("load class schedule: %w", err)
	}

	title := fmt.Sprintf("Timetable %s %s %s", class.Name, req.SchoolYear, semester)
	timetable := buildTimetable(week, title)

	var rendered []byte
	switch req.Format {
	case dto.ExportFormatCSV:
		rendered, err = s.csv.Render(timetable)
	case dto.ExportFormatPDF:
		rendered, err = s.pdf.Render(timetable)
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(class.Name), timestamp, req.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	token, _, err := s.signer.Generate(payload.JobID, relPath)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.mu.Lock()
	if status, ok := s.jobs[payload.JobID]; ok {
		now := time.Now().UTC()
		status.Status = dto.ExportStatusCompleted
		status.FileName = filename
		status.DownloadURL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
		status.CompletedAt = &now
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportService) setJobRunning(jobID string) {
	s.mu.Lock()
	if status, ok := s.jobs[jobID]; ok {
		status.Status = dto.ExportStatusRunning
	}
	s.mu.Unlock()
}

func (s *ExportService) setJobFailure(jobID string, err error) {
	s.mu.Lock()
	if status, ok := s.jobs[jobID]; ok {
		now := time.Now().UTC()
		status.Status = dto.ExportStatusFailed
		status.Error = err.Error()
		status.CompletedAt = &now
	}
	s.mu.Unlock()
}

func buildTimetable(week dto.WeeklySchedule, title string) export.Timetable {
	days := make([]export.DaySection, 0, len(models.GenerationWeekdays()))
	for _, day := range models.GenerationWeekdays() {
		section := export.DaySection{Day: string(day)}
		for _, view := range week[day] {
			room := ""
			if view.Room != nil {
				room = *view.Room
			}
			section.Entries = append(section.Entries, export.Entry{
				Slot:    view.SlotName,
				Time:    fmt.Sprintf("%s-%s", view.SlotStartTime, view.SlotEndTime),
				Subject: view.SubjectName,
				Teacher: view.TeacherName,
				Room:    room,
			})
		}
		days = append(days, section)
	}
	return export.Timetable{Title: title, Days: days}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
