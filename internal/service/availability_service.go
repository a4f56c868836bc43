package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type availabilityRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error)
	Find(ctx context.Context, teacherID string, day models.Weekday, slotID string) (*models.TeacherAvailability, error)
	Upsert(ctx context.Context, record *models.TeacherAvailability) error
	UpsertBatch(ctx context.Context, records []models.TeacherAvailability) error
	Delete(ctx context.Context, id string) error
}

type availabilityTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type availabilityPeriodReader interface {
	FindByID(ctx context.Context, id string) (*models.PeriodSlot, error)
}

// AvailabilityEntry is one (day, slot) availability marker within a
// bulk update.
type AvailabilityEntry struct {
	DayOfWeek    string  `json:"dayOfWeek" validate:"required"`
	PeriodSlotID string  `json:"periodSlotId" validate:"required"`
	Available    bool    `json:"available"`
	Note         *string `json:"note,omitempty"`
}

// SetAvailabilityRequest replaces a set of availability markers for
// one teacher.
type SetAvailabilityRequest struct {
	Entries []AvailabilityEntry `json:"entries" validate:"required,min=1,dive"`
}

// ToggleAvailabilityRequest flips one (day, slot) marker.
type ToggleAvailabilityRequest struct {
	DayOfWeek    string  `json:"dayOfWeek" validate:"required"`
	PeriodSlotID string  `json:"periodSlotId" validate:"required"`
	Note         *string `json:"note,omitempty"`
}

// AvailabilityService maintains teacher availability markers. Slots
// without a record default to available.
type AvailabilityService struct {
	repo      availabilityRepository
	teachers  availabilityTeacherReader
	periods   availabilityPeriodReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService creates a new availability service.
func NewAvailabilityService(
	repo availabilityRepository,
	teachers availabilityTeacherReader,
	periods availabilityPeriodReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, teachers: teachers, periods: periods, validator: validate, logger: logger}
}

func (s *AvailabilityService) ensureTeacher(ctx context.Context, teacherID string) error {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

// GetByTeacher lists a teacher's availability markers with slot
// metadata.
func (s *AvailabilityService) GetByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error) {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return records, nil
}

// Set applies a batch of availability markers for one teacher. Every
// referenced period slot must exist and day names must be valid.
func (s *AvailabilityService) Set(ctx context.Context, teacherID string, req SetAvailabilityRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return err
	}

	records := make([]models.TeacherAvailability, 0, len(req.Entries))
	checkedSlots := make(map[string]bool)
	for _, entry := range req.Entries {
		day := models.Weekday(entry.DayOfWeek)
		if !day.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "dayOfWeek is not a recognised weekday")
		}
		if !checkedSlots[entry.PeriodSlotID] {
			if _, err := s.periods.FindByID(ctx, entry.PeriodSlotID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
			}
			checkedSlots[entry.PeriodSlotID] = true
		}
		records = append(records, models.TeacherAvailability{
			TeacherID:    teacherID,
			DayOfWeek:    day,
			PeriodSlotID: entry.PeriodSlotID,
			Available:    entry.Available,
			Note:         entry.Note,
		})
	}

	if err := s.repo.UpsertBatch(ctx, records); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	return nil
}

// Toggle flips one marker. A missing record counts as available, so
// the first toggle marks the slot unavailable.
func (s *AvailabilityService) Toggle(ctx context.Context, teacherID string, req ToggleAvailabilityRequest) (*models.TeacherAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	day := models.Weekday(req.DayOfWeek)
	if !day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek is not a recognised weekday")
	}
	if _, err := s.periods.FindByID(ctx, req.PeriodSlotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
	}

	record, err := s.repo.Find(ctx, teacherID, day, req.PeriodSlotID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
		}
		record = &models.TeacherAvailability{
			TeacherID:    teacherID,
			DayOfWeek:    day,
			PeriodSlotID: req.PeriodSlotID,
			Available:    true,
		}
	}

	record.Available = !record.Available
	record.Note = req.Note

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	return record, nil
}

// Remove deletes a marker, restoring the default-available state.
func (s *AvailabilityService) Remove(ctx context.Context, teacherID, recordID string) error {
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, recordID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability")
	}
	return nil
}
