package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleAssignment, error)
	Update(ctx context.Context, assignment *models.ScheduleAssignment) error
	Delete(ctx context.Context, id string) error
	DeleteScope(ctx context.Context, schoolYear string, semester models.Semester) (int64, error)
	ListViewsByClass(ctx context.Context, classID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error)
	ListViewsByTeacher(ctx context.Context, teacherID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error)
	ExistsTeacherAt(ctx context.Context, teacherID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error)
	ExistsClassAt(ctx context.Context, classID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error)
	CountByScope(ctx context.Context, schoolYear string, semester models.Semester) (int, error)
	CountByWeekday(ctx context.Context, schoolYear string, semester models.Semester) ([]models.WeekdayCount, error)
	CountByClass(ctx context.Context, schoolYear string, semester models.Semester) ([]models.ClassCount, error)
	TeacherLoads(ctx context.Context, schoolYear string, semester models.Semester, limit int) ([]models.TeacherLoad, error)
}

type scheduleClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type scheduleTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type schedulePeriodReader interface {
	FindByID(ctx context.Context, id string) (*models.PeriodSlot, error)
}

// weeklyViewCache caches weekly schedule views per scope.
type weeklyViewCache interface {
	GetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, bool)
	SetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester, week dto.WeeklySchedule)
	GetTeacherWeek(ctx context.Context, teacherID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, bool)
	SetTeacherWeek(ctx context.Context, teacherID, schoolYear string, semester models.Semester, week dto.WeeklySchedule)
	InvalidateScope(ctx context.Context, schoolYear string, semester models.Semester)
}

// ScheduleService serves schedule views, statistics, and manual
// maintenance of individual assignments.
type ScheduleService struct {
	assignments scheduleAssignmentRepository
	classes     scheduleClassReader
	teachers    scheduleTeacherReader
	periods     schedulePeriodReader
	cache       weeklyViewCache
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduleService wires schedule query dependencies. cache may be
// nil when the view cache is disabled.
func NewScheduleService(
	assignments scheduleAssignmentRepository,
	classes scheduleClassReader,
	teachers scheduleTeacherReader,
	periods schedulePeriodReader,
	cache weeklyViewCache,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		assignments: assignments,
		classes:     classes,
		teachers:    teachers,
		periods:     periods,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns assignment views matching the filter with pagination
// metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, *models.Pagination, error) {
	views, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// groupByWeekday builds a weekly view. Every generation weekday is
// present even when it holds no assignments.
func groupByWeekday(views []models.AssignmentView) dto.WeeklySchedule {
	week := make(dto.WeeklySchedule, len(models.GenerationWeekdays()))
	for _, day := range models.GenerationWeekdays() {
		week[day] = []models.AssignmentView{}
	}
	for _, view := range views {
		week[view.DayOfWeek] = append(week[view.DayOfWeek], view)
	}
	return week
}

// GetClassWeek returns one class's timetable grouped by weekday.
func (s *ScheduleService) GetClassWeek(ctx context.Context, classID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, error) {
	if !semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be ODD or EVEN")
	}
	if s.cache != nil {
		if week, ok := s.cache.GetClassWeek(ctx, classID, schoolYear, semester); ok {
			return week, nil
		}
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	views, err := s.assignments.ListViewsByClass(ctx, classID, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class schedule")
	}
	week := groupByWeekday(views)
	if s.cache != nil {
		s.cache.SetClassWeek(ctx, classID, schoolYear, semester, week)
	}
	return week, nil
}

// GetTeacherWeek returns one teacher's timetable grouped by weekday.
func (s *ScheduleService) GetTeacherWeek(ctx context.Context, teacherID, schoolYear string, semester models.Semester) (dto.WeeklySchedule, error) {
	if !semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be ODD or EVEN")
	}
	if s.cache != nil {
		if week, ok := s.cache.GetTeacherWeek(ctx, teacherID, schoolYear, semester); ok {
			return week, nil
		}
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	views, err := s.assignments.ListViewsByTeacher(ctx, teacherID, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedule")
	}
	week := groupByWeekday(views)
	if s.cache != nil {
		s.cache.SetTeacherWeek(ctx, teacherID, schoolYear, semester, week)
	}
	return week, nil
}

// Statistics aggregates assignment counts for a scope.
func (s *ScheduleService) Statistics(ctx context.Context, schoolYear string, semester models.Semester) (*dto.ScheduleStatistics, error) {
	if !semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be ODD or EVEN")
	}
	total, err := s.assignments.CountByScope(ctx, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}
	weekdayCounts, err := s.assignments.CountByWeekday(ctx, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments by weekday")
	}
	classCounts, err := s.assignments.CountByClass(ctx, schoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments by class")
	}
	loads, err := s.assignments.TeacherLoads(ctx, schoolYear, semester, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher workloads")
	}

	byWeekday := make(map[models.Weekday]int, len(models.GenerationWeekdays()))
	for _, day := range models.GenerationWeekdays() {
		byWeekday[day] = 0
	}
	for _, count := range weekdayCounts {
		byWeekday[count.DayOfWeek] = count.Total
	}

	return &dto.ScheduleStatistics{
		TotalAssignments: total,
		ByWeekday:        byWeekday,
		ByClass:          classCounts,
		TeacherLoad:      loads,
	}, nil
}

// Clear deletes every assignment in a scope and returns the count.
func (s *ScheduleService) Clear(ctx context.Context, req dto.ClearScheduleRequest) (*dto.ClearScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clear schedule payload")
	}
	semester := models.Semester(req.Semester)
	deleted, err := s.assignments.DeleteScope(ctx, req.SchoolYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear schedule")
	}
	if s.cache != nil {
		s.cache.InvalidateScope(ctx, req.SchoolYear, semester)
	}
	s.logger.Info("schedule scope cleared",
		zap.String("schoolYear", req.SchoolYear),
		zap.String("semester", req.Semester),
		zap.Int64("deleted", deleted),
	)
	return &dto.ClearScheduleResult{DeletedCount: deleted}, nil
}

// Update applies a manual override to one assignment. The change is
// rejected when it would double-book the teacher or the class.
func (s *ScheduleService) Update(ctx context.Context, id string, req dto.UpdateAssignmentRequest) (*models.ScheduleAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment update payload")
	}
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if req.TeacherID != nil {
		if _, err := s.teachers.FindByID(ctx, *req.TeacherID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		assignment.TeacherID = *req.TeacherID
	}
	if req.PeriodSlotID != nil {
		if _, err := s.periods.FindByID(ctx, *req.PeriodSlotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
		}
		assignment.PeriodSlotID = *req.PeriodSlotID
	}
	if req.DayOfWeek != nil {
		day := models.Weekday(*req.DayOfWeek)
		if !day.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek is not a recognised weekday")
		}
		assignment.DayOfWeek = day
	}
	if req.Room != nil {
		assignment.Room = req.Room
	}

	teacherBusy, err := s.assignments.ExistsTeacherAt(ctx, assignment.TeacherID, assignment.DayOfWeek, assignment.PeriodSlotID, assignment.SchoolYear, assignment.Semester, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflict")
	}
	if teacherBusy {
		return nil, appErrors.Wrap(&models.AssignmentConflictError{
			Dimension: "TEACHER",
			Message:   "teacher already has an assignment at this day and slot",
		}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "teacher already booked at this slot")
	}
	classBusy, err := s.assignments.ExistsClassAt(ctx, assignment.ClassID, assignment.DayOfWeek, assignment.PeriodSlotID, assignment.SchoolYear, assignment.Semester, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class conflict")
	}
	if classBusy {
		return nil, appErrors.Wrap(&models.AssignmentConflictError{
			Dimension: "CLASS",
			Message:   "class already has an assignment at this day and slot",
		}, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "class already booked at this slot")
	}

	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	if s.cache != nil {
		s.cache.InvalidateScope(ctx, assignment.SchoolYear, assignment.Semester)
	}
	return assignment, nil
}

// Delete removes one assignment.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	if s.cache != nil {
		s.cache.InvalidateScope(ctx, assignment.SchoolYear, assignment.Semester)
	}
	return nil
}
