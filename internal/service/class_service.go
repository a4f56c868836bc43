package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Deactivate(ctx context.Context, id string) error
}

type classTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateClassRequest captures fields for creating classes.
type CreateClassRequest struct {
	Name              string  `json:"name" validate:"required"`
	Grade             int     `json:"grade" validate:"required,min=10,max=12"`
	Track             string  `json:"track" validate:"required"`
	Capacity          int     `json:"capacity" validate:"required,min=1,max=50"`
	Room              *string `json:"room,omitempty"`
	HomeroomTeacherID *string `json:"homeroomTeacherId,omitempty"`
}

// UpdateClassRequest modifies class fields.
type UpdateClassRequest struct {
	Name              string  `json:"name" validate:"required"`
	Grade             int     `json:"grade" validate:"required,min=10,max=12"`
	Track             string  `json:"track" validate:"required"`
	Capacity          int     `json:"capacity" validate:"required,min=1,max=50"`
	Room              *string `json:"room,omitempty"`
	HomeroomTeacherID *string `json:"homeroomTeacherId,omitempty"`
	Active            *bool   `json:"active,omitempty"`
}

// ClassService handles class domain workflows.
type ClassService struct {
	repo      classRepository
	teachers  classTeacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService creates a new class service.
func NewClassService(repo classRepository, teachers classTeacherReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns paginated classes with homeroom teacher names.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns class by identifier.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ClassService) ensureHomeroomTeacher(ctx context.Context, teacherID *string) error {
	if teacherID == nil || *teacherID == "" {
		return nil
	}
	if _, err := s.teachers.FindByID(ctx, *teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "homeroom teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homeroom teacher")
	}
	return nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := s.ensureHomeroomTeacher(ctx, req.HomeroomTeacherID); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:              strings.TrimSpace(req.Name),
		Grade:             req.Grade,
		Track:             strings.ToUpper(strings.TrimSpace(req.Track)),
		Capacity:          req.Capacity,
		Room:              req.Room,
		HomeroomTeacherID: req.HomeroomTeacherID,
		Active:            true,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies an existing class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.ensureHomeroomTeacher(ctx, req.HomeroomTeacherID); err != nil {
		return nil, err
	}

	class.Name = strings.TrimSpace(req.Name)
	class.Grade = req.Grade
	class.Track = strings.ToUpper(strings.TrimSpace(req.Track))
	class.Capacity = req.Capacity
	class.Room = req.Room
	class.HomeroomTeacherID = req.HomeroomTeacherID
	if req.Active != nil {
		class.Active = *req.Active
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Deactivate retires a class so generation runs skip it.
func (s *ClassService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class")
	}
	return nil
}
