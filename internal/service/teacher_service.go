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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	ExistsByNIP(ctx context.Context, nip string, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
	ListQualifications(ctx context.Context, teacherID string) ([]models.TeacherSubject, error)
	ReplaceQualifications(ctx context.Context, teacherID string, subjectIDs []string) error
}

type teacherSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// CreateTeacherRequest captures fields for registering teachers.
type CreateTeacherRequest struct {
	NIP      string  `json:"nip" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"fullName" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
}

// UpdateTeacherRequest modifies teacher fields.
type UpdateTeacherRequest struct {
	NIP      string  `json:"nip" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	FullName string  `json:"fullName" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// SetQualificationsRequest replaces a teacher's subject
// qualifications.
type SetQualificationsRequest struct {
	SubjectIDs []string `json:"subjectIds" validate:"required,min=1,dive,required"`
}

// TeacherService handles teacher domain workflows including subject
// qualifications.
type TeacherService struct {
	repo      teacherRepository
	subjects  teacherSubjectReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService creates a new teacher service.
func NewTeacherService(repo teacherRepository, subjects teacherSubjectReader, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns paginated teachers.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
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
	return teachers, pagination, nil
}

// Get returns teacher by identifier.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher ensuring NIP and email uniqueness.
func (s *TeacherService) Create(ctx context.Context, req CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.NIP = strings.TrimSpace(req.NIP)

	exists, err := s.repo.ExistsByNIP(ctx, req.NIP, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher NIP")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher NIP already registered")
	}
	exists, err = s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher email already registered")
	}

	teacher := &models.Teacher{
		NIP:      req.NIP,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Active:   true,
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	return teacher, nil
}

// Update modifies an existing teacher.
func (s *TeacherService) Update(ctx context.Context, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.NIP = strings.TrimSpace(req.NIP)

	exists, err := s.repo.ExistsByNIP(ctx, req.NIP, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher NIP")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher NIP already registered")
	}
	exists, err = s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "teacher email already registered")
	}

	teacher.NIP = req.NIP
	teacher.Email = req.Email
	teacher.FullName = req.FullName
	teacher.Phone = req.Phone
	if req.Active != nil {
		teacher.Active = *req.Active
	}

	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Deactivate retires a teacher so the selector skips them.
func (s *TeacherService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	return nil
}

// GetQualifications lists the subjects a teacher may teach.
func (s *TeacherService) GetQualifications(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	if _, err := s.repo.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	qualifications, err := s.repo.ListQualifications(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qualifications")
	}
	return qualifications, nil
}

// SetQualifications replaces a teacher's subject qualifications after
// verifying every subject exists.
func (s *TeacherService) SetQualifications(ctx context.Context, teacherID string, req SetQualificationsRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid qualifications payload")
	}
	if _, err := s.repo.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	seen := make(map[string]bool, len(req.SubjectIDs))
	unique := make([]string, 0, len(req.SubjectIDs))
	for _, subjectID := range req.SubjectIDs {
		if seen[subjectID] {
			continue
		}
		seen[subjectID] = true
		if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "subject "+subjectID+" not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}
		unique = append(unique, subjectID)
	}

	if err := s.repo.ReplaceQualifications(ctx, teacherID, unique); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace qualifications")
	}
	return nil
}
