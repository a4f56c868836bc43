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

type periodRepository interface {
	List(ctx context.Context, filter models.PeriodSlotFilter) ([]models.PeriodSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.PeriodSlot, error)
	ExistsBySequence(ctx context.Context, sequence int, excludeID string) (bool, error)
	IsReferenced(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, slot *models.PeriodSlot) error
	Update(ctx context.Context, slot *models.PeriodSlot) error
	Delete(ctx context.Context, id string) error
}

// CreatePeriodRequest captures fields for defining period slots.
type CreatePeriodRequest struct {
	Name            string `json:"name" validate:"required"`
	Sequence        int    `json:"sequence" validate:"required,min=1,max=20"`
	StartTime       string `json:"startTime" validate:"required"`
	EndTime         string `json:"endTime" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=5,max=180"`
	IsBreak         bool   `json:"isBreak"`
}

// UpdatePeriodRequest modifies period slot fields.
type UpdatePeriodRequest struct {
	Name            string `json:"name" validate:"required"`
	Sequence        int    `json:"sequence" validate:"required,min=1,max=20"`
	StartTime       string `json:"startTime" validate:"required"`
	EndTime         string `json:"endTime" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=5,max=180"`
	IsBreak         bool   `json:"isBreak"`
	Active          *bool  `json:"active,omitempty"`
}

// PeriodService manages the daily period slot grid.
type PeriodService struct {
	repo      periodRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService creates a new period service.
func NewPeriodService(repo periodRepository, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated period slots in sequence order.
func (s *PeriodService) List(ctx context.Context, filter models.PeriodSlotFilter) ([]models.PeriodSlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list period slots")
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
	return slots, pagination, nil
}

// Get returns period slot by identifier.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.PeriodSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
	}
	return slot, nil
}

// Create defines a new period slot ensuring sequence uniqueness.
func (s *PeriodService) Create(ctx context.Context, req CreatePeriodRequest) (*models.PeriodSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period slot payload")
	}

	exists, err := s.repo.ExistsBySequence(ctx, req.Sequence, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot sequence")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a period slot with this sequence already exists")
	}

	slot := &models.PeriodSlot{
		Name:            strings.TrimSpace(req.Name),
		Sequence:        req.Sequence,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		IsBreak:         req.IsBreak,
		Active:          true,
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period slot")
	}
	return slot, nil
}

// Update modifies an existing period slot.
func (s *PeriodService) Update(ctx context.Context, id string, req UpdatePeriodRequest) (*models.PeriodSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period slot payload")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
	}

	exists, err := s.repo.ExistsBySequence(ctx, req.Sequence, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot sequence")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a period slot with this sequence already exists")
	}

	slot.Name = strings.TrimSpace(req.Name)
	slot.Sequence = req.Sequence
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.DurationMinutes = req.DurationMinutes
	slot.IsBreak = req.IsBreak
	if req.Active != nil {
		slot.Active = *req.Active
	}

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period slot")
	}
	return slot, nil
}

// Delete removes a period slot when nothing references it.
func (s *PeriodService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "period slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period slot")
	}

	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot references")
	}
	if referenced {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "period slot is referenced by assignments or availability")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period slot")
	}
	return nil
}
