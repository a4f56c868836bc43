package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// PeriodSlotRepository provides persistence for period slots.
type PeriodSlotRepository struct {
	db *sqlx.DB
}

// NewPeriodSlotRepository constructs a PeriodSlotRepository.
func NewPeriodSlotRepository(db *sqlx.DB) *PeriodSlotRepository {
	return &PeriodSlotRepository{db: db}
}

// List returns period slots matching filters along with total count.
func (r *PeriodSlotRepository) List(ctx context.Context, filter models.PeriodSlotFilter) ([]models.PeriodSlot, int, error) {
	base := "FROM period_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.IsBreak != nil {
		conditions = append(conditions, fmt.Sprintf("is_break = $%d", len(args)+1))
		args = append(args, *filter.IsBreak)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"sequence":   true,
		"name":       true,
		"start_time": true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "sequence"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, name, sequence, start_time, end_time, duration_minutes, is_break, active, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)
	var slots []models.PeriodSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list period slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count period slots: %w", err)
	}

	return slots, total, nil
}

// ListTeaching returns every active, non-break slot ordered by sequence.
// This is the generator's period snapshot.
func (r *PeriodSlotRepository) ListTeaching(ctx context.Context) ([]models.PeriodSlot, error) {
	const query = `SELECT id, name, sequence, start_time, end_time, duration_minutes, is_break, active, created_at, updated_at FROM period_slots WHERE active = TRUE AND is_break = FALSE ORDER BY sequence ASC`
	var slots []models.PeriodSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list teaching period slots: %w", err)
	}
	return slots, nil
}

// FindByID loads a period slot by id.
func (r *PeriodSlotRepository) FindByID(ctx context.Context, id string) (*models.PeriodSlot, error) {
	const query = `SELECT id, name, sequence, start_time, end_time, duration_minutes, is_break, active, created_at, updated_at FROM period_slots WHERE id = $1`
	var slot models.PeriodSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ExistsBySequence checks sequence uniqueness, optionally excluding one record.
func (r *PeriodSlotRepository) ExistsBySequence(ctx context.Context, sequence int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM period_slots WHERE sequence = $1"
	args := []interface{}{sequence}
	if excludeID != "" {
		query += " AND id != $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check period slot sequence exists: %w", err)
	}
	return true, nil
}

// IsReferenced reports whether any assignment or availability record
// points at the slot. Referenced slots must not be deleted.
func (r *PeriodSlotRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM schedule_assignments WHERE period_slot_id = $1) OR EXISTS (SELECT 1 FROM teacher_availability WHERE period_slot_id = $1)`
	var referenced bool
	if err := r.db.GetContext(ctx, &referenced, query, id); err != nil {
		return false, fmt.Errorf("check period slot references: %w", err)
	}
	return referenced, nil
}

// Create stores a new period slot record.
func (r *PeriodSlotRepository) Create(ctx context.Context, slot *models.PeriodSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO period_slots (id, name, sequence, start_time, end_time, duration_minutes, is_break, active, created_at, updated_at) VALUES (:id, :name, :sequence, :start_time, :end_time, :duration_minutes, :is_break, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create period slot: %w", err)
	}
	return nil
}

// Update modifies a period slot record.
func (r *PeriodSlotRepository) Update(ctx context.Context, slot *models.PeriodSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE period_slots SET name = :name, sequence = :sequence, start_time = :start_time, end_time = :end_time, duration_minutes = :duration_minutes, is_break = :is_break, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update period slot: %w", err)
	}
	return nil
}

// Delete removes a period slot. Callers must verify the slot is
// unreferenced first.
func (r *PeriodSlotRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM period_slots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete period slot: %w", err)
	}
	return nil
}
