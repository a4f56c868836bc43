package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ClassRepository provides persistence for class groups.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching filters along with total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := "FROM classes c LEFT JOIN teachers t ON t.id = c.homeroom_teacher_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("c.grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Track != "" {
		conditions = append(conditions, fmt.Sprintf("c.track = $%d", len(args)+1))
		args = append(args, filter.Track)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "c.name",
		"grade":      "c.grade",
		"track":      "c.track",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.name"
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

	query := fmt.Sprintf("SELECT c.id, c.name, c.grade, c.track, c.capacity, c.room, c.homeroom_teacher_id, c.active, c.created_at, c.updated_at, t.full_name AS homeroom_teacher_name %s ORDER BY %s %s LIMIT %d OFFSET %d", base, column, order, size, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// ListActive returns every active class ordered by name. This is the
// generator's class snapshot; the order doubles as the per-class
// processing order.
func (r *ClassRepository) ListActive(ctx context.Context) ([]models.Class, error) {
	const query = `SELECT id, name, grade, track, capacity, room, homeroom_teacher_id, active, created_at, updated_at FROM classes WHERE active = TRUE ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list active classes: %w", err)
	}
	return classes, nil
}

// FindByID loads a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, grade, track, capacity, room, homeroom_teacher_id, active, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create stores a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, grade, track, capacity, room, homeroom_teacher_id, active, created_at, updated_at) VALUES (:id, :name, :grade, :track, :capacity, :room, :homeroom_teacher_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class record.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, grade = :grade, track = :track, capacity = :capacity, room = :room, homeroom_teacher_id = :homeroom_teacher_id, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Deactivate marks a class inactive.
func (r *ClassRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE classes SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class: %w", err)
	}
	return nil
}
