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

// TeacherRepository manages persistence for teachers and their subject
// qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT teacher_id FROM teacher_subjects WHERE subject_id = $%d)", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(nip) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "full_name"
	}
	allowedSorts := map[string]bool{
		"full_name":  true,
		"nip":        true,
		"email":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
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

	query := fmt.Sprintf("SELECT id, nip, email, full_name, phone, active, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}

	return teachers, total, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, nip, email, full_name, phone, active, created_at, updated_at FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByEmail checks email uniqueness, optionally excluding one record.
func (r *TeacherRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email, excludeID)
}

// ExistsByNIP checks staff number uniqueness, optionally excluding one record.
func (r *TeacherRepository) ExistsByNIP(ctx context.Context, nip, excludeID string) (bool, error) {
	return r.exists(ctx, "nip = $1", nip, excludeID)
}

func (r *TeacherRepository) exists(ctx context.Context, condition string, value, excludeID string) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE " + condition
	args := []interface{}{value}
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
		return false, fmt.Errorf("check teacher exists: %w", err)
	}
	return true, nil
}

// Create stores a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, nip, email, full_name, phone, active, created_at, updated_at) VALUES (:id, :nip, :email, :full_name, :phone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update modifies a teacher record.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET nip = :nip, email = :email, full_name = :full_name, phone = :phone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Deactivate marks a teacher inactive without removing history.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return nil
}

// ListQualifications returns the qualification rows for one teacher.
func (r *TeacherRepository) ListQualifications(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	const query = `SELECT id, teacher_id, subject_id, created_at FROM teacher_subjects WHERE teacher_id = $1 ORDER BY subject_id ASC`
	var qualifications []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &qualifications, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher qualifications: %w", err)
	}
	return qualifications, nil
}

// ReplaceQualifications swaps the full qualification set for a teacher.
func (r *TeacherRepository) ReplaceQualifications(ctx context.Context, teacherID string, subjectIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace qualifications: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM teacher_subjects WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher qualifications: %w", err)
	}

	now := time.Now().UTC()
	for _, subjectID := range subjectIDs {
		row := models.TeacherSubject{
			ID:        uuid.NewString(),
			TeacherID: teacherID,
			SubjectID: subjectID,
			CreatedAt: now,
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO teacher_subjects (id, teacher_id, subject_id, created_at) VALUES (:id, :teacher_id, :subject_id, :created_at)`, &row); err != nil {
			return fmt.Errorf("insert teacher qualification: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace qualifications: %w", err)
	}
	return nil
}

// ListQualified returns every active teacher qualified for any active
// subject, used to build the generator's snapshot. Rows come back sorted
// by teacher ID so that selection tie-breaking is deterministic.
func (r *TeacherRepository) ListQualified(ctx context.Context) ([]models.QualifiedTeacher, error) {
	const query = `SELECT t.id, t.nip, t.email, t.full_name, t.phone, t.active, t.created_at, t.updated_at, ts.subject_id
		FROM teachers t
		INNER JOIN teacher_subjects ts ON ts.teacher_id = t.id
		WHERE t.active = TRUE
		ORDER BY t.id ASC`
	var rows []models.QualifiedTeacher
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list qualified teachers: %w", err)
	}
	return rows, nil
}
