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

// AssignmentRepository provides persistence for schedule assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// BeginTx opens a transaction; the scheduling service uses it to clear
// and repopulate a scope atomically.
func (r *AssignmentRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment tx: %w", err)
	}
	return tx, nil
}

// DeleteScopeTx removes every assignment in a (school year, semester)
// scope within the given transaction and returns the deleted count.
func (r *AssignmentRepository) DeleteScopeTx(ctx context.Context, tx *sqlx.Tx, schoolYear string, semester models.Semester) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE school_year = $1 AND semester = $2`, schoolYear, semester)
	if err != nil {
		return 0, fmt.Errorf("delete scope assignments: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted assignments: %w", err)
	}
	return count, nil
}

// DeleteScope removes every assignment in a scope outside any
// transaction and returns the deleted count.
func (r *AssignmentRepository) DeleteScope(ctx context.Context, schoolYear string, semester models.Semester) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE school_year = $1 AND semester = $2`, schoolYear, semester)
	if err != nil {
		return 0, fmt.Errorf("delete scope assignments: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted assignments: %w", err)
	}
	return count, nil
}

// BulkCreateTx inserts a batch of assignments within the given
// transaction using one multi-row statement per chunk.
func (r *AssignmentRepository) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, assignments []models.ScheduleAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	now := time.Now().UTC()
	const chunkSize = 500
	for start := 0; start < len(assignments); start += chunkSize {
		end := start + chunkSize
		if end > len(assignments) {
			end = len(assignments)
		}
		chunk := assignments[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*11)
		for i := range chunk {
			a := &chunk[i]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			a.UpdatedAt = now

			base := len(args)
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11))
			args = append(args, a.ID, a.ClassID, a.SubjectID, a.TeacherID, a.DayOfWeek, a.PeriodSlotID, a.Room, a.SchoolYear, a.Semester, a.CreatedAt, a.UpdatedAt)
		}

		query := `INSERT INTO schedule_assignments (id, class_id, subject_id, teacher_id, day_of_week, period_slot_id, room, school_year, semester, created_at, updated_at) VALUES ` + strings.Join(placeholders, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("bulk insert assignments: %w", err)
		}
	}
	return nil
}

const assignmentViewColumns = `a.id, a.class_id, a.subject_id, a.teacher_id, a.day_of_week, a.period_slot_id, a.room, a.school_year, a.semester, a.created_at, a.updated_at,
	c.name AS class_name, s.code AS subject_code, s.name AS subject_name, t.full_name AS teacher_name,
	p.name AS slot_name, p.sequence AS slot_sequence, p.start_time AS slot_start_time, p.end_time AS slot_end_time`

const assignmentViewJoins = `FROM schedule_assignments a
	INNER JOIN classes c ON c.id = a.class_id
	INNER JOIN subjects s ON s.id = a.subject_id
	INNER JOIN teachers t ON t.id = a.teacher_id
	INNER JOIN period_slots p ON p.id = a.period_slot_id`

// List returns joined assignment views matching the filter, with the
// total count for pagination.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("a.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("a.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("a.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("a.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}

	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM schedule_assignments a WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY a.day_of_week ASC, p.sequence ASC, c.name ASC LIMIT $%d OFFSET $%d`,
		assignmentViewColumns, assignmentViewJoins, where, len(args)+1, len(args)+2)
	args = append(args, size, offset)

	var views []models.AssignmentView
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	return views, total, nil
}

// FindByID returns one assignment or sql.ErrNoRows.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.ScheduleAssignment, error) {
	const query = `SELECT id, class_id, subject_id, teacher_id, day_of_week, period_slot_id, room, school_year, semester, created_at, updated_at FROM schedule_assignments WHERE id = $1`
	var assignment models.ScheduleAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Update rewrites a single assignment row.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.ScheduleAssignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_assignments SET teacher_id = :teacher_id, day_of_week = :day_of_week, period_slot_id = :period_slot_id, room = :room, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes one assignment row.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// ListViewsByClass returns joined views for one class within a scope,
// ordered for weekly grouping.
func (r *AssignmentRepository) ListViewsByClass(ctx context.Context, classID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.class_id = $1 AND a.school_year = $2 AND a.semester = $3 ORDER BY p.sequence ASC`, assignmentViewColumns, assignmentViewJoins)
	var views []models.AssignmentView
	if err := r.db.SelectContext(ctx, &views, query, classID, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	return views, nil
}

// ListViewsByTeacher returns joined views for one teacher within a
// scope, ordered for weekly grouping.
func (r *AssignmentRepository) ListViewsByTeacher(ctx context.Context, teacherID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.teacher_id = $1 AND a.school_year = $2 AND a.semester = $3 ORDER BY p.sequence ASC`, assignmentViewColumns, assignmentViewJoins)
	var views []models.AssignmentView
	if err := r.db.SelectContext(ctx, &views, query, teacherID, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("list teacher assignments: %w", err)
	}
	return views, nil
}

// ExistsTeacherAt reports whether the teacher already holds a different
// assignment at the given (day, slot) within the scope. excludeID skips
// the assignment being edited.
func (r *AssignmentRepository) ExistsTeacherAt(ctx context.Context, teacherID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM schedule_assignments WHERE teacher_id = $1 AND day_of_week = $2 AND period_slot_id = $3 AND school_year = $4 AND semester = $5 AND id <> $6)`
	var busy bool
	if err := r.db.GetContext(ctx, &busy, query, teacherID, day, slotID, schoolYear, semester, excludeID); err != nil {
		return false, fmt.Errorf("check teacher conflict: %w", err)
	}
	return busy, nil
}

// ExistsClassAt reports whether the class already holds a different
// assignment at the given (day, slot) within the scope.
func (r *AssignmentRepository) ExistsClassAt(ctx context.Context, classID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM schedule_assignments WHERE class_id = $1 AND day_of_week = $2 AND period_slot_id = $3 AND school_year = $4 AND semester = $5 AND id <> $6)`
	var busy bool
	if err := r.db.GetContext(ctx, &busy, query, classID, day, slotID, schoolYear, semester, excludeID); err != nil {
		return false, fmt.Errorf("check class conflict: %w", err)
	}
	return busy, nil
}

// CountByScope returns the number of assignments in a scope.
func (r *AssignmentRepository) CountByScope(ctx context.Context, schoolYear string, semester models.Semester) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_assignments WHERE school_year = $1 AND semester = $2`, schoolYear, semester); err != nil {
		return 0, fmt.Errorf("count scope assignments: %w", err)
	}
	return total, nil
}

// CountByWeekday returns per-weekday assignment counts for a scope.
func (r *AssignmentRepository) CountByWeekday(ctx context.Context, schoolYear string, semester models.Semester) ([]models.WeekdayCount, error) {
	const query = `SELECT day_of_week, COUNT(*) AS total FROM schedule_assignments WHERE school_year = $1 AND semester = $2 GROUP BY day_of_week`
	var counts []models.WeekdayCount
	if err := r.db.SelectContext(ctx, &counts, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("count assignments by weekday: %w", err)
	}
	return counts, nil
}

// CountByClass returns per-class assignment counts for a scope.
func (r *AssignmentRepository) CountByClass(ctx context.Context, schoolYear string, semester models.Semester) ([]models.ClassCount, error) {
	const query = `SELECT a.class_id, c.name AS class_name, COUNT(*) AS total
		FROM schedule_assignments a
		INNER JOIN classes c ON c.id = a.class_id
		WHERE a.school_year = $1 AND a.semester = $2
		GROUP BY a.class_id, c.name
		ORDER BY c.name ASC`
	var counts []models.ClassCount
	if err := r.db.SelectContext(ctx, &counts, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("count assignments by class: %w", err)
	}
	return counts, nil
}

// TeacherLoads returns the most loaded teachers in a scope, highest
// first.
func (r *AssignmentRepository) TeacherLoads(ctx context.Context, schoolYear string, semester models.Semester, limit int) ([]models.TeacherLoad, error) {
	if limit < 1 {
		limit = 10
	}
	const query = `SELECT a.teacher_id, t.full_name AS teacher_name, COUNT(*) AS total_hours
		FROM schedule_assignments a
		INNER JOIN teachers t ON t.id = a.teacher_id
		WHERE a.school_year = $1 AND a.semester = $2
		GROUP BY a.teacher_id, t.full_name
		ORDER BY total_hours DESC, t.full_name ASC
		LIMIT $3`
	var loads []models.TeacherLoad
	if err := r.db.SelectContext(ctx, &loads, query, schoolYear, semester, limit); err != nil {
		return nil, fmt.Errorf("list teacher loads: %w", err)
	}
	return loads, nil
}
