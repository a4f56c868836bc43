package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// AvailabilityRepository provides persistence for teacher availability
// records.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListAll returns every availability record, used to build the
// generator's snapshot.
func (r *AvailabilityRepository) ListAll(ctx context.Context) ([]models.TeacherAvailability, error) {
	const query = `SELECT id, teacher_id, day_of_week, period_slot_id, available, note, created_at, updated_at FROM teacher_availability`
	var records []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list availability records: %w", err)
	}
	return records, nil
}

// ListByTeacher returns availability records for one teacher with slot
// metadata, ordered by day then slot sequence.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error) {
	const query = `SELECT a.id, a.teacher_id, a.day_of_week, a.period_slot_id, a.available, a.note, a.created_at, a.updated_at, p.name AS slot_name, p.sequence AS slot_sequence
		FROM teacher_availability a
		INNER JOIN period_slots p ON p.id = a.period_slot_id
		WHERE a.teacher_id = $1
		ORDER BY a.day_of_week ASC, p.sequence ASC`
	var records []models.AvailabilityDetail
	if err := r.db.SelectContext(ctx, &records, query, teacherID); err != nil {
		return nil, fmt.Errorf("list availability by teacher: %w", err)
	}
	return records, nil
}

// Find returns the availability record for a (teacher, day, slot)
// triple, or sql.ErrNoRows when absent.
func (r *AvailabilityRepository) Find(ctx context.Context, teacherID string, day models.Weekday, slotID string) (*models.TeacherAvailability, error) {
	const query = `SELECT id, teacher_id, day_of_week, period_slot_id, available, note, created_at, updated_at FROM teacher_availability WHERE teacher_id = $1 AND day_of_week = $2 AND period_slot_id = $3 LIMIT 1`
	var record models.TeacherAvailability
	if err := r.db.GetContext(ctx, &record, query, teacherID, day, slotID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert inserts or replaces the record for its (teacher, day, slot)
// triple, which is unique.
func (r *AvailabilityRepository) Upsert(ctx context.Context, record *models.TeacherAvailability) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO teacher_availability (id, teacher_id, day_of_week, period_slot_id, available, note, created_at, updated_at)
		VALUES (:id, :teacher_id, :day_of_week, :period_slot_id, :available, :note, :created_at, :updated_at)
		ON CONFLICT (teacher_id, day_of_week, period_slot_id)
		DO UPDATE SET available = EXCLUDED.available, note = EXCLUDED.note, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// UpsertBatch applies a bulk availability update inside one transaction.
func (r *AvailabilityRepository) UpsertBatch(ctx context.Context, records []models.TeacherAvailability) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin availability batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range records {
		record := records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, `INSERT INTO teacher_availability (id, teacher_id, day_of_week, period_slot_id, available, note, created_at, updated_at)
			VALUES (:id, :teacher_id, :day_of_week, :period_slot_id, :available, :note, :created_at, :updated_at)
			ON CONFLICT (teacher_id, day_of_week, period_slot_id)
			DO UPDATE SET available = EXCLUDED.available, note = EXCLUDED.note, updated_at = EXCLUDED.updated_at`, &record); err != nil {
			return fmt.Errorf("upsert availability batch entry: %w", err)
		}
		records[i] = record
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit availability batch: %w", err)
	}
	return nil
}

// Delete removes an availability record, restoring default-available
// semantics for its triple.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_availability WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}
