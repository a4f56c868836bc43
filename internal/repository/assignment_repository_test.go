package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAssignmentRepositoryDeleteScope(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_assignments WHERE school_year = $1 AND semester = $2")).
		WithArgs("2025/2026", models.SemesterOdd).
		WillReturnResult(sqlmock.NewResult(0, 30))

	count, err := repo.DeleteScope(context.Background(), "2025/2026", models.SemesterOdd)
	require.NoError(t, err)
	assert.Equal(t, int64(30), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryBulkCreateTx(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO schedule_assignments").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	assignments := []models.ScheduleAssignment{
		{ClassID: "c1", SubjectID: "s1", TeacherID: "t1", DayOfWeek: models.Monday, PeriodSlotID: "p1", SchoolYear: "2025/2026", Semester: models.SemesterOdd},
		{ClassID: "c1", SubjectID: "s1", TeacherID: "t1", DayOfWeek: models.Monday, PeriodSlotID: "p2", SchoolYear: "2025/2026", Semester: models.SemesterOdd},
	}
	require.NoError(t, repo.BulkCreateTx(context.Background(), tx, assignments))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, assignments[0].ID)
	assert.NotEmpty(t, assignments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryBulkCreateTxEmpty(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	require.NoError(t, repo.BulkCreateTx(context.Background(), tx, nil))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryExistsTeacherAt(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("t1", models.Monday, "p1", "2025/2026", models.SemesterOdd, "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.ExistsTeacherAt(context.Background(), "t1", models.Monday, "p1", "2025/2026", models.SemesterOdd, "")
	require.NoError(t, err)
	assert.True(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCountByScope(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_assignments WHERE school_year = $1 AND semester = $2")).
		WithArgs("2025/2026", models.SemesterOdd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	total, err := repo.CountByScope(context.Background(), "2025/2026", models.SemesterOdd)
	require.NoError(t, err)
	assert.Equal(t, 120, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryTeacherLoads(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "teacher_name", "total_hours"}).
		AddRow("t1", "Guru Satu", 24).
		AddRow("t2", "Guru Dua", 18)
	mock.ExpectQuery("SELECT a.teacher_id, t.full_name AS teacher_name").
		WithArgs("2025/2026", models.SemesterOdd, 10).
		WillReturnRows(rows)

	loads, err := repo.TeacherLoads(context.Background(), "2025/2026", models.SemesterOdd, 0)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, 24, loads[0].TotalHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}
