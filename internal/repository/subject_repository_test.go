package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newSubjectRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubjectRepositoryList(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "weekly_hours", "category", "description", "active", "created_at", "updated_at"}).
		AddRow("s1", "MAT", "Matematika", 4, "CORE", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, weekly_hours, category, description, active, created_at, updated_at FROM subjects WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SubjectFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryListFiltersByCategory(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "weekly_hours", "category", "description", "active", "created_at", "updated_at"}).
		AddRow("s2", "FIS", "Fisika", 3, "SPECIALIZATION", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE 1=1 AND category = $1")).
		WithArgs("SPECIALIZATION").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE 1=1 AND category = $1")).
		WithArgs("SPECIALIZATION").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, _, err := repo.List(context.Background(), models.SubjectFilter{Category: "SPECIALIZATION"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.SubjectCategorySpecialization, list[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectExec("INSERT INTO subjects").
		WithArgs(sqlmock.AnyArg(), "MAT", "Matematika", 4, "CORE", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	subject := &models.Subject{Code: "MAT", Name: "Matematika", WeeklyHours: 4, Category: models.SubjectCategoryCore, Active: true}
	require.NoError(t, repo.Create(context.Background(), subject))
	assert.NotEmpty(t, subject.ID)

	mock.ExpectExec("UPDATE subjects SET active = FALSE").
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newSubjectRepoMock(t)
	defer cleanup()
	repo := NewSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM subjects WHERE LOWER(code) = LOWER($1) LIMIT 1")).
		WithArgs("MAT").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByCode(context.Background(), "MAT", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
