package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockAvailabilityRepo struct {
	records  []models.AvailabilityDetail
	existing *models.TeacherAvailability

	upserted *models.TeacherAvailability
	batch    []models.TeacherAvailability
	deleted  []string
}

func (m *mockAvailabilityRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityDetail, error) {
	return m.records, nil
}

func (m *mockAvailabilityRepo) Find(ctx context.Context, teacherID string, day models.Weekday, slotID string) (*models.TeacherAvailability, error) {
	if m.existing == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.existing
	return &copied, nil
}

func (m *mockAvailabilityRepo) Upsert(ctx context.Context, record *models.TeacherAvailability) error {
	m.upserted = record
	return nil
}

func (m *mockAvailabilityRepo) UpsertBatch(ctx context.Context, records []models.TeacherAvailability) error {
	m.batch = records
	return nil
}

func (m *mockAvailabilityRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func newAvailabilityServiceForTest(repo *mockAvailabilityRepo, teacherMissing, periodMissing bool) *AvailabilityService {
	return NewAvailabilityService(repo, teacherReaderStub{missing: teacherMissing}, periodReaderStub{missing: periodMissing}, nil, nil)
}

func TestAvailabilitySetStoresBatch(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityServiceForTest(repo, false, false)

	err := svc.Set(context.Background(), "t1", SetAvailabilityRequest{Entries: []AvailabilityEntry{
		{DayOfWeek: "MONDAY", PeriodSlotID: "p1", Available: false},
		{DayOfWeek: "FRIDAY", PeriodSlotID: "p2", Available: true},
	}})
	require.NoError(t, err)

	require.Len(t, repo.batch, 2)
	assert.Equal(t, models.Monday, repo.batch[0].DayOfWeek)
	assert.False(t, repo.batch[0].Available)
	assert.Equal(t, "t1", repo.batch[1].TeacherID)
}

func TestAvailabilitySetRejectsInvalidWeekday(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityServiceForTest(repo, false, false)

	err := svc.Set(context.Background(), "t1", SetAvailabilityRequest{Entries: []AvailabilityEntry{
		{DayOfWeek: "FUNDAY", PeriodSlotID: "p1"},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.batch)
}

func TestAvailabilitySetUnknownTeacher(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockAvailabilityRepo{}, true, false)

	err := svc.Set(context.Background(), "ghost", SetAvailabilityRequest{Entries: []AvailabilityEntry{
		{DayOfWeek: "MONDAY", PeriodSlotID: "p1"},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilitySetUnknownSlot(t *testing.T) {
	svc := newAvailabilityServiceForTest(&mockAvailabilityRepo{}, false, true)

	err := svc.Set(context.Background(), "t1", SetAvailabilityRequest{Entries: []AvailabilityEntry{
		{DayOfWeek: "MONDAY", PeriodSlotID: "ghost"},
	}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityToggleCreatesUnavailableMarker(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityServiceForTest(repo, false, false)

	record, err := svc.Toggle(context.Background(), "t1", ToggleAvailabilityRequest{DayOfWeek: "MONDAY", PeriodSlotID: "p1"})
	require.NoError(t, err)

	assert.False(t, record.Available)
	require.NotNil(t, repo.upserted)
	assert.Equal(t, models.Monday, repo.upserted.DayOfWeek)
}

func TestAvailabilityToggleFlipsExistingMarker(t *testing.T) {
	repo := &mockAvailabilityRepo{
		existing: &models.TeacherAvailability{ID: "av1", TeacherID: "t1", DayOfWeek: models.Monday, PeriodSlotID: "p1", Available: false},
	}
	svc := newAvailabilityServiceForTest(repo, false, false)

	record, err := svc.Toggle(context.Background(), "t1", ToggleAvailabilityRequest{DayOfWeek: "MONDAY", PeriodSlotID: "p1"})
	require.NoError(t, err)
	assert.True(t, record.Available)
}

func TestAvailabilityRemove(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := newAvailabilityServiceForTest(repo, false, false)

	require.NoError(t, svc.Remove(context.Background(), "t1", "av1"))
	assert.Equal(t, []string{"av1"}, repo.deleted)
}
