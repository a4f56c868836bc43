package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockAssignmentRepo struct {
	views       []models.AssignmentView
	assignment  *models.ScheduleAssignment
	teacherBusy bool
	classBusy   bool
	deleted     int64
	updated     *models.ScheduleAssignment
	deletedIDs  []string

	countByScope  int
	weekdayCounts []models.WeekdayCount
	classCounts   []models.ClassCount
	teacherLoads  []models.TeacherLoad
	loadLimit     int
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error) {
	return m.views, len(m.views), nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.ScheduleAssignment, error) {
	if m.assignment == nil || m.assignment.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.assignment
	return &copied, nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.ScheduleAssignment) error {
	m.updated = assignment
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

func (m *mockAssignmentRepo) DeleteScope(ctx context.Context, schoolYear string, semester models.Semester) (int64, error) {
	return m.deleted, nil
}

func (m *mockAssignmentRepo) ListViewsByClass(ctx context.Context, classID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	return m.views, nil
}

func (m *mockAssignmentRepo) ListViewsByTeacher(ctx context.Context, teacherID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	return m.views, nil
}

func (m *mockAssignmentRepo) ExistsTeacherAt(ctx context.Context, teacherID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	return m.teacherBusy, nil
}

func (m *mockAssignmentRepo) ExistsClassAt(ctx context.Context, classID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	return m.classBusy, nil
}

func (m *mockAssignmentRepo) CountByScope(ctx context.Context, schoolYear string, semester models.Semester) (int, error) {
	return m.countByScope, nil
}

func (m *mockAssignmentRepo) CountByWeekday(ctx context.Context, schoolYear string, semester models.Semester) ([]models.WeekdayCount, error) {
	return m.weekdayCounts, nil
}

func (m *mockAssignmentRepo) CountByClass(ctx context.Context, schoolYear string, semester models.Semester) ([]models.ClassCount, error) {
	return m.classCounts, nil
}

func (m *mockAssignmentRepo) TeacherLoads(ctx context.Context, schoolYear string, semester models.Semester, limit int) ([]models.TeacherLoad, error) {
	m.loadLimit = limit
	return m.teacherLoads, nil
}

type classReaderStub struct{ missing bool }

func (s classReaderStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Class{ID: id, Name: "X IPA 1"}, nil
}

type teacherReaderStub struct{ missing bool }

func (s teacherReaderStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.Teacher{ID: id, FullName: "Guru Satu"}, nil
}

type periodReaderStub struct{ missing bool }

func (s periodReaderStub) FindByID(ctx context.Context, id string) (*models.PeriodSlot, error) {
	if s.missing {
		return nil, sql.ErrNoRows
	}
	return &models.PeriodSlot{ID: id, Sequence: 1}, nil
}

func newScheduleServiceForTest(repo *mockAssignmentRepo) *ScheduleService {
	return NewScheduleService(repo, classReaderStub{}, teacherReaderStub{}, periodReaderStub{}, nil, nil, nil)
}

func TestGetClassWeekAlwaysContainsAllWeekdays(t *testing.T) {
	repo := &mockAssignmentRepo{
		views: []models.AssignmentView{
			{ID: "a1", ClassID: "c1", DayOfWeek: models.Wednesday, SlotName: "Jam 1"},
		},
	}
	svc := newScheduleServiceForTest(repo)

	week, err := svc.GetClassWeek(context.Background(), "c1", "2025/2026", models.SemesterOdd)
	require.NoError(t, err)

	require.Len(t, week, 5)
	for _, day := range models.GenerationWeekdays() {
		_, ok := week[day]
		assert.True(t, ok, "missing weekday %s", day)
	}
	assert.Len(t, week[models.Wednesday], 1)
	assert.Empty(t, week[models.Monday])
}

func TestGetClassWeekUnknownClass(t *testing.T) {
	svc := NewScheduleService(&mockAssignmentRepo{}, classReaderStub{missing: true}, teacherReaderStub{}, periodReaderStub{}, nil, nil, nil)

	_, err := svc.GetClassWeek(context.Background(), "ghost", "2025/2026", models.SemesterOdd)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetTeacherWeekRejectsInvalidSemester(t *testing.T) {
	svc := newScheduleServiceForTest(&mockAssignmentRepo{})

	_, err := svc.GetTeacherWeek(context.Background(), "t1", "2025/2026", models.Semester("SUMMER"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatisticsZeroFillsWeekdays(t *testing.T) {
	repo := &mockAssignmentRepo{
		countByScope:  12,
		weekdayCounts: []models.WeekdayCount{{DayOfWeek: models.Monday, Total: 7}},
		classCounts:   []models.ClassCount{{ClassID: "c1", ClassName: "X IPA 1", Total: 12}},
		teacherLoads:  []models.TeacherLoad{{TeacherID: "t1", TeacherName: "Guru Satu", TotalHours: 12}},
	}
	svc := newScheduleServiceForTest(repo)

	stats, err := svc.Statistics(context.Background(), "2025/2026", models.SemesterOdd)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalAssignments)
	assert.Equal(t, 7, stats.ByWeekday[models.Monday])
	assert.Equal(t, 0, stats.ByWeekday[models.Friday])
	assert.Len(t, stats.ByWeekday, 5)
	assert.Equal(t, 10, repo.loadLimit)
}

func TestClearReportsDeletedCount(t *testing.T) {
	repo := &mockAssignmentRepo{deleted: 42}
	svc := newScheduleServiceForTest(repo)

	result, err := svc.Clear(context.Background(), dto.ClearScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.DeletedCount)
}

func TestUpdateRejectsTeacherConflict(t *testing.T) {
	repo := &mockAssignmentRepo{
		assignment: &models.ScheduleAssignment{
			ID: "a1", ClassID: "c1", TeacherID: "t1",
			DayOfWeek: models.Monday, PeriodSlotID: "p1",
			SchoolYear: "2025/2026", Semester: models.SemesterOdd,
		},
		teacherBusy: true,
	}
	svc := newScheduleServiceForTest(repo)

	newDay := "TUESDAY"
	_, err := svc.Update(context.Background(), "a1", dto.UpdateAssignmentRequest{DayOfWeek: &newDay})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflict *models.AssignmentConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "TEACHER", conflict.Dimension)
	assert.Nil(t, repo.updated)
}

func TestUpdateRejectsClassConflict(t *testing.T) {
	repo := &mockAssignmentRepo{
		assignment: &models.ScheduleAssignment{
			ID: "a1", ClassID: "c1", TeacherID: "t1",
			DayOfWeek: models.Monday, PeriodSlotID: "p1",
			SchoolYear: "2025/2026", Semester: models.SemesterOdd,
		},
		classBusy: true,
	}
	svc := newScheduleServiceForTest(repo)

	newDay := "TUESDAY"
	_, err := svc.Update(context.Background(), "a1", dto.UpdateAssignmentRequest{DayOfWeek: &newDay})
	require.Error(t, err)

	var conflict *models.AssignmentConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "CLASS", conflict.Dimension)
}

func TestUpdateAppliesPatch(t *testing.T) {
	room := "Lab Fisika"
	repo := &mockAssignmentRepo{
		assignment: &models.ScheduleAssignment{
			ID: "a1", ClassID: "c1", TeacherID: "t1",
			DayOfWeek: models.Monday, PeriodSlotID: "p1",
			SchoolYear: "2025/2026", Semester: models.SemesterOdd,
		},
	}
	svc := newScheduleServiceForTest(repo)

	newDay := "FRIDAY"
	updated, err := svc.Update(context.Background(), "a1", dto.UpdateAssignmentRequest{DayOfWeek: &newDay, Room: &room})
	require.NoError(t, err)

	assert.Equal(t, models.Friday, updated.DayOfWeek)
	require.NotNil(t, updated.Room)
	assert.Equal(t, room, *updated.Room)
	require.NotNil(t, repo.updated)
}

func TestUpdateUnknownAssignment(t *testing.T) {
	svc := newScheduleServiceForTest(&mockAssignmentRepo{})

	room := "R-1"
	_, err := svc.Update(context.Background(), "ghost", dto.UpdateAssignmentRequest{Room: &room})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteAssignment(t *testing.T) {
	repo := &mockAssignmentRepo{
		assignment: &models.ScheduleAssignment{ID: "a1", SchoolYear: "2025/2026", Semester: models.SemesterOdd},
	}
	svc := newScheduleServiceForTest(repo)

	require.NoError(t, svc.Delete(context.Background(), "a1"))
	assert.Equal(t, []string{"a1"}, repo.deletedIDs)
}
