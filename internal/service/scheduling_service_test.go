package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type generationFixture struct {
	classes      []models.Class
	subjects     []models.Subject
	slots        []models.PeriodSlot
	qualified    []models.QualifiedTeacher
	availability []models.TeacherAvailability
}

func (f *generationFixture) ListActive(ctx context.Context) ([]models.Class, error) {
	return f.classes, nil
}

type subjectFixture struct{ subjects []models.Subject }

func (f subjectFixture) ListActive(ctx context.Context) ([]models.Subject, error) {
	return f.subjects, nil
}

type periodFixture struct{ slots []models.PeriodSlot }

func (f periodFixture) ListTeaching(ctx context.Context) ([]models.PeriodSlot, error) {
	return f.slots, nil
}

type qualifiedFixture struct{ rows []models.QualifiedTeacher }

func (f qualifiedFixture) ListQualified(ctx context.Context) ([]models.QualifiedTeacher, error) {
	return f.rows, nil
}

type availabilityFixture struct{ rows []models.TeacherAvailability }

func (f availabilityFixture) ListAll(ctx context.Context) ([]models.TeacherAvailability, error) {
	return f.rows, nil
}

// scopeWriterMock drives a sqlmock transaction while recording what the
// generator asked to persist.
type scopeWriterMock struct {
	db        *sqlx.DB
	cleared   bool
	inserted  []models.ScheduleAssignment
	insertErr error
}

func newScopeWriterMock(t *testing.T) (*scopeWriterMock, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	return &scopeWriterMock{db: sqlx.NewDb(rawDB, "sqlmock")}, mock
}

func (m *scopeWriterMock) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

func (m *scopeWriterMock) DeleteScopeTx(ctx context.Context, tx *sqlx.Tx, schoolYear string, semester models.Semester) (int64, error) {
	m.cleared = true
	return 0, nil
}

func (m *scopeWriterMock) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, assignments []models.ScheduleAssignment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = assignments
	return nil
}

type invalidatorSpy struct {
	calls int
}

func (s *invalidatorSpy) InvalidateScope(ctx context.Context, schoolYear string, semester models.Semester) {
	s.calls++
}

func newGeneratorForTest(t *testing.T, f generationFixture, tracks map[string][]string) (*SchedulingService, *scopeWriterMock, sqlmock.Sqlmock, *invalidatorSpy) {
	t.Helper()
	writer, mock := newScopeWriterMock(t)
	spy := &invalidatorSpy{}
	svc := NewSchedulingService(
		&f,
		subjectFixture{f.subjects},
		periodFixture{f.slots},
		qualifiedFixture{f.qualified},
		availabilityFixture{f.availability},
		writer,
		nil,
		spy,
		validator.New(),
		zap.NewNop(),
		SchedulingConfig{TrackSubjects: tracks},
	)
	return svc, writer, mock, spy
}

func teachingSlots(n int) []models.PeriodSlot {
	slots := make([]models.PeriodSlot, 0, n)
	for i := 1; i <= n; i++ {
		slots = append(slots, models.PeriodSlot{ID: string(rune('a'+i-1)) + "-slot", Sequence: i, Active: true})
	}
	return slots
}

func qualify(teacher models.Teacher, subjectIDs ...string) []models.QualifiedTeacher {
	rows := make([]models.QualifiedTeacher, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		rows = append(rows, models.QualifiedTeacher{Teacher: teacher, SubjectID: id})
	}
	return rows
}

func TestGenerateFillsAllWeeklyHours(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Grade: 10, Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 4, Category: models.SubjectCategoryCore, Active: true},
			{ID: "ind", Code: "IND", Name: "Bahasa Indonesia", WeeklyHours: 3, Category: models.SubjectCategoryCore, Active: true},
		},
		slots: teachingSlots(2),
		qualified: append(
			qualify(models.Teacher{ID: "t1", FullName: "Guru Satu"}, "mat"),
			qualify(models.Teacher{ID: "t2", FullName: "Guru Dua"}, "ind")...,
		),
	}
	svc, writer, mock, spy := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 7, result.Statistics.TotalScheduled)
	assert.Empty(t, result.Conflicts)
	assert.InDelta(t, 100.0, result.Statistics.SuccessRatePercent, 0.001)
	assert.True(t, writer.cleared)
	assert.Len(t, writer.inserted, 7)
	assert.Equal(t, 1, spy.calls)

	// No teacher or class may hold two assignments in the same slot.
	seen := make(map[string]bool)
	for _, a := range writer.inserted {
		key := string(a.DayOfWeek) + "|" + a.PeriodSlotID
		assert.False(t, seen["t:"+a.TeacherID+"|"+key], "teacher double booked at %s", key)
		assert.False(t, seen["c:"+a.ClassID+"|"+key], "class double booked at %s", key)
		seen["t:"+a.TeacherID+"|"+key] = true
		seen["c:"+a.ClassID+"|"+key] = true
	}
}

func TestGenerateHeaviestSubjectPlacedFirst(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "light", Code: "ZZZ", Name: "Light", WeeklyHours: 1, Category: models.SubjectCategoryCore, Active: true},
			{ID: "heavy", Code: "AAA", Name: "Heavy", WeeklyHours: 3, Category: models.SubjectCategoryCore, Active: true},
		},
		slots: teachingSlots(1),
		qualified: append(
			qualify(models.Teacher{ID: "t1"}, "light"),
			qualify(models.Teacher{ID: "t2"}, "heavy")...,
		),
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.NotEmpty(t, writer.inserted)
	assert.Equal(t, "heavy", writer.inserted[0].SubjectID)
	assert.Equal(t, models.Monday, writer.inserted[0].DayOfWeek)
}

func TestGenerateReportsNoTeacherShortfall(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPS 1", Track: "IPS", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 4, Category: models.SubjectCategoryCore, Active: true},
		},
		slots: teachingSlots(2),
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, dto.ConflictNoTeacher, result.Conflicts[0].Type)
	assert.Equal(t, "mat", result.Conflicts[0].SubjectID)
	assert.Empty(t, writer.inserted)
	// Unfilled hours still count against the success rate.
	assert.InDelta(t, 0.0, result.Statistics.SuccessRatePercent, 0.001)
}

func TestGenerateReportsInsufficientSlots(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 6, Category: models.SubjectCategoryCore, Active: true},
		},
		slots:     teachingSlots(1),
		qualified: qualify(models.Teacher{ID: "t1"}, "mat"),
	}
	svc, _, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.Equal(t, dto.ConflictInsufficientSlots, conflict.Type)
	require.NotNil(t, conflict.Required)
	assert.Equal(t, 6, *conflict.Required)
	require.NotNil(t, conflict.Assigned)
	assert.Equal(t, 5, *conflict.Assigned)
	assert.Equal(t, 5, result.Statistics.TotalScheduled)
	assert.InDelta(t, 83.33, result.Statistics.SuccessRatePercent, 0.001)
}

func TestGenerateReportsNoEligibleSubjects(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPS 1", Track: "IPS", Active: true}},
		subjects: []models.Subject{
			{ID: "fis", Code: "FIS", Name: "Fisika", WeeklyHours: 3, Category: models.SubjectCategorySpecialization, Active: true},
		},
		slots:     teachingSlots(2),
		qualified: qualify(models.Teacher{ID: "t1"}, "fis"),
	}
	svc, _, mock, _ := newGeneratorForTest(t, fixture, map[string][]string{"IPA": {"FIS"}})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, dto.ConflictNoSubjects, result.Conflicts[0].Type)
	assert.Equal(t, 0, result.Statistics.TotalScheduled)
	assert.InDelta(t, 0.0, result.Statistics.SuccessRatePercent, 0.001)
}

func TestGenerateTrackAllowListAdmitsSpecialization(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "fis", Code: "FIS", Name: "Fisika", WeeklyHours: 2, Category: models.SubjectCategorySpecialization, Active: true},
		},
		slots:     teachingSlots(1),
		qualified: qualify(models.Teacher{ID: "t1"}, "fis"),
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, map[string][]string{"IPA": {"FIS", "KIM", "BIO"}})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	assert.Empty(t, result.Conflicts)
	assert.Len(t, writer.inserted, 2)
}

func TestGenerateSkipsUnavailableSlots(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 1, Category: models.SubjectCategoryCore, Active: true},
		},
		slots:     teachingSlots(1),
		qualified: qualify(models.Teacher{ID: "t1"}, "mat"),
		availability: []models.TeacherAvailability{
			{TeacherID: "t1", DayOfWeek: models.Monday, PeriodSlotID: "a-slot", Available: false},
		},
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, writer.inserted, 1)
	assert.Equal(t, models.Tuesday, writer.inserted[0].DayOfWeek)
}

func TestGenerateIgnoresExplicitAvailableRecords(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 1, Category: models.SubjectCategoryCore, Active: true},
		},
		slots:     teachingSlots(1),
		qualified: qualify(models.Teacher{ID: "t1"}, "mat"),
		availability: []models.TeacherAvailability{
			{TeacherID: "t1", DayOfWeek: models.Monday, PeriodSlotID: "a-slot", Available: true},
		},
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, writer.inserted, 1)
	assert.Equal(t, models.Monday, writer.inserted[0].DayOfWeek)
}

func TestGenerateBalancesTeacherLoads(t *testing.T) {
	// Both teachers cover both subjects; the second subject must go to
	// the idle teacher because the first already carries load.
	t1 := models.Teacher{ID: "t1"}
	t2 := models.Teacher{ID: "t2"}
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "s1", Code: "AAA", Name: "First", WeeklyHours: 2, Category: models.SubjectCategoryCore, Active: true},
			{ID: "s2", Code: "BBB", Name: "Second", WeeklyHours: 2, Category: models.SubjectCategoryCore, Active: true},
		},
		slots: teachingSlots(2),
		qualified: []models.QualifiedTeacher{
			{Teacher: t1, SubjectID: "s1"},
			{Teacher: t2, SubjectID: "s1"},
			{Teacher: t1, SubjectID: "s2"},
			{Teacher: t2, SubjectID: "s2"},
		},
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	byTeacher := make(map[string]int)
	for _, a := range writer.inserted {
		byTeacher[a.TeacherID]++
	}
	assert.Equal(t, 2, byTeacher["t1"])
	assert.Equal(t, 2, byTeacher["t2"])
}

func TestGenerateTieBreaksByTeacherID(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "s1", Code: "AAA", Name: "First", WeeklyHours: 1, Category: models.SubjectCategoryCore, Active: true},
		},
		slots: teachingSlots(1),
		qualified: []models.QualifiedTeacher{
			{Teacher: models.Teacher{ID: "t1"}, SubjectID: "s1"},
			{Teacher: models.Teacher{ID: "t2"}, SubjectID: "s1"},
		},
	}
	svc, writer, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, writer.inserted, 1)
	assert.Equal(t, "t1", writer.inserted[0].TeacherID)
}

func TestGenerateSuccessRateCountsIneligibleSubjects(t *testing.T) {
	// SOS sits outside the IPA allow-list, so it is never placed, yet
	// its hours stay in the theoretical weekly total.
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "fis", Code: "FIS", Name: "Fisika", WeeklyHours: 4, Category: models.SubjectCategorySpecialization, Active: true},
			{ID: "sos", Code: "SOS", Name: "Sosiologi", WeeklyHours: 4, Category: models.SubjectCategorySpecialization, Active: true},
		},
		slots:     teachingSlots(4),
		qualified: qualify(models.Teacher{ID: "t1"}, "fis"),
	}
	svc, _, mock, _ := newGeneratorForTest(t, fixture, map[string][]string{"IPA": {"FIS"}})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Statistics.TotalScheduled)
	assert.InDelta(t, 50.0, result.Statistics.SuccessRatePercent, 0.001)
}

func TestGenerateSuccessRateCountsSkippedClasses(t *testing.T) {
	// The IPS class places nothing, but its share of the theoretical
	// total still drags the rate down.
	fixture := generationFixture{
		classes: []models.Class{
			{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true},
			{ID: "c2", Name: "X IPS 1", Track: "IPS", Active: true},
		},
		subjects: []models.Subject{
			{ID: "fis", Code: "FIS", Name: "Fisika", WeeklyHours: 2, Category: models.SubjectCategorySpecialization, Active: true},
		},
		slots:     teachingSlots(2),
		qualified: qualify(models.Teacher{ID: "t1"}, "fis"),
	}
	svc, _, mock, _ := newGeneratorForTest(t, fixture, map[string][]string{"IPA": {"FIS"}})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, dto.ConflictNoSubjects, result.Conflicts[0].Type)
	assert.Equal(t, 2, result.Statistics.TotalScheduled)
	assert.InDelta(t, 50.0, result.Statistics.SuccessRatePercent, 0.001)
}

func TestGenerateZeroAssignedStaysInConflictPayload(t *testing.T) {
	// The teacher is blocked on every slot, so nothing is placed and the
	// event must still serialize assigned as an explicit zero.
	unavailable := make([]models.TeacherAvailability, 0, len(models.GenerationWeekdays()))
	for _, day := range models.GenerationWeekdays() {
		unavailable = append(unavailable, models.TeacherAvailability{
			TeacherID: "t1", DayOfWeek: day, PeriodSlotID: "a-slot", Available: false,
		})
	}
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 2, Category: models.SubjectCategoryCore, Active: true},
		},
		slots:        teachingSlots(1),
		qualified:    qualify(models.Teacher{ID: "t1"}, "mat"),
		availability: unavailable,
	}
	svc, _, mock, _ := newGeneratorForTest(t, fixture, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	require.NotNil(t, conflict.Assigned)
	assert.Equal(t, 0, *conflict.Assigned)

	payload, err := json.Marshal(conflict)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"assigned":0`)
	assert.Contains(t, string(payload), `"required":2`)
}

func TestGeneratePersistFailureKeepsConflicts(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
		subjects: []models.Subject{
			{ID: "mat", Code: "MAT", Name: "Matematika", WeeklyHours: 2, Category: models.SubjectCategoryCore, Active: true},
			{ID: "eng", Code: "ENG", Name: "Bahasa Inggris", WeeklyHours: 2, Category: models.SubjectCategoryCore, Active: true},
		},
		slots:     teachingSlots(2),
		qualified: qualify(models.Teacher{ID: "t1"}, "mat"),
	}
	svc, writer, mock, spy := newGeneratorForTest(t, fixture, nil)
	writer.insertErr = errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, dto.ConflictNoTeacher, result.Conflicts[0].Type)
	assert.Equal(t, "eng", result.Conflicts[0].SubjectID)
	assert.Equal(t, 0, spy.calls)
}

func TestGenerateFailsWithoutActiveClasses(t *testing.T) {
	fixture := generationFixture{
		slots: teachingSlots(2),
	}
	svc, writer, _, spy := newGeneratorForTest(t, fixture, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	// The run must abort before touching the existing schedule.
	assert.False(t, writer.cleared)
	assert.Equal(t, 0, spy.calls)
}

func TestGenerateFailsWithoutTeachingSlots(t *testing.T) {
	fixture := generationFixture{
		classes: []models.Class{{ID: "c1", Name: "X IPA 1", Track: "IPA", Active: true}},
	}
	svc, _, _, _ := newGeneratorForTest(t, fixture, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "ODD"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestGenerateRejectsInvalidSemester(t *testing.T) {
	svc, _, _, _ := newGeneratorForTest(t, generationFixture{}, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateScheduleRequest{SchoolYear: "2025/2026", Semester: "SUMMER"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
