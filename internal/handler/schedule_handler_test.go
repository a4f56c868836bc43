package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

type weekAssignmentStub struct {
	views []models.AssignmentView
}

func (s *weekAssignmentStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentView, int, error) {
	return s.views, len(s.views), nil
}

func (s *weekAssignmentStub) FindByID(ctx context.Context, id string) (*models.ScheduleAssignment, error) {
	return nil, sql.ErrNoRows
}

func (s *weekAssignmentStub) Update(ctx context.Context, assignment *models.ScheduleAssignment) error {
	return nil
}

func (s *weekAssignmentStub) Delete(ctx context.Context, id string) error { return nil }

func (s *weekAssignmentStub) DeleteScope(ctx context.Context, schoolYear string, semester models.Semester) (int64, error) {
	return 0, nil
}

func (s *weekAssignmentStub) ListViewsByClass(ctx context.Context, classID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	return s.views, nil
}

func (s *weekAssignmentStub) ListViewsByTeacher(ctx context.Context, teacherID, schoolYear string, semester models.Semester) ([]models.AssignmentView, error) {
	return s.views, nil
}

func (s *weekAssignmentStub) ExistsTeacherAt(ctx context.Context, teacherID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	return false, nil
}

func (s *weekAssignmentStub) ExistsClassAt(ctx context.Context, classID string, day models.Weekday, slotID, schoolYear string, semester models.Semester, excludeID string) (bool, error) {
	return false, nil
}

func (s *weekAssignmentStub) CountByScope(ctx context.Context, schoolYear string, semester models.Semester) (int, error) {
	return len(s.views), nil
}

func (s *weekAssignmentStub) CountByWeekday(ctx context.Context, schoolYear string, semester models.Semester) ([]models.WeekdayCount, error) {
	return nil, nil
}

func (s *weekAssignmentStub) CountByClass(ctx context.Context, schoolYear string, semester models.Semester) ([]models.ClassCount, error) {
	return nil, nil
}

func (s *weekAssignmentStub) TeacherLoads(ctx context.Context, schoolYear string, semester models.Semester, limit int) ([]models.TeacherLoad, error) {
	return nil, nil
}

type classStub struct{}

func (classStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, Name: "X IPA 1"}, nil
}

type teacherStub struct{}

func (teacherStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	return &models.Teacher{ID: id, FullName: "Guru Satu"}, nil
}

type periodStub struct{}

func (periodStub) FindByID(ctx context.Context, id string) (*models.PeriodSlot, error) {
	return &models.PeriodSlot{ID: id}, nil
}

func newScheduleHandlerForTest(views []models.AssignmentView) *ScheduleHandler {
	svc := service.NewScheduleService(&weekAssignmentStub{views: views}, classStub{}, teacherStub{}, periodStub{}, nil, nil, nil)
	return NewScheduleHandler(svc, nil, "2025/2026")
}

func TestScheduleClassWeek(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest([]models.AssignmentView{
		{ID: "a1", ClassID: "c1", DayOfWeek: models.Monday, SlotName: "Jam 1"},
	})

	router := gin.New()
	router.GET("/schedules/class/:id", handler.ClassWeek)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedules/class/c1?semester=ODD", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string][]models.AssignmentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 5)
	assert.Len(t, body.Data["MONDAY"], 1)
	assert.Empty(t, body.Data["FRIDAY"])
}

func TestScheduleClassWeekInvalidSemester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	router := gin.New()
	router.GET("/schedules/class/:id", handler.ClassWeek)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedules/class/c1?semester=SUMMER", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleClearUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	router := gin.New()
	router.POST("/schedules/clear", middleware.RequireRoles(models.RoleAdmin), handler.Clear)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/clear", bytes.NewReader([]byte(`{"school_year":"2025/2026","semester":"ODD"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScheduleClearForbiddenForGuru(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleGuru})
		c.Next()
	})
	router.POST("/schedules/clear", middleware.RequireRoles(models.RoleAdmin), handler.Clear)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/clear", bytes.NewReader([]byte(`{"school_year":"2025/2026","semester":"ODD"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestScheduleClearAsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})
		c.Next()
	})
	router.POST("/schedules/clear", middleware.RequireRoles(models.RoleAdmin), handler.Clear)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/clear", bytes.NewReader([]byte(`{"school_year":"2025/2026","semester":"ODD"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
