package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// ScheduleHandler handles schedule queries, manual overrides, and
// generation runs.
type ScheduleHandler struct {
	schedules         *service.ScheduleService
	scheduling        *service.SchedulingService
	defaultSchoolYear string
}

// NewScheduleHandler constructs a schedule handler. defaultSchoolYear
// fills the school_year query parameter when the client omits it.
func NewScheduleHandler(schedules *service.ScheduleService, scheduling *service.SchedulingService, defaultSchoolYear string) *ScheduleHandler {
	return &ScheduleHandler{
		schedules:         schedules,
		scheduling:        scheduling,
		defaultSchoolYear: defaultSchoolYear,
	}
}

func (h *ScheduleHandler) scopeFromQuery(c *gin.Context) (string, models.Semester, error) {
	schoolYear := strings.TrimSpace(c.DefaultQuery("schoolYear", h.defaultSchoolYear))
	semester := models.Semester(strings.ToUpper(strings.TrimSpace(c.DefaultQuery("semester", string(models.SemesterOdd)))))
	if !semester.Valid() {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "semester must be ODD or EVEN")
	}
	return schoolYear, semester, nil
}

// List godoc
// @Summary List schedule assignments
// @Tags Schedules
// @Produce json
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester (ODD or EVEN)"
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param subjectId query string false "Filter by subject"
// @Param dayOfWeek query string false "Filter by weekday"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.AssignmentFilter
	filter.SchoolYear = strings.TrimSpace(c.DefaultQuery("schoolYear", h.defaultSchoolYear))
	filter.Semester = strings.ToUpper(strings.TrimSpace(c.Query("semester")))
	filter.ClassID = c.Query("classId")
	filter.TeacherID = c.Query("teacherId")
	filter.SubjectID = c.Query("subjectId")
	filter.DayOfWeek = strings.ToUpper(strings.TrimSpace(c.Query("dayOfWeek")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	views, pagination, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, pagination)
}

// Generate godoc
// @Summary Generate the schedule for a scope
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation scope"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scheduling.Generate(c.Request.Context(), req)
	if err != nil {
		// A persistence failure still carries the shortfalls found
		// before rollback.
		if result != nil {
			response.JSON(c, appErrors.FromError(err).Status, result, nil)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Clear godoc
// @Summary Delete every assignment in a scope
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ClearScheduleRequest true "Scope to clear"
// @Success 200 {object} response.Envelope
// @Router /schedules/clear [post]
func (h *ScheduleHandler) Clear(c *gin.Context) {
	var req dto.ClearScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.schedules.Clear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Statistics godoc
// @Summary Schedule statistics for a scope
// @Tags Schedules
// @Produce json
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester (ODD or EVEN)"
// @Success 200 {object} response.Envelope
// @Router /schedules/statistics [get]
func (h *ScheduleHandler) Statistics(c *gin.Context) {
	schoolYear, semester, err := h.scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.schedules.Statistics(c.Request.Context(), schoolYear, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ClassWeek godoc
// @Summary Weekly schedule for a class
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester (ODD or EVEN)"
// @Success 200 {object} response.Envelope
// @Router /schedules/class/{id} [get]
func (h *ScheduleHandler) ClassWeek(c *gin.Context) {
	schoolYear, semester, err := h.scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	week, err := h.schedules.GetClassWeek(c.Request.Context(), c.Param("id"), schoolYear, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// TeacherWeek godoc
// @Summary Weekly schedule for a teacher
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Param schoolYear query string false "School year"
// @Param semester query string false "Semester (ODD or EVEN)"
// @Success 200 {object} response.Envelope
// @Router /schedules/teacher/{id} [get]
func (h *ScheduleHandler) TeacherWeek(c *gin.Context) {
	schoolYear, semester, err := h.scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	week, err := h.schedules.GetTeacherWeek(c.Request.Context(), c.Param("id"), schoolYear, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, week, nil)
}

// Update godoc
// @Summary Manually override one assignment
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateAssignmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.schedules.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete one assignment
// @Tags Schedules
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
