package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// PeriodHandler handles period slot endpoints.
type PeriodHandler struct {
	service *service.PeriodService
}

// NewPeriodHandler constructs a period handler.
func NewPeriodHandler(svc *service.PeriodService) *PeriodHandler {
	return &PeriodHandler{service: svc}
}

// List godoc
// @Summary List period slots
// @Tags Periods
// @Produce json
// @Param isBreak query bool false "Filter by break flag"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	var filter models.PeriodSlotFilter
	if raw := c.Query("isBreak"); raw != "" {
		if isBreak, err := strconv.ParseBool(raw); err == nil {
			filter.IsBreak = &isBreak
		}
	}
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	periods, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Get godoc
// @Summary Get period slot by id
// @Tags Periods
// @Produce json
// @Param id path string true "Period slot ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	period, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Create godoc
// @Summary Create period slot
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body service.CreatePeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var req service.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update period slot
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period slot ID"
// @Param payload body service.UpdatePeriodRequest true "Period payload"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [put]
func (h *PeriodHandler) Update(c *gin.Context) {
	var req service.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Delete period slot
// @Tags Periods
// @Produce json
// @Param id path string true "Period slot ID"
// @Success 204
// @Router /periods/{id} [delete]
func (h *PeriodHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
