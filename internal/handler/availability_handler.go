package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// AvailabilityHandler handles teacher availability endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs an availability handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Get godoc
// @Summary List a teacher's availability markers
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	records, err := h.service.GetByTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Set godoc
// @Summary Replace a teacher's availability markers
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.SetAvailabilityRequest true "Availability entries"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [put]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	var req service.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacherID := c.Param("id")
	if err := h.service.Set(c.Request.Context(), teacherID, req); err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.service.GetByTeacher(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Toggle godoc
// @Summary Toggle one availability marker
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.ToggleAvailabilityRequest true "Day and slot"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability/toggle [post]
func (h *AvailabilityHandler) Toggle(c *gin.Context) {
	var req service.ToggleAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Toggle(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Remove godoc
// @Summary Delete an availability marker
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param recordId path string true "Availability record ID"
// @Success 204
// @Router /teachers/{id}/availability/{recordId} [delete]
func (h *AvailabilityHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), c.Param("recordId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
