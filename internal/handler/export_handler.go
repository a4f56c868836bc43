package handler

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// ExportHandler handles timetable export endpoints.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Enqueue godoc
// @Summary Queue a timetable export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.ExportTimetableRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	var req dto.ExportTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// Status godoc
// @Summary Get export job status
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download an exported file
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.service.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}
	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, http.StatusNotFound, "exported file not found"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read exported file"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(relPath)+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
