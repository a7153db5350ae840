package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// ImportHandler exposes legacy import endpoints.
type ImportHandler struct {
	imports    *service.ImportService
	invalidate func(context.Context)
}

// NewImportHandler constructs handler.
func NewImportHandler(imports *service.ImportService, invalidate func(context.Context)) *ImportHandler {
	return &ImportHandler{imports: imports, invalidate: invalidate}
}

// ImportFile godoc
// @Summary Import one legacy export file
// @Tags Import
// @Accept json
// @Produce json
// @Param payload body service.ImportRequest true "Import payload"
// @Success 200 {object} response.Envelope
// @Router /import/file [post]
func (h *ImportHandler) ImportFile(c *gin.Context) {
	var req service.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.imports.ImportFile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

type directoryImportRequest struct {
	MarkSetID string `json:"mark_set_id" binding:"required"`
	Dir       string `json:"dir" binding:"required"`
	Category  string `json:"category"`
}

// ImportDirectory godoc
// @Summary Queue a directory of legacy export files
// @Tags Import
// @Accept json
// @Produce json
// @Param payload body directoryImportRequest true "Directory payload"
// @Success 202 {object} response.Envelope
// @Router /import/directory [post]
func (h *ImportHandler) ImportDirectory(c *gin.Context) {
	var req directoryImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.imports.ImportDirectory(c.Request.Context(), req.MarkSetID, req.Dir, req.Category)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}
