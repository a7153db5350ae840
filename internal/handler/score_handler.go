package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// ScoreHandler exposes single and bulk score edit endpoints.
type ScoreHandler struct {
	scores     *service.ScoreService
	invalidate func(context.Context)
}

// NewScoreHandler constructs handler. invalidate drops cached analytics
// after a successful write; it may be nil.
func NewScoreHandler(scores *service.ScoreService, invalidate func(context.Context)) *ScoreHandler {
	return &ScoreHandler{scores: scores, invalidate: invalidate}
}

type singleEditRequest struct {
	ClassID string            `json:"class_id" binding:"required"`
	Edit    service.ScoreEdit `json:"edit" binding:"required"`
}

// ApplyEdit godoc
// @Summary Apply one score edit
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body singleEditRequest true "Edit payload"
// @Success 200 {object} response.Envelope
// @Router /scores/edit [post]
func (h *ScoreHandler) ApplyEdit(c *gin.Context) {
	var req singleEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.ApplyEdit(c.Request.Context(), req.ClassID, req.Edit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// BulkEdit godoc
// @Summary Apply a batch of score edits
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.BulkEditRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /scores/bulk [post]
func (h *ScoreHandler) BulkEdit(c *gin.Context) {
	var req service.BulkEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scores.BulkEdit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Updated > 0 && h.invalidate != nil {
		h.invalidate(c.Request.Context())
	}
	status := http.StatusOK
	if result.LimitExceeded {
		status = appErrors.ErrTooManyEdits.Status
	}
	response.JSON(c, status, result, nil)
}
