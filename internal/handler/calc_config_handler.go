package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// CalcConfigHandler exposes calculation-settings endpoints.
type CalcConfigHandler struct {
	calcConfig *service.CalcConfigService
}

// NewCalcConfigHandler constructs handler.
func NewCalcConfigHandler(calcConfig *service.CalcConfigService) *CalcConfigHandler {
	return &CalcConfigHandler{calcConfig: calcConfig}
}

// Get godoc
// @Summary Read the effective calculation settings
// @Tags CalcConfig
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calc-config [get]
func (h *CalcConfigHandler) Get(c *gin.Context) {
	cfg, err := h.calcConfig.Effective(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// SetOverride godoc
// @Summary Override the calculation settings
// @Tags CalcConfig
// @Accept json
// @Produce json
// @Param payload body models.CalcConfig true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /calc-config/override [put]
func (h *CalcConfigHandler) SetOverride(c *gin.Context) {
	var cfg models.CalcConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.calcConfig.SetOverride(c.Request.Context(), cfg); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// ClearOverride godoc
// @Summary Restore the imported or built-in settings
// @Tags CalcConfig
// @Success 204
// @Router /calc-config/override [delete]
func (h *CalcConfigHandler) ClearOverride(c *gin.Context) {
	if err := h.calcConfig.ClearOverride(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
