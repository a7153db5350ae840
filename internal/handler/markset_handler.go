package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/service"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/response"
)

// MarkSetHandler exposes mark set, category, assessment and membership
// endpoints.
type MarkSetHandler struct {
	markSets *service.MarkSetService
}

// NewMarkSetHandler constructs handler.
func NewMarkSetHandler(markSets *service.MarkSetService) *MarkSetHandler {
	return &MarkSetHandler{markSets: markSets}
}

// List godoc
// @Summary List a class's mark sets
// @Tags MarkSets
// @Produce json
// @Param classId query string true "Class id"
// @Success 200 {object} response.Envelope
// @Router /mark-sets [get]
func (h *MarkSetHandler) List(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrBadParams, "classId is required"))
		return
	}
	sets, err := h.markSets.List(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sets, nil)
}

// Get godoc
// @Summary Fetch one mark set with its categories
// @Tags MarkSets
// @Produce json
// @Param id path string true "Mark set id"
// @Success 200 {object} response.Envelope
// @Router /mark-sets/{id} [get]
func (h *MarkSetHandler) Get(c *gin.Context) {
	set, categories, err := h.markSets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"mark_set": set, "categories": categories}, nil)
}

// Create godoc
// @Summary Create a mark set
// @Tags MarkSets
// @Accept json
// @Produce json
// @Param payload body service.CreateMarkSetRequest true "Mark set payload"
// @Success 201 {object} response.Envelope
// @Router /mark-sets [post]
func (h *MarkSetHandler) Create(c *gin.Context) {
	var req service.CreateMarkSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	set, err := h.markSets.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, set)
}

// Update godoc
// @Summary Update a mark set
// @Tags MarkSets
// @Accept json
// @Produce json
// @Param id path string true "Mark set id"
// @Param payload body service.UpdateMarkSetRequest true "Mark set payload"
// @Success 200 {object} response.Envelope
// @Router /mark-sets/{id} [put]
func (h *MarkSetHandler) Update(c *gin.Context) {
	var req service.UpdateMarkSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	set, err := h.markSets.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// UpsertCategory godoc
// @Summary Create or reweight a category
// @Tags MarkSets
// @Accept json
// @Produce json
// @Param id path string true "Mark set id"
// @Param payload body service.UpsertCategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Router /mark-sets/{id}/categories [put]
func (h *MarkSetHandler) UpsertCategory(c *gin.Context) {
	var req service.UpsertCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category, err := h.markSets.UpsertCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// ListAssessments godoc
// @Summary List a mark set's assessments
// @Tags Assessments
// @Produce json
// @Param id path string true "Mark set id"
// @Param category query string false "Filter by category"
// @Param term query int false "Filter by term"
// @Param typesMask query int false "Legacy type bitmask"
// @Param includeDeleted query bool false "Include weight-0 assessments"
// @Success 200 {object} response.Envelope
// @Router /mark-sets/{id}/assessments [get]
func (h *MarkSetHandler) ListAssessments(c *gin.Context) {
	filter := models.AssessmentFilter{
		MarkSetID:      c.Param("id"),
		Category:       c.Query("category"),
		Term:           queryInt(c, "term", 0),
		TypesMask:      queryInt(c, "typesMask", 0),
		IncludeDeleted: c.Query("includeDeleted") == "true",
	}
	assessments, err := h.markSets.ListAssessments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessments, nil)
}

// CreateAssessment godoc
// @Summary Add an assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Param id path string true "Mark set id"
// @Param payload body service.AssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Router /mark-sets/{id}/assessments [post]
func (h *MarkSetHandler) CreateAssessment(c *gin.Context) {
	var req service.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.markSets.CreateAssessment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// UpdateAssessment godoc
// @Summary Update an assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Param assessmentId path string true "Assessment id"
// @Param payload body service.AssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{assessmentId} [put]
func (h *MarkSetHandler) UpdateAssessment(c *gin.Context) {
	var req service.AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.markSets.UpdateAssessment(c.Request.Context(), c.Param("assessmentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// DeleteAssessment godoc
// @Summary Soft-delete an assessment
// @Tags Assessments
// @Param assessmentId path string true "Assessment id"
// @Success 204
// @Router /assessments/{assessmentId} [delete]
func (h *MarkSetHandler) DeleteAssessment(c *gin.Context) {
	if err := h.markSets.DeleteAssessment(c.Request.Context(), c.Param("assessmentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GetMembership godoc
// @Summary Read a student's membership mask
// @Tags Membership
// @Produce json
// @Param classId query string true "Class id"
// @Param studentId path string true "Student id"
// @Success 200 {object} response.Envelope
// @Router /membership/students/{studentId} [get]
func (h *MarkSetHandler) GetMembership(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrBadParams, "classId is required"))
		return
	}
	mask, err := h.markSets.Membership(c.Request.Context(), classID, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mask, nil)
}

// SetMembership godoc
// @Summary Flip a student's validity bit for a mark set
// @Tags Membership
// @Accept json
// @Produce json
// @Param classId query string true "Class id"
// @Param studentId path string true "Student id"
// @Param payload body service.MembershipUpdate true "Membership payload"
// @Success 200 {object} response.Envelope
// @Router /membership/students/{studentId} [put]
func (h *MarkSetHandler) SetMembership(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrBadParams, "classId is required"))
		return
	}
	var req service.MembershipUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = c.Param("studentId")
	mask, err := h.markSets.SetMembership(c.Request.Context(), classID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mask, nil)
}
