package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

type markSetRepo interface {
	ListByClass(ctx context.Context, classID string) ([]models.MarkSet, error)
	FindByID(ctx context.Context, id string) (*models.MarkSet, error)
	Create(ctx context.Context, set *models.MarkSet) error
	Update(ctx context.Context, set *models.MarkSet) error
}

type categoryRepo interface {
	ListByMarkSet(ctx context.Context, markSetID string) ([]models.Category, error)
	Upsert(ctx context.Context, category *models.Category) error
}

type assessmentRepo interface {
	ListByMarkSet(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment) error
}

type membershipStore interface {
	Get(ctx context.Context, studentID string) (string, error)
	Set(ctx context.Context, studentID, mask string) error
}

// CreateMarkSetRequest is the payload for a new mark set.
type CreateMarkSetRequest struct {
	ClassID      string              `json:"class_id" validate:"required"`
	Name         string              `json:"name" validate:"required"`
	WeightMethod models.WeightMethod `json:"weight_method" validate:"required,oneof=ASSESSMENT CATEGORY"`
	CalcMethod   models.CalcMethod   `json:"calc_method" validate:"required,oneof=AVERAGE MEDIAN MODE"`
	Weight       float64             `json:"weight" validate:"gte=0"`
}

// UpdateMarkSetRequest mutates a mark set's policy fields.
type UpdateMarkSetRequest struct {
	Name         string              `json:"name" validate:"required"`
	WeightMethod models.WeightMethod `json:"weight_method" validate:"required,oneof=ASSESSMENT CATEGORY"`
	CalcMethod   models.CalcMethod   `json:"calc_method" validate:"required,oneof=AVERAGE MEDIAN MODE"`
	Weight       float64             `json:"weight" validate:"gte=0"`
}

// UpsertCategoryRequest creates or reweights a category within a mark set.
type UpsertCategoryRequest struct {
	Name   string  `json:"name" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// AssessmentRequest is the payload for creating or updating an assessment.
type AssessmentRequest struct {
	Category   string  `json:"category" validate:"required"`
	Title      string  `json:"title" validate:"required"`
	Weight     float64 `json:"weight" validate:"gte=0"`
	OutOf      float64 `json:"out_of" validate:"gt=0"`
	Term       int     `json:"term" validate:"gte=0"`
	LegacyType int     `json:"legacy_type" validate:"gte=0"`
}

// MembershipUpdate flips one student's validity bit for one mark set.
type MembershipUpdate struct {
	StudentID string `json:"student_id" validate:"required"`
	MarkSetID string `json:"mark_set_id" validate:"required"`
	Valid     bool   `json:"valid"`
}

// MarkSetService manages mark sets, their categories and assessments, and
// per-student membership masks.
type MarkSetService struct {
	markSets    markSetRepo
	categories  categoryRepo
	assessments assessmentRepo
	memberships membershipStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMarkSetService constructs MarkSetService.
func NewMarkSetService(markSets markSetRepo, categories categoryRepo, assessments assessmentRepo, memberships membershipStore, validate *validator.Validate, logger *zap.Logger) *MarkSetService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkSetService{
		markSets:    markSets,
		categories:  categories,
		assessments: assessments,
		memberships: memberships,
		validator:   validate,
		logger:      logger,
	}
}

// List returns a class's mark sets in sort order.
func (s *MarkSetService) List(ctx context.Context, classID string) ([]models.MarkSet, error) {
	sets, err := s.markSets.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mark sets")
	}
	return sets, nil
}

// Get returns one mark set with its categories.
func (s *MarkSetService) Get(ctx context.Context, id string) (*models.MarkSet, []models.Category, error) {
	set, err := s.findMarkSet(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	categories, err := s.categories.ListByMarkSet(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return set, categories, nil
}

// Create adds a mark set at the end of the class's sort order. The sort
// order doubles as the membership-mask bit index, so it is assigned here and
// never reused.
func (s *MarkSetService) Create(ctx context.Context, req CreateMarkSetRequest) (*models.MarkSet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark set payload")
	}
	existing, err := s.markSets.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mark sets")
	}
	nextOrder := 0
	for _, ms := range existing {
		if ms.SortOrder >= nextOrder {
			nextOrder = ms.SortOrder + 1
		}
	}
	set := &models.MarkSet{
		ClassID:      req.ClassID,
		Name:         req.Name,
		WeightMethod: req.WeightMethod,
		CalcMethod:   req.CalcMethod,
		Weight:       req.Weight,
		SortOrder:    nextOrder,
	}
	if err := s.markSets.Create(ctx, set); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mark set")
	}
	return set, nil
}

// Update mutates a mark set's policy fields. Weight 0 soft-deletes the set
// for combined aggregation without touching its scores.
func (s *MarkSetService) Update(ctx context.Context, id string, req UpdateMarkSetRequest) (*models.MarkSet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark set payload")
	}
	set, err := s.findMarkSet(ctx, id)
	if err != nil {
		return nil, err
	}
	set.Name = req.Name
	set.WeightMethod = req.WeightMethod
	set.CalcMethod = req.CalcMethod
	set.Weight = req.Weight
	if err := s.markSets.Update(ctx, set); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mark set")
	}
	return set, nil
}

// UpsertCategory creates or reweights a category. Weight 0 excludes the
// category from the final mark while keeping its breakdown visible.
func (s *MarkSetService) UpsertCategory(ctx context.Context, markSetID string, req UpsertCategoryRequest) (*models.Category, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid category payload")
	}
	if _, err := s.findMarkSet(ctx, markSetID); err != nil {
		return nil, err
	}
	category := &models.Category{MarkSetID: markSetID, Name: req.Name, Weight: req.Weight}
	if err := s.categories.Upsert(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert category")
	}
	return category, nil
}

// ListAssessments returns a mark set's assessments under the given filter.
func (s *MarkSetService) ListAssessments(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	assessments, err := s.assessments.ListByMarkSet(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	return assessments, nil
}

// CreateAssessment adds an assessment to a mark set.
func (s *MarkSetService) CreateAssessment(ctx context.Context, markSetID string, req AssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if _, err := s.findMarkSet(ctx, markSetID); err != nil {
		return nil, err
	}
	assessment := &models.Assessment{
		MarkSetID:  markSetID,
		Category:   req.Category,
		Title:      req.Title,
		Weight:     req.Weight,
		OutOf:      req.OutOf,
		Term:       req.Term,
		LegacyType: req.LegacyType,
	}
	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
	}
	return assessment, nil
}

// UpdateAssessment mutates an assessment's fields.
func (s *MarkSetService) UpdateAssessment(ctx context.Context, id string, req AssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	assessment, err := s.findAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	assessment.Category = req.Category
	assessment.Title = req.Title
	assessment.Weight = req.Weight
	assessment.OutOf = req.OutOf
	assessment.Term = req.Term
	assessment.LegacyType = req.LegacyType
	if err := s.assessments.Update(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assessment")
	}
	return assessment, nil
}

// DeleteAssessment soft-deletes an assessment by zeroing its weight. Scores
// are retained; the assessment disappears from default listings and from
// computation.
func (s *MarkSetService) DeleteAssessment(ctx context.Context, id string) error {
	assessment, err := s.findAssessment(ctx, id)
	if err != nil {
		return err
	}
	if assessment.Deleted() {
		return nil
	}
	assessment.Weight = 0
	if err := s.assessments.Update(ctx, assessment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assessment")
	}
	s.logger.Info("assessment soft-deleted", zap.String("assessment_id", id))
	return nil
}

// Membership returns a student's validity per mark set of a class, decoded
// from the stored mask. Missing or short masks read as valid.
func (s *MarkSetService) Membership(ctx context.Context, classID, studentID string) (models.MembershipMask, error) {
	ordered, err := s.markSets.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mark sets")
	}
	raw, err := s.memberships.Get(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership mask")
	}
	return models.DecodeMembership(raw, ordered), nil
}

// SetMembership flips one student's validity bit and re-serialises the mask
// against the class's current mark set order.
func (s *MarkSetService) SetMembership(ctx context.Context, classID string, update MembershipUpdate) (models.MembershipMask, error) {
	if err := s.validator.Struct(update); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid membership payload")
	}
	ordered, err := s.markSets.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mark sets")
	}
	known := false
	for _, ms := range ordered {
		if ms.ID == update.MarkSetID {
			known = true
			break
		}
	}
	if !known {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "mark set not found in class")
	}
	raw, err := s.memberships.Get(ctx, update.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership mask")
	}
	mask := models.DecodeMembership(raw, ordered)
	mask[update.MarkSetID] = update.Valid
	if err := s.memberships.Set(ctx, update.StudentID, models.EncodeMembership(mask, ordered)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store membership mask")
	}
	return mask, nil
}

func (s *MarkSetService) findMarkSet(ctx context.Context, id string) (*models.MarkSet, error) {
	set, err := s.markSets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark set not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark set")
	}
	return set, nil
}

func (s *MarkSetService) findAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment")
	}
	if assessment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
	}
	return assessment, nil
}
