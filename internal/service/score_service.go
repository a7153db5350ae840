package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

type assessmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
}

type rosterReader interface {
	FindByPosition(ctx context.Context, classID string, position int) (*models.Student, error)
}

type scoreWriter interface {
	Upsert(ctx context.Context, score *models.Score) error
	BulkUpsert(ctx context.Context, scores []models.Score) error
}

// ScoreEdit addresses one cell by roster row and assessment column. Row is a
// pointer so an absent row is distinguishable from row zero.
type ScoreEdit struct {
	Row          *int               `json:"row"`
	AssessmentID string             `json:"assessment_id" validate:"required"`
	Status       models.ScoreStatus `json:"status" validate:"required,oneof=NO_MARK ZERO SCORED"`
	Value        *float64           `json:"value"`
}

// BulkEditRequest carries a batch of score edits for one class roster.
type BulkEditRequest struct {
	ClassID string      `json:"class_id" validate:"required"`
	Edits   []ScoreEdit `json:"edits" validate:"required"`
}

// EditError records why one edit was rejected.
type EditError struct {
	Index   int    `json:"index"`
	Row     *int   `json:"row,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkEditResult summarises a bulk edit. When the batch exceeds the edit
// ceiling nothing is applied and LimitExceeded is set with a single error.
type BulkEditResult struct {
	Updated       int         `json:"updated"`
	Rejected      int         `json:"rejected"`
	LimitExceeded bool        `json:"limit_exceeded"`
	Errors        []EditError `json:"errors,omitempty"`
}

// ScoreService validates and applies score edits independent of any
// calculation policy.
type ScoreService struct {
	assessments assessmentReader
	roster      rosterReader
	scores      scoreWriter
	ceiling     int
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScoreService constructs ScoreService. ceiling bounds bulk batches; a
// non-positive value falls back to 5000.
func NewScoreService(assessments assessmentReader, roster rosterReader, scores scoreWriter, ceiling int, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if ceiling <= 0 {
		ceiling = 5000
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{
		assessments: assessments,
		roster:      roster,
		scores:      scores,
		ceiling:     ceiling,
		validator:   validate,
		logger:      logger,
	}
}

// ApplyEdit validates and applies a single score edit.
func (s *ScoreService) ApplyEdit(ctx context.Context, classID string, edit ScoreEdit) (*models.Score, error) {
	if err := s.validator.Struct(edit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadParams.Code, appErrors.ErrBadParams.Status, "invalid edit payload")
	}
	score, editErr := s.resolveEdit(ctx, classID, edit)
	if editErr != nil {
		return nil, appErrors.New(editErr.Code, statusForCode(editErr.Code), editErr.Message)
	}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store score")
	}
	return score, nil
}

// BulkEdit validates each edit independently and applies the valid subset in
// one transaction. Batches above the ceiling are rejected wholesale with a
// single error and zero edits applied.
func (s *ScoreService) BulkEdit(ctx context.Context, req BulkEditRequest) (*BulkEditResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadParams.Code, appErrors.ErrBadParams.Status, "invalid bulk payload")
	}
	if len(req.Edits) > s.ceiling {
		return &BulkEditResult{
			Rejected:      len(req.Edits),
			LimitExceeded: true,
			Errors: []EditError{{
				Code:    appErrors.ErrTooManyEdits.Code,
				Message: fmt.Sprintf("edit count %d exceeds ceiling %d", len(req.Edits), s.ceiling),
			}},
		}, nil
	}

	result := &BulkEditResult{}
	valid := make([]models.Score, 0, len(req.Edits))
	for i, edit := range req.Edits {
		score, editErr := s.resolveEdit(ctx, req.ClassID, edit)
		if editErr != nil {
			editErr.Index = i
			result.Rejected++
			result.Errors = append(result.Errors, *editErr)
			continue
		}
		valid = append(valid, *score)
	}
	if len(valid) > 0 {
		if err := s.scores.BulkUpsert(ctx, valid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store score batch")
		}
		result.Updated = len(valid)
	}
	s.logger.Info("bulk score edit applied",
		zap.String("class_id", req.ClassID),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", result.Rejected))
	return result, nil
}

// resolveEdit turns one edit into a storable score, or an EditError naming
// the rejection.
func (s *ScoreService) resolveEdit(ctx context.Context, classID string, edit ScoreEdit) (*models.Score, *EditError) {
	if edit.Row == nil || *edit.Row < 0 {
		return nil, &EditError{Row: edit.Row, Code: appErrors.ErrBadParams.Code, Message: "missing or invalid row"}
	}
	assessment, err := s.assessments.FindByID(ctx, edit.AssessmentID)
	if err != nil {
		return nil, &EditError{Row: edit.Row, Code: appErrors.ErrInternal.Code, Message: "failed to load assessment"}
	}
	if assessment == nil {
		return nil, &EditError{Row: edit.Row, Code: appErrors.ErrNotFound.Code, Message: "assessment not found"}
	}
	student, err := s.roster.FindByPosition(ctx, classID, *edit.Row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &EditError{Row: edit.Row, Code: appErrors.ErrNotFound.Code, Message: fmt.Sprintf("no student at row %d", *edit.Row)}
		}
		return nil, &EditError{Row: edit.Row, Code: appErrors.ErrInternal.Code, Message: "failed to load student"}
	}

	score := &models.Score{
		AssessmentID: assessment.ID,
		StudentID:    student.ID,
		Status:       edit.Status,
	}
	switch edit.Status {
	case models.ScoreScored:
		if edit.Value == nil {
			return nil, &EditError{Row: edit.Row, Code: appErrors.ErrBadParams.Code, Message: "scored edit requires a value"}
		}
		if *edit.Value < 0 {
			return nil, &EditError{Row: edit.Row, Code: appErrors.ErrBadParams.Code, Message: "value must not be negative"}
		}
		if assessment.OutOf > 0 && *edit.Value > assessment.OutOf {
			return nil, &EditError{Row: edit.Row, Code: appErrors.ErrBadParams.Code, Message: fmt.Sprintf("value exceeds maximum %g", assessment.OutOf)}
		}
		score.Raw = edit.Value
	case models.ScoreZero, models.ScoreNoMark:
		score.Raw = nil
	default:
		return nil, &EditError{Row: edit.Row, Code: appErrors.ErrBadParams.Code, Message: "unknown score state"}
	}
	return score, nil
}

func statusForCode(code string) int {
	switch code {
	case appErrors.ErrNotFound.Code:
		return appErrors.ErrNotFound.Status
	case appErrors.ErrBadParams.Code:
		return appErrors.ErrBadParams.Status
	default:
		return appErrors.ErrInternal.Status
	}
}
