package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/marks"
	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/repository"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
)

type markDataMarkSets interface {
	FindByID(ctx context.Context, id string) (*models.MarkSet, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.MarkSet, error)
	ListByClass(ctx context.Context, classID string) ([]models.MarkSet, error)
}

type markDataCategories interface {
	ListByMarkSet(ctx context.Context, markSetID string) ([]models.Category, error)
}

type markDataAssessments interface {
	ListByMarkSet(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error)
}

type markDataStudents interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type markDataScores interface {
	FetchByAssessments(ctx context.Context, assessmentIDs []string) (map[repository.ScoreKey]models.Score, error)
}

type membershipReader interface {
	GetAll(ctx context.Context, studentIDs []string) (map[string]string, error)
}

type calcConfigSource interface {
	Effective(ctx context.Context) (models.CalcConfig, error)
}

// MarkData is one mark set's computed output for a whole class roster,
// before any presentation shaping.
type MarkData struct {
	MarkSet  models.MarkSet
	Students []models.Student
	Results  map[string]marks.Result
	Valid    map[string]bool
}

// CombinedData is the cross-mark-set counterpart of MarkData.
type CombinedData struct {
	MarkSets []models.MarkSet
	Students []models.Student
	Finals   map[string]map[string]*float64
	Valid    map[string]map[string]bool
	Result   marks.CombinedResult
}

// MarkService assembles store rows into computation inputs and runs the
// mark engine. Both analytics and reporting consume it, so identical inputs
// always produce identical numbers.
type MarkService struct {
	markSets    markDataMarkSets
	categories  markDataCategories
	assessments markDataAssessments
	students    markDataStudents
	scores      markDataScores
	memberships membershipReader
	calcConfig  calcConfigSource
	logger      *zap.Logger
}

// NewMarkService constructs MarkService.
func NewMarkService(markSets markDataMarkSets, categories markDataCategories, assessments markDataAssessments, students markDataStudents, scores markDataScores, memberships membershipReader, calcConfig calcConfigSource, logger *zap.Logger) *MarkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{
		markSets:    markSets,
		categories:  categories,
		assessments: assessments,
		students:    students,
		scores:      scores,
		memberships: memberships,
		calcConfig:  calcConfig,
		logger:      logger,
	}
}

// ComputeMarkSet computes every class student's result for one mark set.
// The term/category/type filters restrict which assessments feed the
// computation; students are not filtered here.
func (s *MarkService) ComputeMarkSet(ctx context.Context, q models.MarkQuery) (*MarkData, error) {
	set, err := s.markSets.FindByID(ctx, q.MarkSetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mark set not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark set")
	}

	ordered, err := s.markSets.ListByClass(ctx, set.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mark sets")
	}
	categories, err := s.categories.ListByMarkSet(ctx, set.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	assessments, err := s.assessments.ListByMarkSet(ctx, models.AssessmentFilter{
		MarkSetID: set.ID,
		Category:  q.Category,
		Term:      q.Term,
		TypesMask: q.TypesMask,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	students, err := s.students.ListByClass(ctx, set.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	valid, err := s.membershipBits(ctx, students, ordered, set.ID)
	if err != nil {
		return nil, err
	}

	assessmentIDs := make([]string, len(assessments))
	for i, a := range assessments {
		assessmentIDs[i] = a.ID
	}
	scores, err := s.scores.FetchByAssessments(ctx, assessmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch scores")
	}

	cfg, err := s.calcConfig.Effective(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]marks.Result, len(students))
	for _, st := range students {
		byAssessment := make(map[string]models.Score)
		for _, a := range assessments {
			if score, ok := scores[repository.ScoreKey{StudentID: st.ID, AssessmentID: a.ID}]; ok {
				byAssessment[a.ID] = score
			}
		}
		results[st.ID] = marks.ComputeFinalMark(*set, categories, assessments, byAssessment, valid[st.ID], cfg)
	}

	return &MarkData{MarkSet: *set, Students: students, Results: results, Valid: valid}, nil
}

// ComputeCombined computes per-student combined finals across the selected
// mark sets. Every selected set must belong to the same class. Per-set
// finals are computed unfiltered, the way stored reports read them.
func (s *MarkService) ComputeCombined(ctx context.Context, markSetIDs []string) (*CombinedData, error) {
	if len(markSetIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrBadParams, "no mark sets selected")
	}
	sets, err := s.markSets.FindByIDs(ctx, markSetIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark sets")
	}
	if len(sets) != len(markSetIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more mark sets not found")
	}
	classID := sets[0].ClassID
	for _, ms := range sets {
		if ms.ClassID != classID {
			return nil, appErrors.Clone(appErrors.ErrBadParams, "selected mark sets span multiple classes")
		}
	}

	var students []models.Student
	finals := make(map[string]map[string]*float64)
	valid := make(map[string]map[string]bool)
	selected := make([]marks.SelectedMarkSet, 0, len(sets))
	for _, ms := range sets {
		data, err := s.ComputeMarkSet(ctx, models.MarkQuery{MarkSetID: ms.ID})
		if err != nil {
			return nil, err
		}
		if students == nil {
			students = data.Students
		}
		byStudent := make(map[string]*float64, len(data.Results))
		for _, st := range data.Students {
			byStudent[st.ID] = data.Results[st.ID].Final
			if finals[st.ID] == nil {
				finals[st.ID] = make(map[string]*float64, len(sets))
				valid[st.ID] = make(map[string]bool, len(sets))
			}
			finals[st.ID][ms.ID] = data.Results[st.ID].Final
			valid[st.ID][ms.ID] = data.Valid[st.ID]
		}
		selected = append(selected, marks.SelectedMarkSet{ID: ms.ID, Weight: ms.Weight, FinalByStudent: byStudent})
	}

	studentIDs := make([]string, len(students))
	for i, st := range students {
		studentIDs[i] = st.ID
	}
	result := marks.Combine(selected, studentIDs)

	return &CombinedData{MarkSets: sets, Students: students, Finals: finals, Valid: valid, Result: result}, nil
}

func (s *MarkService) membershipBits(ctx context.Context, students []models.Student, ordered []models.MarkSet, markSetID string) (map[string]bool, error) {
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	raw, err := s.memberships.GetAll(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership masks")
	}
	valid := make(map[string]bool, len(students))
	for _, st := range students {
		mask := models.DecodeMembership(raw[st.ID], ordered)
		valid[st.ID] = mask.Valid(markSetID)
	}
	return valid, nil
}
