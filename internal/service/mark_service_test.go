package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
	"github.com/openmarks/markbook-api/internal/repository"
)

type markSetStoreStub struct {
	sets []models.MarkSet
}

func (s *markSetStoreStub) FindByID(ctx context.Context, id string) (*models.MarkSet, error) {
	for _, ms := range s.sets {
		if ms.ID == id {
			found := ms
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *markSetStoreStub) FindByIDs(ctx context.Context, ids []string) ([]models.MarkSet, error) {
	var out []models.MarkSet
	for _, id := range ids {
		for _, ms := range s.sets {
			if ms.ID == id {
				out = append(out, ms)
			}
		}
	}
	return out, nil
}

func (s *markSetStoreStub) ListByClass(ctx context.Context, classID string) ([]models.MarkSet, error) {
	var out []models.MarkSet
	for _, ms := range s.sets {
		if ms.ClassID == classID {
			out = append(out, ms)
		}
	}
	return out, nil
}

type categoryStoreStub struct {
	items map[string][]models.Category
}

func (s *categoryStoreStub) ListByMarkSet(ctx context.Context, markSetID string) ([]models.Category, error) {
	return s.items[markSetID], nil
}

type assessmentStoreStub struct {
	items []models.Assessment
}

func (s *assessmentStoreStub) ListByMarkSet(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range s.items {
		if a.MarkSetID == filter.MarkSetID && filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

type studentStoreStub struct {
	students []models.Student
}

func (s *studentStoreStub) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	var out []models.Student
	for _, st := range s.students {
		if st.ClassID == classID {
			out = append(out, st)
		}
	}
	return out, nil
}

type scoreStoreStub struct {
	scores map[repository.ScoreKey]models.Score
}

func (s *scoreStoreStub) FetchByAssessments(ctx context.Context, assessmentIDs []string) (map[repository.ScoreKey]models.Score, error) {
	out := make(map[repository.ScoreKey]models.Score)
	for key, score := range s.scores {
		for _, id := range assessmentIDs {
			if key.AssessmentID == id {
				out[key] = score
			}
		}
	}
	return out, nil
}

type membershipStoreStub struct {
	masks map[string]string
}

func (s *membershipStoreStub) GetAll(ctx context.Context, studentIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range studentIDs {
		if mask, ok := s.masks[id]; ok {
			out[id] = mask
		}
	}
	return out, nil
}

func (s *membershipStoreStub) Get(ctx context.Context, studentID string) (string, error) {
	return s.masks[studentID], nil
}

func (s *membershipStoreStub) Set(ctx context.Context, studentID, mask string) error {
	if s.masks == nil {
		s.masks = make(map[string]string)
	}
	s.masks[studentID] = mask
	return nil
}

type calcConfigStub struct {
	cfg models.CalcConfig
}

func (s *calcConfigStub) Effective(ctx context.Context) (models.CalcConfig, error) {
	if s.cfg.ModeActiveLevels == 0 {
		return models.DefaultCalcConfig(), nil
	}
	return s.cfg, nil
}

// markFixture builds one class with two mark sets, one scored assessment
// each, and two students.
func markFixture() (*MarkService, *membershipStoreStub) {
	markSets := &markSetStoreStub{sets: []models.MarkSet{
		{ID: "ms1", ClassID: "c1", Name: "Term 1", WeightMethod: models.WeightByAssessment, CalcMethod: models.CalcAverage, Weight: 1, SortOrder: 0},
		{ID: "ms2", ClassID: "c1", Name: "Term 2", WeightMethod: models.WeightByAssessment, CalcMethod: models.CalcAverage, Weight: 1, SortOrder: 1},
	}}
	categories := &categoryStoreStub{items: map[string][]models.Category{
		"ms1": {{ID: "cat1", MarkSetID: "ms1", Name: "TESTS", Weight: 1}},
		"ms2": {{ID: "cat2", MarkSetID: "ms2", Name: "TESTS", Weight: 1}},
	}}
	assessments := &assessmentStoreStub{items: []models.Assessment{
		{ID: "a1", MarkSetID: "ms1", Category: "TESTS", Title: "Quiz 1", Weight: 1, OutOf: 10},
		{ID: "a2", MarkSetID: "ms2", Category: "TESTS", Title: "Quiz 2", Weight: 1, OutOf: 10},
	}}
	students := &studentStoreStub{students: []models.Student{
		{ID: "s1", ClassID: "c1", FullName: "Ada Byron", Position: 0, Active: true},
		{ID: "s2", ClassID: "c1", FullName: "Alan Turing", Position: 1, Active: true},
	}}
	eight, six := 8.0, 6.0
	scores := &scoreStoreStub{scores: map[repository.ScoreKey]models.Score{
		{StudentID: "s1", AssessmentID: "a1"}: {AssessmentID: "a1", StudentID: "s1", Raw: &eight, Status: models.ScoreScored},
		{StudentID: "s2", AssessmentID: "a1"}: {AssessmentID: "a1", StudentID: "s2", Raw: &six, Status: models.ScoreScored},
		{StudentID: "s1", AssessmentID: "a2"}: {AssessmentID: "a2", StudentID: "s1", Raw: &six, Status: models.ScoreScored},
	}}
	memberships := &membershipStoreStub{masks: map[string]string{}}
	svc := NewMarkService(markSets, categories, assessments, students, scores, memberships, &calcConfigStub{}, nil)
	return svc, memberships
}

func TestComputeMarkSetFinals(t *testing.T) {
	svc, _ := markFixture()

	data, err := svc.ComputeMarkSet(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	require.NotNil(t, data.Results["s1"].Final)
	assert.InDelta(t, 80.0, *data.Results["s1"].Final, 0.05)
	require.NotNil(t, data.Results["s2"].Final)
	assert.InDelta(t, 60.0, *data.Results["s2"].Final, 0.05)
}

func TestComputeMarkSetMembershipToggle(t *testing.T) {
	svc, memberships := markFixture()

	data, err := svc.ComputeMarkSet(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	require.NotNil(t, data.Results["s1"].Final)
	before := *data.Results["s1"].Final

	// Disable s1's bit for ms1 (sort order 0).
	memberships.masks["s1"] = "01"
	data, err = svc.ComputeMarkSet(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	assert.Nil(t, data.Results["s1"].Final)
	assert.False(t, data.Valid["s1"])

	memberships.masks["s1"] = "11"
	data, err = svc.ComputeMarkSet(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	require.NotNil(t, data.Results["s1"].Final)
	assert.InDelta(t, before, *data.Results["s1"].Final, 0.05)
}

func TestComputeMarkSetUnknownID(t *testing.T) {
	svc, _ := markFixture()

	_, err := svc.ComputeMarkSet(context.Background(), models.MarkQuery{MarkSetID: "nope"})
	require.Error(t, err)
}

func TestComputeCombinedRenormalises(t *testing.T) {
	svc, _ := markFixture()

	data, err := svc.ComputeCombined(context.Background(), []string{"ms1", "ms2"})
	require.NoError(t, err)
	assert.Zero(t, data.Result.FallbackUsedCount)

	byStudent := map[string]*float64{}
	for _, sc := range data.Result.PerStudent {
		byStudent[sc.StudentID] = sc.Combined
	}
	// s1 has marks in both sets, s2 only in ms1.
	require.NotNil(t, byStudent["s1"])
	assert.InDelta(t, 70.0, *byStudent["s1"], 0.05)
	require.NotNil(t, byStudent["s2"])
	assert.InDelta(t, 60.0, *byStudent["s2"], 0.05)
}

func TestComputeCombinedRejectsMixedClasses(t *testing.T) {
	svc, _ := markFixture()

	_, err := svc.ComputeCombined(context.Background(), []string{"ms1", "other"})
	require.Error(t, err)
}
