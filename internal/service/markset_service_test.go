package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
)

type markSetWriterStub struct {
	markSetStoreStub
}

func (s *markSetWriterStub) Create(ctx context.Context, set *models.MarkSet) error {
	if set.ID == "" {
		set.ID = set.Name
	}
	s.sets = append(s.sets, *set)
	return nil
}

func (s *markSetWriterStub) Update(ctx context.Context, set *models.MarkSet) error {
	for i := range s.sets {
		if s.sets[i].ID == set.ID {
			s.sets[i] = *set
			return nil
		}
	}
	return nil
}

type categoryWriterStub struct {
	categoryStoreStub
}

func (s *categoryWriterStub) Upsert(ctx context.Context, category *models.Category) error {
	if s.items == nil {
		s.items = make(map[string][]models.Category)
	}
	s.items[category.MarkSetID] = append(s.items[category.MarkSetID], *category)
	return nil
}

type assessmentWriterStub struct {
	assessmentStoreStub
}

func (s *assessmentWriterStub) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	for _, a := range s.items {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (s *assessmentWriterStub) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = assessment.Title
	}
	s.items = append(s.items, *assessment)
	return nil
}

func (s *assessmentWriterStub) Update(ctx context.Context, assessment *models.Assessment) error {
	for i := range s.items {
		if s.items[i].ID == assessment.ID {
			s.items[i] = *assessment
			return nil
		}
	}
	return nil
}

func markSetServiceFixture() (*MarkSetService, *markSetWriterStub, *assessmentWriterStub, *membershipStoreStub) {
	markSets := &markSetWriterStub{markSetStoreStub{sets: []models.MarkSet{
		{ID: "ms1", ClassID: "c1", Name: "Term 1", WeightMethod: models.WeightByAssessment, CalcMethod: models.CalcAverage, Weight: 1, SortOrder: 0},
		{ID: "ms2", ClassID: "c1", Name: "Term 2", WeightMethod: models.WeightByAssessment, CalcMethod: models.CalcAverage, Weight: 1, SortOrder: 1},
	}}}
	categories := &categoryWriterStub{}
	assessments := &assessmentWriterStub{assessmentStoreStub{items: []models.Assessment{
		{ID: "a1", MarkSetID: "ms1", Category: "TESTS", Title: "Quiz 1", Weight: 1, OutOf: 20},
	}}}
	memberships := &membershipStoreStub{masks: map[string]string{}}
	svc := NewMarkSetService(markSets, categories, assessments, memberships, nil, nil)
	return svc, markSets, assessments, memberships
}

func TestCreateMarkSetAssignsNextSortOrder(t *testing.T) {
	svc, _, _, _ := markSetServiceFixture()

	set, err := svc.Create(context.Background(), CreateMarkSetRequest{
		ClassID:      "c1",
		Name:         "Term 3",
		WeightMethod: models.WeightByCategory,
		CalcMethod:   models.CalcMedian,
		Weight:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, set.SortOrder)
}

func TestDeleteAssessmentZeroesWeight(t *testing.T) {
	svc, _, assessments, _ := markSetServiceFixture()

	require.NoError(t, svc.DeleteAssessment(context.Background(), "a1"))
	assert.True(t, assessments.items[0].Deleted())

	// Idempotent: deleting again keeps the soft state.
	require.NoError(t, svc.DeleteAssessment(context.Background(), "a1"))
	assert.Zero(t, assessments.items[0].Weight)
}

func TestSetMembershipEncodesMask(t *testing.T) {
	svc, _, _, memberships := markSetServiceFixture()
	ctx := context.Background()

	mask, err := svc.SetMembership(ctx, "c1", MembershipUpdate{StudentID: "s1", MarkSetID: "ms1", Valid: false})
	require.NoError(t, err)
	assert.False(t, mask.Valid("ms1"))
	assert.True(t, mask.Valid("ms2"))
	assert.Equal(t, "01", memberships.masks["s1"])

	mask, err = svc.SetMembership(ctx, "c1", MembershipUpdate{StudentID: "s1", MarkSetID: "ms1", Valid: true})
	require.NoError(t, err)
	assert.True(t, mask.Valid("ms1"))
	assert.Equal(t, "11", memberships.masks["s1"])
}

func TestSetMembershipUnknownMarkSet(t *testing.T) {
	svc, _, _, _ := markSetServiceFixture()

	_, err := svc.SetMembership(context.Background(), "c1", MembershipUpdate{StudentID: "s1", MarkSetID: "nope", Valid: false})
	require.Error(t, err)
}

func TestMembershipMissingMaskReadsValid(t *testing.T) {
	svc, _, _, _ := markSetServiceFixture()

	mask, err := svc.Membership(context.Background(), "c1", "s9")
	require.NoError(t, err)
	assert.True(t, mask.Valid("ms1"))
	assert.True(t, mask.Valid("ms2"))
}
