package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarks/markbook-api/internal/models"
)

func analyticsFixture() (*AnalyticsService, *membershipStoreStub) {
	markData, memberships := markFixture()
	return NewAnalyticsService(markData, nil, nil, nil), memberships
}

func TestAnalyticsMarksRows(t *testing.T) {
	svc, _ := analyticsFixture()

	report, pagination, cached, err := svc.Marks(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Nil(t, pagination)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, 2, report.KPIs.Population)
	assert.Equal(t, 2, report.KPIs.WithFinal)
	require.NotNil(t, report.KPIs.Average)
	assert.InDelta(t, 70.0, *report.KPIs.Average, 0.05)
	assert.Len(t, report.Distribution, 6)
}

func TestAnalyticsValidScopeExcludesMaskedStudents(t *testing.T) {
	svc, memberships := analyticsFixture()
	memberships.masks["s1"] = "01"

	report, _, _, err := svc.Marks(context.Background(), models.MarkQuery{MarkSetID: "ms1", Scope: models.ScopeValid})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "s2", report.Rows[0].StudentID)

	// Out of valid scope but still present under all, with a null final.
	report, _, _, err = svc.Marks(context.Background(), models.MarkQuery{MarkSetID: "ms1", Scope: models.ScopeAll})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	for _, row := range report.Rows {
		if row.StudentID == "s1" {
			assert.Nil(t, row.Final)
		}
	}
}

func TestAnalyticsCohortFilter(t *testing.T) {
	svc, _ := analyticsFixture()

	min := 70.0
	report, _, _, err := svc.Marks(context.Background(), models.MarkQuery{
		MarkSetID: "ms1",
		Cohort:    &models.CohortFilter{FinalMin: &min},
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "s1", report.Rows[0].StudentID)
	// KPIs follow the cohort-filtered population.
	assert.Equal(t, 1, report.KPIs.Population)
}

func TestAnalyticsSearchAfterComputation(t *testing.T) {
	svc, _ := analyticsFixture()

	report, _, _, err := svc.Marks(context.Background(), models.MarkQuery{MarkSetID: "ms1", Search: "ada"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Ada Byron", report.Rows[0].StudentName)
	// Aggregates still cover the whole population.
	assert.Equal(t, 2, report.KPIs.Population)
}

func TestAnalyticsSortAndPage(t *testing.T) {
	svc, _ := analyticsFixture()

	report, pagination, _, err := svc.Marks(context.Background(), models.MarkQuery{
		MarkSetID: "ms1",
		SortBy:    "final",
		SortDir:   models.SortDesc,
		Page:      1,
		PageSize:  1,
	})
	require.NoError(t, err)
	require.NotNil(t, pagination)
	assert.Equal(t, 2, pagination.TotalCount)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "s1", report.Rows[0].StudentID)

	report, _, _, err = svc.Marks(context.Background(), models.MarkQuery{
		MarkSetID: "ms1",
		SortBy:    "final",
		SortDir:   models.SortDesc,
		Page:      2,
		PageSize:  1,
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "s2", report.Rows[0].StudentID)
}

func TestAnalyticsCombinedFallbackCount(t *testing.T) {
	markData, _ := markFixture()
	// Zero out declared weights to force the equal-weight fallback.
	stub := markData.markSets.(*markSetStoreStub)
	for i := range stub.sets {
		stub.sets[i].Weight = 0
	}
	svc := NewAnalyticsService(markData, nil, nil, nil)

	report, _, _, err := svc.Combined(context.Background(), models.CombinedQuery{MarkSetIDs: []string{"ms1", "ms2"}})
	require.NoError(t, err)
	assert.Positive(t, report.FallbackUsedCount)
	for _, row := range report.Rows {
		if row.StudentID == "s1" {
			require.NotNil(t, row.Combined)
			assert.InDelta(t, 70.0, *row.Combined, 0.05)
		}
	}
}

func TestAnalyticsDistributionBins(t *testing.T) {
	svc, _ := analyticsFixture()

	report, _, _, err := svc.Marks(context.Background(), models.MarkQuery{MarkSetID: "ms1"})
	require.NoError(t, err)
	require.Len(t, report.Distribution, 6)
	total := 0
	for _, bin := range report.Distribution {
		total += bin.Count
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 100.0, report.Distribution[5].High)
}
