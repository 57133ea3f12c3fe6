package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/guardrail"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/retry"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

func TestScorePassesWithAllPassingTests(t *testing.T) {
	results := ComponentResults{
		Validation:   []TestResult{{Name: "schema", Passed: true, Critical: true}},
		Quality:      []TestResult{{Name: "length", Passed: true}},
		Completeness: []TestResult{{Name: "fields", Passed: true}},
		Consistency:  []TestResult{{Name: "guardrails", Passed: true, Critical: true}},
	}
	score := Score("setting", results)
	assert.True(t, score.Passed)
	assert.Equal(t, models.GradeA, score.Grade)
	assert.InDelta(t, 100, score.Total, 1e-9)
}

func TestScoreFailsOnCriticalFailure(t *testing.T) {
	results := ComponentResults{
		Validation: []TestResult{{Name: "schema", Passed: false, Critical: true}},
	}
	score := Score("cml", results)
	assert.False(t, score.Passed)
	assert.True(t, score.CriticalFailed)
}

func TestScoreFailsBelowComponentMinimum(t *testing.T) {
	results := ComponentResults{
		Validation: []TestResult{{Name: "a", Passed: true}, {Name: "b", Passed: false}},
		Quality:    []TestResult{{Name: "c", Passed: false}, {Name: "d", Passed: false}},
	}
	score := Score("clues", results)
	assert.False(t, score.Passed)
	assert.Less(t, score.Quality, models.MinQuality)
}

func TestFromSchemaViolationsEmptyIsPassingSentinel(t *testing.T) {
	results := FromSchemaViolations(nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestFromSchemaViolationsOneEntryPerViolation(t *testing.T) {
	violations := []schema.ViolationError{
		{Path: "anchors", Rule: "itemCount"},
		{Path: "description", Rule: "required"},
	}
	results := FromSchemaViolations(violations)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Passed)
	}
}

func TestFromGuardrailOutcomePassing(t *testing.T) {
	results := FromGuardrailOutcome(guardrail.Outcome{})
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestFromRetryOutcomeValid(t *testing.T) {
	out := retry.Outcome[string]{Valid: true}
	results := FromRetryOutcome(out)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestAggregateComputesMeanAndExtremes(t *testing.T) {
	phases := []models.PhaseScore{
		{Phase: "setting", Total: 90, Passed: true},
		{Phase: "cast", Total: 60, Passed: true},
		{Phase: "clues", Total: 75, Passed: true},
	}
	report := Aggregate("run-1", "proj-1", phases, models.RetryStats{TotalAttempts: 4}, 1.23)
	assert.InDelta(t, 75, report.OverallScore, 1e-9)
	assert.Equal(t, "cast", report.WeakestPhase)
	assert.Equal(t, "setting", report.StrongestPhase)
	assert.True(t, report.Passed)
}

func TestAggregateFailsIfAnyPhaseFailed(t *testing.T) {
	phases := []models.PhaseScore{
		{Phase: "setting", Total: 90, Passed: true},
		{Phase: "cml", Total: 40, Passed: false},
	}
	report := Aggregate("run-1", "proj-1", phases, models.RetryStats{}, 0)
	assert.False(t, report.Passed)
}
