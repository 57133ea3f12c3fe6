// Package scoring implements the Scoring & Aggregator subsystem from
// spec.md §4.8: Score turns a phase's component test results into a
// PhaseScore, the From* helpers build those results from schema,
// guardrail and retry outcomes, and Aggregate folds every phase's score
// into a terminal GenerationReport.
package scoring

import (
	"sort"

	"github.com/andylelli/cml-01-sub003/pkg/guardrail"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/retry"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

// TestResult is one pass/fail test contributing to a component score.
type TestResult struct {
	Name     string
	Passed   bool
	Critical bool
}

// ComponentResults groups the four test buckets spec.md §4.8 scores:
// validation, quality, completeness, consistency.
type ComponentResults struct {
	Validation   []TestResult
	Quality      []TestResult
	Completeness []TestResult
	Consistency  []TestResult
}

func fraction(results []TestResult) float64 {
	if len(results) == 0 {
		return 100
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return 100 * float64(passed) / float64(len(results))
}

func anyCriticalFailed(results ...[]TestResult) bool {
	for _, bucket := range results {
		for _, r := range bucket {
			if r.Critical && !r.Passed {
				return true
			}
		}
	}
	return false
}

// Score combines ComponentResults into a PhaseScore using the fixed
// weights and minimums in pkg/models (spec.md §4.8).
func Score(phase string, results ComponentResults) models.PhaseScore {
	validation := fraction(results.Validation)
	quality := fraction(results.Quality)
	completeness := fraction(results.Completeness)
	consistency := fraction(results.Consistency)
	total := models.ComputeTotal(validation, quality, completeness, consistency)
	criticalFailed := anyCriticalFailed(results.Validation, results.Quality, results.Completeness, results.Consistency)

	return models.PhaseScore{
		Phase:          phase,
		Validation:     validation,
		Quality:        quality,
		Completeness:   completeness,
		Consistency:    consistency,
		Total:          total,
		Grade:          models.GradeFromScore(total),
		Passed:         models.ComputePassed(validation, quality, completeness, consistency, total, criticalFailed),
		CriticalFailed: criticalFailed,
	}
}

// FromSchemaViolations turns Schema Registry violations into validation
// TestResults: a clean pass is represented as a single passing test so an
// artifact with no schema at all does not read as zero tests run.
func FromSchemaViolations(violations []schema.ViolationError) []TestResult {
	if len(violations) == 0 {
		return []TestResult{{Name: "schema", Passed: true, Critical: true}}
	}
	results := make([]TestResult, 0, len(violations))
	for _, v := range violations {
		results = append(results, TestResult{Name: v.Rule, Passed: false, Critical: true})
	}
	return results
}

// FromGuardrailOutcome turns a guardrail Outcome into TestResults:
// critical violations feed the consistency component (they are the
// deepest cross-artifact checks), and the presence of any violation at
// all, regardless of severity, counts as one failed consistency test per
// violation rule.
func FromGuardrailOutcome(outcome guardrail.Outcome) []TestResult {
	if outcome.Passed() {
		return []TestResult{{Name: "guardrails", Passed: true, Critical: true}}
	}
	results := make([]TestResult, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		results = append(results, TestResult{
			Name:     v.Rule,
			Passed:   false,
			Critical: outcome.Severity == models.SeverityCritical,
		})
	}
	return results
}

// FromRetryOutcome turns a Validation-Retry Wrapper outcome into
// validation TestResults, one per unresolved violation, plus a
// passing sentinel when the outcome is valid.
func FromRetryOutcome[T any](out retry.Outcome[T]) []TestResult {
	if out.Valid {
		return []TestResult{{Name: "retry", Passed: true, Critical: true}}
	}
	if len(out.Violations) == 0 {
		return []TestResult{{Name: "retry", Passed: false, Critical: true}}
	}
	results := make([]TestResult, 0, len(out.Violations))
	for _, v := range out.Violations {
		results = append(results, TestResult{Name: v.Rule, Passed: false, Critical: true})
	}
	return results
}

// Aggregate folds every phase's PhaseScore into the terminal
// GenerationReport, per spec.md §4.8: overall score is the mean of phase
// totals, pass iff all phases passed, weakest/strongest phase by total.
func Aggregate(runID, projectID string, phases []models.PhaseScore, retryStats models.RetryStats, totalCostUSD float64) models.GenerationReport {
	report := models.GenerationReport{
		RunID:        runID,
		ProjectID:    projectID,
		PhaseScores:  phases,
		RetryStats:   retryStats,
		TotalCostUSD: totalCostUSD,
		Passed:       true,
	}
	if len(phases) == 0 {
		return report
	}

	sum := 0.0
	ranked := make([]models.PhaseScore, len(phases))
	copy(ranked, phases)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Total < ranked[j].Total })

	for _, p := range phases {
		sum += p.Total
		if !p.Passed {
			report.Passed = false
		}
	}
	report.OverallScore = sum / float64(len(phases))
	report.OverallGrade = models.GradeFromScore(report.OverallScore)
	report.WeakestPhase = ranked[0].Phase
	report.StrongestPhase = ranked[len(ranked)-1].Phase
	return report
}
