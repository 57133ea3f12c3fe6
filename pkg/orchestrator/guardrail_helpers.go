package orchestrator

import (
	"fmt"

	"github.com/andylelli/cml-01-sub003/pkg/guardrail"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/scoring"
)

// severityFor maps a guardrail.Outcome's severity to the closest
// RunEventSeverity, so a guardrail retry event reads at the right level
// in the event stream (critical violations are never just "info").
func severityFor(outcome guardrail.Outcome) models.RunEventSeverity {
	switch outcome.Severity {
	case models.SeverityCritical:
		return models.EventSeverityError
	case models.SeverityMajor:
		return models.EventSeverityWarning
	default:
		return models.EventSeverityInfo
	}
}

// feedbackStrings renders a guardrail.Outcome's violations into the
// human-readable feedback strings a retargeted regeneration pass feeds
// back into the next prompt (spec.md §4.11's "regenerate with feedback"
// loops).
func feedbackStrings(outcome guardrail.Outcome) []string {
	out := make([]string, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		out = append(out, fmt.Sprintf("[%s] %s: %s", v.Rule, v.Subject, v.Detail))
	}
	return out
}

func guardrailPayload(outcome guardrail.Outcome) map[string]any {
	if len(outcome.Violations) == 0 {
		return nil
	}
	rules := make([]string, 0, len(outcome.Violations))
	for _, v := range outcome.Violations {
		rules = append(rules, v.Rule)
	}
	return map[string]any{"violated_rules": rules, "severity": outcome.Severity}
}

func hasRule(outcome guardrail.Outcome, rule string) bool {
	for _, v := range outcome.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// structuralViolationClasses are the two fair-play violation classes
// that escalate to a full CML revision (loop 4) rather than a clue-only
// regeneration (loop 3) — the line Agent 6 draws between "the clues
// could be better" and "the case itself is not solvable as designed".
var structuralViolationClasses = map[string]bool{
	"inference_path_abstract":       true,
	"constraint_space_insufficient": true,
}

func hasStructuralViolation(report models.FairPlayReport) bool {
	for _, class := range report.ViolationClasses {
		if structuralViolationClasses[class] {
			return true
		}
	}
	return false
}

func checklistResults(checklist []models.FairPlayChecklistItem, critical bool) []scoring.TestResult {
	results := make([]scoring.TestResult, 0, len(checklist))
	for _, item := range checklist {
		results = append(results, scoring.TestResult{Name: item.Rule, Passed: item.Passed, Critical: critical})
	}
	return results
}
