// Package guardrail implements the Deterministic Guardrails from
// spec.md §4.5: pure functions over already-parsed artifacts, each
// returning a (severity, violations, recommendations) outcome. Guardrails
// never touch the network or the store; callers pass in the
// already-loaded artifacts each check needs as typed arguments.
//
// Text-matching guardrails compile their patterns once at package init,
// the same shape as the teacher's masking.CompiledPattern table
// (pkg/masking/pattern.go): a name, a regex, and what it's looking for.
package guardrail

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// Violation is one guardrail finding.
type Violation struct {
	Rule    string
	Detail  string
	Subject string // e.g. clue ID, suspect name, scene reference
}

// Outcome is the result of one guardrail check, per spec.md §4.5:
// "each returns (severity, violations[], recommendations[])".
type Outcome struct {
	Severity        models.GuardrailSeverity
	Violations      []Violation
	Recommendations []string
}

// Passed reports whether the guardrail found nothing to flag.
func (o Outcome) Passed() bool { return len(o.Violations) == 0 }

func merge(outcomes ...Outcome) Outcome {
	var merged Outcome
	severityRank := map[models.GuardrailSeverity]int{
		models.SeverityMinor: 1, models.SeverityMajor: 2, models.SeverityCritical: 3,
	}
	best := 0
	for _, o := range outcomes {
		merged.Violations = append(merged.Violations, o.Violations...)
		merged.Recommendations = append(merged.Recommendations, o.Recommendations...)
		if r := severityRank[o.Severity]; r > best && len(o.Violations) > 0 {
			best = r
			merged.Severity = o.Severity
		}
	}
	return merged
}

var privateObserverRe = regexp.MustCompile(`(?i)\b(only|sole(ly)?)\b[^.]{0,40}\b(detective|investigator|sleuth)\b`)

// ClueGuardrails runs every clue-level check from spec.md §4.5, after
// Agent 5 and before Agent 6.
func ClueGuardrails(cml models.CML, cast models.Cast, clues models.Clues) Outcome {
	return merge(
		essentialPlacement(clues),
		uniqueIDs(clues),
		noPrivatePhrasing(clues),
		inferenceCoverage(cml, clues),
		contradictionPair(clues),
		falseAssumptionNaming(clues),
		discriminatingTestReachability(clues),
		SuspectElimination(cast, clues),
	)
}

func essentialPlacement(clues models.Clues) Outcome {
	limit := int(math.Ceil(float64(clues.TotalChapters) * 0.66))
	var o Outcome
	for _, c := range clues.Items {
		if c.Essential && c.RevealChapter > limit {
			o.Violations = append(o.Violations, Violation{
				Rule: "essential-placement", Subject: c.ID,
				Detail: fmt.Sprintf("essential clue revealed in chapter %d, after limit %d", c.RevealChapter, limit),
			})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "move flagged essential clues earlier than two-thirds through the book")
	}
	return o
}

func uniqueIDs(clues models.Clues) Outcome {
	seen := make(map[string]bool)
	var o Outcome
	for _, c := range clues.Items {
		if seen[c.ID] {
			o.Violations = append(o.Violations, Violation{Rule: "unique-ids", Subject: c.ID, Detail: "duplicate clue id"})
			continue
		}
		seen[c.ID] = true
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "assign every clue a distinct id")
	}
	return o
}

func noPrivatePhrasing(clues models.Clues) Outcome {
	var o Outcome
	for _, c := range clues.Items {
		if privateObserverRe.MatchString(c.Text) {
			o.Violations = append(o.Violations, Violation{Rule: "no-private-phrasing", Subject: c.ID, Detail: "clue text names the detective as sole observer"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityMajor
		o.Recommendations = append(o.Recommendations, "rephrase so the clue is observable by the reader, not gated behind detective-only narration")
	}
	return o
}

func inferenceCoverage(cml models.CML, clues models.Clues) Outcome {
	var o Outcome
	for _, step := range cml.InferencePath {
		covered := false
		for _, c := range clues.Items {
			if c.SupportsInferenceStep != nil && *c.SupportsInferenceStep == step.Index {
				covered = true
				break
			}
		}
		if !covered {
			o.Violations = append(o.Violations, Violation{Rule: "inference-coverage", Subject: fmt.Sprintf("step-%d", step.Index), Detail: "no clue supports this inference step"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "add a clue supporting each uncovered inference step")
	}
	return o
}

func contradictionPair(clues models.Clues) Outcome {
	var supports, contradicts bool
	for _, c := range clues.Items {
		if c.SupportsFalseAssumption {
			supports = true
		}
		if c.ContradictsFalseAssumption {
			contradicts = true
		}
	}
	var o Outcome
	if !supports || !contradicts {
		o.Violations = append(o.Violations, Violation{Rule: "contradiction-pair", Detail: "need at least one clue supporting and one contradicting the false assumption"})
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "add a clue on the missing side of the false-assumption contradiction pair")
	}
	return o
}

func falseAssumptionNaming(clues models.Clues) Outcome {
	var o Outcome
	for _, c := range clues.Items {
		if c.NamesFalseAssumption {
			return o
		}
	}
	o.Violations = append(o.Violations, Violation{Rule: "false-assumption-naming", Detail: "no clue explicitly references the false assumption"})
	o.Severity = models.SeverityMajor
	o.Recommendations = append(o.Recommendations, "add a clue that names the false assumption directly")
	return o
}

func discriminatingTestReachability(clues models.Clues) Outcome {
	var o Outcome
	for _, c := range clues.Items {
		if c.ReferencesDiscriminatingTest {
			return o
		}
	}
	o.Violations = append(o.Violations, Violation{Rule: "discriminating-test-reachability", Detail: "no clue references the discriminating test"})
	o.Severity = models.SeverityCritical
	o.Recommendations = append(o.Recommendations, "add a clue that references the discriminating test design")
	return o
}

// SuspectElimination checks that every non-culprit suspect has at least
// one eliminating clue.
func SuspectElimination(cast models.Cast, clues models.Clues) Outcome {
	eliminated := make(map[string]bool)
	for _, c := range clues.Items {
		if c.EliminatesSuspect != "" {
			eliminated[strings.ToLower(c.EliminatesSuspect)] = true
		}
	}
	var o Outcome
	for _, s := range cast.Suspects {
		if s.IsCulprit {
			continue
		}
		if !eliminated[strings.ToLower(s.Name)] {
			o.Violations = append(o.Violations, Violation{Rule: "suspect-elimination", Subject: s.Name, Detail: "no clue eliminates this non-culprit suspect"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "add an eliminating clue for each flagged suspect")
	}
	return o
}
