package guardrail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/sanitize"
)

// CaseClassTransition is one case-class shift the story makes (e.g.
// "disappearance" -> "murder") that must be bridged by at least one
// scene acknowledging both states, per spec.md §4.5.
type CaseClassTransition struct {
	From string
	To   string
}

var bridgeLanguageRe = regexp.MustCompile(`(?i)\b(turned out|in fact|revealed (to be|that)|was (actually|really))\b`)

// ProseReleaseGate runs every check from spec.md §4.5 after Agent 9.
func ProseReleaseGate(cml models.CML, cast models.Cast, outline models.Outline, prose models.Prose, culpritPreRevealAlias string, revealChapterIndex int, transitions []CaseClassTransition) Outcome {
	return merge(
		identityDrift(cml, prose, culpritPreRevealAlias, revealChapterIndex),
		mojibakeResidue(prose),
		discriminatingTestRealized(prose),
		suspectClosureRealized(cast, prose),
		continuityTransitions(prose, transitions),
	)
}

func allProseText(prose models.Prose) []string {
	texts := make([]string, 0, len(prose.Chapters))
	for _, ch := range prose.Chapters {
		texts = append(texts, ch.Text)
	}
	return texts
}

func identityDrift(cml models.CML, prose models.Prose, preRevealAlias string, revealChapterIndex int) Outcome {
	var o Outcome
	if preRevealAlias == "" {
		return o
	}
	for _, ch := range prose.Chapters {
		if ch.Index <= revealChapterIndex {
			continue
		}
		if strings.Contains(ch.Text, cml.HiddenModel.Culprit) {
			continue
		}
		if strings.Contains(strings.ToLower(ch.Text), strings.ToLower(preRevealAlias)) {
			o.Violations = append(o.Violations, Violation{
				Rule: "identity-drift", Subject: fmt.Sprintf("chapter-%d", ch.Index),
				Detail: "culprit referenced solely by pre-reveal alias after the reveal scene",
			})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityCritical
		o.Recommendations = append(o.Recommendations, "name the culprit directly in post-reveal chapters instead of the pre-reveal alias")
	}
	return o
}

func mojibakeResidue(prose models.Prose) Outcome {
	var o Outcome
	for _, ch := range prose.Chapters {
		if n := sanitize.ResidueCount(ch.Text); n > 0 {
			o.Violations = append(o.Violations, Violation{Rule: "mojibake", Subject: fmt.Sprintf("chapter-%d", ch.Index), Detail: fmt.Sprintf("%d residue matches after sanitization", n)})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityMajor
		o.Recommendations = append(o.Recommendations, "re-run the sanitizer or regenerate the affected chapter")
	}
	return o
}

func discriminatingTestRealized(prose models.Prose) Outcome {
	var o Outcome
	for _, text := range allProseText(prose) {
		if literalTestPhraseRe.MatchString(text) {
			return o
		}
		if discriminatingTestLanguageRe.MatchString(text) && exclusionLanguageRe.MatchString(text) {
			return o
		}
	}
	o.Violations = append(o.Violations, Violation{Rule: "discriminating-test-realized", Detail: "discriminating test never appears on the page"})
	o.Severity = models.SeverityCritical
	o.Recommendations = append(o.Recommendations, "regenerate the chapter that was supposed to stage the discriminating test")
	return o
}

func suspectClosureRealized(cast models.Cast, prose models.Prose) Outcome {
	texts := allProseText(prose)
	var o Outcome
	for _, s := range cast.Suspects {
		if s.IsCulprit {
			continue
		}
		covered := false
		for _, text := range texts {
			lower := strings.ToLower(text)
			if strings.Contains(lower, strings.ToLower(s.Name)) && closureLanguageRe.MatchString(text) && evidenceLanguageRe.MatchString(text) {
				covered = true
				break
			}
		}
		if !covered {
			o.Violations = append(o.Violations, Violation{Rule: "suspect-closure-realized", Subject: s.Name, Detail: "suspect-closure coverage from the outline did not survive into prose"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityMajor
		o.Recommendations = append(o.Recommendations, "add the missing closure beat back into prose for each flagged suspect")
	}
	return o
}

func continuityTransitions(prose models.Prose, transitions []CaseClassTransition) Outcome {
	var o Outcome
	for _, t := range transitions {
		bridged := false
		for _, text := range allProseText(prose) {
			lower := strings.ToLower(text)
			if strings.Contains(lower, strings.ToLower(t.From)) && strings.Contains(lower, strings.ToLower(t.To)) && bridgeLanguageRe.MatchString(text) {
				bridged = true
				break
			}
		}
		if !bridged {
			o.Violations = append(o.Violations, Violation{Rule: "continuity-transition", Subject: fmt.Sprintf("%s->%s", t.From, t.To), Detail: "no bridge scene connects this case-class transition"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityMajor
		o.Recommendations = append(o.Recommendations, "add a bridge scene explicitly reframing the case class for each flagged transition")
	}
	return o
}
