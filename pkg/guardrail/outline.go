package guardrail

import (
	"regexp"
	"strings"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

var (
	discriminatingTestLanguageRe = regexp.MustCompile(`(?i)\b(test|experiment|re-?enactment)\b`)
	exclusionLanguageRe          = regexp.MustCompile(`(?i)\b(exclusion|evidence)\b`)
	literalTestPhraseRe          = regexp.MustCompile(`(?i)discriminating test`)
	closureLanguageRe            = regexp.MustCompile(`(?i)\b(ruled out|cleared|eliminated)\b`)
	evidenceLanguageRe           = regexp.MustCompile(`(?i)\bevidence\b`)
)

// OutlineGuardrails runs the coverage gate from spec.md §4.5, after Agent 7.
func OutlineGuardrails(cast models.Cast, outline models.Outline) Outcome {
	return merge(
		discriminatingTestCoverage(outline),
		suspectClosureCoverage(cast, outline),
	)
}

func allSceneText(outline models.Outline) []string {
	var texts []string
	for _, ch := range outline.Chapters {
		for _, sc := range ch.Scenes {
			texts = append(texts, sc.Text)
		}
	}
	return texts
}

func discriminatingTestCoverage(outline models.Outline) Outcome {
	var o Outcome
	for _, text := range allSceneText(outline) {
		if literalTestPhraseRe.MatchString(text) {
			return o
		}
		if discriminatingTestLanguageRe.MatchString(text) && exclusionLanguageRe.MatchString(text) {
			return o
		}
	}
	o.Violations = append(o.Violations, Violation{Rule: "discriminating-test-coverage", Detail: "no scene co-locates test/experiment/re-enactment language with exclusion/evidence language"})
	o.Severity = models.SeverityMajor
	o.Recommendations = append(o.Recommendations, "add a scene that stages the discriminating test with explicit exclusion/evidence language")
	return o
}

func suspectClosureCoverage(cast models.Cast, outline models.Outline) Outcome {
	texts := allSceneText(outline)
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
			o.Violations = append(o.Violations, Violation{Rule: "suspect-closure-coverage", Subject: s.Name, Detail: "no scene co-locates closure language with evidence for this suspect"})
		}
	}
	if len(o.Violations) > 0 {
		o.Severity = models.SeverityMajor
		o.Recommendations = append(o.Recommendations, "add a closure scene naming each flagged suspect with ruled-out/cleared/eliminated language and supporting evidence")
	}
	return o
}
