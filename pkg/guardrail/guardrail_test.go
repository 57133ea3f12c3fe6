package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

func sampleCML() models.CML {
	return models.CML{
		HiddenModel: models.HiddenModel{Culprit: "Eleanor Voss"},
		InferencePath: []models.InferenceStep{
			{Index: 0, Description: "the study window was forced from outside"},
			{Index: 1, Description: "the housekeeper lied about the hour"},
		},
	}
}

func sampleCast() models.Cast {
	return models.Cast{Suspects: []models.Suspect{
		{Name: "Eleanor Voss", IsCulprit: true},
		{Name: "Harold Grey", IsCulprit: false},
	}}
}

func idx(i int) *int { return &i }

func TestClueGuardrailsPassesOnWellFormedSet(t *testing.T) {
	clues := models.Clues{TotalChapters: 10, Items: []models.Clue{
		{ID: "c1", Text: "the latch showed fresh scratches", Essential: true, RevealChapter: 3, SupportsInferenceStep: idx(0)},
		{ID: "c2", Text: "the clock in the hall read half past nine, the housekeeper insisted", Essential: false, RevealChapter: 2, SupportsInferenceStep: idx(1), SupportsFalseAssumption: true},
		{ID: "c3", Text: "a muddy footprint pointed the other way", RevealChapter: 4, ContradictsFalseAssumption: true, NamesFalseAssumption: true},
		{ID: "c4", Text: "the re-enactment of the discriminating test excluded the gardener by the evidence of his boots", RevealChapter: 5, ReferencesDiscriminatingTest: true, EliminatesSuspect: "Harold Grey"},
	}}

	out := ClueGuardrails(sampleCML(), sampleCast(), clues)
	assert.True(t, out.Passed(), "%+v", out.Violations)
}

func TestEssentialPlacementFlagsLateReveal(t *testing.T) {
	clues := models.Clues{TotalChapters: 10, Items: []models.Clue{
		{ID: "c1", Essential: true, RevealChapter: 9},
	}}
	out := essentialPlacement(clues)
	assert.False(t, out.Passed())
	assert.Equal(t, models.SeverityCritical, out.Severity)
}

func TestUniqueIDsFlagsDuplicates(t *testing.T) {
	clues := models.Clues{Items: []models.Clue{{ID: "c1"}, {ID: "c1"}}}
	out := uniqueIDs(clues)
	assert.False(t, out.Passed())
}

func TestNoPrivatePhrasingFlagsSoleObserver(t *testing.T) {
	clues := models.Clues{Items: []models.Clue{
		{ID: "c1", Text: "only the detective noticed the smudge on the sill"},
	}}
	out := noPrivatePhrasing(clues)
	assert.False(t, out.Passed())
}

func TestSuspectEliminationFlagsUncoveredSuspect(t *testing.T) {
	clues := models.Clues{Items: []models.Clue{{ID: "c1", EliminatesSuspect: ""}}}
	out := SuspectElimination(sampleCast(), clues)
	assert.False(t, out.Passed())
	assert.Equal(t, "Harold Grey", out.Violations[0].Subject)
}

func TestOutlineGuardrailsFlagsMissingCoverage(t *testing.T) {
	outline := models.Outline{Chapters: []models.Chapter{
		{Index: 1, Scenes: []models.Scene{{Text: "the rain fell on the manor"}}},
	}}
	out := OutlineGuardrails(sampleCast(), outline)
	assert.False(t, out.Passed())
}

func TestOutlineGuardrailsPassesWithCoverage(t *testing.T) {
	outline := models.Outline{Chapters: []models.Chapter{
		{Index: 1, Scenes: []models.Scene{{Text: "the discriminating test excluded three suspects by the evidence at hand"}}},
		{Index: 2, Scenes: []models.Scene{{Text: "Harold Grey was cleared once the ledger evidence surfaced"}}},
	}}
	out := OutlineGuardrails(sampleCast(), outline)
	assert.True(t, out.Passed(), "%+v", out.Violations)
}

func TestMojibakeResidueFlagsUnsanitizedChapter(t *testing.T) {
	prose := models.Prose{Chapters: []models.ProseChapter{{Index: 1, Text: "broken � text"}}}
	out := mojibakeResidue(prose)
	assert.False(t, out.Passed())
}

func TestContinuityTransitionsFlagsMissingBridge(t *testing.T) {
	prose := models.Prose{Chapters: []models.ProseChapter{{Index: 1, Text: "nothing relevant here"}}}
	out := continuityTransitions(prose, []CaseClassTransition{{From: "disappearance", To: "murder"}})
	assert.False(t, out.Passed())
}

func TestContinuityTransitionsPassesWithBridgeScene(t *testing.T) {
	prose := models.Prose{Chapters: []models.ProseChapter{
		{Index: 1, Text: "what looked like a simple disappearance turned out to be murder"},
	}}
	out := continuityTransitions(prose, []CaseClassTransition{{From: "disappearance", To: "murder"}})
	assert.True(t, out.Passed())
}
