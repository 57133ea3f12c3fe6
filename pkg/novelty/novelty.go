// Package novelty implements the Novelty Auditor from spec.md §4.7:
// per-category similarity against seeded structural patterns, a locally
// recomputed weighted overall score (Testable Property 7 — the stored
// overall never trusts whatever the LLM reports), threshold gating, and
// divergence-constraint generation for a failed audit's regeneration
// attempt.
package novelty

import (
	"fmt"
	"strings"

	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// Category names the six axes spec.md §4.7 lists for seed comparison.
type Category string

const (
	CategoryAxis               Category = "axis"
	CategoryMechanismFamily    Category = "mechanism_family"
	CategoryFalseAssumption    Category = "false_assumption_type"
	CategoryDiscriminatingTest Category = "discriminating_test_method"
	CategoryEra                Category = "era"
	CategoryLocationType       Category = "location_type"
)

// categoryWeights are fixed per spec.md §4.7 ("weighted sum with fixed
// weights"); they sum to 1.0 and are never overridden by config or by
// whatever weight the LLM attaches to a category.
var categoryWeights = map[Category]float64{
	CategoryAxis:               0.25,
	CategoryMechanismFamily:    0.20,
	CategoryFalseAssumption:    0.20,
	CategoryDiscriminatingTest: 0.15,
	CategoryEra:                0.10,
	CategoryLocationType:       0.10,
}

// SeedPattern is one seeded structural pattern the generated CML is
// compared against.
type SeedPattern struct {
	ID       string
	Category map[Category]string
}

// CategorySimilarity is one category's raw similarity observation before
// weighting, e.g. as reported by Agent 8's LLM call.
type CategorySimilarity struct {
	Category   Category
	Similarity float64
}

// Audit recomputes the overall similarity from categorySimilarities under
// the fixed weight table (ignoring any weight or overall value the LLM
// reported), applies the threshold, and on a fail builds divergence
// constraints by inverting the top-matching seed.
func Audit(cfg *config.Config, cml models.CML, seeds []SeedPattern, topSeedID string, categorySimilarities []CategorySimilarity) models.NoveltyAudit {
	if cfg.NoveltyBypassed() {
		return models.NoveltyAudit{
			SeedID: topSeedID,
			Status: models.NoveltyPass,
			Reason: "skipped",
		}
	}

	overall := 0.0
	stored := make([]models.SeedCategorySimilarity, 0, len(categorySimilarities))
	for _, cs := range categorySimilarities {
		w := categoryWeights[cs.Category]
		overall += w * cs.Similarity
		stored = append(stored, models.SeedCategorySimilarity{
			Category:   string(cs.Category),
			Similarity: cs.Similarity,
			Weight:     w,
		})
	}

	status := models.NoveltyPass
	reason := ""
	if overall >= cfg.NoveltySimilarityThreshold {
		if cfg.NoveltyHardFail {
			status = models.NoveltyFail
			reason = fmt.Sprintf("overall similarity %.3f at/above threshold %.3f", overall, cfg.NoveltySimilarityThreshold)
		} else {
			status = models.NoveltyWarning
			reason = fmt.Sprintf("overall similarity %.3f at/above threshold %.3f (warning, hard-fail disabled)", overall, cfg.NoveltySimilarityThreshold)
		}
	}

	audit := models.NoveltyAudit{
		SeedID:               topSeedID,
		CategorySimilarities: stored,
		Overall:               overall,
		Threshold:             cfg.NoveltySimilarityThreshold,
		Status:                status,
		Reason:                reason,
	}
	if status == models.NoveltyFail {
		audit.DivergenceConstraints = DivergenceConstraints(seeds, topSeedID)
	}
	return audit
}

// DivergenceConstraints inverts the top-matching seed's category values
// into directives for the CML regeneration attempt, per spec.md §4.7:
// "produced by inverting the top-matching seed's category values".
func DivergenceConstraints(seeds []SeedPattern, topSeedID string) []string {
	var top *SeedPattern
	for i := range seeds {
		if seeds[i].ID == topSeedID {
			top = &seeds[i]
			break
		}
	}
	if top == nil {
		return nil
	}
	constraints := make([]string, 0, len(top.Category))
	order := []Category{CategoryAxis, CategoryMechanismFamily, CategoryFalseAssumption, CategoryDiscriminatingTest, CategoryEra, CategoryLocationType}
	for _, cat := range order {
		val, ok := top.Category[cat]
		if !ok || val == "" {
			continue
		}
		constraints = append(constraints, fmt.Sprintf("avoid %s matching the seeded value %q; choose a distinctly different %s", cat, val, strings.ReplaceAll(string(cat), "_", " ")))
	}
	return constraints
}
