package novelty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/models"
)

func baseConfig() *config.Config {
	cfg := config.Load()
	cfg.NoveltySimilarityThreshold = 0.9
	cfg.NoveltySkip = false
	cfg.NoveltyHardFail = true
	return cfg
}

func TestAuditRecomputesOverallFromFixedWeightsNotLLM(t *testing.T) {
	cfg := baseConfig()
	cfg.NoveltySimilarityThreshold = 0.999 // stays below the >=1 bypass; isolates the math
	cs := []CategorySimilarity{
		{Category: CategoryAxis, Similarity: 1.0},
		{Category: CategoryMechanismFamily, Similarity: 1.0},
		{Category: CategoryFalseAssumption, Similarity: 1.0},
		{Category: CategoryDiscriminatingTest, Similarity: 1.0},
		{Category: CategoryEra, Similarity: 1.0},
		{Category: CategoryLocationType, Similarity: 1.0},
	}
	audit := Audit(cfg, models.CML{}, nil, "seed-1", cs)
	assert.InDelta(t, 1.0, audit.Overall, 1e-9)
}

func TestAuditPassesBelowThreshold(t *testing.T) {
	cfg := baseConfig()
	cs := []CategorySimilarity{{Category: CategoryAxis, Similarity: 0.1}}
	audit := Audit(cfg, models.CML{}, nil, "seed-1", cs)
	assert.Equal(t, models.NoveltyPass, audit.Status)
	assert.Empty(t, audit.DivergenceConstraints)
}

func TestAuditFailsAtOrAboveThresholdWithHardFail(t *testing.T) {
	cfg := baseConfig()
	seeds := []SeedPattern{{ID: "seed-1", Category: map[Category]string{
		CategoryAxis: "temporal", CategoryEra: "1930s",
	}}}
	cs := []CategorySimilarity{
		{Category: CategoryAxis, Similarity: 1.0},
		{Category: CategoryMechanismFamily, Similarity: 1.0},
		{Category: CategoryFalseAssumption, Similarity: 1.0},
		{Category: CategoryDiscriminatingTest, Similarity: 1.0},
		{Category: CategoryEra, Similarity: 1.0},
		{Category: CategoryLocationType, Similarity: 1.0},
	}
	audit := Audit(cfg, models.CML{}, seeds, "seed-1", cs)
	require.Equal(t, models.NoveltyFail, audit.Status)
	assert.NotEmpty(t, audit.DivergenceConstraints)
}

func TestAuditWarnsInsteadOfFailingWhenHardFailDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.NoveltyHardFail = false
	cfg.NoveltySimilarityThreshold = 0.2
	cs := []CategorySimilarity{{Category: CategoryAxis, Similarity: 1.0}}
	audit := Audit(cfg, models.CML{}, nil, "seed-1", cs)
	assert.Equal(t, models.NoveltyWarning, audit.Status)
}

func TestAuditBypassedBySkipFlag(t *testing.T) {
	cfg := baseConfig()
	cfg.NoveltySkip = true
	audit := Audit(cfg, models.CML{}, nil, "seed-1", nil)
	assert.Equal(t, models.NoveltyPass, audit.Status)
	assert.Equal(t, "skipped", audit.Reason)
}

func TestDivergenceConstraintsInvertsTopSeed(t *testing.T) {
	seeds := []SeedPattern{{ID: "seed-1", Category: map[Category]string{
		CategoryAxis: "temporal",
		CategoryEra:  "1930s",
	}}}
	constraints := DivergenceConstraints(seeds, "seed-1")
	require.Len(t, constraints, 2)
	assert.Contains(t, constraints[0], "temporal")
}
