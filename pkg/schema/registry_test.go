package schema

import (
	"testing"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingValidationRequiresTwoOrThreeAnchors(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"description": "A country house in autumn.",
		"anchors":     []any{"gaslight"},
	}
	errs, _, err := r.Validate(models.ArtifactSetting, payload)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "anchors", errs[0].Path)
	assert.Equal(t, "itemCount", errs[0].Rule)
}

func TestSettingValidationPasses(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"description": "A country house in autumn.",
		"anchors":     []any{"gaslight", "wireless set"},
	}
	errs, _, err := r.Validate(models.ArtifactSetting, payload)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestSettingNormalizeFillsMissingLists(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"description": "desc",
		"anchors":     []any{"a", "b"},
	}
	out, warns, err := r.Normalize(models.ArtifactSetting, payload)
	require.NoError(t, err)
	assert.Len(t, warns, 2)
	assert.Equal(t, []any{}, out["anachronisms"])
	assert.Equal(t, []any{}, out["implausibilities"])
}

func TestCastRequiresExactlyOneCulprit(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"suspects": []any{
			map[string]any{"name": "A", "is_culprit": true},
			map[string]any{"name": "B", "is_culprit": true},
		},
	}
	errs, _, err := r.Validate(models.ArtifactCast, payload)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "exactlyOneCulprit", errs[0].Rule)
}

func TestHardLogicDevicesRequiresMinimumThree(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"devices": []any{
			map[string]any{
				"name": "a", "principle_type": "b", "surface_appearance": "c",
				"underlying_reality": "d", "anti_trope_justification": "e",
				"fair_play_clues": []any{"clue"},
			},
		},
	}
	errs, _, err := r.Validate(models.ArtifactHardLogicDevices, payload)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, "devices", errs[0].Path)
	assert.Equal(t, "minItems", errs[0].Rule)
}

func TestCMLRequiresPrimaryAxisEnum(t *testing.T) {
	r := NewRegistry()
	payload := map[string]any{
		"meta": map[string]any{
			"primary_axis":  "not-a-real-axis",
			"target_length": "medium",
		},
		"surface_model": map[string]any{"summary": "s"},
		"hidden_model":  map[string]any{"summary": "s", "culprit": "c"},
		"false_assumption": map[string]any{"statement": "s"},
		"constraint_space": []any{"a"},
		"inference_path":   []any{map[string]any{"index": 1}},
		"discriminating_test": map[string]any{"method": "m"},
		"fair_play": map[string]any{"guarantees": []any{"g"}},
		"quality_controls": map[string]any{"anti_trope_justifications": []any{"j"}},
	}
	errs, _, err := r.Validate(models.ArtifactCML, payload)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Path == "meta.primary_axis" && e.Rule == "enum" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnregisteredTypeReturnsError(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Validate(models.ArtifactGamePack, map[string]any{})
	require.Error(t, err)
}
