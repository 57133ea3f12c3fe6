package parse

import (
	"testing"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser() *Parser {
	return New(schema.NewRegistry())
}

func TestParseStrictJSON(t *testing.T) {
	p := newParser()
	res, err := p.Parse(models.ArtifactSetting, `{"description":"d","anchors":["a","b"]}`)
	require.NoError(t, err)
	assert.Equal(t, StrategyStrictJSON, res.Strategy)
	assert.Equal(t, "d", res.Payload["description"])
}

func TestParseJSONRepairRecoversTruncatedObject(t *testing.T) {
	p := newParser()
	raw := `Here you go: {"description":"d","anchors":["a","b"]`
	res, err := p.Parse(models.ArtifactSetting, raw)
	require.NoError(t, err)
	assert.Equal(t, StrategyJSONRepair, res.Strategy)
	assert.Equal(t, "d", res.Payload["description"])
}

func TestParseYAMLFallback(t *testing.T) {
	p := newParser()
	raw := "description: d\nanchors:\n  - a\n  - b\n"
	res, err := p.Parse(models.ArtifactSetting, raw)
	require.NoError(t, err)
	assert.Equal(t, StrategyYAMLFallback, res.Strategy)
	assert.Equal(t, "d", res.Payload["description"])
}

func TestParseYAMLFallbackStripsTrailingInlineText(t *testing.T) {
	p := newParser()
	raw := `description: "d" -- author's aside
anchors:
  - a
  - b
`
	res, err := p.Parse(models.ArtifactSetting, raw)
	require.NoError(t, err)
	assert.Equal(t, "d", res.Payload["description"])
}

func TestParseFailsWhenAllStrategiesFail(t *testing.T) {
	p := newParser()
	_, err := p.Parse(models.ArtifactSetting, "{{{ not json or yaml : : :")
	require.Error(t, err)
}

// TestParseRoundTrip is the grounding for Testable Property 11: a valid
// JSON payload parses identically whichever strategy handles it.
func TestParseRoundTrip(t *testing.T) {
	raw := `{"description":"d","anchors":["a","b"],"anachronisms":[]}`
	strict, ok := tryStrictJSON(raw)
	require.True(t, ok)
	repaired, ok := tryJSONRepair(raw)
	require.True(t, ok)
	yamled, ok := tryYAMLFallback(raw)
	require.True(t, ok)
	assert.Equal(t, strict["description"], repaired["description"])
	assert.Equal(t, strict["description"], yamled["description"])
}
