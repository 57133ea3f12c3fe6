package retry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

type scriptedBackend struct {
	bodies []string
	calls  int
}

func (b *scriptedBackend) Complete(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	i := b.calls
	b.calls++
	if i >= len(b.bodies) {
		i = len(b.bodies) - 1
	}
	return llmgateway.Response{Text: b.bodies[i], InputTokens: 10, OutputTokens: 10}, nil
}

type discardLog struct{}

func (discardLog) RecordOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error {
	return nil
}

func newHarness(bodies []string) (*llmgateway.Gateway, *parse.Parser, *schema.Registry, *scriptedBackend) {
	cfg := config.Load()
	cfg.ModelRates = map[string]config.ModelRate{"default": {InputPerToken: 0.001, OutputPerToken: 0.001}}
	cfg.DefaultModel = "default"
	backend := &scriptedBackend{bodies: bodies}
	gw := llmgateway.New(backend, cfg, discardLog{})
	registry := schema.NewRegistry()
	return gw, parse.New(registry), registry, backend
}

type setting struct {
	Description string
}

func decodeSetting(payload map[string]any) (setting, error) {
	desc, _ := payload["description"].(string)
	return setting{Description: desc}, nil
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	gw, parser, registry, backend := newHarness([]string{
		`{"description":"a manor in the fog","anchors":["clock tower","fog bank"]}`,
	})
	out, err := Run(context.Background(), gw, parser, registry, llmgateway.CallMeta{Agent: "setting"}, Options{ArtifactType: models.ArtifactSetting}, func(attempt int, feedback []string) llmgateway.Request {
		return llmgateway.Request{TemplateID: "setting"}
	}, decodeSetting)

	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Equal(t, "a manor in the fog", out.Artifact.Description)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, backend.calls)
	assert.Greater(t, out.TotalCost, 0.0)
}

func TestRunRetriesOnSchemaViolationThenSucceeds(t *testing.T) {
	gw, parser, registry, backend := newHarness([]string{
		`{"description":"a manor in the fog","anchors":["clock tower"]}`,
		`{"description":"a manor in the fog","anchors":["clock tower","fog bank"]}`,
	})

	var sawFeedback bool
	out, err := Run(context.Background(), gw, parser, registry, llmgateway.CallMeta{Agent: "setting"}, Options{ArtifactType: models.ArtifactSetting, MaxAttempts: 2}, func(attempt int, feedback []string) llmgateway.Request {
		if attempt > 1 {
			sawFeedback = len(feedback) > 0
		}
		return llmgateway.Request{TemplateID: "setting"}
	}, decodeSetting)

	require.NoError(t, err)
	assert.True(t, sawFeedback)
	assert.True(t, out.Valid)
	assert.Equal(t, 2, backend.calls)
	assert.Len(t, out.Attempts, 2)
}

func TestRunReturnsLastCandidateAfterExhaustingAttempts(t *testing.T) {
	gw, parser, registry, backend := newHarness([]string{
		`{"description":"a manor in the fog","anchors":["clock tower"]}`,
	})

	out, err := Run(context.Background(), gw, parser, registry, llmgateway.CallMeta{Agent: "setting"}, Options{ArtifactType: models.ArtifactSetting, MaxAttempts: 2}, func(attempt int, feedback []string) llmgateway.Request {
		return llmgateway.Request{TemplateID: "setting"}
	}, decodeSetting)

	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.NotEmpty(t, out.Violations)
	assert.Equal(t, "a manor in the fog", out.Artifact.Description)
	assert.Equal(t, 2, backend.calls)
}

func TestRunStopsAtCostCeiling(t *testing.T) {
	gw, parser, registry, backend := newHarness([]string{
		`{"description":"a manor in the fog","anchors":["clock tower"]}`,
		`{"description":"a manor in the fog","anchors":["clock tower","fog bank"]}`,
	})

	out, err := Run(context.Background(), gw, parser, registry, llmgateway.CallMeta{Agent: "setting"}, Options{ArtifactType: models.ArtifactSetting, MaxAttempts: 5, CostCeiling: 0.00001}, func(attempt int, feedback []string) llmgateway.Request {
		return llmgateway.Request{TemplateID: "setting"}
	}, decodeSetting)

	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, 1, backend.calls)
}
