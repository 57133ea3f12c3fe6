// Package agent implements the agent roles from spec.md §4.6:
// each one assembles its input from the latest upstream artifacts, drives
// an LLM call through the Validation-Retry Wrapper (pkg/retry), and
// returns a typed artifact plus validation/cost metadata for the
// orchestrator to persist and score. No agent touches the Artifact Store
// directly; the orchestrator owns persistence (spec.md §3 "Ownership").
package agent

import (
	"context"
	"encoding/json"

	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/novelty"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/retry"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

// ID names one of the fixed agent roles from the dependency graph in
// spec.md §3 ("Agent dependency graph").
type ID string

const (
	IDSetting            ID = "setting"
	IDCast               ID = "cast"
	IDBackgroundContext  ID = "background_context"
	IDHardLogicDevices   ID = "hard_logic_devices"
	IDCMLGenerator       ID = "cml"
	IDCMLValidator       ID = "cml_validator"
	IDCharacterProfiles  ID = "character_profiles"
	IDClues              ID = "clues"
	IDFairPlayAudit      ID = "fair_play_report"
	IDBlindReader        ID = "blind_reader"
	IDOutline            ID = "outline"
	IDNoveltyAuditor     ID = "novelty_audit"
	IDProse              ID = "prose"
	IDSynopsis           ID = "synopsis"
	IDGamePack           ID = "game_pack"
)

// Inputs carries the already-loaded upstream artifacts and orchestrator-
// computed directives an agent needs. Every field an agent doesn't
// consume is simply left zero-valued; this is a typed shape rather than
// a stringly-keyed map because the dependency graph is fixed and known
// ahead of time, the same way the teacher's StageResult is a concrete
// struct rather than a generic bag (pkg/agent/context/stage_context.go).
type Inputs struct {
	ProjectID string
	RunID     string

	Spec              models.Spec
	Setting           models.Setting
	Cast              models.Cast
	BackgroundContext models.BackgroundContext
	HardLogicDevices  models.HardLogicDevices
	CML               models.CML
	CharacterProfiles models.CharacterProfiles
	Clues             models.Clues
	FairPlayReport    models.FairPlayReport
	Outline           models.Outline
	NoveltyAudit      models.NoveltyAudit

	// NoveltySeeds is the seed-pattern library Agent 8 compares the CML
	// against; loaded once by the orchestrator at startup, never mutated.
	NoveltySeeds []novelty.SeedPattern

	// Orchestrator-computed directives for regeneration/feedback passes
	// (spec.md §4.11).
	RequiredClueList       []string
	DivergenceConstraints  []string
	QualityGuardrails      []string
	BlindReaderReasoning   string
	TargetedRepairNotes    []string
	ProseChapterRange      [2]int // [startIndex, endIndex] for batched Agent 9 calls
}

// Result is what every agent returns: the decoded artifact plus the
// Validation-Retry Wrapper's verdict and cost accounting.
type Result struct {
	ArtifactType models.ArtifactType
	Payload      any
	Valid        bool
	Violations   []schema.ViolationError
	Attempts     []retry.Attempt
	Cost         float64
	Strategy     parse.Strategy
}

// Agent is the uniform shape every role implements, per spec.md §4.6:
// "no inheritance, tagged variant/function map".
type Agent interface {
	ID() ID
	Run(ctx context.Context, gw *llmgateway.Gateway, parser *parse.Parser, registry *schema.Registry, inputs Inputs) (Result, error)
}

func decodeJSON[T any](payload map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(payload)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}

// simpleAgent wraps retry.Run for one artifact type T, parameterized by
// a prompt builder and an attempt/cost budget. Every concrete agent in
// this package is one instance of simpleAgent.
type simpleAgent[T any] struct {
	id           ID
	artifactType models.ArtifactType
	maxAttempts  int
	costCeiling  float64
	build        func(Inputs) retry.PromptFunc
	// postprocess runs on a schema-valid payload before it becomes the
	// Result, for deterministic fixups the schema itself can't express
	// (e.g. Agent 2 padding an undersized cast, spec.md §4.6). Optional.
	postprocess func(T, Inputs) T
}

func (a *simpleAgent[T]) ID() ID { return a.id }

func (a *simpleAgent[T]) Run(ctx context.Context, gw *llmgateway.Gateway, parser *parse.Parser, registry *schema.Registry, inputs Inputs) (Result, error) {
	meta := llmgateway.CallMeta{ProjectID: inputs.ProjectID, RunID: inputs.RunID, Agent: string(a.id), Operation: "generate"}
	opts := retry.Options{ArtifactType: a.artifactType, MaxAttempts: a.maxAttempts, CostCeiling: a.costCeiling}
	out, err := retry.Run(ctx, gw, parser, registry, meta, opts, a.build(inputs), decodeJSON[T])
	if err != nil {
		return Result{}, err
	}
	payload := out.Artifact
	if a.postprocess != nil && out.Valid {
		payload = a.postprocess(payload, inputs)
	}
	return Result{
		ArtifactType: a.artifactType,
		Payload:      payload,
		Valid:        out.Valid,
		Violations:   out.Violations,
		Attempts:     out.Attempts,
		Cost:         out.TotalCost,
		Strategy:     out.Strategy,
	}, nil
}
