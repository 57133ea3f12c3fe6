package agent

import (
	"context"
	"fmt"

	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/novelty"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/retry"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

// padCast pads an undersized cast with safe-default suspects rather than
// failing the run, per spec.md §4.6 ("pads undersized casts with safe
// defaults rather than failing"). None of the padding suspects is ever the
// culprit — an LLM that already supplied a full roster of named suspects,
// culprit included, is never touched.
func padCast(cast models.Cast, inputs Inputs) models.Cast {
	want := inputs.Spec.CastSize
	if want <= 0 || len(cast.Suspects) >= want {
		return cast
	}
	names := make(map[string]bool, len(cast.Suspects))
	for _, s := range cast.Suspects {
		names[s.Name] = true
	}
	n := 0
	for len(cast.Suspects) < want {
		n++
		name := fmt.Sprintf("Unnamed Guest %d", n)
		if names[name] {
			continue
		}
		cast.Suspects = append(cast.Suspects, models.Suspect{
			Name:        name,
			Role:        "peripheral guest",
			IsCulprit:   false,
			Description: "a minor figure at the periphery of events, added to round out the cast",
		})
		names[name] = true
	}
	return cast
}

// characterProfileFacets enumerates Agents 2b-2e: one LLM call per facet,
// each producing profiles for the whole cast, later merged into a single
// character_profiles artifact (spec.md §3).
var characterProfileFacets = []string{"psychology", "alibi", "motive", "relationships"}

// NewRegistry builds the fixed map[ID]Agent from spec.md §3's dependency
// graph, the realization of the "tagged variant/function map" design note
// in spec.md §9 — no inheritance, one table, one entry per role.
func NewRegistry(cfg *config.Config) map[ID]Agent {
	reg := map[ID]Agent{
		IDSetting:           &simpleAgent[models.Setting]{id: IDSetting, artifactType: models.ArtifactSetting, build: promptSetting},
		IDCast:              &simpleAgent[models.Cast]{id: IDCast, artifactType: models.ArtifactCast, build: promptCast, postprocess: padCast},
		IDBackgroundContext: &simpleAgent[models.BackgroundContext]{id: IDBackgroundContext, artifactType: models.ArtifactBackgroundContext, build: promptBackgroundContext},
		// Agent 3b: the one deliberate exception to the global 2-attempt
		// default (spec.md §4.4).
		IDHardLogicDevices: &simpleAgent[models.HardLogicDevices]{id: IDHardLogicDevices, artifactType: models.ArtifactHardLogicDevices, maxAttempts: 3, build: promptHardLogicDevices},
		IDCMLGenerator:     &simpleAgent[models.CML]{id: IDCMLGenerator, artifactType: models.ArtifactCML, build: promptCMLGenerator},
		IDCMLValidator:     &simpleAgent[models.CMLValidationReport]{id: IDCMLValidator, artifactType: models.ArtifactCMLValidation, build: promptCMLValidator},
		IDCharacterProfiles: newCharacterProfilesAgent(),
		IDClues:             &simpleAgent[models.Clues]{id: IDClues, artifactType: models.ArtifactClues, build: promptClues},
		IDFairPlayAudit:     &simpleAgent[models.FairPlayReport]{id: IDFairPlayAudit, artifactType: models.ArtifactFairPlayReport, costCeiling: cfg.FairPlayCostCeiling, build: promptFairPlayAudit},
		IDBlindReader:       &simpleAgent[models.BlindReaderVerdict]{id: IDBlindReader, artifactType: models.ArtifactBlindReaderVerdict, build: promptBlindReader},
		IDOutline:           &simpleAgent[models.Outline]{id: IDOutline, artifactType: models.ArtifactOutline, build: promptOutline},
		IDNoveltyAuditor:    &noveltyAuditorAgent{cfg: cfg},
		IDProse:             &simpleAgent[models.Prose]{id: IDProse, artifactType: models.ArtifactProseMedium, build: promptProse},
		IDSynopsis:          &simpleAgent[models.Synopsis]{id: IDSynopsis, artifactType: models.ArtifactSynopsis, build: promptSynopsis},
		IDGamePack:          &gamePackAgent{},
	}
	return reg
}

// characterProfilesAgent runs Agents 2b-2e (one per facet) and merges
// their per-facet profile lists into one character_profiles artifact. It
// is not a simpleAgent itself because the artifact it produces is the
// union of four independent LLM calls rather than one.
type characterProfilesAgent struct {
	facets []*simpleAgent[models.CharacterProfiles]
}

func newCharacterProfilesAgent() *characterProfilesAgent {
	facets := make([]*simpleAgent[models.CharacterProfiles], 0, len(characterProfileFacets))
	for _, facet := range characterProfileFacets {
		facets = append(facets, &simpleAgent[models.CharacterProfiles]{
			id:           IDCharacterProfiles,
			artifactType: models.ArtifactCharacterProfiles,
			build:        promptCharacterProfiles(facet),
		})
	}
	return &characterProfilesAgent{facets: facets}
}

func (a *characterProfilesAgent) ID() ID { return IDCharacterProfiles }

func (a *characterProfilesAgent) Run(ctx context.Context, gw *llmgateway.Gateway, parser *parse.Parser, registry *schema.Registry, inputs Inputs) (Result, error) {
	merged := models.CharacterProfiles{}
	var (
		violations []schema.ViolationError
		attempts   []retry.Attempt
		cost       float64
		valid      = true
		strategy   parse.Strategy
	)
	for _, facetAgent := range a.facets {
		res, err := facetAgent.Run(ctx, gw, parser, registry, inputs)
		if err != nil {
			return Result{}, err
		}
		if profiles, ok := res.Payload.(models.CharacterProfiles); ok {
			merged.Profiles = append(merged.Profiles, profiles.Profiles...)
		}
		violations = append(violations, res.Violations...)
		attempts = append(attempts, res.Attempts...)
		cost += res.Cost
		valid = valid && res.Valid
		strategy = res.Strategy
	}
	return Result{
		ArtifactType: models.ArtifactCharacterProfiles,
		Payload:      merged,
		Valid:        valid,
		Violations:   violations,
		Attempts:     attempts,
		Cost:         cost,
		Strategy:     strategy,
	}, nil
}

// noveltyRawResult is the shape Agent 8's LLM call reports: a guess at the
// closest seed plus per-category similarity observations. The overall
// score and pass/warn/fail status are never taken from this struct — they
// are always recomputed by pkg/novelty from the fixed weight table
// (Testable Property 7, spec.md §4.7).
type noveltyRawResult struct {
	SeedID               string                       `json:"seed_id"`
	CategorySimilarities []novelty.CategorySimilarity `json:"category_similarities"`
}

// noveltyAuditorAgent drives Agent 8: one LLM call for raw category
// similarities, then a deterministic, non-LLM recomputation of the
// stored overall score and status.
type noveltyAuditorAgent struct {
	cfg *config.Config
}

func (a *noveltyAuditorAgent) ID() ID { return IDNoveltyAuditor }

func (a *noveltyAuditorAgent) Run(ctx context.Context, gw *llmgateway.Gateway, parser *parse.Parser, registry *schema.Registry, inputs Inputs) (Result, error) {
	inner := &simpleAgent[noveltyRawResult]{id: IDNoveltyAuditor, artifactType: models.ArtifactNoveltyAuditRaw, build: promptNoveltyAudit}
	res, err := inner.Run(ctx, gw, parser, registry, inputs)
	if err != nil {
		return Result{}, err
	}
	raw, _ := res.Payload.(noveltyRawResult)
	audit := novelty.Audit(a.cfg, inputs.CML, inputs.NoveltySeeds, raw.SeedID, raw.CategorySimilarities)
	return Result{
		ArtifactType: models.ArtifactNoveltyAudit,
		Payload:      audit,
		Valid:        res.Valid,
		Violations:   res.Violations,
		Attempts:     res.Attempts,
		Cost:         res.Cost,
		Strategy:     res.Strategy,
	}, nil
}

// gamePackAgent is the Open Question #3 resolution (SPEC_FULL.md): the
// game_pack artifact is a planned, not-yet-implemented surface. It never
// touches the LLM Gateway or the Artifact Store; it reports its status
// through the same error vocabulary every other unimplemented endpoint
// uses rather than silently returning an empty artifact.
type gamePackAgent struct{}

func (a *gamePackAgent) ID() ID { return IDGamePack }

func (a *gamePackAgent) Run(ctx context.Context, gw *llmgateway.Gateway, parser *parse.Parser, registry *schema.Registry, inputs Inputs) (Result, error) {
	return Result{}, apperror.New(apperror.KindNotImplemented, "game_pack generation is not implemented")
}
