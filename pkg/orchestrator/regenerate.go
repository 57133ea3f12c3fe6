package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// regenerateSpec describes one scope producible as a single isolated
// agent call: the agent to drive, the artifact type it produces, and
// the already-persisted artifact types its Inputs must be seeded from.
type regenerateSpec struct {
	agentID  agent.ID
	produces models.ArtifactType
	requires []models.ArtifactType
}

// regenerableScopes is the allow-list from spec.md §6 ("supported scopes
// are those producible as an isolated call"). Every other scope — in
// particular anything upstream of the CML or downstream of a feedback
// loop (clues, fair-play, outline, prose) — touches state a single call
// cannot safely reconstruct in isolation, so it is rejected with
// RegenerateUnsupported rather than silently approximated.
var regenerableScopes = map[string]regenerateSpec{
	"character_profiles": {
		agentID:  agent.IDCharacterProfiles,
		produces: models.ArtifactCharacterProfiles,
		requires: []models.ArtifactType{
			models.ArtifactSetting, models.ArtifactCast,
			models.ArtifactBackgroundContext, models.ArtifactHardLogicDevices,
			models.ArtifactCML,
		},
	},
	"synopsis": {
		agentID:  agent.IDSynopsis,
		produces: models.ArtifactSynopsis,
		requires: []models.ArtifactType{
			models.ArtifactSetting, models.ArtifactCast, models.ArtifactCML,
			models.ArtifactOutline,
		},
	},
}

// Regenerate drives one agent in isolation against a project's latest
// spec and already-persisted artifacts, producing one new artifact
// version without running the rest of the DAG. It is the handler behind
// POST /projects/{id}/regenerate.
func (o *Orchestrator) Regenerate(ctx context.Context, projectID, scope string) (models.Artifact, error) {
	def, ok := regenerableScopes[scope]
	if !ok {
		return models.Artifact{}, apperror.New(apperror.KindRegenerateUnsupported, "scope not supported for isolated regeneration: "+scope)
	}

	spec, err := o.store.LatestSpec(ctx, projectID)
	if err != nil {
		return models.Artifact{}, fmt.Errorf("orchestrator: loading latest spec for regeneration: %w", err)
	}

	runID := uuid.New().String()
	rs := &runState{
		run: models.Run{
			ID:        runID,
			ProjectID: projectID,
			SpecID:    spec.ID,
			StartedAt: time.Now(),
			Status:    models.RunStatusRunning,
		},
		spec:          spec,
		inputs:        agent.Inputs{ProjectID: projectID, RunID: runID, Spec: spec, NoveltySeeds: o.seeds},
		retryPerAgent: map[string]int{},
	}

	if err := o.seedInputsFromArtifacts(ctx, rs, def.requires); err != nil {
		return models.Artifact{}, err
	}

	res, err := o.runAgent(ctx, rs, def.agentID)
	if err != nil {
		return models.Artifact{}, err
	}
	if !res.Valid {
		return models.Artifact{}, apperror.New(apperror.KindSchemaViolation, "regeneration of "+scope+" failed validation")
	}

	return o.persistArtifact(ctx, rs, def.produces, res.Payload)
}

// seedInputsFromArtifacts loads each project's latest artifact of every
// type in types and decodes it into the matching rs.inputs field. A
// missing prerequisite artifact means this scope cannot be regenerated
// in isolation yet (the project has never produced it) — DependencyMissing,
// not a zero-valued silent stand-in.
func (o *Orchestrator) seedInputsFromArtifacts(ctx context.Context, rs *runState, types []models.ArtifactType) error {
	for _, t := range types {
		art, err := o.store.GetLatestArtifact(ctx, models.Key{ProjectID: rs.run.ProjectID, Type: t})
		if err != nil {
			var notFound *store.ErrNotFound
			if errors.As(err, &notFound) {
				return apperror.New(apperror.KindDependencyMissing, "regeneration requires an existing "+string(t)+" artifact")
			}
			return fmt.Errorf("orchestrator: loading %s for regeneration: %w", t, err)
		}
		if err := decodeArtifactInto(rs, t, art.Payload); err != nil {
			return fmt.Errorf("orchestrator: decoding %s for regeneration: %w", t, err)
		}
	}
	return nil
}

func decodeArtifactInto(rs *runState, t models.ArtifactType, raw json.RawMessage) error {
	switch t {
	case models.ArtifactSetting:
		return json.Unmarshal(raw, &rs.inputs.Setting)
	case models.ArtifactCast:
		return json.Unmarshal(raw, &rs.inputs.Cast)
	case models.ArtifactBackgroundContext:
		return json.Unmarshal(raw, &rs.inputs.BackgroundContext)
	case models.ArtifactHardLogicDevices:
		return json.Unmarshal(raw, &rs.inputs.HardLogicDevices)
	case models.ArtifactCML:
		return json.Unmarshal(raw, &rs.inputs.CML)
	case models.ArtifactCharacterProfiles:
		return json.Unmarshal(raw, &rs.inputs.CharacterProfiles)
	case models.ArtifactClues:
		return json.Unmarshal(raw, &rs.inputs.Clues)
	case models.ArtifactFairPlayReport:
		return json.Unmarshal(raw, &rs.inputs.FairPlayReport)
	case models.ArtifactOutline:
		return json.Unmarshal(raw, &rs.inputs.Outline)
	case models.ArtifactNoveltyAudit:
		return json.Unmarshal(raw, &rs.inputs.NoveltyAudit)
	default:
		return fmt.Errorf("regeneration does not know how to seed input type %s", t)
	}
}
