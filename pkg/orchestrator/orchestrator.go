// Package orchestrator drives one run of the generation pipeline end to
// end: the seventeen-state machine from spec.md §4.9, the ten bounded
// feedback loops from spec.md §4.11, and the release-gate scoring pass
// from spec.md §4.8. It is the one component that calls agents in
// sequence and owns every write to the Artifact Store — no agent
// persists anything itself (pkg/agent's package doc, "Ownership").
//
// The structural shape follows the teacher's RealSessionExecutor
// (pkg/queue/executor.go): a single entry point drives a fixed,
// sequential chain of stages, each stage is a small helper method that
// reports a typed result, and fail-fast short-circuits the remainder of
// the chain on any unrecoverable error while still emitting terminal
// events and persisting whatever state was reached.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/events"
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/novelty"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// Orchestrator owns the fixed agent registry, the shared infrastructure
// every agent call needs, and the event publisher each run reports
// progress through. It is constructed once at process startup and is
// safe for concurrent use across projects (spec.md §6's "one active run
// per project" rule is enforced per project, not globally).
type Orchestrator struct {
	store     store.Store
	gateway   *llmgateway.Gateway
	parser    *parse.Parser
	registry  *schema.Registry
	agents    map[agent.ID]agent.Agent
	publisher *events.Publisher
	cfg       *config.Config
	seeds     []novelty.SeedPattern
}

// New builds an Orchestrator from its already-constructed dependencies.
// pub may be nil for headless operation (no live WebSocket fan-out,
// events are still persisted through st).
func New(st store.Store, gw *llmgateway.Gateway, parser *parse.Parser, reg *schema.Registry, agents map[agent.ID]agent.Agent, pub *events.Publisher, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:     st,
		gateway:   gw,
		parser:    parser,
		registry:  reg,
		agents:    agents,
		publisher: pub,
		cfg:       cfg,
		seeds:     novelty.DefaultSeeds(),
	}
}

// StartRun begins a new run for projectID against its latest spec. It
// enforces the reject-not-queue concurrency policy (spec.md §6): a
// project with an active run returns apperror.KindRunAlreadyActive
// rather than queuing behind it. The run executes in the background;
// StartRun returns as soon as the Run record is persisted so callers
// (the HTTP handler) can respond immediately and let the client follow
// progress through the event stream.
func (o *Orchestrator) StartRun(ctx context.Context, projectID string) (models.Run, error) {
	if o.cfg.LLMAPIKey == "" {
		return models.Run{}, apperror.New(apperror.KindCredentialMissing, "no LLM API key configured")
	}
	if _, active, err := o.store.ActiveRun(ctx, projectID); err != nil {
		return models.Run{}, fmt.Errorf("orchestrator: checking active run: %w", err)
	} else if active {
		return models.Run{}, apperror.New(apperror.KindRunAlreadyActive, "project "+projectID+" already has a run in progress")
	}

	spec, err := o.store.LatestSpec(ctx, projectID)
	if err != nil {
		return models.Run{}, fmt.Errorf("orchestrator: loading latest spec: %w", err)
	}

	run := models.Run{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		SpecID:    spec.ID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return models.Run{}, fmt.Errorf("orchestrator: creating run: %w", err)
	}
	if err := o.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusRunning); err != nil {
		return models.Run{}, fmt.Errorf("orchestrator: marking project running: %w", err)
	}

	// Detached from the request context: the run must keep going after
	// the HTTP handler that triggered it has returned, mirroring the
	// teacher's use of context.Background() for work that outlives the
	// request that started it.
	go o.execute(context.Background(), run, spec)

	return run, nil
}

// ReconcileInterruptedRuns marks every project's still-"running" run as
// failed at process startup. spec.md §4.9 rules out mid-state resumption
// across restarts: a run interrupted by a process crash or restart has
// no durable notion of "where it was" in the agent DAG, so the only
// sound recovery is to fail it outright and let the operator re-trigger
// generation from a clean state.
func (o *Orchestrator) ReconcileInterruptedRuns(ctx context.Context) error {
	projects, err := o.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: listing projects for reconciliation: %w", err)
	}
	for _, p := range projects {
		run, active, err := o.store.ActiveRun(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("orchestrator: checking active run for %s: %w", p.ID, err)
		}
		if !active {
			continue
		}
		now := time.Now()
		run.Status = models.RunStatusFailed
		run.FailureClassification = "interrupted"
		run.FinishedAt = &now
		if err := o.store.UpdateRun(ctx, run); err != nil {
			return fmt.Errorf("orchestrator: failing interrupted run %s: %w", run.ID, err)
		}
		if err := o.store.UpdateProjectStatus(ctx, p.ID, models.ProjectStatusIdle); err != nil {
			return fmt.Errorf("orchestrator: resetting project %s: %w", p.ID, err)
		}
	}
	return nil
}

// runState is the per-run carrier threaded through every phase helper:
// the accumulated Inputs every agent reads from, plus scoring and cost
// bookkeeping for the terminal GenerationReport. It exists for the same
// reason the teacher's executeStageInput groups per-call parameters —
// to keep every phase method's signature to (ctx, *runState) instead of
// a dozen positional fields.
type runState struct {
	run    models.Run
	spec   models.Spec
	inputs agent.Inputs

	phases        []models.PhaseScore
	retryPerAgent map[string]int
	totalCost     float64

	// Carried forward into the release-gate guardrail (spec.md §4.5).
	culpritAlias   string
	revealChapter  int
}

func (o *Orchestrator) newRunState(run models.Run, spec models.Spec) *runState {
	return &runState{
		run:           run,
		spec:          spec,
		inputs:        agent.Inputs{ProjectID: run.ProjectID, RunID: run.ID, Spec: spec, NoveltySeeds: o.seeds},
		retryPerAgent: map[string]int{},
	}
}
