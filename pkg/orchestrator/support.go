package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/scoring"
)

// emit publishes one run event. Publishing failures are ignored and
// never abort the run — losing a progress notification is not a reason
// to fail a generation that otherwise succeeded.
func (o *Orchestrator) emit(ctx context.Context, rs *runState, step models.RunStep, severity models.RunEventSeverity, message string, payload map[string]any) {
	if o.publisher == nil {
		return
	}
	_ = o.publisher.Publish(ctx, models.RunEvent{
		RunID:     rs.run.ID,
		Name:      step,
		Message:   message,
		Severity:  severity,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) info(ctx context.Context, rs *runState, step models.RunStep, message string) {
	o.emit(ctx, rs, step, models.EventSeverityInfo, message, nil)
}

// runAgent looks up and drives one agent role, folding its attempt count
// and cost into the run's bookkeeping. It returns an error for a
// missing-registry entry or for any error the agent's Run returns (a
// context cancellation from the Validation-Retry Wrapper, or the game
// pack's KindNotImplemented); validation outcomes are reported through
// agent.Result.
func (o *Orchestrator) runAgent(ctx context.Context, rs *runState, id agent.ID) (agent.Result, error) {
	a, ok := o.agents[id]
	if !ok {
		return agent.Result{}, apperror.New(apperror.KindDependencyMissing, "agent not registered: "+string(id))
	}
	res, err := a.Run(ctx, o.gateway, o.parser, o.registry, rs.inputs)
	if err != nil {
		return agent.Result{}, err
	}
	rs.retryPerAgent[string(id)] += len(res.Attempts)
	rs.totalCost += res.Cost
	return res, nil
}

// persistArtifact writes payload as the next version of (project, type)
// for this run, returning the stored copy. Version numbering is
// per-(project_id, type) and monotonic across every run that has ever
// produced this artifact type, matching the Key shape pkg/store indexes
// artifacts by.
func (o *Orchestrator) persistArtifact(ctx context.Context, rs *runState, t models.ArtifactType, payload any) (models.Artifact, error) {
	key := models.Key{ProjectID: rs.run.ProjectID, Type: t}
	versions, err := o.store.ListArtifactVersions(ctx, key)
	if err != nil {
		return models.Artifact{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.Artifact{}, err
	}
	art := models.Artifact{
		ID:           uuid.New().String(),
		ProjectID:    rs.run.ProjectID,
		RunID:        rs.run.ID,
		Type:         t,
		Version:      len(versions) + 1,
		Payload:      raw,
		SourceSpecID: rs.spec.ID,
		CreatedAt:    time.Now(),
	}
	if err := o.store.PutArtifact(ctx, art); err != nil {
		return models.Artifact{}, err
	}
	return art, nil
}

// validationResults mirrors scoring.FromRetryOutcome's semantics for an
// already-collapsed agent.Result: a passing sentinel when the
// Validation-Retry Wrapper reported Valid, one failing test per
// unresolved violation otherwise.
func validationResults(res agent.Result) []scoring.TestResult {
	if res.Valid {
		return []scoring.TestResult{{Name: "retry", Passed: true, Critical: true}}
	}
	if len(res.Violations) == 0 {
		return []scoring.TestResult{{Name: "retry", Passed: false, Critical: true}}
	}
	results := make([]scoring.TestResult, 0, len(res.Violations))
	for _, v := range res.Violations {
		results = append(results, scoring.TestResult{Name: v.Rule, Passed: false, Critical: true})
	}
	return results
}
