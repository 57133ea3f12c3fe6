package orchestrator

import (
	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/guardrail"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/scoring"
)

// phaseExtras carries the quality/completeness/consistency test buckets
// a phase's scorer folds in on top of the validation bucket every phase
// gets automatically from its agent.Result. Most phases only populate
// Consistency (from a guardrail.Outcome); several leave every bucket
// empty and score on validation alone.
type phaseExtras struct {
	Quality      []scoring.TestResult
	Completeness []scoring.TestResult
	Consistency  []scoring.TestResult
}

func consistencyFrom(outcome guardrail.Outcome) []scoring.TestResult {
	return scoring.FromGuardrailOutcome(outcome)
}

// phaseScorerFunc is one PhaseScorer per spec.md §4.8: it folds an
// agent's Result plus whatever extra test buckets the orchestrator
// computed for that phase (guardrail outcomes, audit verdicts) into a
// single models.PhaseScore.
type phaseScorerFunc func(phase string, res agent.Result, extras phaseExtras) models.PhaseScore

// genericScorer is the one scoring shape every phase in this pipeline
// needs: a validation bucket derived straight from the Validation-Retry
// Wrapper's verdict, plus whatever extras the orchestrator supplies. No
// phase here needs bespoke arithmetic — what differs between phases is
// never how a PhaseScore is computed (pkg/scoring.Score is the single,
// fixed implementation of that) but which extra test buckets the
// orchestrator passes in for a given phase.
func genericScorer(phase string, res agent.Result, extras phaseExtras) models.PhaseScore {
	return scoring.Score(phase, scoring.ComponentResults{
		Validation:   validationResults(res),
		Quality:      extras.Quality,
		Completeness: extras.Completeness,
		Consistency:  extras.Consistency,
	})
}

// phaseScorers registers one PhaseScorer per producing agent id — the
// table form spec.md §4.8 asks for, analogous to pkg/agent.NewRegistry's
// one-entry-per-role map. Every phase in this pipeline resolves to
// genericScorer; the table still exists (rather than calling
// genericScorer directly at each call site) so a future phase that
// needs bespoke scoring arithmetic has a single place to register it
// without touching the call sites in run.go.
var phaseScorers = map[agent.ID]phaseScorerFunc{
	agent.IDSetting:           genericScorer,
	agent.IDCast:              genericScorer,
	agent.IDBackgroundContext: genericScorer,
	agent.IDHardLogicDevices:  genericScorer,
	agent.IDCMLGenerator:      genericScorer,
	agent.IDCMLValidator:      genericScorer,
	agent.IDCharacterProfiles: genericScorer,
	agent.IDClues:             genericScorer,
	agent.IDFairPlayAudit:     genericScorer,
	agent.IDBlindReader:       genericScorer,
	agent.IDOutline:           genericScorer,
	agent.IDNoveltyAuditor:    genericScorer,
	agent.IDProse:             genericScorer,
	agent.IDSynopsis:          genericScorer,
}

// scorePhase looks up id's PhaseScorer and appends its result to rs —
// the one call every phase helper in run.go makes once its agent.Result
// and extras are ready.
func (o *Orchestrator) scorePhase(rs *runState, id agent.ID, phase string, res agent.Result, extras phaseExtras) {
	scorer, ok := phaseScorers[id]
	if !ok {
		scorer = genericScorer
	}
	rs.phases = append(rs.phases, scorer(phase, res, extras))
}
