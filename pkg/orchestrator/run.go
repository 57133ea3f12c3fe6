package orchestrator

import (
	"context"
	"time"

	"github.com/andylelli/cml-01-sub003/pkg/agent"
	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/guardrail"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/scoring"
)

// proseBatchSize is the number of chapters Agent 9 is asked to draft per
// call. Batching keeps a single call's output within a manageable token
// budget instead of asking for an entire novel in one shot.
const proseBatchSize = 3

// persistentFailureError marks a feedback loop's budget as exhausted:
// the run cannot continue, and classification becomes
// models.Run.FailureClassification.
type persistentFailureError struct {
	classification string
}

func (e *persistentFailureError) Error() string { return "persistent failure: " + e.classification }

func classificationFor(err error) string {
	if pf, ok := err.(*persistentFailureError); ok {
		return pf.classification
	}
	return "run_error"
}

// execute runs the full state machine for one run, start to finish. It
// never returns a value — every outcome (success, failure, the
// terminal GenerationReport) is persisted and published as it happens,
// the way the teacher's Execute persists and publishes stage results as
// it walks the chain rather than accumulating them for a final write.
func (o *Orchestrator) execute(ctx context.Context, run models.Run, spec models.Spec) {
	rs := o.newRunState(run, spec)
	o.info(ctx, rs, models.StepSpecReady, "run started")

	phases := []func(context.Context, *runState) error{
		o.phaseSetting,
		o.phaseCast,
		o.phaseBackgroundContext,
		o.phaseHardLogicDevices,
		o.phaseCML,
		o.phaseCharacterProfiles,
		o.phaseNoveltyAudit,
		o.phaseClues,
		o.phaseFairPlay,
		o.phaseOutline,
		o.phaseProse,
		o.phaseSynopsis,
	}

	for _, phase := range phases {
		if err := phase(ctx, rs); err != nil {
			retryTotal := 0
			for _, n := range rs.retryPerAgent {
				retryTotal += n
			}
			report := scoring.Aggregate(rs.run.ID, rs.run.ProjectID, rs.phases,
				models.RetryStats{TotalAttempts: retryTotal, PerAgent: rs.retryPerAgent}, rs.totalCost)
			report.Passed = false
			_ = o.store.PutReport(ctx, report)
			o.fail(ctx, rs, classificationFor(err), err)
			return
		}
	}

	o.releaseGate(ctx, rs)
}

func (o *Orchestrator) fail(ctx context.Context, rs *runState, classification string, cause error) {
	now := time.Now()
	rs.run.Status = models.RunStatusFailed
	rs.run.FailureClassification = classification
	rs.run.FinishedAt = &now
	_ = o.store.UpdateRun(ctx, rs.run)
	_ = o.store.UpdateProjectStatus(ctx, rs.run.ProjectID, models.ProjectStatusIdle)
	o.emit(ctx, rs, models.StepRunFailed, models.EventSeverityCritical, cause.Error(), map[string]any{"classification": classification})
}

// --- Agents 1-3b: no guardrail, just generate-validate-persist-score ---

func (o *Orchestrator) phaseSetting(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepSettingStarted, "generating setting")
	res, err := o.runAgent(ctx, rs, agent.IDSetting)
	if err != nil {
		return err
	}
	setting, _ := res.Payload.(models.Setting)
	rs.inputs.Setting = setting
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_setting"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactSetting, setting); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDSetting, "setting", res, phaseExtras{})
	o.info(ctx, rs, models.StepSettingDone, "setting complete")
	return nil
}

func (o *Orchestrator) phaseCast(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepCastStarted, "casting suspects")
	res, err := o.runAgent(ctx, rs, agent.IDCast)
	if err != nil {
		return err
	}
	cast, _ := res.Payload.(models.Cast)
	rs.inputs.Cast = cast
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_cast"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactCast, cast); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDCast, "cast", res, phaseExtras{})
	o.info(ctx, rs, models.StepCastDone, "cast complete")
	return nil
}

func (o *Orchestrator) phaseBackgroundContext(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepBackgroundContextStarted, "drafting background context")
	res, err := o.runAgent(ctx, rs, agent.IDBackgroundContext)
	if err != nil {
		return err
	}
	bg, _ := res.Payload.(models.BackgroundContext)
	rs.inputs.BackgroundContext = bg
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_background_context"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactBackgroundContext, bg); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDBackgroundContext, "background_context", res, phaseExtras{})
	o.info(ctx, rs, models.StepBackgroundContextDone, "background context complete")
	return nil
}

func (o *Orchestrator) phaseHardLogicDevices(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepHardLogicDevicesStarted, "designing hard-logic devices")
	res, err := o.runAgent(ctx, rs, agent.IDHardLogicDevices)
	if err != nil {
		return err
	}
	devices, _ := res.Payload.(models.HardLogicDevices)
	rs.inputs.HardLogicDevices = devices
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_hard_logic_devices"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactHardLogicDevices, devices); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDHardLogicDevices, "hard_logic_devices", res, phaseExtras{})
	o.info(ctx, rs, models.StepHardLogicDevicesDone, "hard-logic devices complete")
	return nil
}

// phaseCML drives Agent 3 (CML generator) and Agent 4 (CML validator).
// A validator-reported structural failure is not one of spec.md §4.11's
// ten numbered loops — it is the deepest possible defect this pipeline
// can produce (the case model itself doesn't hold together) — so it
// aborts the run rather than looping.
func (o *Orchestrator) phaseCML(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepCMLStarted, "generating CML")
	res, err := o.runAgent(ctx, rs, agent.IDCMLGenerator)
	if err != nil {
		return err
	}
	cml, _ := res.Payload.(models.CML)
	rs.inputs.CML = cml
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_cml"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactCML, cml); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDCMLGenerator, "cml", res, phaseExtras{})
	o.info(ctx, rs, models.StepCMLDone, "CML draft complete")

	valRes, err := o.runAgent(ctx, rs, agent.IDCMLValidator)
	if err != nil {
		return err
	}
	report, _ := valRes.Payload.(models.CMLValidationReport)
	if !valRes.Valid || !report.Passed {
		return &persistentFailureError{"persistent_structural"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactCMLValidation, report); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDCMLValidator, "cml_validation", valRes, phaseExtras{
		Consistency: checklistResults(report.Checklist, true),
	})
	o.info(ctx, rs, models.StepCMLValidated, "CML validated")
	return nil
}

func (o *Orchestrator) phaseCharacterProfiles(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepCharacterProfilesStarted, "drafting character profiles")
	res, err := o.runAgent(ctx, rs, agent.IDCharacterProfiles)
	if err != nil {
		return err
	}
	profiles, _ := res.Payload.(models.CharacterProfiles)
	rs.inputs.CharacterProfiles = profiles
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_character_profiles"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactCharacterProfiles, profiles); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDCharacterProfiles, "character_profiles", res, phaseExtras{})
	o.info(ctx, rs, models.StepCharacterProfilesDone, "character profiles complete")
	return nil
}

// phaseNoveltyAudit drives Agent 8 and feedback loop 6: on a hard
// novelty failure, the CML is regenerated once with divergence
// constraints and re-audited. novelty.Audit has already applied
// config.NoveltySkip/NoveltyHardFail when it set Status, so a second
// Fail verdict here is final.
func (o *Orchestrator) phaseNoveltyAudit(ctx context.Context, rs *runState) error {
	res, err := o.runAgent(ctx, rs, agent.IDNoveltyAuditor)
	if err != nil {
		return err
	}
	audit, _ := res.Payload.(models.NoveltyAudit)
	o.info(ctx, rs, models.StepNoveltyMath, "recomputed novelty score from fixed category weights")

	if audit.Status == models.NoveltyFail {
		o.emit(ctx, rs, models.StepCMLRevision, models.EventSeverityWarning,
			"novelty audit failed, regenerating CML with divergence constraints", map[string]any{"seed_id": audit.SeedID})
		rs.inputs.DivergenceConstraints = audit.DivergenceConstraints
		cmlRes, err := o.runAgent(ctx, rs, agent.IDCMLGenerator)
		if err != nil {
			return err
		}
		if cml, ok := cmlRes.Payload.(models.CML); ok {
			rs.inputs.CML = cml
		}
		if _, err := o.persistArtifact(ctx, rs, models.ArtifactCML, rs.inputs.CML); err != nil {
			return err
		}

		res2, err := o.runAgent(ctx, rs, agent.IDNoveltyAuditor)
		if err != nil {
			return err
		}
		audit2, _ := res2.Payload.(models.NoveltyAudit)
		if audit2.Status == models.NoveltyFail {
			return &persistentFailureError{"persistent_novelty"}
		}
		res = res2
		audit = audit2
	}

	if _, err := o.persistArtifact(ctx, rs, models.ArtifactNoveltyAudit, audit); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDNoveltyAuditor, "novelty_audit", res, phaseExtras{
		Consistency: []scoring.TestResult{{Name: "novelty", Passed: audit.Status != models.NoveltyFail, Critical: true}},
	})
	o.info(ctx, rs, models.StepNoveltyAuditDone, "novelty audit complete")
	return nil
}

// phaseClues drives Agent 5 and feedback loop 2: one retargeted
// regeneration on a guardrail failure, then advance regardless of
// remaining major warnings.
func (o *Orchestrator) phaseClues(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepCluesStarted, "generating clues")
	res, err := o.runAgent(ctx, rs, agent.IDClues)
	if err != nil {
		return err
	}
	clues, _ := res.Payload.(models.Clues)
	rs.inputs.Clues = clues
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_clues"}
	}

	outcome := guardrail.ClueGuardrails(rs.inputs.CML, rs.inputs.Cast, clues)
	if !outcome.Passed() {
		o.emit(ctx, rs, models.StepClueGuardrailRetry, severityFor(outcome), "clue guardrails failed, regenerating once", guardrailPayload(outcome))
		rs.inputs.RequiredClueList = feedbackStrings(outcome)
		res2, err := o.runAgent(ctx, rs, agent.IDClues)
		if err != nil {
			return err
		}
		if clues2, ok := res2.Payload.(models.Clues); ok {
			clues = clues2
			rs.inputs.Clues = clues2
			res = res2
		}
		outcome = guardrail.ClueGuardrails(rs.inputs.CML, rs.inputs.Cast, clues)
		rs.inputs.RequiredClueList = nil
	}

	if _, err := o.persistArtifact(ctx, rs, models.ArtifactClues, clues); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDClues, "clues", res, phaseExtras{Consistency: consistencyFrom(outcome)})
	o.info(ctx, rs, models.StepCluesDone, "clues complete")
	return nil
}

// phaseFairPlay drives Agent 6 (fair-play audit) plus feedback loops 3
// and 4, then the blind reader plus feedback loop 5.
func (o *Orchestrator) phaseFairPlay(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepFairPlayReportStarted, "running fair-play audit")
	res, err := o.runAgent(ctx, rs, agent.IDFairPlayAudit)
	if err != nil {
		return err
	}
	report, _ := res.Payload.(models.FairPlayReport)
	rs.inputs.FairPlayReport = report
	// cumulativeCost is capped by config.FairPlayCostCeiling across the
	// audit, clue regeneration and re-audit chain.
	cumulativeCost := res.Cost

	if report.Overall != models.FairPlayPass {
		if hasStructuralViolation(report) {
			o.emit(ctx, rs, models.StepCMLRevision, models.EventSeverityWarning, "structural fair-play violation, revising CML", map[string]any{"violation_classes": report.ViolationClasses})
			rs.inputs.TargetedRepairNotes = report.Recommendations
			cmlRes, err := o.runAgent(ctx, rs, agent.IDCMLGenerator)
			if err != nil {
				return err
			}
			if cml, ok := cmlRes.Payload.(models.CML); ok {
				rs.inputs.CML = cml
			}
			if _, err := o.persistArtifact(ctx, rs, models.ArtifactCML, rs.inputs.CML); err != nil {
				return err
			}
			cluesRes, err := o.runAgent(ctx, rs, agent.IDClues)
			if err != nil {
				return err
			}
			if clues, ok := cluesRes.Payload.(models.Clues); ok {
				rs.inputs.Clues = clues
				if _, err := o.persistArtifact(ctx, rs, models.ArtifactClues, clues); err != nil {
					return err
				}
			}
			res, err = o.runAgent(ctx, rs, agent.IDFairPlayAudit)
			if err != nil {
				return err
			}
			report, _ = res.Payload.(models.FairPlayReport)
			rs.inputs.FairPlayReport = report
			if report.Overall == models.FairPlayFail {
				return &persistentFailureError{"persistent_structural"}
			}
		} else if cumulativeCost < o.cfg.FairPlayCostCeiling {
			o.emit(ctx, rs, models.StepClueGuardrailRetry, models.EventSeverityWarning, "fair-play audit flagged clues, regenerating once", map[string]any{"violation_classes": report.ViolationClasses})
			cluesRes, err := o.runAgent(ctx, rs, agent.IDClues)
			if err != nil {
				return err
			}
			cumulativeCost += cluesRes.Cost
			if clues, ok := cluesRes.Payload.(models.Clues); ok {
				rs.inputs.Clues = clues
				if _, err := o.persistArtifact(ctx, rs, models.ArtifactClues, clues); err != nil {
					return err
				}
			}
			// Re-check the ceiling after the regeneration spend and before
			// authorizing the re-audit call: the outer gate only bounds the
			// spend that already happened, not the one about to happen, so
			// every spend in the loop re-checks the cap instead of running
			// on the stale gate from before the regeneration.
			if cumulativeCost >= o.cfg.FairPlayCostCeiling {
				return &persistentFailureError{"persistent_fair_play"}
			}
			res, err = o.runAgent(ctx, rs, agent.IDFairPlayAudit)
			if err != nil {
				return err
			}
			cumulativeCost += res.Cost
			report, _ = res.Payload.(models.FairPlayReport)
			rs.inputs.FairPlayReport = report
			if report.Overall == models.FairPlayFail {
				return &persistentFailureError{"persistent_fair_play"}
			}
		} else {
			return &persistentFailureError{"persistent_fair_play"}
		}
	}

	if _, err := o.persistArtifact(ctx, rs, models.ArtifactFairPlayReport, report); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDFairPlayAudit, "fair_play_report", res, phaseExtras{
		Consistency: checklistResults(report.Checklist, true),
	})
	o.info(ctx, rs, models.StepFairPlayReportDone, "fair-play audit complete")

	return o.runBlindReader(ctx, rs)
}

// runBlindReader drives the blind reader and feedback loop 5: one additional
// clue regeneration fed by the blind reader's reasoning when it fails
// to identify the culprit from the clues alone.
func (o *Orchestrator) runBlindReader(ctx context.Context, rs *runState) error {
	res, err := o.runAgent(ctx, rs, agent.IDBlindReader)
	if err != nil {
		return err
	}
	verdict, _ := res.Payload.(models.BlindReaderVerdict)

	if !verdict.Correct {
		o.emit(ctx, rs, models.StepBlindReader, models.EventSeverityWarning, "blind reader failed to identify the culprit, regenerating clues", map[string]any{"reasoning": verdict.Reasoning})
		rs.inputs.BlindReaderReasoning = verdict.Reasoning
		cluesRes, err := o.runAgent(ctx, rs, agent.IDClues)
		if err != nil {
			return err
		}
		if clues, ok := cluesRes.Payload.(models.Clues); ok {
			rs.inputs.Clues = clues
			if _, err := o.persistArtifact(ctx, rs, models.ArtifactClues, clues); err != nil {
				return err
			}
		}
		res, err = o.runAgent(ctx, rs, agent.IDBlindReader)
		if err != nil {
			return err
		}
		verdict, _ = res.Payload.(models.BlindReaderVerdict)
		rs.inputs.BlindReaderReasoning = ""
	}

	if _, err := o.persistArtifact(ctx, rs, models.ArtifactBlindReaderVerdict, verdict); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDBlindReader, "blind_reader", res, phaseExtras{
		Consistency: []scoring.TestResult{{Name: "identified_culprit", Passed: verdict.Correct, Critical: false}},
	})
	o.info(ctx, rs, models.StepBlindReader, "blind reader complete")
	return nil
}

// phaseOutline drives Agent 9's predecessor, Agent "outline", and
// feedback loop 7: one regeneration on missing coverage, with any issue
// still unresolved afterward carried forward into prose as quality
// guardrails rather than retried a second time.
func (o *Orchestrator) phaseOutline(ctx context.Context, rs *runState) error {
	o.info(ctx, rs, models.StepOutlineStarted, "drafting outline")
	res, err := o.runAgent(ctx, rs, agent.IDOutline)
	if err != nil {
		return err
	}
	outline, _ := res.Payload.(models.Outline)
	rs.inputs.Outline = outline
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_outline"}
	}

	outcome := guardrail.OutlineGuardrails(rs.inputs.Cast, outline)
	rs.inputs.QualityGuardrails = nil
	if !outcome.Passed() {
		rs.inputs.QualityGuardrails = feedbackStrings(outcome)
		res2, err := o.runAgent(ctx, rs, agent.IDOutline)
		if err != nil {
			return err
		}
		if outline2, ok := res2.Payload.(models.Outline); ok {
			outline = outline2
			rs.inputs.Outline = outline2
			res = res2
		}
		outcome = guardrail.OutlineGuardrails(rs.inputs.Cast, outline)
		if outcome.Passed() {
			rs.inputs.QualityGuardrails = nil
		} else {
			// Unresolved issues propagate as guardrails into prose
			// generation instead of a second outline regeneration.
			rs.inputs.QualityGuardrails = feedbackStrings(outcome)
		}
	}

	if _, err := o.persistArtifact(ctx, rs, models.ArtifactOutline, outline); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDOutline, "outline", res, phaseExtras{Consistency: consistencyFrom(outcome)})
	o.info(ctx, rs, models.StepOutlineDone, "outline complete")
	return nil
}

func (o *Orchestrator) phaseSynopsis(ctx context.Context, rs *runState) error {
	res, err := o.runAgent(ctx, rs, agent.IDSynopsis)
	if err != nil {
		return err
	}
	synopsis, _ := res.Payload.(models.Synopsis)
	if !res.Valid {
		return &persistentFailureError{"unresolved_validation_synopsis"}
	}
	if _, err := o.persistArtifact(ctx, rs, models.ArtifactSynopsis, synopsis); err != nil {
		return err
	}
	o.scorePhase(rs, agent.IDSynopsis, "synopsis", res, phaseExtras{})
	return nil
}

// releaseGate runs after every producing phase has completed: the game
// pack agent (a KindNotImplemented error from it is emitted as a warning
// and skipped), then aggregation and the terminal GenerationReport.
func (o *Orchestrator) releaseGate(ctx context.Context, rs *runState) {
	o.info(ctx, rs, models.StepReleaseGate, "evaluating release gate")

	if _, err := o.runAgent(ctx, rs, agent.IDGamePack); err != nil {
		if !apperror.Is(err, apperror.KindNotImplemented) {
			o.fail(ctx, rs, "game_pack_error", err)
			return
		}
		o.emit(ctx, rs, models.StepReleaseGate, models.EventSeverityWarning, "game pack not implemented, skipping", nil)
	}

	retryTotal := 0
	for _, n := range rs.retryPerAgent {
		retryTotal += n
	}
	report := scoring.Aggregate(rs.run.ID, rs.run.ProjectID, rs.phases,
		models.RetryStats{TotalAttempts: retryTotal, PerAgent: rs.retryPerAgent}, rs.totalCost)

	if err := o.store.PutReport(ctx, report); err != nil {
		o.fail(ctx, rs, "report_persist_error", err)
		return
	}

	now := time.Now()
	rs.run.FinishedAt = &now
	if report.Passed {
		rs.run.Status = models.RunStatusSucceeded
	} else {
		rs.run.Status = models.RunStatusFailed
		rs.run.FailureClassification = "score_gate"
	}
	_ = o.store.UpdateRun(ctx, rs.run)
	_ = o.store.UpdateProjectStatus(ctx, rs.run.ProjectID, models.ProjectStatusIdle)

	if report.Passed {
		o.emit(ctx, rs, models.StepRunFinished, models.EventSeverityInfo, "run complete", map[string]any{"overall_score": report.OverallScore})
		return
	}
	o.emit(ctx, rs, models.StepRunFailed, models.EventSeverityError, "run finished below the release gate", map[string]any{"overall_score": report.OverallScore})
}
