package models

import "time"

// Run is one execution of the generation pipeline against one spec version.
type Run struct {
	ID                  string     `json:"id"`
	ProjectID           string     `json:"project_id"`
	SpecID              string     `json:"spec_id"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
	Status              RunStatus  `json:"status"`
	CostBudgetRemaining  float64   `json:"cost_budget_remaining"`
	// FailureClassification is set when Status == RunStatusFailed, e.g.
	// "persistent_fair_play" (spec.md S3) or "persistent_structural".
	FailureClassification string `json:"failure_classification,omitempty"`
}

// RunEventSeverity classifies a RunEvent.
type RunEventSeverity string

const (
	EventSeverityInfo     RunEventSeverity = "info"
	EventSeverityWarning  RunEventSeverity = "warning"
	EventSeverityError    RunEventSeverity = "error"
	EventSeverityCritical RunEventSeverity = "critical"
)

// RunStep is the closed enum of step names per spec.md §4.10.
type RunStep string

const (
	StepSpecReady               RunStep = "SPEC_READY"
	StepSettingDone              RunStep = "setting_done"
	StepCastDone                 RunStep = "cast_done"
	StepBackgroundContextDone    RunStep = "background_context_done"
	StepHardLogicDevicesDone     RunStep = "hard_logic_devices_done"
	StepCMLDone                  RunStep = "cml_done"
	StepCMLValidated             RunStep = "cml_validated"
	StepCharacterProfilesDone    RunStep = "character_profiles_done"
	StepNoveltyAuditDone         RunStep = "novelty_audit_done"
	StepCluesDone                RunStep = "clues_done"
	StepFairPlayReportDone       RunStep = "fair_play_report_done"
	StepOutlineDone              RunStep = "outline_done"
	StepProseDone                RunStep = "prose_done"
	StepReleaseGate              RunStep = "release_gate"
	StepRunFinished              RunStep = "run_finished"
	StepRunFailed                RunStep = "run_failed"
	StepRunAborted               RunStep = "run_aborted"

	// Guardrail / feedback-loop steps.
	StepNoveltyMath          RunStep = "novelty_math"
	StepClueGuardrailRetry   RunStep = "clue_guardrail_retry"
	StepCMLRevision          RunStep = "cml_revision"
	StepBlindReader          RunStep = "blind_reader"
	StepProseBatchRepair     RunStep = "prose_batch_repair"

	// Intermediate "started" markers agents may emit.
	StepSettingStarted           RunStep = "setting_started"
	StepCastStarted               RunStep = "cast_started"
	StepBackgroundContextStarted  RunStep = "background_context_started"
	StepHardLogicDevicesStarted   RunStep = "hard_logic_devices_started"
	StepCMLStarted                RunStep = "cml_started"
	StepCharacterProfilesStarted  RunStep = "character_profiles_started"
	StepCluesStarted              RunStep = "clues_started"
	StepFairPlayReportStarted     RunStep = "fair_play_report_started"
	StepOutlineStarted            RunStep = "outline_started"
	StepProseStarted              RunStep = "prose_started"
)

// RunEvent is one ordered, append-only progress record for a run.
type RunEvent struct {
	RunID     string           `json:"run_id"`
	Step      int              `json:"step"` // monotonic offset within the run
	Name      RunStep          `json:"name"`
	Message   string           `json:"message"`
	Severity  RunEventSeverity `json:"severity"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// OperationalLogEntry records metadata about one LLM Gateway call.
type OperationalLogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	ProjectID    string    `json:"project_id"`
	RunID        string    `json:"run_id"`
	Agent        string    `json:"agent"`
	Operation    string    `json:"operation"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	LatencyMS    int64     `json:"latency_ms"`
	Error        string    `json:"error,omitempty"`
}
