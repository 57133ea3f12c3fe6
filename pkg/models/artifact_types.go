package models

// ArtifactType is a closed enum of every producible artifact kind, in
// roughly topological (dependency) order per the DAG in spec.md §3.
type ArtifactType string

const (
	ArtifactSetting            ArtifactType = "setting"
	ArtifactCast               ArtifactType = "cast"
	ArtifactBackgroundContext  ArtifactType = "background_context"
	ArtifactHardLogicDevices   ArtifactType = "hard_logic_devices"
	ArtifactCML                ArtifactType = "cml"
	ArtifactCMLValidation      ArtifactType = "cml_validation"
	ArtifactCharacterProfiles  ArtifactType = "character_profiles"
	ArtifactClues              ArtifactType = "clues"
	ArtifactFairPlayReport     ArtifactType = "fair_play_report"
	ArtifactOutline            ArtifactType = "outline"
	ArtifactProseShort         ArtifactType = "prose_short"
	ArtifactProseMedium        ArtifactType = "prose_medium"
	ArtifactProseLong          ArtifactType = "prose_long"
	ArtifactSynopsis           ArtifactType = "synopsis"
	ArtifactNoveltyAudit       ArtifactType = "novelty_audit"
	// ArtifactNoveltyAuditRaw is Agent 8's raw LLM response (seed guess plus
	// per-category similarities) before pkg/novelty recomputes the overall
	// score and status. It is never persisted or exposed through the API.
	ArtifactNoveltyAuditRaw    ArtifactType = "novelty_audit_raw"
	ArtifactGamePack           ArtifactType = "game_pack"
	ArtifactGenerationReport   ArtifactType = "generation_report"
	ArtifactBlindReaderVerdict ArtifactType = "blind_reader_verdict"
)

// ProseArtifactFor returns the length-keyed prose artifact type for a
// TargetLength, per spec.md §3 ("prose is keyed by length").
func ProseArtifactFor(length TargetLength) ArtifactType {
	switch length {
	case TargetLengthShort:
		return ArtifactProseShort
	case TargetLengthLong:
		return ArtifactProseLong
	default:
		return ArtifactProseMedium
	}
}

// cmlGatedTypes lists artifact types that require x-cml-mode ∈ {advanced, expert}.
var cmlGatedTypes = map[ArtifactType]bool{
	ArtifactCML:           true,
	ArtifactCMLValidation: true,
}

// RequiresCMLMode reports whether reading this artifact type is mode-gated.
func RequiresCMLMode(t ArtifactType) bool {
	return cmlGatedTypes[t]
}

// allArtifactTypes is the closed set accepted on the latest-artifact
// route's path segment, checked by Valid so a typo'd or made-up type
// name reads as a 400, not a confusing 404.
var allArtifactTypes = map[ArtifactType]bool{
	ArtifactSetting: true, ArtifactCast: true, ArtifactBackgroundContext: true,
	ArtifactHardLogicDevices: true, ArtifactCML: true, ArtifactCMLValidation: true,
	ArtifactCharacterProfiles: true, ArtifactClues: true, ArtifactFairPlayReport: true,
	ArtifactOutline: true, ArtifactProseShort: true, ArtifactProseMedium: true,
	ArtifactProseLong: true, ArtifactSynopsis: true, ArtifactNoveltyAudit: true,
	ArtifactGamePack: true, ArtifactGenerationReport: true, ArtifactBlindReaderVerdict: true,
}

// Valid reports whether t is one of the producible artifact types
// exposed through the latest-artifact route. ArtifactNoveltyAuditRaw is
// deliberately excluded — it is an internal intermediate, never
// fetchable through the API.
func (t ArtifactType) Valid() bool {
	return allArtifactTypes[t]
}
