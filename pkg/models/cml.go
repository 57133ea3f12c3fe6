package models

// CML is the canonical structured representation of a mystery case, per
// the GLOSSARY. It is the payload of the "cml" artifact type.
type CML struct {
	Meta            CMLMeta          `json:"meta"`
	SurfaceModel    SurfaceModel     `json:"surface_model"`
	HiddenModel     HiddenModel      `json:"hidden_model"`
	FalseAssumption FalseAssumption  `json:"false_assumption"`
	ConstraintSpace []string         `json:"constraint_space"`
	InferencePath   []InferenceStep  `json:"inference_path"`
	DiscriminatingTest DiscriminatingTest `json:"discriminating_test"`
	FairPlay        FairPlayDeclaration `json:"fair_play"`
	QualityControls QualityControls  `json:"quality_controls"`
}

// CMLMeta carries the spec fields honored verbatim, plus the single
// primary axis value (invariant: "exactly one primary axis value is
// carried from spec to CML meta").
type CMLMeta struct {
	Decade         string      `json:"decade"`
	LocationPreset string      `json:"location_preset"`
	Tone           string      `json:"tone"`
	Theme          string      `json:"theme"`
	CastSize       int         `json:"cast_size"`
	PrimaryAxis    PrimaryAxis `json:"primary_axis"`
	TargetLength   TargetLength `json:"target_length"`
}

// SurfaceModel is the reader-visible (mistaken) read of events.
type SurfaceModel struct {
	Summary string `json:"summary"`
}

// HiddenModel is the true sequence of events behind the surface model.
type HiddenModel struct {
	Summary string `json:"summary"`
	Culprit string `json:"culprit"`
}

// FalseAssumption is the mistaken inferential belief the surface model
// relies on, per the GLOSSARY.
type FalseAssumption struct {
	Statement string `json:"statement"`
}

// InferenceStep is one rung of the deductive ladder a fair-play reader
// must climb to reach the solution.
type InferenceStep struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// DiscriminatingTest is the narrative device that separates the culprit
// from innocents via an observable outcome, per the GLOSSARY.
type DiscriminatingTest struct {
	Method      string `json:"method"`
	Description string `json:"description"`
}

// FairPlayDeclaration records the fair-play guarantees Agent 3 commits to.
type FairPlayDeclaration struct {
	Guarantees []string `json:"guarantees"`
}

// QualityControls are Agent 3's own anti-trope and consistency notes.
type QualityControls struct {
	AntiTropeJustifications []string `json:"anti_trope_justifications"`
}

// HardLogicDevice is one of Agent 3b's ≥3 reasoning mechanisms.
type HardLogicDevice struct {
	Name                string `json:"name"`
	PrincipleType        string `json:"principle_type"`
	SurfaceAppearance    string `json:"surface_appearance"`
	UnderlyingReality    string `json:"underlying_reality"`
	FairPlayClues        []string `json:"fair_play_clues"`
	AntiTropeJustification string `json:"anti_trope_justification"`
}

// HardLogicDevices is the payload of the "hard_logic_devices" artifact.
type HardLogicDevices struct {
	Devices []HardLogicDevice `json:"devices"`
}

// BackgroundContext is the payload of the "background_context" artifact.
type BackgroundContext struct {
	Narrative string `json:"narrative"`
}

// Setting is the payload of the "setting" artifact.
type Setting struct {
	Description    string   `json:"description"`
	Anchors        []string `json:"anchors"` // 2-3 period-accurate anchors
	Anachronisms   []string `json:"anachronisms"`
	Implausibilities []string `json:"implausibilities"`
}

// Suspect is one member of the cast.
type Suspect struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	IsCulprit   bool   `json:"is_culprit"`
	Description string `json:"description"`
}

// Cast is the payload of the "cast" artifact.
type Cast struct {
	Suspects       []Suspect `json:"suspects"`
	StereotypeCheck []string `json:"stereotype_check"`
}

// CharacterProfile is one facet of one suspect's deep-dive profile; all
// facets are collected into the single "character_profiles" artifact.
type CharacterProfile struct {
	SuspectName string         `json:"suspect_name"`
	Facet       string         `json:"facet"` // e.g. "psychology", "alibi", "motive", "relationships"
	Fields      map[string]any `json:"fields"`
}

// CharacterProfiles is the payload of the "character_profiles" artifact.
type CharacterProfiles struct {
	Profiles []CharacterProfile `json:"profiles"`
}

// Clue is one piece of planted evidence.
type Clue struct {
	ID                     string `json:"id"`
	Text                   string `json:"text"`
	Essential              bool   `json:"essential"`
	RevealChapter          int    `json:"reveal_chapter"`
	SupportsInferenceStep  *int   `json:"supports_inference_step,omitempty"`
	SupportsFalseAssumption bool  `json:"supports_false_assumption"`
	ContradictsFalseAssumption bool `json:"contradicts_false_assumption"`
	NamesFalseAssumption   bool   `json:"names_false_assumption"`
	ReferencesDiscriminatingTest bool `json:"references_discriminating_test"`
	EliminatesSuspect      string `json:"eliminates_suspect,omitempty"`
}

// Clues is the payload of the "clues" artifact.
type Clues struct {
	TotalChapters int    `json:"total_chapters"`
	Items         []Clue `json:"items"`
}

// FairPlayChecklistItem is one rule evaluated by Agent 6.
type FairPlayChecklistItem struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
}

// CMLValidationReport is the payload of the "cml_validation" artifact:
// Agent 4's structural checklist over the CML it is handed, per
// spec.md §4.6 ("structural integrity, axis dominance, epistemic
// integrity, false-assumption test, inference-path validity,
// discriminating-test soundness, fair-play guarantees").
type CMLValidationReport struct {
	Checklist  []FairPlayChecklistItem `json:"checklist"`
	Passed     bool                    `json:"passed"`
	Violations []string                `json:"violations"`
}

// FairPlayReport is the payload of the "fair_play_report" artifact.
type FairPlayReport struct {
	Overall         FairPlayStatus          `json:"overall"`
	Checklist       []FairPlayChecklistItem `json:"checklist"`
	Violations      []string                `json:"violations"`
	ViolationClasses []string               `json:"violation_classes"`
	Recommendations []string                `json:"recommendations"`
}

// BlindReaderVerdict is the output of the blind-reader simulation call.
type BlindReaderVerdict struct {
	IdentifiedCulprit string  `json:"identified_culprit"`
	Confidence        float64 `json:"confidence"`
	Correct           bool    `json:"correct"`
	Reasoning         string  `json:"reasoning"`
}

// Scene is one unit of the outline.
type Scene struct {
	Text           string   `json:"text"`
	ClueIDs        []string `json:"clue_ids"`
}

// Chapter is one outline chapter.
type Chapter struct {
	Index  int     `json:"index"`
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// Outline is the payload of the "outline" artifact.
type Outline struct {
	Chapters         []Chapter `json:"chapters"`
	QualityGuardrails []string `json:"quality_guardrails,omitempty"`
}

// ProseChapter is one generated, sanitized prose chapter.
type ProseChapter struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Prose is the payload of a "prose_<length>" artifact.
type Prose struct {
	Chapters  []ProseChapter `json:"chapters"`
	WordCount int            `json:"word_count"`
}

// Synopsis is the payload of the "synopsis" artifact.
type Synopsis struct {
	Text string `json:"text"`
}

// SeedCategorySimilarity is one category's similarity score in a
// novelty audit, per spec.md §4.7.
type SeedCategorySimilarity struct {
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
	Weight     float64 `json:"weight"`
}

// NoveltyAudit is the payload of the "novelty_audit" artifact.
type NoveltyAudit struct {
	SeedID              string                   `json:"seed_id"`
	CategorySimilarities []SeedCategorySimilarity `json:"category_similarities"`
	Overall             float64                  `json:"overall"`
	Threshold           float64                  `json:"threshold"`
	Status              NoveltyStatus            `json:"status"`
	Reason              string                   `json:"reason,omitempty"`
	DivergenceConstraints []string               `json:"divergence_constraints,omitempty"`
}

// GamePack is the (planned, possibly unimplemented) payload of the
// "game_pack" artifact type. See spec.md §9 Open Question #3.
type GamePack struct {
	NotImplemented bool `json:"not_implemented"`
}
