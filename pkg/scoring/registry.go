package scoring

import "github.com/andylelli/cml-01-sub003/pkg/config"

// ScoringContext carries everything a phase scorer needs beyond its own
// phase input/output, per spec.md §4.8: previous phase outputs, config
// thresholds, target length, and the partial-generation flag that
// disables aggregate word/chapter-count tests while prose batches are
// still in flight.
type ScoringContext struct {
	Previous          map[string]any
	Config            *config.Config
	TargetLength      string
	PartialGeneration bool
}

// phaseNames enumerates the main scored phase names. Nothing registers a
// scorer against these names: the orchestrator's own table maps agent
// ids to a scorer that assembles ComponentResults and calls Score. The
// cml_validation, blind_reader and synopsis phases are scored too but
// are not listed here.
var phaseNames = []string{
	"setting", "cast", "background_context", "hard_logic_devices",
	"cml", "character_profiles", "novelty_audit", "clues",
	"fair_play_report", "outline", "prose",
}

// PhaseNames returns the fixed, ordered list of scored phase names.
func PhaseNames() []string {
	out := make([]string, len(phaseNames))
	copy(out, phaseNames)
	return out
}
