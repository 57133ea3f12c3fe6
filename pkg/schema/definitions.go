package schema

import (
	"fmt"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

func asMap(payload any) (map[string]any, bool) {
	m, ok := payload.(map[string]any)
	return m, ok
}

var primaryAxisValues = []string{"temporal", "spatial", "identity", "behavioral", "authority"}
var targetLengthValues = []string{"short", "medium", "long"}
var fairPlayStatusValues = []string{"pass", "needs-revision", "fail"}
var noveltyStatusValues = []string{"pass", "warning", "fail"}

func allDefinitions() []Definition {
	return []Definition{
		settingDefinition(),
		castDefinition(),
		backgroundContextDefinition(),
		hardLogicDevicesDefinition(),
		cmlDefinition(),
		characterProfilesDefinition(),
		cluesDefinition(),
		fairPlayReportDefinition(),
		outlineDefinition(),
		proseDefinition(models.ArtifactProseShort),
		proseDefinition(models.ArtifactProseMedium),
		proseDefinition(models.ArtifactProseLong),
		synopsisDefinition(),
		noveltyAuditDefinition(),
		noveltyAuditRawDefinition(),
		cmlValidationDefinition(),
	}
}

func settingDefinition() Definition {
	return Definition{
		Type: models.ArtifactSetting,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireString(m, "description"); verr != nil {
				errs = append(errs, *verr)
			}
			anchors, verr := requireList(m, "anchors")
			if verr != nil {
				errs = append(errs, *verr)
			} else if len(anchors) < 2 || len(anchors) > 3 {
				errs = append(errs, ViolationError{Path: "anchors", Rule: "itemCount", Expected: "2-3", Actual: fmt.Sprintf("%d", len(anchors))})
			}
			return errs, nil
		},
		Normalize: func(payload map[string]any) (map[string]any, []Warning) {
			var warns []Warning
			warns = append(warns, setDefaultList(payload, "anachronisms")...)
			warns = append(warns, setDefaultList(payload, "implausibilities")...)
			return payload, warns
		},
	}
}

func castDefinition() Definition {
	return Definition{
		Type: models.ArtifactCast,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			suspects, verr := requireMinLen(m, "suspects", 1)
			if verr != nil {
				errs = append(errs, *verr)
			} else {
				culprits := 0
				for i, s := range suspects {
					sm, ok := s.(map[string]any)
					if !ok {
						errs = append(errs, ViolationError{Path: fmt.Sprintf("suspects[%d]", i), Rule: "type", Expected: "object"})
						continue
					}
					if _, verr := requireString(sm, "name"); verr != nil {
						errs = append(errs, ViolationError{Path: fmt.Sprintf("suspects[%d].name", i), Rule: verr.Rule, Expected: verr.Expected})
					}
					if c, ok := sm["is_culprit"].(bool); ok && c {
						culprits++
					}
				}
				if culprits != 1 {
					errs = append(errs, ViolationError{Path: "suspects", Rule: "exactlyOneCulprit", Expected: "1", Actual: fmt.Sprintf("%d", culprits)})
				}
			}
			return errs, nil
		},
		Normalize: func(payload map[string]any) (map[string]any, []Warning) {
			return payload, setDefaultList(payload, "stereotype_check")
		},
	}
}

func backgroundContextDefinition() Definition {
	return Definition{
		Type: models.ArtifactBackgroundContext,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireString(m, "narrative"); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func hardLogicDevicesDefinition() Definition {
	return Definition{
		Type: models.ArtifactHardLogicDevices,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			devices, verr := requireMinLen(m, "devices", 3)
			if verr != nil {
				errs = append(errs, *verr)
				return errs, nil
			}
			for i, d := range devices {
				dm, ok := d.(map[string]any)
				if !ok {
					errs = append(errs, ViolationError{Path: fmt.Sprintf("devices[%d]", i), Rule: "type", Expected: "object"})
					continue
				}
				for _, field := range []string{"name", "principle_type", "surface_appearance", "underlying_reality", "anti_trope_justification"} {
					if _, verr := requireString(dm, field); verr != nil {
						errs = append(errs, ViolationError{Path: fmt.Sprintf("devices[%d].%s", i, field), Rule: verr.Rule, Expected: verr.Expected})
					}
				}
				if _, verr := requireMinLen(dm, "fair_play_clues", 1); verr != nil {
					errs = append(errs, ViolationError{Path: fmt.Sprintf("devices[%d].fair_play_clues", i), Rule: verr.Rule, Expected: verr.Expected})
				}
			}
			return errs, nil
		},
	}
}

func cmlDefinition() Definition {
	return Definition{
		Type: models.ArtifactCML,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireEnum(m, "meta.primary_axis", primaryAxisValues); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireEnum(m, "meta.target_length", targetLengthValues); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireString(m, "surface_model.summary"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireString(m, "hidden_model.summary"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireString(m, "hidden_model.culprit"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireString(m, "false_assumption.statement"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "constraint_space", 1); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "inference_path", 1); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireString(m, "discriminating_test.method"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "fair_play.guarantees", 1); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "quality_controls.anti_trope_justifications", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func characterProfilesDefinition() Definition {
	return Definition{
		Type: models.ArtifactCharacterProfiles,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireMinLen(m, "profiles", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func cluesDefinition() Definition {
	return Definition{
		Type: models.ArtifactClues,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireMinLen(m, "items", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func fairPlayReportDefinition() Definition {
	return Definition{
		Type: models.ArtifactFairPlayReport,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireEnum(m, "overall", fairPlayStatusValues); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "checklist", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
		Normalize: func(payload map[string]any) (map[string]any, []Warning) {
			var warns []Warning
			warns = append(warns, setDefaultList(payload, "violations")...)
			warns = append(warns, setDefaultList(payload, "violation_classes")...)
			warns = append(warns, setDefaultList(payload, "recommendations")...)
			return payload, warns
		},
	}
}

// noveltyAuditRawDefinition validates Agent 8's raw LLM response, distinct
// from noveltyAuditDefinition which validates the final, locally recomputed
// artifact. The raw response never carries a trustworthy "status" or
// "overall" field, so it is checked against its own shape instead.
func noveltyAuditRawDefinition() Definition {
	return Definition{
		Type: models.ArtifactNoveltyAuditRaw,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireString(m, "seed_id"); verr != nil {
				errs = append(errs, *verr)
			}
			if _, verr := requireMinLen(m, "category_similarities", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

// cmlValidationDefinition is Agent 4's structural checklist over the CML
// it is handed, per spec.md §4.6 ("structural integrity, axis dominance,
// epistemic integrity, false-assumption test, inference-path validity,
// discriminating-test soundness, fair-play guarantees").
func cmlValidationDefinition() Definition {
	return Definition{
		Type: models.ArtifactCMLValidation,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			checklist, verr := requireMinLen(m, "checklist", 1)
			if verr != nil {
				errs = append(errs, *verr)
			}
			for i, item := range checklist {
				entry, ok := item.(map[string]any)
				if !ok {
					errs = append(errs, ViolationError{Path: fmt.Sprintf("checklist[%d]", i), Rule: "type", Expected: "object"})
					continue
				}
				if _, verr := requireString(entry, "rule"); verr != nil {
					errs = append(errs, ViolationError{Path: fmt.Sprintf("checklist[%d].rule", i), Rule: verr.Rule, Expected: verr.Expected})
				}
				if _, ok := entry["passed"].(bool); !ok {
					errs = append(errs, ViolationError{Path: fmt.Sprintf("checklist[%d].passed", i), Rule: "required", Expected: "bool"})
				}
			}
			if _, ok := m["passed"].(bool); !ok {
				errs = append(errs, ViolationError{Path: "passed", Rule: "required", Expected: "bool"})
			}
			return errs, nil
		},
		Normalize: func(payload map[string]any) (map[string]any, []Warning) {
			warns := setDefaultList(payload, "violations")
			return payload, warns
		},
	}
}

func outlineDefinition() Definition {
	return Definition{
		Type: models.ArtifactOutline,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireMinLen(m, "chapters", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
		Normalize: func(payload map[string]any) (map[string]any, []Warning) {
			return payload, setDefaultList(payload, "quality_guardrails")
		},
	}
}

func proseDefinition(t models.ArtifactType) Definition {
	return Definition{
		Type: t,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireMinLen(m, "chapters", 1); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func synopsisDefinition() Definition {
	return Definition{
		Type: models.ArtifactSynopsis,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireString(m, "text"); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}

func noveltyAuditDefinition() Definition {
	return Definition{
		Type: models.ArtifactNoveltyAudit,
		Check: func(payload any) ([]ViolationError, []Warning) {
			m, ok := asMap(payload)
			if !ok {
				return []ViolationError{{Path: "$", Rule: "type", Expected: "object"}}, nil
			}
			var errs []ViolationError
			if _, verr := requireEnum(m, "status", noveltyStatusValues); verr != nil {
				errs = append(errs, *verr)
			}
			return errs, nil
		},
	}
}
