package agent

import (
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/retry"
)

// The prompt-builder functions below assemble gateway Variables from
// Inputs and per-attempt feedback. Their wording is out of scope per
// spec.md §1; each returns a template_id plus the variables a real
// prompt template would interpolate.

func variablesWithFeedback(base map[string]any, feedback []string) map[string]any {
	if len(feedback) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["previous_attempt_violations"] = feedback
	return out
}

func promptSetting(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"decade":          inputs.Spec.Decade,
			"location_preset": inputs.Spec.LocationPreset,
			"tone":            inputs.Spec.Tone,
			"theme":           inputs.Spec.Theme,
			"attempt":         attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_setting", Variables: vars, JSONMode: true}
	}
}

func promptCast(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"cast_size":  inputs.Spec.CastSize,
			"cast_names": inputs.Spec.CastNames,
			"setting":    inputs.Setting,
			"attempt":    attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_cast", Variables: vars, JSONMode: true}
	}
}

func promptBackgroundContext(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"setting": inputs.Setting,
			"cast":    inputs.Cast,
			"attempt": attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_background_context", Variables: vars, JSONMode: true}
	}
}

func promptHardLogicDevices(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"background_context": inputs.BackgroundContext,
			"primary_axis":       inputs.Spec.PrimaryAxis,
			"attempt":            attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_hard_logic_devices", Variables: vars, JSONMode: true}
	}
}

func promptCMLGenerator(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		base := map[string]any{
			"spec":               inputs.Spec,
			"background_context": inputs.BackgroundContext,
			"hard_logic_devices": inputs.HardLogicDevices,
			"attempt":            attempt,
		}
		if len(inputs.DivergenceConstraints) > 0 {
			base["divergence_constraints"] = inputs.DivergenceConstraints
		}
		return llmgateway.Request{TemplateID: "agent_cml_generator", Variables: variablesWithFeedback(base, feedback), JSONMode: true}
	}
}

func promptCMLValidator(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		base := map[string]any{"cml": inputs.CML, "attempt": attempt}
		if len(inputs.TargetedRepairNotes) > 0 {
			base["targeted_repair_notes"] = inputs.TargetedRepairNotes
		}
		return llmgateway.Request{TemplateID: "agent_cml_validator", Variables: variablesWithFeedback(base, feedback), JSONMode: true}
	}
}

// promptCharacterProfiles is curried on facet name because Agents 2b-2e
// share one prompt shape differing only in which facet they fill in.
func promptCharacterProfiles(facet string) func(Inputs) retry.PromptFunc {
	return func(inputs Inputs) retry.PromptFunc {
		return func(attempt int, feedback []string) llmgateway.Request {
			vars := variablesWithFeedback(map[string]any{
				"cml":     inputs.CML,
				"cast":    inputs.Cast,
				"facet":   facet,
				"attempt": attempt,
			}, feedback)
			return llmgateway.Request{TemplateID: "agent_character_profile_" + facet, Variables: vars, JSONMode: true}
		}
	}
}

func promptClues(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		base := map[string]any{
			"cml":                inputs.CML,
			"required_clue_list": inputs.RequiredClueList,
			"attempt":            attempt,
		}
		if inputs.BlindReaderReasoning != "" {
			base["blind_reader_reasoning"] = inputs.BlindReaderReasoning
		}
		return llmgateway.Request{TemplateID: "agent_clues", Variables: variablesWithFeedback(base, feedback), JSONMode: true}
	}
}

func promptFairPlayAudit(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"cml":     inputs.CML,
			"clues":   inputs.Clues,
			"attempt": attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_fair_play_audit", Variables: vars, JSONMode: true}
	}
}

func promptBlindReader(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		// Deliberately omits cml/hidden model: the simulation must not see
		// the solution, only the clues, per spec.md §4.6.
		vars := variablesWithFeedback(map[string]any{
			"clues":   inputs.Clues,
			"attempt": attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_blind_reader", Variables: vars, JSONMode: true}
	}
}

func promptNoveltyAudit(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"cml":     inputs.CML,
			"seeds":   inputs.NoveltySeeds,
			"attempt": attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_novelty_audit", Variables: vars, JSONMode: true}
	}
}

func promptOutline(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		base := map[string]any{
			"cml":                inputs.CML,
			"clues":              inputs.Clues,
			"character_profiles": inputs.CharacterProfiles,
			"attempt":            attempt,
		}
		if len(inputs.QualityGuardrails) > 0 {
			base["quality_guardrails"] = inputs.QualityGuardrails
		}
		return llmgateway.Request{TemplateID: "agent_outline", Variables: variablesWithFeedback(base, feedback), JSONMode: true}
	}
}

func promptProse(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{
			"outline":            inputs.Outline,
			"cml":                inputs.CML,
			"cast":               inputs.Cast,
			"character_profiles": inputs.CharacterProfiles,
			"chapter_range":      inputs.ProseChapterRange,
			"target_length":      inputs.Spec.TargetLength,
			"attempt":            attempt,
		}, feedback)
		return llmgateway.Request{TemplateID: "agent_prose", Variables: vars, JSONMode: true}
	}
}

func promptSynopsis(inputs Inputs) retry.PromptFunc {
	return func(attempt int, feedback []string) llmgateway.Request {
		vars := variablesWithFeedback(map[string]any{"cml": inputs.CML, "attempt": attempt}, feedback)
		return llmgateway.Request{TemplateID: "agent_synopsis", Variables: vars, JSONMode: true}
	}
}
