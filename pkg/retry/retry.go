// Package retry implements the generic Validation-Retry Wrapper from
// spec.md §4.4: build prompt -> call gateway -> parse -> normalize ->
// validate -> retry with violation feedback, up to a fixed attempt budget
// and an optional cost ceiling. Every agent in pkg/agent drives its LLM
// call through Run instead of hand-rolling its own retry loop, the same
// way the teacher's pkg/agent/executor.go centralizes one retry path for
// every stage handler.
//
// Run is deliberately non-blocking on validation failure: per spec.md
// §4.4 step 5, once the attempt budget or cost ceiling is exhausted, Run
// returns the last candidate artifact and the final validation result
// rather than an error — the orchestrator, not the wrapper, decides
// whether an unresolved violation aborts the run or is accepted as a
// warning.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/llmgateway"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/parse"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

// DefaultMaxAttempts is the attempt budget used when Options.MaxAttempts
// is zero. Agent 3b (Hard-Logic Devices) overrides this to 3 (spec.md §4.4).
const DefaultMaxAttempts = 2

// Attempt records one pass through the wrapper, win or lose.
type Attempt struct {
	Attempt   int
	Timestamp time.Time
	Reason    string
	Cost      float64
	BackoffMS int64
}

// Outcome is what Run returns: the last decoded artifact (zero value if
// no attempt ever decoded successfully), whether it passed validation,
// the violations from the final attempt, and the full attempt history
// for the GenerationReport's RetryStats (spec.md §4.9).
type Outcome[T any] struct {
	Artifact   T
	Valid      bool
	Violations []schema.ViolationError
	Attempts   []Attempt
	TotalCost  float64
	Strategy   parse.Strategy
}

// Options configures one Run call.
type Options struct {
	ArtifactType models.ArtifactType
	MaxAttempts  int     // 0 means DefaultMaxAttempts
	CostCeiling  float64 // 0 means no ceiling
}

// PromptFunc builds the gateway request for one attempt. feedback is the
// accumulated, human-readable violation/parse-failure reasons from every
// prior attempt, appended to the prompt so the model can self-correct.
type PromptFunc func(attempt int, feedback []string) llmgateway.Request

// DecodeFunc converts a normalized, schema-valid payload into the
// caller's concrete artifact type.
type DecodeFunc[T any] func(payload map[string]any) (T, error)

// Run drives the build -> call -> parse -> normalize -> validate loop for
// one artifact. It returns a non-nil error only when context cancellation
// or deadline exceeded aborts the loop outright; every other failure mode
// (LLM call error, parse failure, schema violation, decode failure) is
// reported through Outcome so the caller can decide how to proceed.
func Run[T any](
	ctx context.Context,
	gw *llmgateway.Gateway,
	parser *parse.Parser,
	registry *schema.Registry,
	meta llmgateway.CallMeta,
	opts Options,
	build PromptFunc,
	decode DecodeFunc[T],
) (Outcome[T], error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var (
		out      Outcome[T]
		feedback []string
	)

	for n := 1; n <= maxAttempts; n++ {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if opts.CostCeiling > 0 && out.TotalCost > opts.CostCeiling {
			out.Violations = []schema.ViolationError{{Path: "$", Rule: "costCeiling",
				Expected: fmt.Sprintf("<= %.4f", opts.CostCeiling), Actual: fmt.Sprintf("%.4f", out.TotalCost)}}
			return out, nil
		}

		start := time.Now()
		req := build(n, feedback)
		resp, err := gw.Call(ctx, meta, req)
		if err != nil {
			reason := fmt.Sprintf("llm call failed: %v", err)
			out.Attempts = append(out.Attempts, Attempt{Attempt: n, Timestamp: start, Reason: reason})
			feedback = append(feedback, reason)
			if apperror.Is(err, apperror.KindLLMError) {
				continue
			}
			return out, err
		}
		out.TotalCost += resp.EstimatedCostUSD

		parsed, perr := parser.Parse(opts.ArtifactType, resp.Text)
		if perr != nil {
			reason := fmt.Sprintf("parse failed: %v", perr)
			out.Attempts = append(out.Attempts, Attempt{Attempt: n, Timestamp: start, Reason: reason, Cost: resp.EstimatedCostUSD})
			feedback = append(feedback, reason)
			out.Violations = []schema.ViolationError{{Path: "$", Rule: "parse", Expected: "decodable body", Actual: perr.Error()}}
			continue
		}
		out.Strategy = parsed.Strategy

		violations, _, verr := registry.Validate(opts.ArtifactType, parsed.Payload)
		if verr == nil && len(violations) > 0 {
			reason := formatViolations(violations)
			out.Attempts = append(out.Attempts, Attempt{Attempt: n, Timestamp: start, Reason: reason, Cost: resp.EstimatedCostUSD})
			feedback = append(feedback, reason)
			out.Violations = violations
			if artifact, derr := decode(parsed.Payload); derr == nil {
				out.Artifact = artifact
			}
			continue
		}

		artifact, derr := decode(parsed.Payload)
		if derr != nil {
			reason := fmt.Sprintf("decode failed: %v", derr)
			out.Attempts = append(out.Attempts, Attempt{Attempt: n, Timestamp: start, Reason: reason, Cost: resp.EstimatedCostUSD})
			feedback = append(feedback, reason)
			out.Violations = []schema.ViolationError{{Path: "$", Rule: "decode", Expected: "typed artifact", Actual: derr.Error()}}
			continue
		}

		out.Attempts = append(out.Attempts, Attempt{Attempt: n, Timestamp: start, Reason: "ok", Cost: resp.EstimatedCostUSD})
		out.Artifact = artifact
		out.Valid = true
		out.Violations = nil
		return out, nil
	}

	return out, nil
}

func formatViolations(violations []schema.ViolationError) string {
	msg := "validation failed:"
	for _, v := range violations {
		msg += fmt.Sprintf(" [%s]", v.Error())
	}
	return msg
}
