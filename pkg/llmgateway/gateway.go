// Package llmgateway implements the single LLM call contract from
// spec.md §4.3: (template_id, variables, json_mode) → (text, tokens,
// cost, latency), with exponential-backoff retry on transport/rate-limit
// failures and a per-call operational log record.
//
// The concrete vendor client is an external collaborator per spec.md §1;
// Backend is the narrow seam a production client plugs into, the same
// shape as the teacher's pkg/llm.Client wrapping a gRPC stub.
package llmgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// Request is one LLM Gateway call's input.
type Request struct {
	TemplateID string
	Variables  map[string]any
	JSONMode   bool
	Timeout    time.Duration
	MaxTokens  int
	Model      string
}

// Response is one LLM Gateway call's output.
type Response struct {
	Text             string
	InputTokens      int
	OutputTokens     int
	EstimatedCostUSD float64
}

// TransientError marks a Backend error as retryable (transport failure or
// rate limiting), per spec.md §4.3.
type TransientError struct {
	Err error
}

func (t *TransientError) Error() string { return "transient llm error: " + t.Err.Error() }
func (t *TransientError) Unwrap() error { return t.Err }

// Backend is the vendor-specific seam the Gateway calls through. A real
// deployment plugs in an HTTP/gRPC client; tests use an in-memory fake.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// LogRecorder persists one OperationalLogEntry. Implemented by the
// Artifact Store.
type LogRecorder interface {
	RecordOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error
}

// Gateway wraps a Backend with retry, cost accounting, concurrency
// bounding, and operational logging.
type Gateway struct {
	backend Backend
	cfg     *config.Config
	log     LogRecorder
	sem     chan struct{}
}

// New constructs a Gateway. sem bounds concurrent in-flight calls to
// cfg.LLMMaxConcurrency, mirroring the teacher's SubAgentRunner
// slot-reservation pattern (pkg/agent/orchestrator/runner.go).
func New(backend Backend, cfg *config.Config, log LogRecorder) *Gateway {
	return &Gateway{
		backend: backend,
		cfg:     cfg,
		log:     log,
		sem:     make(chan struct{}, cfg.LLMMaxConcurrency),
	}
}

// CallMeta identifies the caller for operational-log attribution.
type CallMeta struct {
	ProjectID string
	RunID     string
	Agent     string
	Operation string
}

// Call executes one gateway request: retries transient Backend errors
// with exponential backoff up to a fixed budget, always computes
// estimated cost from the rate table (never from LLM output, per
// spec.md §4.3), and appends exactly one operational log record.
func (g *Gateway) Call(ctx context.Context, meta CallMeta, req Request) (Response, error) {
	g.sem <- struct{}{}
	defer func() { <-g.sem }()

	if req.Timeout == 0 {
		req.Timeout = g.cfg.LLMCallTimeout
	}
	if req.Model == "" {
		req.Model = g.cfg.DefaultModel
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.callWithBackoff(callCtx, req)
	latency := time.Since(start)

	entry := models.OperationalLogEntry{
		Timestamp:    start,
		ProjectID:    meta.ProjectID,
		RunID:        meta.RunID,
		Agent:        meta.Agent,
		Operation:    meta.Operation,
		Model:        req.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.InputTokens + resp.OutputTokens,
		LatencyMS:    latency.Milliseconds(),
	}
	entry.EstimatedCostUSD = g.estimateCost(req.Model, resp.InputTokens, resp.OutputTokens)

	if err != nil {
		entry.Error = err.Error()
	}
	// Operational log is metadata-only and must be recorded win or lose;
	// a logging failure must not mask the original call outcome.
	_ = g.log.RecordOperationalLog(ctx, entry)

	if err != nil {
		return Response{}, apperror.Wrap(apperror.KindLLMError, fmt.Sprintf("llm call failed for template %q", req.TemplateID), err)
	}
	resp.EstimatedCostUSD = entry.EstimatedCostUSD
	return resp, nil
}

// callWithBackoff retries TransientError results with exponential
// backoff, stopping at the context deadline.
func (g *Gateway) callWithBackoff(ctx context.Context, req Request) (Response, error) {
	var resp Response
	operation := func() error {
		r, err := g.backend.Complete(ctx, req)
		if err != nil {
			resp = Response{}
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func isTransient(err error) bool {
	var t *TransientError
	for e := err; e != nil; {
		if te, ok := e.(*TransientError); ok {
			t = te
			break
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	return t != nil
}

// estimateCost always derives cost from the Gateway's own rate table,
// never from anything the model reports (spec.md §4.3).
func (g *Gateway) estimateCost(model string, inputTokens, outputTokens int) float64 {
	rate, ok := g.cfg.ModelRates[model]
	if !ok {
		rate = g.cfg.ModelRates[g.cfg.DefaultModel]
	}
	return float64(inputTokens)*rate.InputPerToken + float64(outputTokens)*rate.OutputPerToken
}
