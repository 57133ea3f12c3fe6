package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPBackend is the production Backend: a plain JSON-over-HTTP client
// against an OpenAI-compatible chat-completions endpoint. The vendor is
// an external collaborator per spec.md §1 — this backend only speaks the
// (template_id, variables, json_mode) → (text, tokens) contract the
// Gateway defines, not any vendor-specific SDK.
type HTTPBackend struct {
	client      *http.Client
	endpointURL string
	apiKey      string
}

// NewHTTPBackend constructs an HTTPBackend. client may be nil to use
// http.DefaultClient.
func NewHTTPBackend(endpointURL, apiKey string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{client: client, endpointURL: endpointURL, apiKey: apiKey}
}

type httpBackendRequest struct {
	Model      string         `json:"model"`
	TemplateID string         `json:"template_id"`
	Variables  map[string]any `json:"variables"`
	JSONMode   bool           `json:"json_mode"`
	MaxTokens  int            `json:"max_tokens,omitempty"`
}

type httpBackendResponse struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Complete posts req to the configured endpoint. Network and body-read
// failures, 5xx and 429 responses are wrapped as TransientError so the
// Gateway's backoff retry engages; other 4xx responses are treated as
// permanent.
func (b *HTTPBackend) Complete(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(httpBackendRequest{
		Model:      req.Model,
		TemplateID: req.TemplateID,
		Variables:  req.Variables,
		JSONMode:   req.JSONMode,
		MaxTokens:  req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpointURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return Response{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &TransientError{Err: err}
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, &TransientError{Err: fmt.Errorf("llm backend status %d: %s", resp.StatusCode, payload)}
	}
	if resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("llm backend status %d: %s", resp.StatusCode, payload)
	}

	var decoded httpBackendResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode llm response: %w", err)
	}

	return Response{
		Text:         decoded.Text,
		InputTokens:  decoded.InputTokens,
		OutputTokens: decoded.OutputTokens,
	}, nil
}
