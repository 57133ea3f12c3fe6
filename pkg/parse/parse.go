// Package parse implements the Parse & Normalize pipeline: strict JSON,
// then JSON repair, then YAML fallback, per spec.md §4.2. On success it
// routes the decoded payload through the Schema Registry's Normalize step.
package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andylelli/cml-01-sub003/pkg/apperror"
	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/schema"
)

// Strategy names the parse strategy that ultimately succeeded, useful for
// diagnostics and for the S-series integration fixtures.
type Strategy string

const (
	StrategyStrictJSON  Strategy = "strict_json"
	StrategyJSONRepair  Strategy = "json_repair"
	StrategyYAMLFallback Strategy = "yaml_fallback"
)

// Result is the outcome of parsing one LLM response body.
type Result struct {
	Payload  map[string]any
	Strategy Strategy
	Warnings []schema.Warning
}

// Parser parses and normalizes raw LLM text against a target artifact
// type's schema.
type Parser struct {
	registry *schema.Registry
}

// New constructs a Parser bound to a Schema Registry.
func New(registry *schema.Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse runs strict JSON, then JSON repair, then YAML fallback in order,
// and normalizes the first strategy that succeeds. It fails with
// apperror.KindParseError only when every strategy fails, per spec.md §4.2.
func (p *Parser) Parse(artifactType models.ArtifactType, raw string) (Result, error) {
	if payload, ok := tryStrictJSON(raw); ok {
		return p.normalize(artifactType, payload, StrategyStrictJSON)
	}
	if payload, ok := tryJSONRepair(raw); ok {
		return p.normalize(artifactType, payload, StrategyJSONRepair)
	}
	if payload, ok := tryYAMLFallback(raw); ok {
		return p.normalize(artifactType, payload, StrategyYAMLFallback)
	}
	return Result{}, apperror.New(apperror.KindParseError, fmt.Sprintf("all parse strategies failed for artifact type %q", artifactType))
}

func (p *Parser) normalize(artifactType models.ArtifactType, payload map[string]any, strategy Strategy) (Result, error) {
	normalized, warns, err := p.registry.Normalize(artifactType, payload)
	if err != nil {
		// Unregistered type: return the raw decode unnormalized rather than fail.
		return Result{Payload: payload, Strategy: strategy}, nil
	}
	return Result{Payload: normalized, Strategy: strategy, Warnings: warns}, nil
}

func tryStrictJSON(raw string) (map[string]any, bool) {
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&out); err != nil {
		return nil, false
	}
	return out, true
}

// outermostObjectRe extracts the span from the first `{` to the last `}`,
// tolerating prose before and after it (e.g. "Here is the JSON:\n{...}\nLet me know!").
var outermostObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// tryJSONRepair extracts the outermost balanced-looking JSON object and
// repairs common truncation issues (missing closing brackets/quotes)
// before decoding, per spec.md §4.2.
func tryJSONRepair(raw string) (map[string]any, bool) {
	candidate := raw
	if m := outermostObjectRe.FindString(raw); m != "" {
		candidate = m
	} else if i := strings.IndexByte(raw, '{'); i >= 0 {
		// Truncated before any closing brace: repair from the first `{`.
		candidate = raw[i:]
	}
	repaired := repairBrackets(candidate)
	var out map[string]any
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, false
	}
	return out, true
}

// repairBrackets closes unterminated string literals and unbalanced
// braces/brackets, tracking nesting depth and in-string state.
func repairBrackets(s string) string {
	var buf bytes.Buffer
	depthStack := make([]byte, 0, 8)
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		buf.WriteByte(c)
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depthStack = append(depthStack, '}')
		case '[':
			depthStack = append(depthStack, ']')
		case '}', ']':
			if len(depthStack) > 0 {
				depthStack = depthStack[:len(depthStack)-1]
			}
		}
	}

	if inString {
		buf.WriteByte('"')
	}
	for i := len(depthStack) - 1; i >= 0; i-- {
		buf.WriteByte(depthStack[i])
	}
	return buf.String()
}

// trailingInlineRe strips text following a closing quote on a YAML scalar
// line, e.g. `theme: "a cozy murder" -- see notes` -> `theme: "a cozy murder"`.
var trailingInlineRe = regexp.MustCompile(`^(\s*[\w.-]+:\s*"[^"]*")\s*\S.*$`)

func sanitizeYAMLLines(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if m := trailingInlineRe.FindStringSubmatch(line); m != nil {
			lines[i] = m[1]
		}
	}
	return strings.Join(lines, "\n")
}

func tryYAMLFallback(raw string) (map[string]any, bool) {
	cleaned := sanitizeYAMLLines(raw)
	var out map[string]any
	if err := yaml.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, false
	}
	return deepStringifyKeys(out), len(out) > 0
}

// deepStringifyKeys converts yaml.v3's map[string]interface{} (already
// string-keyed) recursively so nested maps decoded from []interface{} ->
// map[interface{}]interface{} never occur; yaml.v3 already uses string
// keys, but nested slices of maps need the same recursive treatment as
// encoding/json would produce, for schema.Normalize to walk uniformly.
func deepStringifyKeys(v any) map[string]any {
	out := make(map[string]any)
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		out[k] = deepConvert(val)
	}
	return out
}

func deepConvert(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepStringifyKeys(t)
	case []any:
		converted := make([]any, len(t))
		for i, e := range t {
			converted[i] = deepConvert(e)
		}
		return converted
	default:
		return v
	}
}
