// Package schema implements the Schema Registry: one Definition per
// artifact type, validating payloads and normalizing safe defaults into
// partial output, per spec.md §4.1.
package schema

import (
	"fmt"

	"github.com/andylelli/cml-01-sub003/pkg/models"
)

// ViolationError carries one schema-validation error (spec.md: "path, rule,
// expected, actual").
type ViolationError struct {
	Path     string `json:"path"`
	Rule     string `json:"rule"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

func (v ViolationError) Error() string {
	return fmt.Sprintf("%s: %s (expected %s, got %s)", v.Path, v.Rule, v.Expected, v.Actual)
}

// Warning is a soft recommendation or a record of a normalization decision.
type Warning struct {
	Path string `json:"path"`
	Rule string `json:"rule"`
	Note string `json:"note"`
}

// FieldKind tells the normalizer how to fill a missing required field.
type FieldKind int

const (
	FieldKindList FieldKind = iota
	FieldKindEnum
	FieldKindScalar
)

// Field describes one field of an artifact's schema.
type Field struct {
	Path     string
	Kind     FieldKind
	Required bool
	Enum     []string // allowed values, when Kind == FieldKindEnum
}

// Definition is the schema for one artifact type: a flat field list plus a
// validator hook for structural checks a flat field list can't express
// (e.g. array element shape). Registry.Validate and Registry.Normalize run
// only the Check and Normalize hooks; Fields is not read by either.
type Definition struct {
	Type   models.ArtifactType
	Fields []Field
	// Check performs type-specific structural validation beyond the flat
	// field list (array lengths, cross-field invariants). It receives the
	// already-decoded payload as `any` (a map[string]any from JSON, or a
	// concrete struct when called from agent code that already typed it).
	Check func(payload any) ([]ViolationError, []Warning)
	// Normalize attempts safe default-filling on a map[string]any payload,
	// returning the (possibly mutated) payload and normalization warnings.
	Normalize func(payload map[string]any) (map[string]any, []Warning)
}

// Registry holds one Definition per artifact type.
type Registry struct {
	defs map[models.ArtifactType]Definition
}

// NewRegistry builds a Registry pre-populated with every known artifact
// type's Definition (see definitions.go).
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[models.ArtifactType]Definition)}
	for _, d := range allDefinitions() {
		r.defs[d.Type] = d
	}
	return r
}

// Get returns the Definition for a type, or false if unregistered.
func (r *Registry) Get(t models.ArtifactType) (Definition, bool) {
	d, ok := r.defs[t]
	return d, ok
}

// Validate runs the type's Check against payload (spec.md §4.1).
func (r *Registry) Validate(t models.ArtifactType, payload any) ([]ViolationError, []Warning, error) {
	d, ok := r.defs[t]
	if !ok {
		return nil, nil, fmt.Errorf("no schema registered for artifact type %q", t)
	}
	if d.Check == nil {
		return nil, nil, nil
	}
	errs, warns := d.Check(payload)
	return errs, warns, nil
}

// Normalize runs the type's default-filling pass on a decoded JSON object,
// per spec.md §4.1 ("never fabricates semantic content").
func (r *Registry) Normalize(t models.ArtifactType, payload map[string]any) (map[string]any, []Warning, error) {
	d, ok := r.defs[t]
	if !ok {
		return payload, nil, fmt.Errorf("no schema registered for artifact type %q", t)
	}
	if d.Normalize == nil {
		return payload, nil, nil
	}
	out, warns := d.Normalize(payload)
	return out, warns, nil
}
