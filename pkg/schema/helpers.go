package schema

import "fmt"

// getField fetches a dotted path like "meta.primary_axis" from a
// map[string]any tree decoded from JSON. Returns (value, true) on success.
func getField(payload map[string]any, path string) (any, bool) {
	cur := any(payload)
	for _, seg := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

func requireString(payload map[string]any, path string) (string, *ViolationError) {
	v, ok := getField(payload, path)
	if !ok || v == nil {
		return "", &ViolationError{Path: path, Rule: "required", Expected: "string"}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &ViolationError{Path: path, Rule: "required", Expected: "non-empty string", Actual: fmt.Sprintf("%v", v)}
	}
	return s, nil
}

func requireEnum(payload map[string]any, path string, allowed []string) (string, *ViolationError) {
	s, verr := requireString(payload, path)
	if verr != nil {
		return "", verr
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return s, &ViolationError{Path: path, Rule: "enum", Expected: fmt.Sprintf("%v", allowed), Actual: s}
}

func requireList(payload map[string]any, path string) ([]any, *ViolationError) {
	v, ok := getField(payload, path)
	if !ok || v == nil {
		return nil, &ViolationError{Path: path, Rule: "required", Expected: "array"}
	}
	l, ok := v.([]any)
	if !ok {
		return nil, &ViolationError{Path: path, Rule: "type", Expected: "array", Actual: fmt.Sprintf("%T", v)}
	}
	return l, nil
}

func requireMinLen(payload map[string]any, path string, min int) ([]any, *ViolationError) {
	l, verr := requireList(payload, path)
	if verr != nil {
		return nil, verr
	}
	if len(l) < min {
		return l, &ViolationError{Path: path, Rule: "minItems", Expected: fmt.Sprintf(">=%d", min), Actual: fmt.Sprintf("%d", len(l))}
	}
	return l, nil
}

// setDefaultList sets payload[key] = []any{} if the field is absent, and
// records a normalization warning. Used to normalize required list fields.
func setDefaultList(payload map[string]any, path string) []Warning {
	if _, ok := getField(payload, path); ok {
		return nil
	}
	setField(payload, path, []any{})
	return []Warning{{Path: path, Rule: "normalized-default", Note: "filled empty array for missing required list field"}}
}

// setDefaultEnum sets payload[key] = sentinel if the field is absent.
func setDefaultEnum(payload map[string]any, path, sentinel string) []Warning {
	if _, ok := getField(payload, path); ok {
		return nil
	}
	setField(payload, path, sentinel)
	return []Warning{{Path: path, Rule: "normalized-default", Note: fmt.Sprintf("filled sentinel %q for missing required enum field", sentinel)}}
}

func setField(payload map[string]any, path string, value any) {
	segs := splitPath(path)
	cur := payload
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}
