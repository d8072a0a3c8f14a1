// Package decode parses raw model output into a candidate value matching
// a schema descriptor, tolerating markdown fences and surrounding prose.
//
// Decoding is deliberately permissive about field-level problems: a
// missing required field or a mistyped scalar is the validator's concern.
// A DecodeError means the payload could not be read as the declared
// container shape at all.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/distill/internal/identity"
	"github.com/jackzampolin/distill/internal/schema"
)

// Document is a successfully decoded candidate value.
type Document struct {
	// Root is the decoded object tree. Numbers are json.Number so
	// decimal-exact checks never see float drift.
	Root map[string]any
	// Raw is the normalized JSON payload the tree was parsed from.
	Raw json.RawMessage
}

// DecodeError reports a payload that cannot be parsed as the declared
// container shape.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed: %s: %v", e.Msg, e.Err)
	}
	return "decode failed: " + e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses raw output against the descriptor and, on success, has
// the allocator assign ids to shared-space nodes that lack one and claim
// the ids the model set itself.
func Decode(raw string, desc *schema.Descriptor, alloc *identity.Allocator) (*Document, error) {
	payload, err := extractPayload(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, &DecodeError{Msg: "payload is not valid JSON", Err: err}
	}

	root, ok := parsed.(map[string]any)
	if !ok {
		return nil, &DecodeError{Msg: fmt.Sprintf("expected a JSON object for shape %q, got %T", desc.Name, parsed)}
	}

	if err := checkContainers(root, desc.Root, ""); err != nil {
		return nil, err
	}

	assignIDs(root, desc.Root, "", alloc)

	return &Document{Root: root, Raw: payload}, nil
}

// extractPayload recovers the JSON payload from model output that may be
// wrapped in code fences or surrounded by prose.
func extractPayload(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &DecodeError{Msg: "empty response"}
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, &DecodeError{Msg: "no JSON payload found in response"}
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(trimmed, "}")
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// checkContainers walks the declared shape and fails when a scalar sits
// where an object or array was declared. Field-level type mismatches and
// omissions pass through to the validator.
func checkContainers(value any, spec *schema.FieldSpec, path string) error {
	switch spec.Kind {
	case schema.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return &DecodeError{Msg: fmt.Sprintf("%s: expected an object, got %s", displayPath(path), typeName(value))}
		}
		for _, child := range spec.Fields {
			cv, present := obj[child.Name]
			if !present || cv == nil {
				continue
			}
			if err := checkContainers(cv, child, childPath(path, child.Name)); err != nil {
				return err
			}
		}
	case schema.KindArray:
		arr, ok := value.([]any)
		if !ok {
			return &DecodeError{Msg: fmt.Sprintf("%s: expected an array, got %s", displayPath(path), typeName(value))}
		}
		for i, ev := range arr {
			if ev == nil {
				continue
			}
			if err := checkContainers(ev, spec.Elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignIDs gives every shared-space node an id: model-assigned ids are
// claimed (collisions recorded, never renumbered), missing ids are minted.
func assignIDs(value any, spec *schema.FieldSpec, path string, alloc *identity.Allocator) {
	if alloc == nil {
		return
	}
	switch spec.Kind {
	case schema.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return
		}
		if spec.Space != "" {
			node := identity.Node{Shape: spec.Shape, Path: path, Value: obj}
			if id, ok := obj[schema.IDFieldName].(string); ok && id != "" {
				alloc.Claim(spec.Space, id, node)
			} else {
				obj[schema.IDFieldName] = alloc.NextID(spec.Space, node)
			}
		}
		for _, child := range spec.Fields {
			if cv, present := obj[child.Name]; present && cv != nil {
				assignIDs(cv, child, childPath(path, child.Name), alloc)
			}
		}
	case schema.KindArray:
		arr, ok := value.([]any)
		if !ok {
			return
		}
		for i, ev := range arr {
			if ev != nil {
				assignIDs(ev, spec.Elem, fmt.Sprintf("%s[%d]", path, i), alloc)
			}
		}
	}
}

// childPath appends a field name to a dotted path rooted at "".
func childPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
