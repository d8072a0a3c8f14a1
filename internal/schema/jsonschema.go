package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONSchema renders the descriptor as a JSON Schema document used both
// for the model's response_format and for structural validation.
// encoding/json sorts map keys, so the rendering is deterministic.
func (d *Descriptor) JSONSchema() (json.RawMessage, error) {
	root := specSchema(d.Root)
	b, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to render JSON schema for %q: %w", d.Name, err)
	}
	return b, nil
}

// ResponseFormat renders the OpenAI/OpenRouter json_schema wrapper around
// the descriptor's schema.
func (d *Descriptor) ResponseFormat() (json.RawMessage, error) {
	core := specSchema(d.Root)
	wrapper := map[string]any{
		"name":   schemaName(d.Name),
		"strict": true,
		"schema": core,
	}
	b, err := json.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("failed to render response format for %q: %w", d.Name, err)
	}
	return b, nil
}

func specSchema(f *FieldSpec) map[string]any {
	s := make(map[string]any)
	if f.Description != "" {
		s["description"] = f.Description
	}

	switch f.Kind {
	case KindString:
		s["type"] = "string"
	case KindBool:
		s["type"] = "boolean"
	case KindInt:
		s["type"] = "integer"
		applyBounds(s, f)
	case KindNumber:
		s["type"] = "number"
		applyBounds(s, f)
	case KindEnum:
		s["type"] = "string"
		values := make([]string, len(f.Enum))
		var meanings []string
		for i, ev := range f.Enum {
			values[i] = ev.Value
			if ev.Meaning != "" {
				meanings = append(meanings, fmt.Sprintf("%s: %s", ev.Value, ev.Meaning))
			}
		}
		s["enum"] = values
		if len(meanings) > 0 {
			desc := strings.Join(meanings, "; ")
			if existing, ok := s["description"].(string); ok && existing != "" {
				desc = existing + ". " + desc
			}
			s["description"] = desc
		}
	case KindRef:
		s["type"] = "string"
		note := fmt.Sprintf("Identifier of a node in shared id space %q", f.Space)
		if existing, ok := s["description"].(string); ok && existing != "" {
			note = existing + ". " + note
		}
		s["description"] = note
	case KindArray:
		s["type"] = "array"
		s["items"] = specSchema(f.Elem)
	case KindObject:
		s["type"] = "object"
		props := make(map[string]any, len(f.Fields)+1)
		var required []string
		if f.Space != "" {
			props[IDFieldName] = map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("Unique id in shared space %q", f.Space),
			}
		}
		for _, child := range f.Fields {
			props[child.Name] = specSchema(child)
			if child.Required {
				required = append(required, child.Name)
			}
		}
		s["properties"] = props
		if len(required) > 0 {
			s["required"] = required
		}
		s["additionalProperties"] = false
	}
	return s
}

func applyBounds(s map[string]any, f *FieldSpec) {
	if f.Minimum != nil {
		s["minimum"] = *f.Minimum
	}
	if f.Maximum != nil {
		s["maximum"] = *f.Maximum
	}
}

func schemaName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
