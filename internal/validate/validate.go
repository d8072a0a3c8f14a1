// Package validate runs structural and semantic checks against a decoded
// candidate value, producing a deterministic, ordered violation list.
//
// Check order is fixed: required-field presence, enum membership, numeric
// ranges (all via a compiled JSON Schema), then reference integrity over
// shared id spaces, then caller-registered rules in registration order.
// Validation never mutates the value.
package validate

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/distill/internal/decode"
	"github.com/jackzampolin/distill/internal/identity"
	"github.com/jackzampolin/distill/internal/schema"
)

// Rule names reported in violations.
const (
	RuleRequired    = "required"
	RuleEnum        = "enum"
	RuleRange       = "range"
	RuleType        = "type"
	RuleSchema      = "schema"
	RuleDangling    = "dangling_reference"
	RuleIDCollision = "id_collision"
)

// Validate checks doc against the descriptor and its registered rules,
// plus any extra caller-supplied rules. The returned slice is empty for a
// valid document, and identically ordered for identical inputs.
func Validate(doc *decode.Document, desc *schema.Descriptor, alloc *identity.Allocator, extra ...schema.Rule) ([]schema.Violation, error) {
	var out []schema.Violation

	structural, err := structuralViolations(doc, desc)
	if err != nil {
		return nil, err
	}
	out = append(out, structural...)

	out = append(out, collisionViolations(alloc)...)
	out = append(out, referenceViolations(doc.Root, desc.Root, "", alloc)...)

	rules := append(append([]schema.Rule{}, desc.Rules()...), extra...)
	for _, rule := range rules {
		if rule.Check == nil {
			continue
		}
		out = append(out, rule.Check(doc.Root)...)
	}

	return out, nil
}

// structuralViolations runs the compiled JSON Schema and classifies every
// leaf failure, sorted by path then check order for determinism.
func structuralViolations(doc *decode.Document, desc *schema.Descriptor) ([]schema.Violation, error) {
	raw, err := desc.JSONSchema()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	err = compiled.Validate(doc.Root)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var out []schema.Violation
	collectLeaves(ve, &out)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FieldPath != out[j].FieldPath {
			return out[i].FieldPath < out[j].FieldPath
		}
		return rulePriority(out[i].Rule) < rulePriority(out[j].Rule)
	})
	return out, nil
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]schema.Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, classify(ve)...)
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

var quotedNamePattern = regexp.MustCompile(`'([^']+)'`)

// classify converts one leaf schema error into violations. A "required"
// failure names the missing properties in its message; it fans out to one
// violation per missing field so retry prompts point at exact paths.
func classify(ve *jsonschema.ValidationError) []schema.Violation {
	path := pointerToPath(ve.InstanceLocation)
	keyword := lastSegment(ve.KeywordLocation)

	switch keyword {
	case "required":
		var out []schema.Violation
		for _, m := range quotedNamePattern.FindAllStringSubmatch(ve.Message, -1) {
			fieldPath := m[1]
			if path != "" {
				fieldPath = path + "." + m[1]
			}
			out = append(out, schema.Violation{
				FieldPath: fieldPath,
				Rule:      RuleRequired,
				Message:   "required field is missing",
			})
		}
		if len(out) == 0 {
			out = append(out, schema.Violation{FieldPath: path, Rule: RuleRequired, Message: ve.Message})
		}
		return out
	case "enum":
		return []schema.Violation{{FieldPath: path, Rule: RuleEnum, Message: ve.Message}}
	case "minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum":
		return []schema.Violation{{FieldPath: path, Rule: RuleRange, Message: ve.Message}}
	case "type":
		return []schema.Violation{{FieldPath: path, Rule: RuleType, Message: ve.Message}}
	default:
		return []schema.Violation{{FieldPath: path, Rule: RuleSchema, Message: ve.Message}}
	}
}

func rulePriority(rule string) int {
	switch rule {
	case RuleRequired:
		return 0
	case RuleEnum:
		return 1
	case RuleRange:
		return 2
	case RuleType:
		return 3
	default:
		return 4
	}
}

// collisionViolations surfaces shared-space id collisions recorded while
// decoding, in claim order.
func collisionViolations(alloc *identity.Allocator) []schema.Violation {
	if alloc == nil {
		return nil
	}
	var out []schema.Violation
	for _, c := range alloc.Collisions() {
		out = append(out, schema.Violation{
			FieldPath: childPath(c.Other.Path, schema.IDFieldName),
			Rule:      RuleIDCollision,
			Message:   c.String() + "; assign a distinct id to each node in the space",
		})
	}
	return out
}

// referenceViolations checks that every shared-space id held by a ref
// field resolves to a node in the same result.
func referenceViolations(value any, spec *schema.FieldSpec, path string, alloc *identity.Allocator) []schema.Violation {
	if alloc == nil {
		return nil
	}
	var out []schema.Violation
	switch spec.Kind {
	case schema.KindRef:
		id, ok := value.(string)
		if !ok || id == "" {
			return nil
		}
		if _, found := alloc.Resolve(spec.Space, id); !found {
			out = append(out, schema.Violation{
				FieldPath: path,
				Rule:      RuleDangling,
				Message:   fmt.Sprintf("id %q does not resolve to any node in space %q", id, spec.Space),
			})
		}
	case schema.KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		for _, child := range spec.Fields {
			if cv, present := obj[child.Name]; present && cv != nil {
				out = append(out, referenceViolations(cv, child, childPath(path, child.Name), alloc)...)
			}
		}
	case schema.KindArray:
		arr, ok := value.([]any)
		if !ok {
			return nil
		}
		for i, ev := range arr {
			if ev != nil {
				out = append(out, referenceViolations(ev, spec.Elem, fmt.Sprintf("%s[%d]", path, i), alloc)...)
			}
		}
	}
	return out
}

// pointerToPath converts a JSON pointer like /items/0/price into the
// dotted/indexed form items[0].price.
func pointerToPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	var b strings.Builder
	for _, seg := range segments {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if isIndex(seg) {
			fmt.Fprintf(&b, "[%s]", seg)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lastSegment(keywordLocation string) string {
	segments := strings.Split(keywordLocation, "/")
	return segments[len(segments)-1]
}

func childPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
