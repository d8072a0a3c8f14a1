// Package schema defines the descriptor tree that drives structured
// extraction: field shapes, enumerations, nested objects, shared id
// spaces, and the validation vocabulary attached to a descriptor.
//
// Descriptors are authored once and immutable at extraction time. The
// same descriptor instance may be shared by concurrent extractions.
package schema

import "fmt"

// Kind identifies the shape of a field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "integer"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindEnum   Kind = "enum"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	// KindRef holds an id drawn from a shared id space, pointing at any
	// node whose shape participates in that space.
	KindRef Kind = "ref"
)

// EnumValue is one allowed value of an enum field with its declared meaning.
type EnumValue struct {
	Value   string `yaml:"value"`
	Meaning string `yaml:"meaning,omitempty"`
}

// FieldSpec describes a single field within a shape.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string

	// Enum fields
	Enum []EnumValue

	// Array fields
	Elem *FieldSpec

	// Object fields
	Fields []*FieldSpec
	// Shape tags object nodes (e.g. "ticket", "subtask"). Used by shared
	// id spaces and violation messages.
	Shape string
	// Space names the shared id space this node's "id" field draws from
	// (object nodes), or resolves against (ref fields). Empty means the
	// node has no identity.
	Space string

	// Numeric bounds (integer/number fields)
	Minimum *float64
	Maximum *float64
}

// IDSpace declares a pool of identifiers shared by several shapes.
type IDSpace struct {
	Name   string   `yaml:"name"`
	Shapes []string `yaml:"shapes"`
}

// Violation reports one failed constraint against a candidate value.
type Violation struct {
	FieldPath string `json:"field_path" yaml:"field_path"`
	Rule      string `json:"rule" yaml:"rule"`
	Message   string `json:"message" yaml:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s - %s", v.FieldPath, v.Rule, v.Message)
}

// Rule is a caller-supplied cross-field check. Rules run after structural
// and reference checks, in registration order, and must not mutate value.
type Rule struct {
	Name  string
	Check func(value map[string]any) []Violation
}

// Descriptor is the root of a schema tree plus its extraction metadata.
type Descriptor struct {
	Name string
	// Guidance is free text steering the model, rendered verbatim into
	// prompts. Data, not behavior.
	Guidance string
	Spaces   []IDSpace
	Root     *FieldSpec

	rules []Rule
}

// New builds a descriptor around a root object spec.
func New(name string, root *FieldSpec) *Descriptor {
	return &Descriptor{Name: name, Root: root}
}

// WithGuidance sets the guidance text and returns the descriptor.
func (d *Descriptor) WithGuidance(text string) *Descriptor {
	d.Guidance = text
	return d
}

// WithSpaces declares shared id spaces and returns the descriptor.
func (d *Descriptor) WithSpaces(spaces ...IDSpace) *Descriptor {
	d.Spaces = append(d.Spaces, spaces...)
	return d
}

// RegisterRule attaches a custom validation rule. Rules are invoked in
// registration order.
func (d *Descriptor) RegisterRule(name string, check func(value map[string]any) []Violation) *Descriptor {
	d.rules = append(d.rules, Rule{Name: name, Check: check})
	return d
}

// Rules returns the registered custom rules in registration order.
func (d *Descriptor) Rules() []Rule {
	return d.rules
}

// SpaceFor returns the id space declaration with the given name.
func (d *Descriptor) SpaceFor(name string) (IDSpace, bool) {
	for _, s := range d.Spaces {
		if s.Name == name {
			return s, true
		}
	}
	return IDSpace{}, false
}

// Validate checks descriptor self-consistency: unique field names per
// shape, closed non-empty enum sets, array element presence, and ref
// fields pointing at declared spaces.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor name is required")
	}
	if d.Root == nil {
		return fmt.Errorf("descriptor %q has no root shape", d.Name)
	}
	if d.Root.Kind != KindObject {
		return fmt.Errorf("descriptor %q root must be an object, got %s", d.Name, d.Root.Kind)
	}
	spaces := make(map[string]bool, len(d.Spaces))
	for _, s := range d.Spaces {
		if s.Name == "" {
			return fmt.Errorf("descriptor %q declares an unnamed id space", d.Name)
		}
		if spaces[s.Name] {
			return fmt.Errorf("descriptor %q declares id space %q twice", d.Name, s.Name)
		}
		spaces[s.Name] = true
	}
	return validateSpec(d.Root, d.Name, spaces)
}

func validateSpec(f *FieldSpec, path string, spaces map[string]bool) error {
	switch f.Kind {
	case KindString, KindInt, KindNumber, KindBool:
		// nothing further
	case KindEnum:
		if len(f.Enum) == 0 {
			return fmt.Errorf("%s: enum field %q has no values", path, f.Name)
		}
		seen := make(map[string]bool, len(f.Enum))
		for _, ev := range f.Enum {
			if seen[ev.Value] {
				return fmt.Errorf("%s: enum field %q repeats value %q", path, f.Name, ev.Value)
			}
			seen[ev.Value] = true
		}
	case KindArray:
		if f.Elem == nil {
			return fmt.Errorf("%s: array field %q has no element spec", path, f.Name)
		}
		return validateSpec(f.Elem, joinPath(path, f.Name), spaces)
	case KindObject:
		if f.Space != "" && !spaces[f.Space] {
			return fmt.Errorf("%s: shape %q draws ids from undeclared space %q", path, f.Shape, f.Space)
		}
		names := make(map[string]bool, len(f.Fields))
		for _, child := range f.Fields {
			if child.Name == "" {
				return fmt.Errorf("%s: object has an unnamed field", path)
			}
			if names[child.Name] {
				return fmt.Errorf("%s: duplicate field name %q", path, child.Name)
			}
			names[child.Name] = true
			if err := validateSpec(child, joinPath(path, child.Name), spaces); err != nil {
				return err
			}
		}
	case KindRef:
		if f.Space == "" {
			return fmt.Errorf("%s: ref field %q names no id space", path, f.Name)
		}
		if !spaces[f.Space] {
			return fmt.Errorf("%s: ref field %q points at undeclared space %q", path, f.Name, f.Space)
		}
	default:
		return fmt.Errorf("%s: field %q has unknown kind %q", path, f.Name, f.Kind)
	}
	return nil
}

func joinPath(base, name string) string {
	if name == "" {
		return base
	}
	return base + "." + name
}

// IDFieldName is the reserved field carrying a node's shared-space id.
const IDFieldName = "id"
