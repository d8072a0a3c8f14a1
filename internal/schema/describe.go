package schema

import (
	"fmt"
	"strings"
)

// Describe renders the descriptor as deterministic plain text for prompt
// embedding. The same descriptor always yields byte-identical output:
// fields render in declaration order with no map iteration involved.
func (d *Descriptor) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Output shape: %s\n", d.Name)
	for _, s := range d.Spaces {
		fmt.Fprintf(&b, "Shared id space %q: shapes %s draw ids from one pool; every id must be unique across all of them.\n",
			s.Name, strings.Join(s.Shapes, ", "))
	}
	b.WriteString("\nFields:\n")
	describeObject(&b, d.Root, 0)
	return b.String()
}

// describeObject emits the id line (when the shape has identity) followed
// by each declared field at the given indent depth.
func describeObject(b *strings.Builder, f *FieldSpec, depth int) {
	indent := strings.Repeat("  ", depth)
	if f.Space != "" {
		fmt.Fprintf(b, "%s- %s (string): identifier in shared space %q", indent, IDFieldName, f.Space)
		if f.Shape != "" {
			fmt.Fprintf(b, "; this node is a %q", f.Shape)
		}
		b.WriteString("\n")
	}
	for _, child := range f.Fields {
		describeField(b, child, depth)
	}
}

func describeField(b *strings.Builder, f *FieldSpec, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- %s (%s%s)", indent, f.Name, kindLabel(f), requiredLabel(f))
	if f.Description != "" {
		fmt.Fprintf(b, ": %s", f.Description)
	}
	b.WriteString("\n")

	switch f.Kind {
	case KindEnum:
		for _, ev := range f.Enum {
			if ev.Meaning != "" {
				fmt.Fprintf(b, "%s    %q - %s\n", indent, ev.Value, ev.Meaning)
			} else {
				fmt.Fprintf(b, "%s    %q\n", indent, ev.Value)
			}
		}
	case KindObject:
		describeObject(b, f, depth+1)
	case KindArray:
		switch f.Elem.Kind {
		case KindObject:
			fmt.Fprintf(b, "%s  each element:\n", indent)
			describeObject(b, f.Elem, depth+2)
		case KindEnum:
			for _, ev := range f.Elem.Enum {
				if ev.Meaning != "" {
					fmt.Fprintf(b, "%s    %q - %s\n", indent, ev.Value, ev.Meaning)
				} else {
					fmt.Fprintf(b, "%s    %q\n", indent, ev.Value)
				}
			}
		}
	}
}

func kindLabel(f *FieldSpec) string {
	switch f.Kind {
	case KindEnum:
		return "enum"
	case KindArray:
		if f.Elem != nil {
			return "array of " + elemLabel(f.Elem)
		}
		return "array"
	case KindObject:
		if f.Shape != "" {
			return "object: " + f.Shape
		}
		return "object"
	case KindRef:
		return fmt.Sprintf("id reference into space %q", f.Space)
	case KindNumber:
		return boundedLabel("number", f)
	case KindInt:
		return boundedLabel("integer", f)
	default:
		return string(f.Kind)
	}
}

func elemLabel(e *FieldSpec) string {
	switch e.Kind {
	case KindObject:
		if e.Shape != "" {
			return e.Shape + " objects"
		}
		return "objects"
	case KindEnum:
		return "enum values"
	case KindRef:
		return fmt.Sprintf("ids in space %q", e.Space)
	default:
		return string(e.Kind) + "s"
	}
}

func boundedLabel(base string, f *FieldSpec) string {
	switch {
	case f.Minimum != nil && f.Maximum != nil:
		return fmt.Sprintf("%s, %v..%v", base, *f.Minimum, *f.Maximum)
	case f.Minimum != nil:
		return fmt.Sprintf("%s, >= %v", base, *f.Minimum)
	case f.Maximum != nil:
		return fmt.Sprintf("%s, <= %v", base, *f.Maximum)
	default:
		return base
	}
}

func requiredLabel(f *FieldSpec) string {
	if f.Required {
		return ", required"
	}
	return ", optional"
}
