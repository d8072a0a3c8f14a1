package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor documents are YAML files of the form:
//
//	name: support_ticket
//	guidance: |
//	  Prefer the customer's own wording for titles.
//	spaces:
//	  - name: work-item
//	    shapes: [ticket, subtask]
//	root:
//	  shape: ticket
//	  space: work-item
//	  fields:
//	    - name: title
//	      type: string
//	      required: true
//	    - name: priority
//	      type: enum
//	      values:
//	        - {value: low, meaning: cosmetic or minor}
//	        - {value: high, meaning: blocks core functionality}

type fileDoc struct {
	Name     string    `yaml:"name"`
	Guidance string    `yaml:"guidance,omitempty"`
	Spaces   []IDSpace `yaml:"spaces,omitempty"`
	Root     *fileSpec `yaml:"root"`
}

type fileSpec struct {
	Name        string      `yaml:"name,omitempty"`
	Type        string      `yaml:"type,omitempty"`
	Required    bool        `yaml:"required,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Values      []EnumValue `yaml:"values,omitempty"`
	Elem        *fileSpec   `yaml:"elem,omitempty"`
	Fields      []*fileSpec `yaml:"fields,omitempty"`
	Shape       string      `yaml:"shape,omitempty"`
	Space       string      `yaml:"space,omitempty"`
	Minimum     *float64    `yaml:"minimum,omitempty"`
	Maximum     *float64    `yaml:"maximum,omitempty"`
}

// LoadFile reads and validates a YAML descriptor document.
func LoadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse builds a descriptor from YAML bytes and validates it.
func Parse(data []byte) (*Descriptor, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("schema document has no root shape")
	}

	root, err := doc.Root.toSpec(true)
	if err != nil {
		return nil, err
	}
	d := New(doc.Name, root).WithGuidance(doc.Guidance).WithSpaces(doc.Spaces...)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (fs *fileSpec) toSpec(isRoot bool) (*FieldSpec, error) {
	spec := &FieldSpec{
		Name:        fs.Name,
		Required:    fs.Required,
		Description: fs.Description,
		Enum:        fs.Values,
		Shape:       fs.Shape,
		Space:       fs.Space,
		Minimum:     fs.Minimum,
		Maximum:     fs.Maximum,
	}

	typ := fs.Type
	if typ == "" {
		// Root and fields with sub-fields default to object.
		if isRoot || len(fs.Fields) > 0 {
			typ = string(KindObject)
		} else {
			return nil, fmt.Errorf("field %q has no type", fs.Name)
		}
	}

	switch Kind(typ) {
	case KindString, KindInt, KindNumber, KindBool, KindEnum, KindRef:
		spec.Kind = Kind(typ)
	case KindArray:
		spec.Kind = KindArray
		if fs.Elem == nil {
			return nil, fmt.Errorf("array field %q has no elem", fs.Name)
		}
		elem, err := fs.Elem.toSpec(false)
		if err != nil {
			return nil, err
		}
		spec.Elem = elem
	case KindObject:
		spec.Kind = KindObject
		for _, child := range fs.Fields {
			cs, err := child.toSpec(false)
			if err != nil {
				return nil, err
			}
			spec.Fields = append(spec.Fields, cs)
		}
	default:
		return nil, fmt.Errorf("field %q has unknown type %q", fs.Name, typ)
	}
	return spec, nil
}
