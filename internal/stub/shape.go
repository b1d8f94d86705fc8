// Package stub describes client stub types independently of any host
// language: each method has parameter shapes and a return shape, and the
// inference policies reduce those to the payload shapes the binder needs.
package stub

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the variant of a Shape.
type Kind int

const (
	// Nil marks "no payload".
	Nil Kind = iota
	// Named is a single type identified by name and package.
	Named
	// Union is a tagged union whose alternatives are listed in Elems.
	Union
	// Tuple is a fixed-size ordered tuple whose elements are listed in Elems.
	Tuple
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "nil"
	case Named:
		return "named"
	case Union:
		return "union"
	case Tuple:
		return "tuple"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Shape is the structural description of a parameter or return value.
type Shape struct {
	Kind    Kind
	Name    string
	Package string
	Elems   []Shape
}

// NoPayload returns the "no payload" marker.
func NoPayload() Shape {
	return Shape{Kind: Nil}
}

// NamedShape returns a Named shape.
func NamedShape(pkg, name string) Shape {
	return Shape{Kind: Named, Name: name, Package: pkg}
}

// UnionOf returns a Union of alts, in order.
func UnionOf(alts ...Shape) Shape {
	return Shape{Kind: Union, Elems: alts}
}

// TupleOf returns a Tuple of elems, in order.
func TupleOf(elems ...Shape) Shape {
	return Shape{Kind: Tuple, Elems: elems}
}

// IsNil reports whether s is the "no payload" marker.
func (s Shape) IsNil() bool {
	return s.Kind == Nil
}

// Matches reports whether s is the named type identified by c.
func (s Shape) Matches(c Convention) bool {
	return s.Kind == Named && s.Name == c.Name && s.Package == c.Package
}

// Equal reports whether s and o describe the same shape.
func (s Shape) Equal(o Shape) bool {
	if s.Kind != o.Kind || s.Name != o.Name || s.Package != o.Package || len(s.Elems) != len(o.Elems) {
		return false
	}
	for i := range s.Elems {
		if !s.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

// String renders s in the notation accepted by ParseShape.
func (s Shape) String() string {
	switch s.Kind {
	case Nil:
		return "nil"
	case Named:
		if s.Package == "" {
			return s.Name
		}
		return s.Package + "." + s.Name
	case Union:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return strings.Join(parts, " | ")
	case Tuple:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return s.Kind.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Shape) MarshalYAML() (any, error) {
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Shape) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: shape must be a string", value.Line)
	}
	return s.UnmarshalText([]byte(value.Value))
}

// Convention identifies the reserved call-metadata type. A parameter or
// return alternative of this type carries no payload.
type Convention struct {
	Name    string `yaml:"name" json:"name"`
	Package string `yaml:"package" json:"package"`
}

var (
	// DefaultConvention is grpc-go's metadata.MD.
	DefaultConvention = Convention{Name: "MD", Package: "google.golang.org/grpc/metadata"}
	// HeadersConvention is the grpc.Headers metadata type used by
	// non-Go generated stubs.
	HeadersConvention = Convention{Name: "Headers", Package: "grpc"}
)

// Shape returns the Named shape of the convention type.
func (c Convention) Shape() Shape {
	return NamedShape(c.Package, c.Name)
}

// ParseConvention parses "default", "headers", or a qualified type name
// such as "google.golang.org/grpc/metadata.MD".
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "md":
		return DefaultConvention, nil
	case "headers":
		return HeadersConvention, nil
	}
	shape, err := ParseShape(s)
	if err != nil {
		return Convention{}, err
	}
	if shape.Kind != Named {
		return Convention{}, fmt.Errorf("metadata convention must be a named type, got %s", shape)
	}
	return Convention{Name: shape.Name, Package: shape.Package}, nil
}

// Method is one callable operation on a stub type.
type Method struct {
	Name   string  `yaml:"name" json:"name"`
	Params []Shape `yaml:"params,omitempty" json:"params,omitempty"`
	Return Shape   `yaml:"returns" json:"returns"`
}

// Type is a named client stub type and its methods.
type Type struct {
	Name    string   `yaml:"name" json:"name"`
	Package string   `yaml:"package,omitempty" json:"package,omitempty"`
	Methods []Method `yaml:"methods" json:"methods"`
}

// Method returns the method called name.
func (t Type) Method(name string) (Method, bool) {
	for _, m := range t.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}
