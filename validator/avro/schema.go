// Package avro parses Apache Avro schemas into an IR, validates them and
// validates JSON-encoded Avro data against them.
package avro

import (
	"strings"
)

// Kind is the IR node kind.
type Kind int

const (
	KindPrimitive Kind = iota
	KindRecord
	KindEnum
	KindArray
	KindMap
	KindFixed
	KindUnion
	// KindRef is a use of a named type defined elsewhere in the schema.
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindFixed:
		return "fixed"
	case KindUnion:
		return "union"
	case KindRef:
		return "ref"
	}
	return "unknown"
}

// Primitive type names.
const (
	Null    = "null"
	Boolean = "boolean"
	Int     = "int"
	Long    = "long"
	Float   = "float"
	Double  = "double"
	Bytes   = "bytes"
	String  = "string"
)

var primitives = map[string]bool{
	Null: true, Boolean: true, Int: true, Long: true,
	Float: true, Double: true, Bytes: true, String: true,
}

// IsPrimitive reports whether name is an Avro primitive type name.
func IsPrimitive(name string) bool { return primitives[name] }

// Schema is one node of a parsed Avro schema.
type Schema struct {
	Kind Kind
	// Primitive holds the type name for KindPrimitive.
	Primitive   string
	LogicalType string

	// Named types (record, enum, fixed) and refs.
	Name      string
	Namespace string
	Aliases   []string
	Doc       string

	Fields      []*Field
	Symbols     []string
	EnumDefault *string
	Size        int
	Items       *Schema
	Values      *Schema
	Branches    []*Schema
	// Target is the definition a KindRef points at.
	Target *Schema

	// Path is the JSON Pointer of the node in the schema text.
	Path string
}

// Field is a record field.
type Field struct {
	Name       string
	Type       *Schema
	Doc        string
	Aliases    []string
	Default    any
	HasDefault bool
	Order      string
	Path       string
}

// FullName returns namespace.name for named types and refs.
func (s *Schema) FullName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// Resolve follows a KindRef to its definition.
func (s *Schema) Resolve() *Schema {
	for s != nil && s.Kind == KindRef && s.Target != nil {
		s = s.Target
	}
	return s
}

// IsNamed reports whether the (resolved) node is a record, enum or fixed.
func (s *Schema) IsNamed() bool {
	r := s.Resolve()
	return r.Kind == KindRecord || r.Kind == KindEnum || r.Kind == KindFixed
}

// TypeName is the name used for union branch keys and messages: the
// primitive name, the full name of named types, or the complex kind.
func (s *Schema) TypeName() string {
	r := s.Resolve()
	switch r.Kind {
	case KindPrimitive:
		return r.Primitive
	case KindRecord, KindEnum, KindFixed:
		return r.FullName()
	}
	return r.Kind.String()
}

// Field returns the field called name.
func (s *Schema) Field(name string) (*Field, bool) {
	for _, f := range s.Resolve().Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// HasAlias reports whether the named type carries fullName as an alias.
func (s *Schema) HasAlias(fullName string) bool {
	r := s.Resolve()
	short := fullName
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		short = fullName[i+1:]
	}
	for _, a := range r.Aliases {
		if a == fullName || a == short {
			return true
		}
	}
	return false
}

// Walk calls fn for every node reachable from s, definitions before uses.
// Refs are visited but not followed.
func (s *Schema) Walk(fn func(*Schema)) {
	if s == nil {
		return
	}
	fn(s)
	switch s.Kind {
	case KindRecord:
		for _, f := range s.Fields {
			f.Type.Walk(fn)
		}
	case KindArray:
		s.Items.Walk(fn)
	case KindMap:
		s.Values.Walk(fn)
	case KindUnion:
		for _, b := range s.Branches {
			b.Walk(fn)
		}
	}
}

// fullName resolves name against the enclosing namespace.
func fullName(name, namespace string) (short, ns string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:], name[:i]
	}
	return name, namespace
}
