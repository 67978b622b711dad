// Package protobuf validates .proto schema text, converts it to descriptor
// form and validates proto3 JSON instances against it.
package protobuf

import (
	"regexp"
	"strconv"
	"strings"
	"text/scanner"

	protoparser "github.com/emicklei/proto"
)

const filename = "schema.proto"

type label int

const (
	labelNone label = iota
	labelOptional
	labelRequired
	labelRepeated
)

type field struct {
	name     string
	typ      string
	keyType  string
	number   int
	label    label
	oneof    int
	jsonName string
	isMap    bool
	isGroup  bool
	pos      scanner.Position
}

type message struct {
	name     string
	fullName string
	depth    int
	pos      scanner.Position
	fields   []*field
	oneofs   []string
	reserved []*protoparser.Reserved
	nested   []*message
	enums    []*enum
}

type enumValue struct {
	name   string
	number int
	pos    scanner.Position
}

type enum struct {
	name       string
	fullName   string
	pos        scanner.Position
	values     []enumValue
	allowAlias bool
	reserved   []*protoparser.Reserved
}

type typeKind int

const (
	typeMessage typeKind = iota + 1
	typeEnum
)

// file is the indexed form of a parsed .proto file.
type file struct {
	ast       *protoparser.Proto
	syntax    string
	syntaxPos scanner.Position
	// syntaxFirst is false when another statement precedes syntax.
	syntaxFirst bool
	edition     bool
	pkg         string
	pkgPos      scanner.Position
	imports     []string
	messages    []*message // top-level, in declaration order
	enums       []*enum    // top-level
	all         []*message // every message, parents first
	allEnums    []*enum
	types       map[string]typeKind
	depth       int
}

var posRe = regexp.MustCompile(regexp.QuoteMeta(filename) + `:(\d+):(\d+)`)

// parseError is a .proto syntax error with its position.
type parseError struct {
	msg          string
	line, column int
}

func (e *parseError) Error() string { return e.msg }

func parse(text string) (*file, error) {
	p := protoparser.NewParser(strings.NewReader(text))
	p.Filename(filename)
	ast, err := p.Parse()
	if err != nil {
		pe := &parseError{msg: strings.TrimSpace(err.Error())}
		if m := posRe.FindStringSubmatch(pe.msg); m != nil {
			pe.line, _ = strconv.Atoi(m[1])
			pe.column, _ = strconv.Atoi(m[2])
			pe.msg = strings.TrimSpace(strings.TrimPrefix(pe.msg[strings.Index(pe.msg, m[0])+len(m[0]):], ":"))
		}
		return nil, pe
	}
	return index(ast), nil
}

func index(ast *protoparser.Proto) *file {
	f := &file{ast: ast, types: make(map[string]typeKind)}
	for _, el := range ast.Elements {
		if pkg, ok := el.(*protoparser.Package); ok {
			f.pkg, f.pkgPos = pkg.Name, pkg.Position
		}
	}
	first := true
	for _, el := range ast.Elements {
		switch e := el.(type) {
		case *protoparser.Comment:
			continue
		case *protoparser.Syntax:
			f.syntax, f.syntaxPos, f.syntaxFirst = e.Value, e.Position, first
		case *protoparser.Edition:
			f.syntax, f.syntaxPos, f.syntaxFirst, f.edition = "editions", e.Position, first, true
		case *protoparser.Import:
			f.imports = append(f.imports, e.Filename)
		case *protoparser.Message:
			if !e.IsExtend {
				f.messages = append(f.messages, f.indexMessage(e, f.pkg, 1))
			}
		case *protoparser.Enum:
			f.enums = append(f.enums, f.indexEnum(e, f.pkg))
		}
		first = false
	}
	return f
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (f *file) indexMessage(m *protoparser.Message, scope string, depth int) *message {
	msg := &message{name: m.Name, fullName: qualify(scope, m.Name), depth: depth, pos: m.Position}
	f.types[msg.fullName] = typeMessage
	f.all = append(f.all, msg)
	f.depth = max(f.depth, depth)
	f.indexElements(msg, m.Elements, -1)
	return msg
}

func (f *file) indexElements(msg *message, elements []protoparser.Visitee, oneof int) {
	for _, el := range elements {
		switch e := el.(type) {
		case *protoparser.NormalField:
			fl := newField(e.Field, oneof)
			switch {
			case e.Repeated:
				fl.label = labelRepeated
			case e.Required:
				fl.label = labelRequired
			case e.Optional:
				fl.label = labelOptional
			}
			msg.fields = append(msg.fields, fl)
		case *protoparser.MapField:
			fl := newField(e.Field, oneof)
			fl.isMap, fl.keyType, fl.label = true, e.KeyType, labelRepeated
			msg.fields = append(msg.fields, fl)
		case *protoparser.OneOfField:
			msg.fields = append(msg.fields, newField(e.Field, oneof))
		case *protoparser.Oneof:
			msg.oneofs = append(msg.oneofs, e.Name)
			f.indexElements(msg, e.Elements, len(msg.oneofs)-1)
		case *protoparser.Group:
			nested := f.indexMessage(&protoparser.Message{Position: e.Position, Name: e.Name, Elements: e.Elements}, msg.fullName, msg.depth+1)
			msg.nested = append(msg.nested, nested)
			fl := &field{
				name: strings.ToLower(e.Name), typ: e.Name, number: e.Sequence,
				oneof: oneof, isGroup: true, pos: e.Position,
			}
			switch {
			case e.Repeated:
				fl.label = labelRepeated
			case e.Required:
				fl.label = labelRequired
			case e.Optional:
				fl.label = labelOptional
			}
			fl.jsonName = jsonName(fl.name)
			msg.fields = append(msg.fields, fl)
		case *protoparser.Reserved:
			msg.reserved = append(msg.reserved, e)
		case *protoparser.Message:
			if !e.IsExtend {
				msg.nested = append(msg.nested, f.indexMessage(e, msg.fullName, msg.depth+1))
			}
		case *protoparser.Enum:
			msg.enums = append(msg.enums, f.indexEnum(e, msg.fullName))
		}
	}
}

func newField(pf *protoparser.Field, oneof int) *field {
	fl := &field{name: pf.Name, typ: pf.Type, number: pf.Sequence, oneof: oneof, pos: pf.Position}
	fl.jsonName = jsonName(pf.Name)
	for _, o := range pf.Options {
		if o.Name == "json_name" && o.Constant.Source != "" {
			fl.jsonName = o.Constant.Source
		}
	}
	return fl
}

func (f *file) indexEnum(e *protoparser.Enum, scope string) *enum {
	en := &enum{name: e.Name, fullName: qualify(scope, e.Name), pos: e.Position}
	f.types[en.fullName] = typeEnum
	f.allEnums = append(f.allEnums, en)
	for _, el := range e.Elements {
		switch v := el.(type) {
		case *protoparser.EnumField:
			en.values = append(en.values, enumValue{name: v.Name, number: v.Integer, pos: v.Position})
		case *protoparser.Option:
			if v.Name == "allow_alias" && v.Constant.Source == "true" {
				en.allowAlias = true
			}
		case *protoparser.Reserved:
			en.reserved = append(en.reserved, v)
		}
	}
	return en
}

// jsonName is protoc's lowerCamelCase JSON name for a field.
func jsonName(name string) string {
	var b strings.Builder
	upper := false
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

var scalars = map[string]bool{
	"double": true, "float": true, "int32": true, "int64": true,
	"uint32": true, "uint64": true, "sint32": true, "sint64": true,
	"fixed32": true, "fixed64": true, "sfixed32": true, "sfixed64": true,
	"bool": true, "string": true, "bytes": true,
}

// resolve finds the full name of a type reference made inside scope,
// following protobuf's innermost-first scoping.
func (f *file) resolve(typ, scope string) (string, typeKind, bool) {
	if strings.HasPrefix(typ, ".") {
		k, ok := f.types[typ[1:]]
		return typ[1:], k, ok
	}
	for s := scope; ; {
		cand := qualify(s, typ)
		if k, ok := f.types[cand]; ok {
			return cand, k, true
		}
		if s == "" {
			break
		}
		if i := strings.LastIndexByte(s, '.'); i >= 0 {
			s = s[:i]
		} else {
			s = ""
		}
	}
	return typ, 0, false
}

func (m *message) reservedNumber(n int) bool {
	for _, r := range m.reserved {
		for _, rg := range r.Ranges {
			if n >= rg.From && (rg.Max || n <= rg.To) {
				return true
			}
		}
	}
	return false
}

func (m *message) reservedName(name string) bool {
	for _, r := range m.reserved {
		for _, n := range r.FieldNames {
			if n == name {
				return true
			}
		}
	}
	return false
}

func (m *message) path(fieldName string) string { return m.fullName + "." + fieldName }
