package protobuf

import (
	"context"
	"errors"
	"fmt"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
)

// Document is a parsed .proto file.
type Document struct {
	f *file
}

var _ sg.Document = (*Document)(nil)

func (d *Document) Format() sg.SchemaFormat { return sg.Protobuf }
func (d *Document) Depth() int              { return d.f.depth }
func (d *Document) Patterns() []sg.Pattern  { return nil }
func (d *Document) Tree() any               { return nil }

func (d *Document) FieldCount() int {
	n := 0
	for _, m := range d.f.all {
		n += len(m.fields)
	}
	return n
}

// Identifiers lists package, message, field, enum and enum value names.
func (d *Document) Identifiers() []sg.Identifier {
	var out []sg.Identifier
	if d.f.pkg != "" {
		out = append(out, sg.Identifier{Name: d.f.pkg, Location: "package", Line: d.f.pkgPos.Line})
	}
	for _, m := range d.f.all {
		out = append(out, sg.Identifier{Name: m.name, Location: m.fullName, Line: m.pos.Line})
		for _, fl := range m.fields {
			out = append(out, sg.Identifier{Name: fl.name, Location: m.path(fl.name), Line: fl.pos.Line})
		}
	}
	for _, e := range d.f.allEnums {
		out = append(out, sg.Identifier{Name: e.name, Location: e.fullName, Line: e.pos.Line})
		for _, v := range e.values {
			out = append(out, sg.Identifier{Name: v.name, Location: e.fullName + "." + v.name, Line: v.pos.Line})
		}
	}
	return out
}

// Validator is the Protobuf FormatValidator.
type Validator struct {
	maxDepth int
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxDepth sets the message nesting limit used by Validate and
// ValidateInstance.
func WithMaxDepth(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxDepth = n
		}
	}
}

// New returns a Protobuf validator.
func New(opts ...Option) *Validator {
	v := &Validator{maxDepth: sg.DefaultMaxRecursionDepth}
	for _, o := range opts {
		o(v)
	}
	return v
}

var _ sg.FormatValidator = (*Validator)(nil)

func (v *Validator) Format() sg.SchemaFormat { return sg.Protobuf }

func (v *Validator) Validate(ctx context.Context, text string) sg.ValidationResult {
	return sg.RunStages(ctx, v, text, v.maxDepth)
}

// Parse parses the file and checks the syntax statement and nesting depth.
func (v *Validator) Parse(text string, maxDepth int) (sg.Document, sg.ValidationResult) {
	res := sg.NewResult(sg.Protobuf)
	res.Metrics.SchemaSizeBytes = len(text)
	res.Metrics.RulesApplied++
	f, err := parse(text)
	if err != nil {
		e := sg.NewError("protobuf-syntax", sg.CodeParseError, "Failed to parse Protobuf schema: "+err.Error()).
			WithSuggestion(i18n.Hint("protobuf-syntax", nil))
		var pe *parseError
		if errors.As(err, &pe) {
			e = e.WithPosition(pe.line, pe.column)
		}
		res.AddError(e)
		return nil, res
	}
	res.Metrics.MaxRecursionDepth = f.depth
	checkSyntax(f, &res, maxDepth)
	if !res.Valid {
		return nil, res
	}
	return &Document{f: f}, res
}

func (v *Validator) CheckTypes(d sg.Document) sg.ValidationResult {
	res := sg.NewResult(sg.Protobuf)
	if doc, ok := d.(*Document); ok {
		checkTypes(doc.f, &res)
	}
	return res
}

func (v *Validator) CheckSemantics(d sg.Document) sg.ValidationResult {
	res := sg.NewResult(sg.Protobuf)
	if doc, ok := d.(*Document); ok {
		checkSemantics(doc.f, &res)
	}
	return res
}

// ValidateInstance validates a proto3 JSON instance against the first
// top-level message of the schema.
func (v *Validator) ValidateInstance(ctx context.Context, text string, instance []byte) sg.ValidationResult {
	d, res := v.Parse(text, v.maxDepth)
	doc, ok := d.(*Document)
	if !ok {
		return res
	}
	res.Merge(v.CheckTypes(doc))
	res.Merge(v.CheckSemantics(doc))
	if !res.Valid {
		return res
	}
	fd := doc.f.descriptor()
	if len(fd.GetMessageType()) == 0 {
		return res
	}
	reg := NewRegistry(fd)
	root := fd.GetMessageType()[0]
	inst, err := jsontext.Decode(instance, jsontext.Options{MaxDepth: v.maxDepth})
	if err != nil {
		msg := err.Error()
		var se *jsontext.SyntaxError
		if errors.As(err, &se) {
			msg = "Invalid JSON: " + se.Msg
		}
		res.AddError(sg.NewError("instance-parse", sg.CodeParseError, msg))
		return res
	}
	res.Metrics.RulesApplied++
	res.Metrics.FieldsValidated += inst.Keys
	for _, e := range reg.validateMessage(root, inst.Value, "") {
		loc := e.path
		if loc == "" {
			loc = "/"
		}
		res.AddError(sg.NewError("instance-validation", sg.CodeTypeError, e.msg).
			WithLocation(loc).
			WithContext("message", root.GetName()))
		if sg.IsFailFast(ctx) {
			break
		}
	}
	return res
}

// Describe returns a one-line summary of the parsed file for logs and the
// CLI.
func (d *Document) Describe() string {
	return fmt.Sprintf("%s package=%q messages=%d enums=%d", d.f.syntax, d.f.pkg, len(d.f.all), len(d.f.allEnums))
}
