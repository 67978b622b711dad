package avro

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
)

// Document is a parsed Avro schema with the findings of the parse.
type Document struct {
	root     *Schema
	src      *jsontext.Document
	findings []finding
	fields   int
	idents   []sg.Identifier
}

var _ sg.Document = (*Document)(nil)

func (d *Document) Format() sg.SchemaFormat      { return sg.Avro }
func (d *Document) Depth() int                   { return d.src.Depth }
func (d *Document) FieldCount() int              { return d.fields }
func (d *Document) Patterns() []sg.Pattern       { return nil }
func (d *Document) Tree() any                    { return d.src.Value }
func (d *Document) Identifiers() []sg.Identifier { return d.idents }

// Root is the top-level schema node.
func (d *Document) Root() *Schema { return d.root }

// Validator is the Avro FormatValidator.
type Validator struct {
	maxDepth int
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxDepth sets the nesting limit used by Validate and ValidateInstance.
func WithMaxDepth(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxDepth = n
		}
	}
}

// New returns an Avro validator.
func New(opts ...Option) *Validator {
	v := &Validator{maxDepth: sg.DefaultMaxRecursionDepth}
	for _, o := range opts {
		o(v)
	}
	return v
}

var _ sg.FormatValidator = (*Validator)(nil)

func (v *Validator) Format() sg.SchemaFormat { return sg.Avro }

func (v *Validator) Validate(ctx context.Context, text string) sg.ValidationResult {
	return sg.RunStages(ctx, v, text, v.maxDepth)
}

// Parse decodes and parses the schema. Structural errors make the document
// unavailable to later stages.
func (v *Validator) Parse(text string, maxDepth int) (sg.Document, sg.ValidationResult) {
	res := sg.NewResult(sg.Avro)
	res.Metrics.SchemaSizeBytes = len(text)
	res.Metrics.RulesApplied++
	src, err := jsontext.Decode([]byte(text), jsontext.Options{MaxDepth: maxDepth, Positions: true})
	if err != nil {
		res.AddError(decodeError("avro-parse", err, maxDepth))
		return nil, res
	}
	res.Metrics.MaxRecursionDepth = src.Depth

	p := newParser(src)
	root := p.parse(src.Value, "", "")
	doc := &Document{root: root, src: src, findings: p.findings, fields: p.fields, idents: p.idents}
	structural := doc.collect(sg.StageStructural)
	res.Merge(structural)
	if !structural.Valid {
		return nil, res
	}
	return doc, res
}

// CheckTypes reports unresolved type names and defaults that do not match
// their declared types.
func (v *Validator) CheckTypes(d sg.Document) sg.ValidationResult {
	doc, ok := d.(*Document)
	if !ok {
		return sg.NewResult(sg.Avro)
	}
	res := doc.collect(sg.StageType)
	res.Metrics.RulesApplied += 3
	res.Metrics.FieldsValidated = doc.fields
	return res
}

// CheckSemantics reports naming, uniqueness and documentation findings.
func (v *Validator) CheckSemantics(d sg.Document) sg.ValidationResult {
	doc, ok := d.(*Document)
	if !ok {
		return sg.NewResult(sg.Avro)
	}
	res := doc.collect(sg.StageSemantic)
	res.Metrics.RulesApplied += 10
	seen := make(map[*Schema]bool)
	doc.root.Walk(func(s *Schema) {
		if seen[s] {
			return
		}
		seen[s] = true
		switch s.Kind {
		case KindRecord, KindEnum, KindFixed:
			if s.Name != "" && !unicode.IsUpper([]rune(s.Name)[0]) {
				res.AddWarning(doc.warning("avro-naming-convention", s.Path+"/name",
					fmt.Sprintf("%s name '%s' should be PascalCase", s.Kind, s.Name), s.Name))
			}
		}
		if s.Kind != KindRecord {
			return
		}
		for _, f := range s.Fields {
			if reservedFieldNames[f.Name] {
				res.AddWarning(doc.warning("avro-reserved-field-name", f.Path+"/name",
					fmt.Sprintf("Field name '%s' is a reserved Avro keyword", f.Name), f.Name))
			}
			if f.Name != "" && unicode.IsUpper([]rune(f.Name)[0]) {
				res.AddWarning(doc.warning("avro-naming-convention", f.Path+"/name",
					fmt.Sprintf("field name '%s' should be camelCase or snake_case", f.Name), f.Name))
			}
			if f.Doc == "" {
				res.AddWarning(doc.warning("avro-missing-doc", f.Path,
					fmt.Sprintf("Field '%s' lacks documentation", f.Name), f.Name))
			}
		}
	})
	return res
}

var reservedFieldNames = map[string]bool{
	"type": true, "schema": true, "namespace": true, "name": true, "fields": true,
}

func (d *Document) collect(stage sg.Stage) sg.ValidationResult {
	res := sg.NewResult(sg.Avro)
	for _, f := range d.findings {
		if f.stage != stage {
			continue
		}
		if f.err.Severity == sg.SeverityError {
			res.AddError(f.err)
		} else {
			res.AddWarning(f.err.AsWarning())
		}
	}
	return res
}

func (d *Document) warning(rule, loc, msg, name string) sg.ValidationWarning {
	line, col, _ := d.src.Position(loc)
	data := map[string]string{"name": name, "field": name}
	return sg.NewWarning(rule, msg).WithLocation(loc).WithPosition(line, col).
		WithSuggestion(i18n.Hint(rule, data))
}

// ValidateInstance validates a JSON-encoded Avro datum against the schema.
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
	inst, err := jsontext.Decode(instance, jsontext.Options{MaxDepth: v.maxDepth})
	if err != nil {
		res.AddError(decodeError("instance-parse", err, v.maxDepth))
		return res
	}
	res.Metrics.RulesApplied++
	res.Metrics.FieldsValidated += inst.Keys
	for _, e := range checkValue(doc.root, inst.Value, "", jsonEncoding) {
		loc := e.path
		if loc == "" {
			loc = "/"
		}
		res.AddError(sg.NewError("instance-validation", sg.CodeTypeError, e.msg).WithLocation(loc))
		if sg.IsFailFast(ctx) {
			break
		}
	}
	return res
}

func decodeError(rule string, err error, maxDepth int) sg.ValidationError {
	var le *jsontext.LimitError
	if errors.As(err, &le) && le.Code == jsontext.CodeDepthExceeded {
		return sg.NewError("security-recursion-depth", sg.CodeRecursionLimitExceeded,
			fmt.Sprintf("nesting depth exceeds the limit of %d", maxDepth)).
			WithLocation(le.Path).WithPosition(le.Line, le.Column).
			WithSuggestion(i18n.Hint("security-recursion-depth", map[string]string{"limit": fmt.Sprint(maxDepth)}))
	}
	var se *jsontext.SyntaxError
	if errors.As(err, &se) {
		return sg.NewError(rule, sg.CodeParseError, "Invalid JSON: "+se.Msg).
			WithPosition(se.Line, se.Column).
			WithSuggestion(i18n.Hint(rule, nil))
	}
	return sg.NewError(rule, sg.CodeParseError, err.Error())
}
