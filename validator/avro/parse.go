package avro

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
)

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// finding is a parser observation tagged with the stage that reports it.
type finding struct {
	stage sg.Stage
	err   sg.ValidationError
}

type parser struct {
	src      *jsontext.Document
	named    map[string]*Schema
	findings []finding
	fields   int
	idents   []sg.Identifier
}

// Parse parses Avro schema text into the IR. It fails when the text is not
// a structurally valid schema or references undefined types; semantic
// problems such as duplicate fields are left to the Validator.
func Parse(text string) (*Schema, error) {
	src, err := jsontext.Decode([]byte(text), jsontext.Options{MaxDepth: sg.DefaultMaxRecursionDepth})
	if err != nil {
		return nil, fmt.Errorf("avro: %w", err)
	}
	p := newParser(src)
	root := p.parse(src.Value, "", "")
	for _, f := range p.findings {
		if f.err.Severity == sg.SeverityError && f.stage != sg.StageSemantic {
			return nil, errors.New("avro: " + f.err.Message)
		}
	}
	return root, nil
}

func newParser(src *jsontext.Document) *parser {
	return &parser{src: src, named: make(map[string]*Schema)}
}

func (p *parser) position(ptr string) (line, col int) {
	for {
		if l, c, ok := p.src.Position(ptr); ok {
			return l, c
		}
		i := strings.LastIndexByte(ptr, '/')
		if i < 0 {
			return 0, 0
		}
		ptr = ptr[:i]
	}
}

func (p *parser) report(stage sg.Stage, rule string, code sg.ErrorCode, path, msg string, hint map[string]string) {
	line, col := p.position(path)
	e := sg.NewError(rule, code, msg).WithLocation(path).WithPosition(line, col).
		WithSuggestion(i18n.Hint(rule, hint))
	p.findings = append(p.findings, finding{stage: stage, err: e})
}

func (p *parser) warn(rule, path, msg string, hint map[string]string) {
	line, col := p.position(path)
	e := sg.NewError(rule, "", msg).WithSeverity(sg.SeverityWarning).
		WithLocation(path).WithPosition(line, col).
		WithSuggestion(i18n.Hint(rule, hint))
	p.findings = append(p.findings, finding{stage: sg.StageSemantic, err: e})
}

func (p *parser) structural(path, msg string) *Schema {
	p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, path, msg, nil)
	return &Schema{Kind: KindPrimitive, Primitive: Null, Path: path}
}

func (p *parser) ident(name, path string) {
	line, _ := p.position(path)
	p.idents = append(p.idents, sg.Identifier{Name: name, Location: path, Line: line})
}

func (p *parser) parse(v any, path, ns string) *Schema {
	switch t := v.(type) {
	case string:
		return p.reference(t, path, ns)
	case []any:
		return p.parseUnion(t, path, ns)
	case map[string]any:
		return p.parseObject(t, path, ns)
	}
	return p.structural(path, fmt.Sprintf("schema must be a string, object or array, got %s", jsontext.TypeName(v)))
}

func (p *parser) reference(name, path, ns string) *Schema {
	if IsPrimitive(name) {
		return &Schema{Kind: KindPrimitive, Primitive: name, Path: path}
	}
	short, space := fullName(name, ns)
	candidates := []string{name}
	if !strings.Contains(name, ".") && ns != "" {
		candidates = []string{ns + "." + name, name}
	}
	for _, c := range candidates {
		if def, ok := p.named[c]; ok {
			return &Schema{Kind: KindRef, Name: def.Name, Namespace: def.Namespace, Target: def, Path: path}
		}
	}
	p.report(sg.StageType, "avro-unknown-type", sg.CodeTypeError, path,
		fmt.Sprintf("Unknown type: %s", name), map[string]string{"type": name})
	return &Schema{Kind: KindRef, Name: short, Namespace: space, Path: path}
}

func (p *parser) parseUnion(branches []any, path, ns string) *Schema {
	u := &Schema{Kind: KindUnion, Path: path}
	seen := make(map[string]bool, len(branches))
	for i, b := range branches {
		bp := jsontext.JoinIndex(path, i)
		s := p.parse(b, bp, ns)
		if s.Kind == KindUnion {
			p.report(sg.StageSemantic, "avro-nested-union", sg.CodeSemanticError, bp,
				"Unions may not immediately contain other unions", nil)
		}
		key := branchKey(s)
		if seen[key] {
			p.report(sg.StageSemantic, "avro-duplicate-union-branch", sg.CodeSemanticError, bp,
				fmt.Sprintf("Union contains %s more than once", key), map[string]string{"type": key})
		}
		seen[key] = true
		u.Branches = append(u.Branches, s)
	}
	if len(branches) < 2 {
		p.warn("avro-single-union", path, "Union type has only one variant", nil)
	}
	return u
}

// branchKey identifies a union branch: unnamed types by kind, named types
// by full name.
func branchKey(s *Schema) string {
	switch s.Kind {
	case KindPrimitive:
		return s.Primitive
	case KindRecord, KindEnum, KindFixed, KindRef:
		return s.FullName()
	}
	return s.Kind.String()
}

func (p *parser) parseObject(obj map[string]any, path, ns string) *Schema {
	raw, ok := obj["type"]
	if !ok {
		return p.structural(path, `schema object is missing the "type" attribute`)
	}
	typ, ok := raw.(string)
	if !ok {
		return p.parse(raw, jsontext.Join(path, "type"), ns)
	}
	switch typ {
	case "record", "error":
		return p.parseRecord(obj, path, ns)
	case "enum":
		return p.parseEnum(obj, path, ns)
	case "fixed":
		return p.parseFixed(obj, path, ns)
	case "array":
		items, ok := obj["items"]
		if !ok {
			return p.structural(path, `array schema is missing "items"`)
		}
		return &Schema{Kind: KindArray, Items: p.parse(items, jsontext.Join(path, "items"), ns), Path: path}
	case "map":
		values, ok := obj["values"]
		if !ok {
			return p.structural(path, `map schema is missing "values"`)
		}
		return &Schema{Kind: KindMap, Values: p.parse(values, jsontext.Join(path, "values"), ns), Path: path}
	}
	s := p.reference(typ, jsontext.Join(path, "type"), ns)
	s.Path = path
	if lt, ok := obj["logicalType"].(string); ok {
		s.LogicalType = lt
		p.checkLogicalType(s, obj, path)
	}
	return s
}

// define parses the name, namespace and aliases shared by records, enums and
// fixed types and registers the definition.
func (p *parser) define(obj map[string]any, path, ns string, s *Schema) bool {
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, path,
			fmt.Sprintf("%s schema requires a non-empty \"name\"", s.Kind), nil)
		return false
	}
	space := ns
	if v, ok := obj["namespace"].(string); ok {
		space = v
	}
	s.Name, s.Namespace = fullName(name, space)
	s.Doc, _ = obj["doc"].(string)
	namePath := jsontext.Join(path, "name")
	if !nameRe.MatchString(s.Name) || IsPrimitive(s.Name) {
		p.report(sg.StageSemantic, "avro-invalid-name", sg.CodeSemanticError, namePath,
			fmt.Sprintf("Invalid %s name '%s'", s.Kind, s.Name), map[string]string{"name": s.Name})
	}
	if s.Namespace != "" {
		for _, part := range strings.Split(s.Namespace, ".") {
			if !nameRe.MatchString(part) {
				p.report(sg.StageSemantic, "avro-invalid-name", sg.CodeSemanticError, namePath,
					fmt.Sprintf("Invalid namespace '%s'", s.Namespace), map[string]string{"name": s.Namespace})
				break
			}
		}
	}
	if aliases, ok := obj["aliases"].([]any); ok {
		for _, a := range aliases {
			if as, ok := a.(string); ok {
				short, aspace := fullName(as, s.Namespace)
				if aspace != "" {
					short = aspace + "." + short
				}
				s.Aliases = append(s.Aliases, short)
			}
		}
	}
	full := s.FullName()
	if _, dup := p.named[full]; dup {
		p.report(sg.StageSemantic, "avro-redefined-name", sg.CodeSemanticError, namePath,
			fmt.Sprintf("Type '%s' is defined more than once", full), map[string]string{"name": full})
	} else {
		p.named[full] = s
	}
	p.ident(s.Name, namePath)
	return true
}

func (p *parser) parseRecord(obj map[string]any, path, ns string) *Schema {
	s := &Schema{Kind: KindRecord, Path: path}
	if !p.define(obj, path, ns, s) {
		return s
	}
	raw, ok := obj["fields"].([]any)
	if !ok {
		p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, path,
			fmt.Sprintf("record '%s' requires a \"fields\" array", s.FullName()), nil)
		return s
	}
	if len(raw) == 0 {
		p.warn("avro-empty-record", path, fmt.Sprintf("Record '%s' has no fields", s.FullName()), nil)
	}
	seen := make(map[string]bool, len(raw))
	for i, rf := range raw {
		fp := jsontext.JoinIndex(jsontext.Join(path, "fields"), i)
		fo, ok := rf.(map[string]any)
		if !ok {
			p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, fp, "record field must be an object", nil)
			continue
		}
		name, ok := fo["name"].(string)
		if !ok {
			p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, fp, `record field requires a "name"`, nil)
			continue
		}
		ft, ok := fo["type"]
		if !ok {
			p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, fp,
				fmt.Sprintf("field '%s' requires a \"type\"", name), nil)
			continue
		}
		f := &Field{Name: name, Path: fp}
		f.Doc, _ = fo["doc"].(string)
		f.Order, _ = fo["order"].(string)
		if aliases, ok := fo["aliases"].([]any); ok {
			for _, a := range aliases {
				if as, ok := a.(string); ok {
					f.Aliases = append(f.Aliases, as)
				}
			}
		}
		namePath := jsontext.Join(fp, "name")
		if !nameRe.MatchString(name) {
			p.report(sg.StageSemantic, "avro-invalid-name", sg.CodeSemanticError, namePath,
				fmt.Sprintf("Invalid field name '%s'", name), map[string]string{"name": name})
		}
		if seen[name] {
			p.report(sg.StageSemantic, "avro-duplicate-field", sg.CodeSemanticError, namePath,
				fmt.Sprintf("Duplicate field name '%s' in record '%s'", name, s.FullName()),
				map[string]string{"field": name})
		}
		seen[name] = true
		p.fields++
		p.ident(name, namePath)

		f.Type = p.parse(ft, jsontext.Join(fp, "type"), s.Namespace)
		if def, ok := fo["default"]; ok {
			f.Default, f.HasDefault = def, true
			if errs := checkValue(f.Type, def, jsontext.Join(fp, "default"), defaultEncoding); len(errs) > 0 {
				p.report(sg.StageType, "avro-invalid-default", sg.CodeTypeError, jsontext.Join(fp, "default"),
					fmt.Sprintf("Default value of field '%s' does not match its type: %s", name, errs[0].msg),
					map[string]string{"field": name})
			}
		}
		s.Fields = append(s.Fields, f)
	}
	return s
}

func (p *parser) parseEnum(obj map[string]any, path, ns string) *Schema {
	s := &Schema{Kind: KindEnum, Path: path}
	if !p.define(obj, path, ns, s) {
		return s
	}
	raw, ok := obj["symbols"].([]any)
	if !ok {
		p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, path,
			fmt.Sprintf("enum '%s' requires a \"symbols\" array", s.FullName()), nil)
		return s
	}
	if len(raw) == 0 {
		p.report(sg.StageSemantic, "avro-empty-enum", sg.CodeSemanticError, path,
			fmt.Sprintf("Enum '%s' has no symbols", s.FullName()), nil)
	}
	seen := make(map[string]bool, len(raw))
	for i, rs := range raw {
		sp := jsontext.JoinIndex(jsontext.Join(path, "symbols"), i)
		sym, ok := rs.(string)
		if !ok {
			p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, sp, "enum symbols must be strings", nil)
			continue
		}
		if !nameRe.MatchString(sym) {
			p.report(sg.StageSemantic, "avro-invalid-name", sg.CodeSemanticError, sp,
				fmt.Sprintf("Invalid enum symbol '%s'", sym), map[string]string{"name": sym})
		}
		if seen[sym] {
			p.report(sg.StageSemantic, "avro-duplicate-symbol", sg.CodeSemanticError, sp,
				fmt.Sprintf("Duplicate symbol '%s' in enum '%s'", sym, s.FullName()), nil)
		}
		seen[sym] = true
		p.ident(sym, sp)
		s.Symbols = append(s.Symbols, sym)
	}
	if d, ok := obj["default"]; ok {
		ds, isString := d.(string)
		if !isString || !seen[ds] {
			p.report(sg.StageType, "avro-enum-default", sg.CodeTypeError, jsontext.Join(path, "default"),
				fmt.Sprintf("Enum default of '%s' is not one of its symbols", s.FullName()), nil)
		} else {
			s.EnumDefault = &ds
		}
	}
	return s
}

func (p *parser) parseFixed(obj map[string]any, path, ns string) *Schema {
	s := &Schema{Kind: KindFixed, Path: path}
	if !p.define(obj, path, ns, s) {
		return s
	}
	size, ok := jsontext.Int(obj["size"])
	if !ok {
		p.report(sg.StageStructural, "avro-parse", sg.CodeParseError, path,
			fmt.Sprintf("fixed '%s' requires an integer \"size\"", s.FullName()), nil)
		return s
	}
	if size <= 0 {
		p.report(sg.StageSemantic, "avro-zero-size-fixed", sg.CodeSemanticError, jsontext.Join(path, "size"),
			fmt.Sprintf("Fixed type '%s' has zero size", s.FullName()), nil)
	}
	s.Size = int(size)
	if lt, ok := obj["logicalType"].(string); ok {
		s.LogicalType = lt
		p.checkLogicalType(s, obj, path)
	}
	return s
}

var logicalBase = map[string][]string{
	"decimal":                {Bytes, "fixed"},
	"uuid":                   {String, "fixed"},
	"date":                   {Int},
	"time-millis":            {Int},
	"time-micros":            {Long},
	"timestamp-millis":       {Long},
	"timestamp-micros":       {Long},
	"timestamp-nanos":        {Long},
	"local-timestamp-millis": {Long},
	"local-timestamp-micros": {Long},
	"local-timestamp-nanos":  {Long},
	"duration":               {"fixed"},
}

// checkLogicalType reports logical type annotations Avro readers would
// ignore. They never fail validation.
func (p *parser) checkLogicalType(s *Schema, obj map[string]any, path string) {
	lt := s.LogicalType
	bases, known := logicalBase[lt]
	base := s.Primitive
	if s.Kind == KindFixed {
		base = "fixed"
	}
	at := jsontext.Join(path, "logicalType")
	if !known {
		p.warn("avro-logical-type", at, fmt.Sprintf("Unknown logical type '%s' is ignored", lt), nil)
		return
	}
	ok := false
	for _, b := range bases {
		ok = ok || b == base
	}
	if !ok {
		p.warn("avro-logical-type", at, fmt.Sprintf("Logical type '%s' cannot annotate %s", lt, base), nil)
		return
	}
	switch lt {
	case "decimal":
		prec, okP := jsontext.Int(obj["precision"])
		scale, okS := jsontext.Int(obj["scale"])
		if !okS {
			scale = 0
		}
		if !okP || prec <= 0 || scale < 0 || scale > prec {
			p.warn("avro-logical-type", at, "decimal requires precision > 0 and 0 <= scale <= precision", nil)
		}
	case "duration":
		if s.Size != 12 {
			p.warn("avro-logical-type", at, "duration requires a fixed of size 12", nil)
		}
	}
}
