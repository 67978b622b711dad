// Package rules provides the custom rule registry and reusable rules that
// plug into the custom stage of the validation pipeline.
package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/internal/jsontext"
	"github.com/reoring/schemaguard/validator/avro"
	"github.com/reoring/schemaguard/validator/jsonschema"
	"github.com/reoring/schemaguard/validator/protobuf"
)

// CheckFunc is the body of a rule built with Func.
type CheckFunc func(text string, format sg.SchemaFormat) []sg.ValidationError

type funcRule struct {
	name     string
	severity sg.Severity
	fn       CheckFunc
}

// Func adapts fn into a ValidationRule. Findings without a rule name get
// the rule's, and severities are capped at the rule's severity.
func Func(name string, severity sg.Severity, fn CheckFunc) sg.ValidationRule {
	return &funcRule{name: name, severity: severity, fn: fn}
}

func (r *funcRule) Name() string          { return r.name }
func (r *funcRule) Severity() sg.Severity { return r.severity }

func (r *funcRule) Validate(text string, format sg.SchemaFormat) []sg.ValidationError {
	if r.fn == nil {
		return nil
	}
	out := r.fn(text, format)
	for i := range out {
		if out[i].Rule == "" {
			out[i].Rule = r.name
		}
		out[i].Severity = min(out[i].Severity, r.severity)
	}
	return out
}

func finding(name string, severity sg.Severity, msg string) sg.ValidationError {
	return sg.NewError(name, "", msg).WithSeverity(severity)
}

// Env is what expression rules evaluate against.
type Env struct {
	Text   string `expr:"text"`
	Format string `expr:"format"`
	Size   int    `expr:"size"`
	Lines  int    `expr:"lines"`
	// Doc is the decoded JSON tree for JSON Schema and Avro, nil otherwise.
	Doc any `expr:"doc"`
}

func newEnv(text string, format sg.SchemaFormat) Env {
	env := Env{
		Text:   text,
		Format: format.String(),
		Size:   len(text),
		Lines:  strings.Count(text, "\n") + 1,
	}
	if format == sg.JSONSchema || format == sg.Avro {
		if doc, err := jsontext.Decode([]byte(text), jsontext.Options{MaxDepth: sg.DefaultMaxRecursionDepth}); err == nil {
			env.Doc = doc.Value
		}
	}
	return env
}

type exprRule struct {
	name     string
	severity sg.Severity
	source   string
	message  string
	program  *vm.Program
}

// Expr compiles a boolean expr-lang expression over Env. The rule reports
// message when the expression evaluates to false. For example:
//
//	rules.Expr("small-schemas", sg.SeverityWarning, `size < 4096`, "schema is larger than 4 KiB")
func Expr(name string, severity sg.Severity, expression, message string) (sg.ValidationRule, error) {
	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, &sg.ConfigurationError{Field: "rule " + name, Reason: err.Error()}
	}
	if message == "" {
		message = fmt.Sprintf("expression %q is false", expression)
	}
	return &exprRule{name: name, severity: severity, source: expression, message: message, program: program}, nil
}

func (r *exprRule) Name() string          { return r.name }
func (r *exprRule) Severity() sg.Severity { return r.severity }

func (r *exprRule) Validate(text string, format sg.SchemaFormat) []sg.ValidationError {
	out, err := expr.Run(r.program, newEnv(text, format))
	if err != nil {
		return []sg.ValidationError{
			sg.NewError(r.name, sg.CodeRuleFailure, "Rule execution failed: "+err.Error()).
				WithContext("expression", r.source),
		}
	}
	if ok, _ := out.(bool); ok {
		return nil
	}
	return []sg.ValidationError{finding(r.name, r.severity, r.message).WithContext("expression", r.source)}
}

type denyRule struct {
	name     string
	severity sg.Severity
	patterns []*regexp.Regexp
}

// Deny reports every match of any pattern in the raw schema text, with its
// line and column.
func Deny(name string, severity sg.Severity, patterns ...string) (sg.ValidationRule, error) {
	r := &denyRule{name: name, severity: severity}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &sg.ConfigurationError{Field: "rule " + name, Reason: err.Error()}
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *denyRule) Name() string          { return r.name }
func (r *denyRule) Severity() sg.Severity { return r.severity }

func (r *denyRule) Validate(text string, _ sg.SchemaFormat) []sg.ValidationError {
	var out []sg.ValidationError
	for _, re := range r.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			line, col := LineCol(text, loc[0])
			out = append(out, finding(r.name, r.severity,
				fmt.Sprintf("Denied content %q", text[loc[0]:loc[1]])).
				WithPosition(line, col).
				WithContext("pattern", re.String()))
		}
	}
	return out
}

// LineCol converts a byte offset into 1-based line and column.
func LineCol(text string, offset int) (line, col int) {
	offset = min(offset, len(text))
	line = strings.Count(text[:offset], "\n") + 1
	col = offset - strings.LastIndexByte(text[:offset], '\n')
	return line, col
}

type maxFieldsRule struct {
	name     string
	severity sg.Severity
	limit    int
}

// MaxFields reports schemas declaring more than limit fields, as counted by
// the format's own parser. Unparseable text is left to the structural stage.
func MaxFields(name string, severity sg.Severity, limit int) sg.ValidationRule {
	return &maxFieldsRule{name: name, severity: severity, limit: limit}
}

func (r *maxFieldsRule) Name() string          { return r.name }
func (r *maxFieldsRule) Severity() sg.Severity { return r.severity }

func (r *maxFieldsRule) Validate(text string, format sg.SchemaFormat) []sg.ValidationError {
	var v sg.FormatValidator
	switch format {
	case sg.JSONSchema:
		v = jsonschema.New()
	case sg.Avro:
		v = avro.New()
	case sg.Protobuf:
		v = protobuf.New()
	default:
		return nil
	}
	doc, _ := v.Parse(text, sg.DefaultMaxRecursionDepth)
	if doc == nil || doc.FieldCount() <= r.limit {
		return nil
	}
	return []sg.ValidationError{
		finding(r.name, r.severity, fmt.Sprintf("Schema declares %d fields, more than the limit of %d", doc.FieldCount(), r.limit)).
			WithContext("limit", fmt.Sprint(r.limit)),
	}
}

type formatRule struct {
	sg.ValidationRule
	formats []sg.SchemaFormat
}

// ForFormats restricts rule to the given formats.
func ForFormats(rule sg.ValidationRule, formats ...sg.SchemaFormat) sg.ValidationRule {
	return &formatRule{ValidationRule: rule, formats: formats}
}

func (r *formatRule) Validate(text string, format sg.SchemaFormat) []sg.ValidationError {
	if !slices.Contains(r.formats, format) {
		return nil
	}
	return r.ValidationRule.Validate(text, format)
}
