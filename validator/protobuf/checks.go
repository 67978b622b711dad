package protobuf

import (
	"fmt"
	"regexp"
	"strings"
	"text/scanner"

	"google.golang.org/protobuf/encoding/protowire"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
)

var (
	packageRe    = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)
	pascalRe     = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	snakeRe      = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	upperSnakeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

func errAt(rule string, code sg.ErrorCode, loc string, pos scanner.Position, msg string, hint map[string]string) sg.ValidationError {
	return sg.NewError(rule, code, msg).WithLocation(loc).WithPosition(pos.Line, pos.Column).
		WithSuggestion(i18n.Hint(rule, hint))
}

func warnAt(rule, loc string, pos scanner.Position, msg string, hint map[string]string) sg.ValidationWarning {
	return sg.NewWarning(rule, msg).WithLocation(loc).WithPosition(pos.Line, pos.Column).
		WithSuggestion(i18n.Hint(rule, hint))
}

// checkSyntax covers the syntax statement and nesting depth.
func checkSyntax(f *file, res *sg.ValidationResult, maxDepth int) {
	res.Metrics.RulesApplied += 2
	switch {
	case f.syntax == "":
		res.AddWarning(warnAt("protobuf-missing-syntax", "", scanner.Position{},
			`No syntax statement; the file is read as "proto2"`, nil))
	case f.syntax != "proto2" && f.syntax != "proto3" && !f.edition:
		res.AddError(errAt("protobuf-syntax", sg.CodeParseError, "syntax", f.syntaxPos,
			fmt.Sprintf("Unknown syntax %q", f.syntax), nil))
	case !f.syntaxFirst:
		res.AddError(errAt("protobuf-syntax-position", sg.CodeParseError, "syntax", f.syntaxPos,
			"The syntax statement must be the first statement in the file", nil))
	}
	if maxDepth > 0 && f.depth > maxDepth {
		for _, m := range f.all {
			if m.depth > maxDepth {
				res.AddError(errAt("security-recursion-depth", sg.CodeRecursionLimitExceeded, m.fullName, m.pos,
					fmt.Sprintf("message nesting depth exceeds the limit of %d", maxDepth),
					map[string]string{"limit": fmt.Sprint(maxDepth)}))
				break
			}
		}
	}
}

func (f *file) proto3() bool { return f.syntax == "proto3" }

// checkTypes resolves field types and validates field numbers.
func checkTypes(f *file, res *sg.ValidationResult) {
	res.Metrics.RulesApplied += 4
	for _, m := range f.all {
		for _, fl := range m.fields {
			res.Metrics.FieldsValidated++
			loc := m.path(fl.name)
			checkFieldNumber(res, loc, fl)
			if fl.isGroup {
				continue
			}
			if fl.isMap {
				if !validMapKey(fl.keyType) {
					res.AddError(errAt("protobuf-map-key", sg.CodeTypeError, loc, fl.pos,
						fmt.Sprintf("Map key type %s is not an integral or string scalar", fl.keyType), nil))
				}
			}
			if scalars[fl.typ] {
				continue
			}
			if _, _, ok := f.resolve(fl.typ, m.fullName); ok {
				continue
			}
			msg := fmt.Sprintf("Unknown type: %s", fl.typ)
			if len(f.imports) > 0 && strings.Contains(fl.typ, ".") {
				res.AddWarning(warnAt("protobuf-unknown-type", loc, fl.pos,
					msg+" (it may be declared in an imported file)", map[string]string{"type": fl.typ}))
				continue
			}
			res.AddError(errAt("protobuf-unknown-type", sg.CodeTypeError, loc, fl.pos, msg,
				map[string]string{"type": fl.typ}))
		}
	}
}

func validMapKey(t string) bool {
	switch t {
	case "int32", "int64", "uint32", "uint64", "sint32", "sint64",
		"fixed32", "fixed64", "sfixed32", "sfixed64", "bool", "string":
		return true
	}
	return false
}

func checkFieldNumber(res *sg.ValidationResult, loc string, fl *field) {
	n := protowire.Number(fl.number)
	hint := map[string]string{"number": fmt.Sprint(fl.number)}
	switch {
	case !n.IsValid():
		res.AddError(errAt("protobuf-field-number", sg.CodeTypeError, loc, fl.pos,
			fmt.Sprintf("Field number %d is outside the valid range %d to %d",
				fl.number, protowire.MinValidNumber, protowire.MaxValidNumber), hint))
	case n >= protowire.FirstReservedNumber && n <= protowire.LastReservedNumber:
		res.AddError(errAt("protobuf-reserved-range", sg.CodeTypeError, loc, fl.pos,
			fmt.Sprintf("Field number %d is in the range %d to %d reserved for the protobuf implementation",
				fl.number, protowire.FirstReservedNumber, protowire.LastReservedNumber), hint))
	}
}

// checkSemantics covers uniqueness, reservations, proto3 restrictions and
// naming conventions.
func checkSemantics(f *file, res *sg.ValidationResult) {
	res.Metrics.RulesApplied += 10
	if f.pkg == "" {
		res.AddWarning(warnAt("protobuf-missing-package", "", scanner.Position{},
			"No package declared; types share the global namespace", nil))
	} else if !packageRe.MatchString(f.pkg) {
		res.AddWarning(warnAt("protobuf-package-naming", "package", f.pkgPos,
			fmt.Sprintf("Package '%s' should be lowercase and dot separated", f.pkg), nil))
	}
	if len(f.messages) == 0 {
		res.AddError(errAt("protobuf-no-messages", sg.CodeSemanticError, "", scanner.Position{},
			"Schema defines no messages", nil))
	}
	for _, m := range f.all {
		checkMessage(f, m, res)
	}
	for _, e := range f.allEnums {
		checkEnum(f, e, res)
	}
}

func checkMessage(f *file, m *message, res *sg.ValidationResult) {
	if !pascalRe.MatchString(m.name) {
		res.AddWarning(warnAt("protobuf-message-naming", m.fullName, m.pos,
			fmt.Sprintf("Message name '%s' should be PascalCase", m.name), map[string]string{"name": m.name}))
	}
	for _, r := range m.reserved {
		for _, rg := range r.Ranges {
			if rg.From < 1 || (!rg.Max && rg.To < rg.From) {
				res.AddError(errAt("protobuf-reserved-invalid", sg.CodeSemanticError, m.fullName, r.Position,
					fmt.Sprintf("Reserved range %s is invalid", rg.SourceRepresentation()), nil))
			}
		}
	}
	numbers := make(map[int]string, len(m.fields))
	names := make(map[string]bool, len(m.fields))
	for _, fl := range m.fields {
		loc := m.path(fl.name)
		if prev, dup := numbers[fl.number]; dup {
			res.AddError(errAt("protobuf-duplicate-field-number", sg.CodeSemanticError, loc, fl.pos,
				fmt.Sprintf("Field number %d is used by both '%s' and '%s'", fl.number, prev, fl.name),
				map[string]string{"number": fmt.Sprint(fl.number)}))
		} else {
			numbers[fl.number] = fl.name
		}
		if names[fl.name] {
			res.AddError(errAt("protobuf-duplicate-field-name", sg.CodeSemanticError, loc, fl.pos,
				fmt.Sprintf("Field name '%s' is declared more than once", fl.name), map[string]string{"field": fl.name}))
		}
		names[fl.name] = true
		if m.reservedNumber(fl.number) {
			res.AddError(errAt("protobuf-reserved-conflict", sg.CodeSemanticError, loc, fl.pos,
				fmt.Sprintf("Field '%s' uses reserved number %d", fl.name, fl.number),
				map[string]string{"number": fmt.Sprint(fl.number)}))
		}
		if m.reservedName(fl.name) {
			res.AddError(errAt("protobuf-reserved-conflict", sg.CodeSemanticError, loc, fl.pos,
				fmt.Sprintf("Field name '%s' is reserved", fl.name), map[string]string{"field": fl.name}))
		}
		if f.proto3() && fl.label == labelRequired {
			res.AddError(errAt("protobuf-required-in-proto3", sg.CodeSemanticError, loc, fl.pos,
				fmt.Sprintf("Field '%s' is required, which proto3 does not support", fl.name), nil))
		}
		if !fl.isGroup && !snakeRe.MatchString(fl.name) {
			res.AddWarning(warnAt("protobuf-field-naming", loc, fl.pos,
				fmt.Sprintf("Field name '%s' should be snake_case", fl.name), map[string]string{"field": fl.name}))
		}
	}
}

func checkEnum(f *file, e *enum, res *sg.ValidationResult) {
	if !pascalRe.MatchString(e.name) {
		res.AddWarning(warnAt("protobuf-enum-naming", e.fullName, e.pos,
			fmt.Sprintf("Enum name '%s' should be PascalCase", e.name), map[string]string{"name": e.name}))
	}
	if len(e.values) == 0 {
		res.AddError(errAt("protobuf-enum-empty", sg.CodeSemanticError, e.fullName, e.pos,
			fmt.Sprintf("Enum '%s' has no values", e.name), nil))
		return
	}
	if f.proto3() && e.values[0].number != 0 {
		first := e.values[0]
		res.AddError(errAt("protobuf-enum-zero", sg.CodeSemanticError, e.fullName+"."+first.name, first.pos,
			fmt.Sprintf("The first value of proto3 enum '%s' must be zero", e.name), nil))
	}
	numbers := make(map[int]string, len(e.values))
	for _, v := range e.values {
		if prev, dup := numbers[v.number]; dup && !e.allowAlias {
			res.AddError(errAt("protobuf-duplicate-enum-value", sg.CodeSemanticError, e.fullName+"."+v.name, v.pos,
				fmt.Sprintf("Enum values '%s' and '%s' share number %d", prev, v.name, v.number), nil))
		} else if !dup {
			numbers[v.number] = v.name
		}
		if !upperSnakeRe.MatchString(v.name) {
			res.AddWarning(warnAt("protobuf-enum-value-naming", e.fullName+"."+v.name, v.pos,
				fmt.Sprintf("Enum value '%s' should be UPPER_SNAKE_CASE", v.name), nil))
		}
	}
}
