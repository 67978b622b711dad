package jsonschema

import (
	"fmt"
	"net/url"
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v5"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
)

var validTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true,
	"object": true, "array": true, "null": true,
}

// CheckTypes verifies every "type" keyword names JSON Schema types.
func (v *Validator) CheckTypes(d sg.Document) sg.ValidationResult {
	res := sg.NewResult(sg.JSONSchema)
	doc, ok := d.(*Document)
	if !ok {
		return res
	}
	res.Metrics.RulesApplied++
	walkSchemas(doc.Root(), "", func(obj map[string]any, ptr string) {
		res.Metrics.FieldsValidated++
		raw, ok := obj["type"]
		if !ok {
			return
		}
		loc := jsontext.Join(ptr, "type")
		var names []any
		switch t := raw.(type) {
		case string:
			names = []any{t}
		case []any:
			if len(t) == 0 {
				res.AddError(typeError(doc, loc, "type must name at least one type"))
				return
			}
			names = t
		default:
			res.AddError(typeError(doc, loc, "type must be a string or an array of strings"))
			return
		}
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			s, isString := n.(string)
			switch {
			case !isString:
				res.AddError(typeError(doc, loc, "type must be a string or an array of strings"))
			case !validTypes[s]:
				res.AddError(typeError(doc, loc, fmt.Sprintf("Invalid type: %s", s)).
					WithContext("type", s).
					WithSuggestion(i18n.Hint("type-validation", map[string]string{"type": s})))
			case seen[s]:
				res.AddError(typeError(doc, loc, fmt.Sprintf("duplicate type %q", s)))
			}
			if isString {
				seen[s] = true
			}
		}
	})
	return res
}

func typeError(doc *Document, loc, msg string) sg.ValidationError {
	line, col := doc.Position(loc)
	return sg.NewError("type-validation", sg.CodeTypeError, msg).WithLocation(loc).WithPosition(line, col)
}

// CheckSemantics reports logical inconsistencies and advisory findings.
func (v *Validator) CheckSemantics(d sg.Document) sg.ValidationResult {
	res := sg.NewResult(sg.JSONSchema)
	doc, ok := d.(*Document)
	if !ok {
		return res
	}
	res.Metrics.RulesApplied += 6
	walkSchemas(doc.Root(), "", func(obj map[string]any, ptr string) {
		checkRequired(doc, &res, obj, ptr)
		checkBounds(doc, &res, obj, ptr)
		checkEnum(doc, &res, obj, ptr)
		checkDeprecated(doc, &res, obj, ptr)
		checkProperties(doc, &res, obj, ptr)
	})
	if root, ok := doc.Root().(map[string]any); ok {
		checkRootID(doc, &res, root)
		if !declaresShape(root) {
			res.AddWarning(warning(doc, "missing-type", "", "schema root does not declare a type"))
		}
		_, hasExamples := root["examples"]
		_, hasExample := root["example"]
		if !hasExamples && !hasExample && !anyPropertyHasExamples(root) {
			res.AddWarning(warning(doc, "missing-examples", "", "schema provides no examples").
				WithSeverity(sg.SeverityInfo))
		}
	}
	return res
}

func checkRequired(doc *Document, res *sg.ValidationResult, obj map[string]any, ptr string) {
	req, ok := obj["required"].([]any)
	if !ok {
		return
	}
	props, hasProps := obj["properties"].(map[string]any)
	if !hasProps {
		return
	}
	for i, r := range req {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, defined := props[name]; defined {
			continue
		}
		loc := jsontext.JoinIndex(jsontext.Join(ptr, "required"), i)
		line, col := doc.Position(loc)
		res.AddError(sg.NewError("semantic-validation", sg.CodeSemanticError,
			fmt.Sprintf("Required field '%s' is not defined in properties", name)).
			WithLocation(loc).WithPosition(line, col).
			WithContext("field", name).
			WithSuggestion(i18n.Hint("semantic-validation", map[string]string{"field": name})))
	}
}

var boundPairs = [][2]string{
	{"minimum", "maximum"},
	{"minLength", "maxLength"},
	{"minItems", "maxItems"},
	{"minProperties", "maxProperties"},
	{"minContains", "maxContains"},
}

func checkBounds(doc *Document, res *sg.ValidationResult, obj map[string]any, ptr string) {
	for _, pair := range boundPairs {
		lo, okLo := jsontext.Float(obj[pair[0]])
		hi, okHi := jsontext.Float(obj[pair[1]])
		if okLo && okHi && lo > hi {
			res.AddError(conflict(doc, jsontext.Join(ptr, pair[0]),
				fmt.Sprintf("%s (%v) is greater than %s (%v)", pair[0], lo, pair[1], hi)))
		}
	}
	// exclusive bounds are numbers from draft 6 on
	lo, okLo := jsontext.Float(obj["exclusiveMinimum"])
	hi, okHi := jsontext.Float(obj["exclusiveMaximum"])
	if okLo && okHi && lo >= hi {
		res.AddError(conflict(doc, jsontext.Join(ptr, "exclusiveMinimum"),
			fmt.Sprintf("exclusiveMinimum (%v) must be less than exclusiveMaximum (%v)", lo, hi)))
	}
	if mn, ok := jsontext.Float(obj["minimum"]); ok && okHi && mn >= hi {
		res.AddError(conflict(doc, jsontext.Join(ptr, "minimum"),
			fmt.Sprintf("minimum (%v) leaves no value below exclusiveMaximum (%v)", mn, hi)))
	}
	if mx, ok := jsontext.Float(obj["maximum"]); ok && okLo && lo >= mx {
		res.AddError(conflict(doc, jsontext.Join(ptr, "maximum"),
			fmt.Sprintf("maximum (%v) leaves no value above exclusiveMinimum (%v)", mx, lo)))
	}
}

func checkEnum(doc *Document, res *sg.ValidationResult, obj map[string]any, ptr string) {
	enum, ok := obj["enum"].([]any)
	if !ok {
		return
	}
	if c, hasConst := obj["const"]; hasConst && !member(enum, c) {
		res.AddError(conflict(doc, jsontext.Join(ptr, "const"), "const value is not one of the enum values"))
	}
	if def, hasDefault := obj["default"]; hasDefault && !member(enum, def) {
		res.AddError(conflict(doc, jsontext.Join(ptr, "default"), "default value is not one of the enum values"))
	}
}

func member(list []any, v any) bool {
	for _, x := range list {
		if jsontext.Equal(x, v) {
			return true
		}
	}
	return false
}

func conflict(doc *Document, loc, msg string) sg.ValidationError {
	line, col := doc.Position(loc)
	return sg.NewError("conflicting-constraints", sg.CodeSemanticError, msg).
		WithLocation(loc).WithPosition(line, col).
		WithSuggestion(i18n.Hint("conflicting-constraints", nil))
}

func checkDeprecated(doc *Document, res *sg.ValidationResult, obj map[string]any, ptr string) {
	if doc.draft == nil || doc.draft == jsv.Draft4 {
		return
	}
	if _, ok := obj["id"].(string); ok {
		res.AddWarning(warning(doc, "deprecated-keyword", jsontext.Join(ptr, "id"),
			`"id" was replaced by "$id" after draft 4`).WithContext("keyword", "id"))
	}
	if doc.draft == jsv.Draft2019 || doc.draft == jsv.Draft2020 {
		if _, ok := obj["dependencies"]; ok {
			res.AddWarning(warning(doc, "deprecated-keyword", jsontext.Join(ptr, "dependencies"),
				`"dependencies" was split into "dependentRequired" and "dependentSchemas"`).
				WithContext("keyword", "dependencies"))
		}
	}
}

func checkProperties(doc *Document, res *sg.ValidationResult, obj map[string]any, ptr string) {
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		return
	}
	base := jsontext.Join(ptr, "properties")
	for _, name := range jsontext.SortedKeys(props) {
		p, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		loc := jsontext.Join(base, name)
		if _, ok := p["description"]; !ok {
			res.AddWarning(warning(doc, "missing-description", loc,
				fmt.Sprintf("property '%s' has no description", name)).
				WithContext("field", name))
		}
		if !declaresShape(p) {
			res.AddWarning(warning(doc, "missing-type", loc,
				fmt.Sprintf("property '%s' does not declare a type", name)).
				WithContext("field", name))
		}
	}
}

func checkRootID(doc *Document, res *sg.ValidationResult, root map[string]any) {
	key := "$id"
	if doc.draft == jsv.Draft4 {
		key = "id"
	}
	id, ok := root[key].(string)
	if !ok || strings.HasPrefix(id, "#") {
		return
	}
	u, err := url.Parse(id)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "urn") {
		return
	}
	res.AddWarning(warning(doc, "json-schema-id", "/"+key,
		fmt.Sprintf("%s %q is not an absolute http, https or urn URI", key, id)))
}

// declaresShape reports whether a schema constrains the value kind in any
// way the type-less checks recognise.
func declaresShape(obj map[string]any) bool {
	for _, k := range []string{"type", "$ref", "$dynamicRef", "enum", "const", "allOf", "anyOf", "oneOf", "not"} {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func anyPropertyHasExamples(root map[string]any) bool {
	props, _ := root["properties"].(map[string]any)
	for _, p := range props {
		if m, ok := p.(map[string]any); ok {
			if _, ok := m["examples"]; ok {
				return true
			}
		}
	}
	return false
}

func warning(doc *Document, rule, loc, msg string) sg.ValidationWarning {
	line, col := doc.Position(loc)
	return sg.NewWarning(rule, msg).WithLocation(loc).WithPosition(line, col).
		WithSuggestion(i18n.Hint(rule, nil))
}
