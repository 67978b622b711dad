// Package jsonschema validates JSON Schema documents (drafts 4 through
// 2020-12) and instances against them.
package jsonschema

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v5"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
)

const resourceURL = "schemaguard:///schema.json"

var errRemoteRef = errors.New("remote references are not resolved")

// Validator is the JSON Schema FormatValidator. The zero value is not
// usable; call New.
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

// New returns a JSON Schema validator.
func New(opts ...Option) *Validator {
	v := &Validator{maxDepth: sg.DefaultMaxRecursionDepth}
	for _, o := range opts {
		o(v)
	}
	return v
}

var _ sg.FormatValidator = (*Validator)(nil)

func (v *Validator) Format() sg.SchemaFormat { return sg.JSONSchema }

// Validate runs the structural, type and semantic checks.
func (v *Validator) Validate(ctx context.Context, text string) sg.ValidationResult {
	return sg.RunStages(ctx, v, text, v.maxDepth)
}

// Parse decodes text, resolves the draft and validates it against the draft
// meta-schema.
func (v *Validator) Parse(text string, maxDepth int) (sg.Document, sg.ValidationResult) {
	res := sg.NewResult(sg.JSONSchema)
	res.Metrics.SchemaSizeBytes = len(text)
	res.Metrics.RulesApplied++

	src, err := jsontext.Decode([]byte(text), jsontext.Options{
		MaxDepth:    maxDepth,
		OnDuplicate: jsontext.DupWarn,
		Positions:   true,
	})
	if err != nil {
		res.AddError(decodeError("json-schema-parse", err, maxDepth))
		return nil, res
	}
	res.Metrics.MaxRecursionDepth = src.Depth
	for _, dup := range src.Duplicates {
		line, col, _ := src.Position(dup.Path)
		res.AddWarning(sg.NewWarning("json-duplicate-key", dup.Message).
			WithLocation(dup.Path).WithPosition(line, col).
			WithSuggestion(i18n.Hint("json-duplicate-key", nil)))
	}

	switch src.Value.(type) {
	case map[string]any, bool:
	default:
		res.AddError(sg.NewError("json-schema-structure", sg.CodeParseError,
			fmt.Sprintf("schema root must be an object or a boolean, got %s", jsontext.TypeName(src.Value))).
			WithLocation("").WithSuggestion(i18n.Hint("json-schema-structure", nil)))
		return nil, res
	}

	doc := &Document{src: src}
	doc.index()

	res.Metrics.RulesApplied++
	draft, uri, ok := v.resolveDraft(doc, &res)
	if !ok {
		return doc, res
	}
	doc.draft, doc.draftURI = draft, uri

	res.Metrics.RulesApplied++
	compiled, err := compile(text, draft)
	if err != nil {
		for _, e := range compileErrors(doc, err) {
			res.AddError(e)
		}
		return doc, res
	}
	doc.compiled = compiled
	return doc, res
}

func (v *Validator) resolveDraft(doc *Document, res *sg.ValidationResult) (*jsv.Draft, string, bool) {
	obj, ok := doc.Root().(map[string]any)
	if !ok {
		return jsv.Draft2020, "", true
	}
	raw, present := obj["$schema"]
	if !present {
		return jsv.Draft2020, "", true
	}
	uri, isString := raw.(string)
	if !isString {
		line, col := doc.Position("/$schema")
		res.AddError(sg.NewError("json-schema-draft", sg.CodeParseError, "$schema must be a string").
			WithLocation("/$schema").WithPosition(line, col))
		return nil, "", false
	}
	info, known := lookupDraft(uri)
	if !known {
		line, col := doc.Position("/$schema")
		res.AddError(sg.NewError("json-schema-draft", sg.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported JSON Schema draft %q", uri)).
			WithLocation("/$schema").WithPosition(line, col).
			WithSuggestion(i18n.Hint("json-schema-draft", nil)))
		return nil, "", false
	}
	if info.legacy {
		line, col := doc.Position("/$schema")
		res.AddWarning(sg.NewWarning("json-schema-draft",
			fmt.Sprintf("draft %s is superseded; prefer draft 2020-12", info.name)).
			WithLocation("/$schema").WithPosition(line, col).
			WithSuggestion(i18n.Hint("json-schema-draft", nil)))
	}
	return info.draft, uri, true
}

type draftInfo struct {
	draft  *jsv.Draft
	name   string
	legacy bool
}

var drafts = map[string]draftInfo{
	"json-schema.org/draft-04/schema":            {jsv.Draft4, "4", true},
	"json-schema.org/draft-06/schema":            {jsv.Draft6, "6", true},
	"json-schema.org/draft-07/schema":            {jsv.Draft7, "7", false},
	"json-schema.org/draft/2019-09/schema":       {jsv.Draft2019, "2019-09", false},
	"json-schema.org/draft/2020-12/schema":       {jsv.Draft2020, "2020-12", false},
	"json-schema.org/draft-07/hyper-schema":      {jsv.Draft7, "7", false},
	"json-schema.org/draft/2020-12/hyper-schema": {jsv.Draft2020, "2020-12", false},
}

func lookupDraft(uri string) (draftInfo, bool) {
	u := strings.TrimSuffix(strings.TrimSpace(uri), "#")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	info, ok := drafts[u]
	return info, ok
}

// compile runs the library compiler with remote loading disabled.
func compile(text string, draft *jsv.Draft) (*jsv.Schema, error) {
	c := jsv.NewCompiler()
	c.Draft = draft
	c.LoadURL = func(s string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("%w: %s", errRemoteRef, s)
	}
	if err := c.AddResource(resourceURL, strings.NewReader(text)); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}

func compileErrors(doc *Document, err error) []sg.ValidationError {
	var ve *jsv.ValidationError
	if errors.As(err, &ve) {
		typeLocs := typeKeywords(doc)
		var out []sg.ValidationError
		for _, leaf := range leaves(ve) {
			loc := leaf.InstanceLocation
			// CheckTypes reports these with a type error of its own
			if coveredBy(typeLocs, loc) {
				continue
			}
			line, col := doc.Position(loc)
			out = append(out, sg.NewError("json-schema-meta", sg.CodeParseError, leaf.Message).
				WithLocation(loc).WithPosition(line, col).
				WithContext("keyword", leaf.KeywordLocation).
				WithSuggestion(i18n.Hint("json-schema-meta", nil)))
		}
		return out
	}
	msg := strings.TrimPrefix(err.Error(), "jsonschema: ")
	if errors.Is(err, errRemoteRef) || strings.Contains(msg, "not found") || strings.Contains(msg, "$ref") {
		return []sg.ValidationError{
			sg.NewError("json-schema-ref", sg.CodeSemanticError, msg).
				WithSuggestion(i18n.Hint("json-schema-ref", nil)),
		}
	}
	return []sg.ValidationError{sg.NewError("json-schema-structure", sg.CodeParseError, msg)}
}

// typeKeywords returns the pointers of every "type" keyword in the schema.
func typeKeywords(doc *Document) map[string]bool {
	locs := make(map[string]bool)
	walkSchemas(doc.Root(), "", func(obj map[string]any, ptr string) {
		if _, ok := obj["type"]; ok {
			locs[jsontext.Join(ptr, "type")] = true
		}
	})
	return locs
}

func coveredBy(locs map[string]bool, loc string) bool {
	for l := range locs {
		if loc == l || strings.HasPrefix(loc, l+"/") {
			return true
		}
	}
	return false
}

// leaves flattens a library error tree into its most specific causes,
// ordered by instance location, then keyword location. The library visits
// keywords in map order, so the raw order is not stable.
func leaves(ve *jsv.ValidationError) []*jsv.ValidationError {
	var out []*jsv.ValidationError
	var walk func(*jsv.ValidationError)
	walk = func(e *jsv.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, e)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	slices.SortStableFunc(out, func(a, b *jsv.ValidationError) int {
		return cmp.Or(
			strings.Compare(a.InstanceLocation, b.InstanceLocation),
			strings.Compare(a.KeywordLocation, b.KeywordLocation),
			strings.Compare(a.Message, b.Message),
		)
	})
	return out
}

func decodeError(rule string, err error, maxDepth int) sg.ValidationError {
	var le *jsontext.LimitError
	if errors.As(err, &le) && le.Code == jsontext.CodeDepthExceeded {
		return sg.NewError("security-recursion-depth", sg.CodeRecursionLimitExceeded,
			fmt.Sprintf("nesting depth exceeds the limit of %d", maxDepth)).
			WithLocation(le.Path).WithPosition(le.Line, le.Column).
			WithSuggestion(i18n.Hint("security-recursion-depth", map[string]string{"limit": fmt.Sprint(maxDepth)}))
	}
	if errors.As(err, &le) {
		return sg.NewError(rule, sg.CodeParseError, le.Message).
			WithLocation(le.Path).WithPosition(le.Line, le.Column)
	}
	var se *jsontext.SyntaxError
	if errors.As(err, &se) {
		return sg.NewError(rule, sg.CodeParseError, "Invalid JSON: "+se.Msg).
			WithPosition(se.Line, se.Column).
			WithSuggestion(i18n.Hint(rule, nil))
	}
	return sg.NewError(rule, sg.CodeParseError, err.Error())
}

// ValidateInstance validates the JSON instance against the schema text.
func (v *Validator) ValidateInstance(ctx context.Context, text string, instance []byte) sg.ValidationResult {
	d, res := v.Parse(text, v.maxDepth)
	doc, _ := d.(*Document)
	if doc == nil || doc.compiled == nil {
		return res
	}
	inst, err := jsontext.Decode(instance, jsontext.Options{MaxDepth: v.maxDepth})
	if err != nil {
		res.AddError(decodeError("instance-parse", err, v.maxDepth))
		return res
	}
	res.Metrics.FieldsValidated += inst.Keys
	res.Metrics.RulesApplied++
	err = doc.compiled.Validate(inst.Value)
	if err == nil {
		return res
	}
	var ve *jsv.ValidationError
	if !errors.As(err, &ve) {
		res.AddError(sg.NewError("instance-validation", sg.CodeTypeError, err.Error()))
		return res
	}
	for _, leaf := range leaves(ve) {
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		res.AddError(sg.NewError("instance-validation", sg.CodeTypeError, leaf.Message).
			WithLocation(loc).
			WithContext("keyword", leaf.KeywordLocation))
		if sg.IsFailFast(ctx) {
			break
		}
	}
	return res
}
