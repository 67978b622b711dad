package jsonschema

import (
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v5"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/internal/jsontext"
)

// Document is a parsed JSON Schema.
type Document struct {
	src      *jsontext.Document
	draft    *jsv.Draft
	draftURI string
	compiled *jsv.Schema

	schemas  int
	fields   int
	patterns []sg.Pattern
	idents   []sg.Identifier
}

var _ sg.Document = (*Document)(nil)

func (d *Document) Format() sg.SchemaFormat { return sg.JSONSchema }
func (d *Document) Depth() int              { return d.src.Depth }
func (d *Document) FieldCount() int         { return d.fields }
func (d *Document) Patterns() []sg.Pattern  { return d.patterns }
func (d *Document) Tree() any               { return d.src.Value }

func (d *Document) Identifiers() []sg.Identifier { return d.idents }

// Root returns the decoded schema (a map or a bool).
func (d *Document) Root() any { return d.src.Value }

// Compiled returns the compiled schema, or nil when meta-validation failed.
func (d *Document) Compiled() *jsv.Schema { return d.compiled }

// SchemaCount is the number of (sub)schemas the document declares.
func (d *Document) SchemaCount() int { return d.schemas }

// Position maps a JSON Pointer to its line and column. When the pointer
// itself was not recorded the nearest recorded ancestor is used.
func (d *Document) Position(ptr string) (line, col int) {
	for {
		if l, c, ok := d.src.Position(ptr); ok {
			return l, c
		}
		if ptr == "" {
			return 0, 0
		}
		i := strings.LastIndexByte(ptr, '/')
		if i < 0 {
			return 0, 0
		}
		ptr = ptr[:i]
	}
}

// subschema keywords by shape.
var (
	singleSchemaKeywords = []string{
		"additionalItems", "additionalProperties", "contains", "contentSchema",
		"else", "if", "not", "propertyNames", "then",
		"unevaluatedItems", "unevaluatedProperties",
	}
	schemaMapKeywords   = []string{"$defs", "definitions", "dependentSchemas", "patternProperties", "properties"}
	schemaArrayKeywords = []string{"allOf", "anyOf", "oneOf", "prefixItems"}
)

// walkSchemas calls fn for every schema object reachable from node through
// subschema keywords, parents first, keys in sorted order.
func walkSchemas(node any, ptr string, fn func(obj map[string]any, ptr string)) {
	obj, ok := node.(map[string]any)
	if !ok {
		return
	}
	fn(obj, ptr)
	for _, kw := range keywordOrder(obj) {
		v := obj[kw]
		switch {
		case kw == "items":
			if arr, ok := v.([]any); ok {
				for i, s := range arr {
					walkSchemas(s, jsontext.JoinIndex(jsontext.Join(ptr, kw), i), fn)
				}
			} else {
				walkSchemas(v, jsontext.Join(ptr, kw), fn)
			}
		case kw == "dependencies":
			if m, ok := v.(map[string]any); ok {
				base := jsontext.Join(ptr, kw)
				for _, k := range jsontext.SortedKeys(m) {
					walkSchemas(m[k], jsontext.Join(base, k), fn)
				}
			}
		case contains(singleSchemaKeywords, kw):
			walkSchemas(v, jsontext.Join(ptr, kw), fn)
		case contains(schemaMapKeywords, kw):
			if m, ok := v.(map[string]any); ok {
				base := jsontext.Join(ptr, kw)
				for _, k := range jsontext.SortedKeys(m) {
					walkSchemas(m[k], jsontext.Join(base, k), fn)
				}
			}
		case contains(schemaArrayKeywords, kw):
			if arr, ok := v.([]any); ok {
				base := jsontext.Join(ptr, kw)
				for i, s := range arr {
					walkSchemas(s, jsontext.JoinIndex(base, i), fn)
				}
			}
		}
	}
}

func keywordOrder(obj map[string]any) []string { return jsontext.SortedKeys(obj) }

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// index collects field counts, patterns and identifiers in one walk.
func (d *Document) index() {
	walkSchemas(d.src.Value, "", func(obj map[string]any, ptr string) {
		d.schemas++
		if p, ok := obj["pattern"].(string); ok {
			d.patterns = append(d.patterns, sg.Pattern{Location: jsontext.Join(ptr, "pattern"), Expr: p})
		}
		if pp, ok := obj["patternProperties"].(map[string]any); ok {
			base := jsontext.Join(ptr, "patternProperties")
			for _, k := range jsontext.SortedKeys(pp) {
				d.patterns = append(d.patterns, sg.Pattern{Location: jsontext.Join(base, k), Expr: k})
			}
		}
		if props, ok := obj["properties"].(map[string]any); ok {
			base := jsontext.Join(ptr, "properties")
			for _, k := range jsontext.SortedKeys(props) {
				d.fields++
				loc := jsontext.Join(base, k)
				line, _ := d.Position(loc)
				d.idents = append(d.idents, sg.Identifier{Name: k, Location: loc, Line: line})
			}
		}
	})
}
