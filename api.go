package schemaguard

import "context"

// Pattern is a regular expression declared by a schema.
type Pattern struct {
	Location string
	Expr     string
}

// Document is a parsed schema handed from the structural stage to the later
// stages.
type Document interface {
	Format() SchemaFormat
	// Depth is the maximum nesting depth of the parsed representation.
	Depth() int
	// FieldCount is the number of field/property declarations.
	FieldCount() int
	// Patterns lists the regular expressions the schema declares.
	Patterns() []Pattern
	// Tree returns the decoded JSON tree for JSON-based formats, nil otherwise.
	Tree() any
	// Identifiers returns the declared names (fields, types, symbols) with
	// their locations, for denylist scanning.
	Identifiers() []Identifier
}

// Identifier is a declared name and where it was declared.
type Identifier struct {
	Name     string
	Location string
	Line     int
}

// FormatValidator parses and checks schema text of one format.
//
// Validate runs Parse, CheckTypes and CheckSemantics in order and merges
// their results. Implementations must be safe for concurrent use.
type FormatValidator interface {
	Format() SchemaFormat
	// Parse is the structural stage. The returned Document is nil when the
	// text could not be parsed.
	Parse(text string, maxDepth int) (Document, ValidationResult)
	CheckTypes(doc Document) ValidationResult
	CheckSemantics(doc Document) ValidationResult
	Validate(ctx context.Context, text string) ValidationResult
	ValidateInstance(ctx context.Context, text string, instance []byte) ValidationResult
}

// ValidationRule is a pluggable, stateless check over raw schema text. The
// same instance is invoked by concurrent callers.
type ValidationRule interface {
	Name() string
	Severity() Severity
	Validate(text string, format SchemaFormat) []ValidationError
}

// ---- Call context options ----

type contextKey int

const (
	_ctxKeyFailFast contextKey = iota
)

// WithFailFast returns a child context that marks fail-fast validation. The
// engine sets it from its configuration so rules can stop early.
func WithFailFast(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, _ctxKeyFailFast, enabled)
}

// IsFailFast reports whether the current call should stop on the first error.
func IsFailFast(ctx context.Context) bool {
	v := ctx.Value(_ctxKeyFailFast)
	b, _ := v.(bool)
	return b
}

// RunStages runs the structural, type and semantic stages of v on text. It
// is the shared implementation of FormatValidator.Validate.
func RunStages(ctx context.Context, v FormatValidator, text string, maxDepth int) ValidationResult {
	doc, res := v.Parse(text, maxDepth)
	if doc == nil {
		return res
	}
	if IsFailFast(ctx) && !res.Valid {
		return res
	}
	res.Merge(v.CheckTypes(doc))
	if IsFailFast(ctx) && !res.Valid {
		return res
	}
	res.Merge(v.CheckSemantics(doc))
	return res
}
