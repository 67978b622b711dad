package schemaguard

import (
	"maps"
	"time"
)

// ValidationError is a single finding that, at SeverityError, makes a
// schema invalid.
type ValidationError struct {
	Rule     string    `json:"rule"`
	Code     ErrorCode `json:"code,omitempty"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	// Location is a JSON Pointer into the schema (for example
	// /properties/id/type) or a dotted message path for protobuf.
	Location   string            `json:"location,omitempty"`
	Line       int               `json:"line,omitempty"`
	Column     int               `json:"column,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// NewError builds an Error-severity finding.
func NewError(rule string, code ErrorCode, msg string) ValidationError {
	return ValidationError{Rule: rule, Code: code, Message: msg, Severity: SeverityError}
}

func (e ValidationError) WithLocation(loc string) ValidationError {
	e.Location = loc
	return e
}

func (e ValidationError) WithPosition(line, col int) ValidationError {
	e.Line, e.Column = line, col
	return e
}

func (e ValidationError) WithSuggestion(s string) ValidationError {
	e.Suggestion = s
	return e
}

func (e ValidationError) WithSeverity(s Severity) ValidationError {
	e.Severity = s
	return e
}

// WithContext returns a copy with k=v added; the receiver's map is not shared.
func (e ValidationError) WithContext(k, v string) ValidationError {
	m := make(map[string]string, len(e.Context)+1)
	maps.Copy(m, e.Context)
	m[k] = v
	e.Context = m
	return e
}

// AsWarning converts a finding into a warning.
func (e ValidationError) AsWarning() ValidationWarning {
	sev := e.Severity
	if sev == SeverityError {
		sev = SeverityWarning
	}
	return ValidationWarning{
		Rule: e.Rule, Message: e.Message, Severity: sev, Location: e.Location,
		Line: e.Line, Column: e.Column, Suggestion: e.Suggestion, Context: e.Context,
	}
}

// ValidationWarning is an advisory finding; it never affects validity.
type ValidationWarning struct {
	Rule       string            `json:"rule"`
	Message    string            `json:"message"`
	Severity   Severity          `json:"severity"`
	Location   string            `json:"location,omitempty"`
	Line       int               `json:"line,omitempty"`
	Column     int               `json:"column,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// NewWarning builds a Warning-severity finding.
func NewWarning(rule, msg string) ValidationWarning {
	return ValidationWarning{Rule: rule, Message: msg, Severity: SeverityWarning}
}

func (w ValidationWarning) WithLocation(loc string) ValidationWarning {
	w.Location = loc
	return w
}

func (w ValidationWarning) WithPosition(line, col int) ValidationWarning {
	w.Line, w.Column = line, col
	return w
}

func (w ValidationWarning) WithSuggestion(s string) ValidationWarning {
	w.Suggestion = s
	return w
}

func (w ValidationWarning) WithSeverity(s Severity) ValidationWarning {
	w.Severity = s
	return w
}

func (w ValidationWarning) WithContext(k, v string) ValidationWarning {
	m := make(map[string]string, len(w.Context)+1)
	maps.Copy(m, w.Context)
	m[k] = v
	w.Context = m
	return w
}

// ValidationMetrics records what a validation call did.
type ValidationMetrics struct {
	Duration          time.Duration      `json:"duration"`
	RulesApplied      int                `json:"rules_applied"`
	FieldsValidated   int                `json:"fields_validated"`
	SchemaSizeBytes   int                `json:"schema_size_bytes"`
	MaxRecursionDepth int                `json:"max_recursion_depth"`
	ComplexityScore   int                `json:"complexity_score"`
	Custom            map[string]float64 `json:"custom,omitempty"`
}

// AddCustom adds delta to the named custom metric.
func (m *ValidationMetrics) AddCustom(name string, delta float64) {
	if m.Custom == nil {
		m.Custom = make(map[string]float64)
	}
	m.Custom[name] += delta
}

// ValidationResult is the complete outcome of one validation call.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Format   SchemaFormat        `json:"format"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
	Metrics  ValidationMetrics   `json:"metrics"`
}

// NewResult returns an empty, valid result for format.
func NewResult(format SchemaFormat) ValidationResult {
	return ValidationResult{Valid: true, Format: format}
}

// AddError appends e. Only SeverityError entries make the result invalid.
func (r *ValidationResult) AddError(e ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.Valid = false
	}
}

// AddWarning appends w.
func (r *ValidationResult) AddWarning(w ValidationWarning) {
	r.Warnings = append(r.Warnings, w)
}

// Merge folds other into r: validity is ANDed, findings appended in order,
// counters summed and maxima kept.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Valid = r.Valid && other.Valid
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Metrics.RulesApplied += other.Metrics.RulesApplied
	r.Metrics.FieldsValidated += other.Metrics.FieldsValidated
	r.Metrics.MaxRecursionDepth = max(r.Metrics.MaxRecursionDepth, other.Metrics.MaxRecursionDepth)
	r.Metrics.ComplexityScore = max(r.Metrics.ComplexityScore, other.Metrics.ComplexityScore)
	r.Metrics.SchemaSizeBytes = max(r.Metrics.SchemaSizeBytes, other.Metrics.SchemaSizeBytes)
	for k, v := range other.Metrics.Custom {
		r.Metrics.AddCustom(k, v)
	}
}

// HasErrors reports whether any Error-severity finding is present.
func (r ValidationResult) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasRule reports whether an error or warning with the given rule exists.
func (r ValidationResult) HasRule(rule string) bool {
	for _, e := range r.Errors {
		if e.Rule == rule {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Rule == rule {
			return true
		}
	}
	return false
}

// ErrorsByCode returns the errors carrying code, in order.
func (r ValidationResult) ErrorsByCode(code ErrorCode) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

// Err returns nil for a valid result and a *ValidationFailedError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationFailedError{Result: r}
}
