package schemaguard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies a ValidationError (exported consts for IDE completion
// and type safety by convention).
type ErrorCode string

const (
	CodeParseError             ErrorCode = "parse_error"
	CodeTypeError              ErrorCode = "type_error"
	CodeSemanticError          ErrorCode = "semantic_error"
	CodeSecurityViolation      ErrorCode = "security_violation"
	CodeSizeLimitExceeded      ErrorCode = "size_limit_exceeded"
	CodeRecursionLimitExceeded ErrorCode = "recursion_limit_exceeded"
	CodeIncompatibleSchema     ErrorCode = "incompatible_schema"
	CodeUnsupportedFormat      ErrorCode = "unsupported_format"
	CodeAmbiguousFormat        ErrorCode = "ambiguous_format"
	CodeConfigurationError     ErrorCode = "configuration_error"
	CodeRuleFailure            ErrorCode = "rule_failure"
)

var (
	ErrAmbiguousFormat    = errors.New("schemaguard: ambiguous schema format")
	ErrUnsupportedFormat  = errors.New("schemaguard: unsupported schema format")
	ErrInvalidConfig      = errors.New("schemaguard: invalid configuration")
	ErrIncompatibleSchema = errors.New("schemaguard: incompatible schema")
	ErrValidationFailed   = errors.New("schemaguard: schema validation failed")
	ErrInvalidVersion     = errors.New("schemaguard: invalid semantic version")
	ErrUnknownMode        = errors.New("schemaguard: unknown compatibility mode")
)

// AmbiguousFormatError is returned by DetectFormat when the text matches no
// format or more than one.
type AmbiguousFormatError struct {
	Candidates []SchemaFormat
}

func (e *AmbiguousFormatError) Error() string {
	if len(e.Candidates) == 0 {
		return "schemaguard: cannot detect schema format: no format markers found"
	}
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.String()
	}
	return "schemaguard: cannot detect schema format: matches " + strings.Join(names, ", ")
}

func (e *AmbiguousFormatError) Unwrap() error { return ErrAmbiguousFormat }

// ConfigurationError reports an invalid ValidationConfig field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("schemaguard: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfig }

// IncompatibleSchemaError carries the breaking violations of a failed
// compatibility check.
type IncompatibleSchemaError struct {
	Mode          CompatibilityMode
	FailedVersion *VersionRef
	Violations    []Violation
}

func (e *IncompatibleSchemaError) Error() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "schemaguard: incompatible schema (%s)", e.Mode)
	if e.FailedVersion != nil {
		fmt.Fprintf(b, " against version %s", e.FailedVersion.Version)
	}
	const maxShown = 3
	for i, v := range e.Violations {
		if i == maxShown {
			fmt.Fprintf(b, "; ... (total %d)", len(e.Violations))
			break
		}
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", v.Rule, v.Path)
	}
	return b.String()
}

func (e *IncompatibleSchemaError) Unwrap() error { return ErrIncompatibleSchema }

// ValidationFailedError wraps a ValidationResult that is not valid.
type ValidationFailedError struct {
	Result ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return "schemaguard: validation failed: " + ValidationErrors(e.Result.Errors).Error()
}

func (e *ValidationFailedError) Unwrap() error { return ErrValidationFailed }

// ValidationErrors is a collection of validation errors that implements error.
type ValidationErrors []ValidationError

// Error summarizes the first few errors.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(ve)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := ve[i]
		// e.g. avro-duplicate-field at /fields/2
		if it.Location != "" {
			fmt.Fprintf(b, "%s at %s", it.Rule, it.Location)
		} else {
			b.WriteString(it.Rule)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Rules returns the distinct rule names in the collection, sorted.
func (ve ValidationErrors) Rules() []string {
	seen := make(map[string]struct{}, len(ve))
	for _, e := range ve {
		seen[e.Rule] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// AsValidationErrors extracts the errors of a failed validation from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	if err == nil {
		return nil, false
	}
	var vf *ValidationFailedError
	if errors.As(err, &vf) {
		return ValidationErrors(vf.Result.Errors), true
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
