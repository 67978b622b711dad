// Package engine runs the seven-stage schema validation pipeline:
// structural, type, semantic, compatibility, security, performance and
// custom rules, in that order.
//
// An Engine holds an immutable configuration, one validator per format, a
// compatibility checker and a rule registry. It is safe for concurrent use;
// each call owns its result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/compat"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/rules"
	"github.com/reoring/schemaguard/validator/avro"
	"github.com/reoring/schemaguard/validator/jsonschema"
	"github.com/reoring/schemaguard/validator/protobuf"
)

// Engine validates schema text. Build one with New.
type Engine struct {
	cfg        sg.ValidationConfig
	logger     *slog.Logger
	validators map[sg.SchemaFormat]sg.FormatValidator
	checker    *compat.Checker
	registry   *rules.Registry
	deny       []denied
}

type options struct {
	cfg        sg.ValidationConfig
	logger     *slog.Logger
	rules      []sg.ValidationRule
	validators []sg.FormatValidator
}

// Option configures New. Options apply in order, so WithFailFast after
// WithConfig overrides the configuration's fail-fast flag.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg sg.ValidationConfig) Option {
	return func(o *options) { o.cfg = cfg.Clone() }
}

// WithLogger sets the logger. Stages log at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRules registers custom rules in order.
func WithRules(rs ...sg.ValidationRule) Option {
	return func(o *options) { o.rules = append(o.rules, rs...) }
}

// WithValidator replaces the built-in validator for v.Format().
func WithValidator(v sg.FormatValidator) Option {
	return func(o *options) { o.validators = append(o.validators, v) }
}

// WithFailFast stops the pipeline after the first stage or custom rule that
// reports an error.
func WithFailFast(enabled bool) Option {
	return func(o *options) { o.cfg.FailFast = enabled }
}

// WithMaxSchemaSize caps the schema text length in bytes. Larger schemas get
// a single schema-size error and are not parsed.
func WithMaxSchemaSize(bytes int) Option {
	return func(o *options) { o.cfg.MaxSchemaSizeBytes = bytes }
}

// WithMaxRecursionDepth sets the nesting limit shared by the parsers and the
// security stage.
func WithMaxRecursionDepth(depth int) Option {
	return func(o *options) { o.cfg.MaxRecursionDepth = depth }
}

// New builds an engine. An invalid configuration, a nil validator or a
// rule without a name yields a *sg.ConfigurationError.
func New(opts ...Option) (*Engine, error) {
	o := options{cfg: sg.DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      o.cfg,
		logger:   o.logger,
		checker:  compat.New(compat.WithLogger(o.logger)),
		registry: rules.NewRegistry(),
		validators: map[sg.SchemaFormat]sg.FormatValidator{
			sg.JSONSchema: jsonschema.New(jsonschema.WithMaxDepth(o.cfg.MaxRecursionDepth)),
			sg.Avro:       avro.New(avro.WithMaxDepth(o.cfg.MaxRecursionDepth)),
			sg.Protobuf:   protobuf.New(protobuf.WithMaxDepth(o.cfg.MaxRecursionDepth)),
		},
	}
	for _, v := range o.validators {
		if v == nil {
			return nil, &sg.ConfigurationError{Field: "validator", Reason: "validator is nil"}
		}
		if !v.Format().Valid() {
			return nil, &sg.ConfigurationError{Field: "validator", Reason: "validator for unsupported format " + v.Format().String()}
		}
		e.validators[v.Format()] = v
	}
	for _, r := range o.rules {
		if err := e.registry.Add(r); err != nil {
			return nil, err
		}
	}
	for _, p := range o.cfg.DenyPatterns {
		e.deny = append(e.deny, denyPattern(p))
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() sg.ValidationConfig { return e.cfg.Clone() }

// Validate runs every enabled stage except compatibility, which needs a
// history (see ValidateWithHistory).
func (e *Engine) Validate(ctx context.Context, text string, format sg.SchemaFormat) sg.ValidationResult {
	return e.run(ctx, text, format, nil)
}

// ValidateSchema validates the content of s in its declared format.
func (e *Engine) ValidateSchema(ctx context.Context, s sg.Schema) sg.ValidationResult {
	return e.run(ctx, s.Content(), s.Format(), nil)
}

// ValidateWithHistory is Validate with the compatibility stage checking
// candidate against history (oldest first) under mode.
func (e *Engine) ValidateWithHistory(ctx context.Context, candidate sg.Schema, history []sg.Schema, mode sg.CompatibilityMode) sg.ValidationResult {
	return e.run(ctx, candidate.Content(), candidate.Format(), &compatInput{
		candidate: candidate,
		history:   history,
		mode:      mode,
	})
}

// ValidateInstance validates a JSON instance against schema text. Size
// limits apply to both inputs.
func (e *Engine) ValidateInstance(ctx context.Context, text string, format sg.SchemaFormat, instance []byte) sg.ValidationResult {
	start := time.Now()
	res := sg.NewResult(format)
	res.Metrics.SchemaSizeBytes = len(text)
	switch {
	case !e.sizeGate(&res, "schema-size", "Schema", len(text)):
	case !e.sizeGate(&res, "instance-size", "Instance", len(instance)):
	default:
		v, ok := e.validators[format]
		if !ok {
			res.AddError(unsupported(format))
			break
		}
		res.Merge(v.ValidateInstance(sg.WithFailFast(ctx, e.cfg.FailFast), text, instance))
	}
	if !e.cfg.IncludeWarnings {
		res.Warnings = nil
	}
	res.Metrics.Duration = time.Since(start)
	return res
}

// CheckCompatibility runs the compatibility checker directly.
func (e *Engine) CheckCompatibility(ctx context.Context, candidate sg.Schema, history []sg.Schema, mode sg.CompatibilityMode) (sg.CompatibilityResult, error) {
	return e.checker.Check(ctx, candidate, history, mode)
}

// AddRule registers a custom rule. Calls already running keep the rule list
// they started with.
func (e *Engine) AddRule(rule sg.ValidationRule) error {
	if err := e.registry.Add(rule); err != nil {
		return err
	}
	e.logger.Debug("custom rule registered", "rule", rule.Name(), "severity", rule.Severity().String())
	return nil
}

// ListRules returns the custom rule names in registration order.
func (e *Engine) ListRules() []string { return e.registry.Names() }

// Validate is a one-shot helper for callers that do not keep an engine.
// The error is non-nil only for an invalid configuration.
func Validate(ctx context.Context, text string, format sg.SchemaFormat, cfg sg.ValidationConfig) (sg.ValidationResult, error) {
	e, err := New(WithConfig(cfg))
	if err != nil {
		return sg.ValidationResult{}, err
	}
	return e.Validate(ctx, text, format), nil
}

// sizeGate reports whether n is within the size limit, adding a
// SizeLimitExceeded error to res when it is not.
func (e *Engine) sizeGate(res *sg.ValidationResult, rule, what string, n int) bool {
	limit := e.cfg.MaxSchemaSizeBytes
	if n <= limit {
		return true
	}
	res.AddError(sg.NewError(rule, sg.CodeSizeLimitExceeded,
		fmt.Sprintf("%s size (%d bytes) exceeds maximum allowed size (%d bytes)", what, n, limit)).
		WithContext("limit", fmt.Sprint(limit)).
		WithSuggestion(i18n.Hint(rule, nil)))
	return false
}

func unsupported(format sg.SchemaFormat) sg.ValidationError {
	return sg.NewError("unsupported-format", sg.CodeUnsupportedFormat,
		fmt.Sprintf("no validator for format %s", format)).
		WithSuggestion(i18n.Hint("unsupported-format", nil))
}
