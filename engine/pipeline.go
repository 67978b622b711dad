package engine

import (
	"context"
	"fmt"
	"time"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
)

type compatInput struct {
	candidate sg.Schema
	history   []sg.Schema
	mode      sg.CompatibilityMode
}

// run is the state of one validation call.
type run struct {
	e      *Engine
	start  time.Time
	ctx    context.Context
	text   string
	format sg.SchemaFormat
	v      sg.FormatValidator
	compat *compatInput
	res    sg.ValidationResult

	parsed bool
	doc    sg.Document
	// depth limit errors from a parse whose findings were not merged
	// because the structural stage is disabled
	pendingDepth []sg.ValidationError
}

type stageFunc func(*run)

var pipeline = []struct {
	stage sg.Stage
	fn    stageFunc
}{
	{sg.StageStructural, (*run).structural},
	{sg.StageType, (*run).types},
	{sg.StageSemantic, (*run).semantics},
	{sg.StageCompatibility, (*run).compatibility},
	{sg.StageSecurity, (*run).security},
	{sg.StagePerformance, (*run).performance},
	{sg.StageCustom, (*run).custom},
}

func (e *Engine) run(ctx context.Context, text string, format sg.SchemaFormat, ci *compatInput) sg.ValidationResult {
	r := &run{
		e:      e,
		start:  time.Now(),
		ctx:    sg.WithFailFast(ctx, e.cfg.FailFast),
		text:   text,
		format: format,
		compat: ci,
		res:    sg.NewResult(format),
	}
	r.res.Metrics.SchemaSizeBytes = len(text)

	// The size limit bounds everything else, so it is checked before any
	// parsing and regardless of the enabled stages.
	if !e.sizeGate(&r.res, "schema-size", "Schema", len(text)) {
		e.logger.Info("schema rejected", "format", format.String(), "size", len(text), "limit", e.cfg.MaxSchemaSizeBytes)
		return r.finish()
	}
	v, ok := e.validators[format]
	if !ok {
		r.res.AddError(unsupported(format))
		return r.finish()
	}
	r.v = v

	for _, st := range pipeline {
		if !e.cfg.StageEnabled(st.stage) {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.res.AddError(sg.NewError("validation-cancelled", "", "Validation cancelled: "+err.Error()).
				WithContext("stage", st.stage.String()))
			break
		}
		before := len(r.res.Errors)
		warnings := len(r.res.Warnings)
		st.fn(r)
		failed := countErrors(r.res.Errors[before:])
		r.res.Metrics.AddCustom("stage."+st.stage.String()+".errors", float64(failed))
		e.logger.Debug("validation stage",
			"stage", st.stage.String(),
			"format", format.String(),
			"errors", failed,
			"warnings", len(r.res.Warnings)-warnings,
		)
		if e.cfg.FailFast && failed > 0 {
			break
		}
	}
	return r.finish()
}

func (r *run) finish() sg.ValidationResult {
	if !r.e.cfg.IncludeWarnings {
		r.res.Warnings = nil
	}
	r.res.Metrics.Duration = time.Since(r.start)
	if !r.res.Valid {
		r.e.logger.Info("schema validation failed",
			"format", r.format.String(),
			"errors", countErrors(r.res.Errors),
			"rules", sg.ValidationErrors(r.res.Errors).Rules(),
		)
	}
	return r.res
}

func countErrors(errs []sg.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity == sg.SeverityError {
			n++
		}
	}
	return n
}

// document parses the text once. Findings are merged only by the structural
// stage; when it is disabled the depth limit errors are kept for the
// security stage.
func (r *run) document() (sg.Document, sg.ValidationResult) {
	if r.parsed {
		return r.doc, sg.ValidationResult{Valid: true}
	}
	r.parsed = true
	doc, res := r.v.Parse(r.text, r.e.cfg.MaxRecursionDepth)
	r.doc = doc
	return doc, res
}

func (r *run) parsedDocument() sg.Document {
	if !r.parsed {
		_, res := r.document()
		r.pendingDepth = res.ErrorsByCode(sg.CodeRecursionLimitExceeded)
	}
	return r.doc
}

func (r *run) structural() {
	_, res := r.document()
	r.res.Merge(res)
}

func (r *run) types() {
	doc := r.parsedDocument()
	if doc == nil {
		return
	}
	r.res.Merge(r.v.CheckTypes(doc))
}

func (r *run) semantics() {
	doc := r.parsedDocument()
	if doc == nil {
		return
	}
	r.res.Merge(r.v.CheckSemantics(doc))
}

// compatibility folds the checker's violations into the result: breaking
// violations become errors named compatibility:<rule>, the rest warnings.
func (r *run) compatibility() {
	if r.compat == nil {
		return
	}
	r.res.Metrics.RulesApplied++
	cr, err := r.e.checker.Check(r.ctx, r.compat.candidate, r.compat.history, r.compat.mode)
	if err != nil {
		r.res.AddError(sg.NewError("compatibility", sg.CodeConfigurationError, err.Error()).
			WithSuggestion(i18n.Hint("compatibility", nil)))
		return
	}
	for _, v := range cr.Violations {
		rule := "compatibility:" + v.Rule
		msg := v.Description
		if v.IsBreaking() {
			e := sg.NewError(rule, sg.CodeIncompatibleSchema, msg).
				WithLocation(v.Path).
				WithContext("kind", string(v.Kind)).
				WithContext("mode", cr.Mode.String()).
				WithSuggestion(i18n.Hint(v.Rule, nil))
			if cr.FailedVersion != nil {
				e = e.WithContext("version", cr.FailedVersion.Version.String())
			}
			r.res.AddError(e)
			continue
		}
		sev := sg.SeverityWarning
		if v.Severity == sg.ViolationInfo {
			sev = sg.SeverityInfo
		}
		r.res.AddWarning(sg.NewWarning(rule, msg).
			WithLocation(v.Path).
			WithSeverity(sev).
			WithContext("kind", string(v.Kind)).
			WithSuggestion(i18n.Hint(v.Rule, nil)))
	}
	r.e.logger.Debug("compatibility folded",
		"mode", cr.Mode.String(),
		"compatible", cr.Compatible,
		"checked", len(cr.CheckedVersions),
		"violations", len(cr.Violations),
	)
}

// custom runs the registered rules in order. A panicking rule is reported
// as a rule failure and the remaining rules still run.
func (r *run) custom() {
	for _, rule := range r.e.registry.Snapshot() {
		r.res.Metrics.RulesApplied++
		failed := false
		for _, f := range r.apply(rule) {
			if f.Rule == "" {
				f.Rule = rule.Name()
			}
			if f.Code != sg.CodeRuleFailure {
				f.Severity = min(f.Severity, rule.Severity())
			}
			if f.Severity == sg.SeverityError {
				r.res.AddError(f)
				failed = true
				continue
			}
			r.res.AddWarning(f.AsWarning())
		}
		if failed && r.e.cfg.FailFast {
			return
		}
	}
}

func (r *run) apply(rule sg.ValidationRule) (out []sg.ValidationError) {
	defer func() {
		if p := recover(); p != nil {
			r.e.logger.Warn("custom rule panicked", "rule", rule.Name(), "panic", fmt.Sprint(p))
			out = []sg.ValidationError{
				sg.NewError(rule.Name(), sg.CodeRuleFailure, fmt.Sprintf("Rule execution failed: %v", p)).
					WithSuggestion(i18n.Hint("rule-failure", nil)),
			}
		}
	}()
	return rule.Validate(r.text, r.format)
}
