// Package compat decides whether a candidate schema can replace the versions
// before it under a compatibility mode.
package compat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sg "github.com/reoring/schemaguard"
)

// Checker runs compatibility checks. It holds only configuration and is
// safe for concurrent use.
type Checker struct {
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger; comparisons are logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check compares candidate against history, which must be ordered oldest to
// newest. Pairwise modes compare against the newest version; transitive
// modes walk the whole history and stop at the first incompatible version.
// The only error is an unknown mode or a cancelled context.
func (c *Checker) Check(ctx context.Context, candidate sg.Schema, history []sg.Schema, mode sg.CompatibilityMode) (sg.CompatibilityResult, error) {
	start := time.Now()
	res := sg.CompatibilityResult{Compatible: true, Mode: mode}
	if !mode.Valid() {
		return res, fmt.Errorf("%w: %d", sg.ErrUnknownMode, int(mode))
	}
	if mode == sg.ModeNone || len(history) == 0 {
		res.Duration = time.Since(start)
		return res, nil
	}

	targets := history[len(history)-1:]
	if mode.IsTransitive() {
		targets = history
	}
	for _, prev := range targets {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		vs := c.Compare(candidate, prev, mode.Base())
		res.CheckedVersions = append(res.CheckedVersions, prev.Ref())
		res.Violations = append(res.Violations, vs...)
		if hasBreaking(vs) {
			ref := prev.Ref()
			res.Compatible = false
			res.FailedVersion = &ref
			break
		}
	}

	// The wire format never forgets a field number, so protobuf number reuse
	// is checked against older versions even in pairwise modes.
	if res.Compatible && !mode.IsTransitive() && candidate.Format() == sg.Protobuf && len(history) > 1 {
		c.checkReuse(ctx, candidate, history[:len(history)-1], history[len(history)-1], &res)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// checkReuse compares the candidate with every version before newest. Any
// number newest no longer declares but an older version used with another
// type counts as reuse.
func (c *Checker) checkReuse(ctx context.Context, candidate sg.Schema, older []sg.Schema, newest sg.Schema, res *sg.CompatibilityResult) {
	for _, prev := range older {
		if ctx.Err() != nil || prev.Format() != sg.Protobuf {
			continue
		}
		vs, err := reusedNumbers(candidate.Content(), prev.Content(), newest.Content())
		if err != nil {
			continue
		}
		if len(vs) > 0 {
			res.Violations = append(res.Violations, vs...)
			ref := prev.Ref()
			res.Compatible = false
			res.FailedVersion = &ref
		}
		res.CheckedVersions = append(res.CheckedVersions, prev.Ref())
		if !res.Compatible {
			return
		}
	}
}

// Compare diffs one pair under a pairwise mode (None, Backward, Forward or
// Full). Transitive modes are mapped onto their base mode.
func (c *Checker) Compare(candidate, previous sg.Schema, mode sg.CompatibilityMode) []sg.Violation {
	mode = mode.Base()
	if mode == sg.ModeNone || candidate.Format() == previous.Format() && candidate.ContentHash() == previous.ContentHash() {
		return nil
	}
	if candidate.Format() != previous.Format() {
		return []sg.Violation{
			sg.Breaking("schema-format", sg.KindFormatChanged, "schema.format",
				fmt.Sprintf("format changed from %s to %s", previous.Format(), candidate.Format())).
				WithValues(previous.Format().String(), candidate.Format().String()),
		}
	}
	var out []sg.Violation
	if mode == sg.ModeBackward || mode == sg.ModeFull {
		out = append(out, c.diff(candidate.Format(), candidate.Content(), previous.Content(), true)...)
	}
	if mode == sg.ModeForward || mode == sg.ModeFull {
		out = append(out, c.diff(candidate.Format(), previous.Content(), candidate.Content(), false)...)
	}
	if mode == sg.ModeFull {
		out = dedupe(out)
	}
	c.logger.Debug("compatibility compare",
		slog.String("subject", candidate.Subject()),
		slog.String("candidate", candidate.Version().String()),
		slog.String("previous", previous.Version().String()),
		slog.String("mode", mode.String()),
		slog.Int("violations", len(out)),
		slog.Bool("breaking", hasBreaking(out)))
	return out
}

func (c *Checker) diff(format sg.SchemaFormat, reader, writer string, readerIsNew bool) []sg.Violation {
	var (
		vs  []sg.Violation
		err error
	)
	switch format {
	case sg.JSONSchema:
		vs, err = diffJSONSchema(reader, writer)
	case sg.Avro:
		vs, err = diffAvro(reader, writer)
	case sg.Protobuf:
		vs, err = diffProtobuf(reader, writer, readerIsNew)
	default:
		err = fmt.Errorf("%w: %s", sg.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return []sg.Violation{
			sg.Breaking("schema-parse", sg.KindUnclassified, "", fmt.Sprintf("cannot compare schemas: %v", err)),
		}
	}
	return vs
}

// dedupe keeps the first violation for each (rule, path).
func dedupe(vs []sg.Violation) []sg.Violation {
	type key struct{ rule, path string }
	seen := make(map[key]bool, len(vs))
	out := vs[:0:0]
	for _, v := range vs {
		k := key{v.Rule, v.Path}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func hasBreaking(vs []sg.Violation) bool {
	for _, v := range vs {
		if v.IsBreaking() {
			return true
		}
	}
	return false
}
