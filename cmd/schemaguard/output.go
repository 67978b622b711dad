package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	sg "github.com/reoring/schemaguard"
)

type printer struct {
	w    io.Writer
	ok   func(a ...any) string
	bad  func(a ...any) string
	warn func(a ...any) string
	dim  func(a ...any) string
}

// newPrinter colors output only when w is a terminal and noColor is unset.
func newPrinter(w io.Writer, noColor bool) *printer {
	colored := !noColor
	if f, ok := w.(*os.File); !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		colored = false
	}
	mk := func(attr ...color.Attribute) func(a ...any) string {
		c := color.New(attr...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &printer{
		w:    w,
		ok:   mk(color.FgGreen, color.Bold),
		bad:  mk(color.FgRed, color.Bold),
		warn: mk(color.FgYellow),
		dim:  mk(color.Faint),
	}
}

func (p *printer) json(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encoding output: %v", err)
	}
}

func (p *printer) detected(path string, f sg.SchemaFormat, summary string, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "%s: %s %s\n", path, p.bad("unknown"), p.dim(err.Error()))
		return
	}
	if summary != "" {
		summary = " " + p.dim(summary)
	}
	fmt.Fprintf(p.w, "%s: %s%s\n", path, p.ok(f.String()), summary)
}

func (p *printer) result(path string, res sg.ValidationResult) {
	status := p.ok("valid")
	if !res.Valid {
		status = p.bad("invalid")
	}
	fmt.Fprintf(p.w, "%s: %s (%s, %d errors, %d warnings, %s)\n",
		path, status, res.Format, len(res.Errors), len(res.Warnings), res.Metrics.Duration)
	for _, e := range res.Errors {
		label := p.bad("error")
		if e.Severity != sg.SeverityError {
			label = p.warn(e.Severity.String())
		}
		fmt.Fprintf(p.w, "  %s %s%s: %s\n", label, e.Rule, p.where(e.Location, e.Line, e.Column), e.Message)
		if e.Suggestion != "" {
			fmt.Fprintf(p.w, "    %s\n", p.dim("hint: "+e.Suggestion))
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(p.w, "  %s %s%s: %s\n", p.warn(w.Severity.String()), w.Rule, p.where(w.Location, w.Line, w.Column), w.Message)
		if w.Suggestion != "" {
			fmt.Fprintf(p.w, "    %s\n", p.dim("hint: "+w.Suggestion))
		}
	}
}

func (p *printer) where(loc string, line, col int) string {
	var b strings.Builder
	if loc != "" {
		b.WriteString(" at " + loc)
	}
	if line > 0 {
		fmt.Fprintf(&b, " (%d:%d)", line, col)
	}
	return p.dim(b.String())
}

func (p *printer) compat(res sg.CompatibilityResult) {
	status := p.ok("compatible")
	if !res.Compatible {
		status = p.bad("incompatible")
	}
	fmt.Fprintf(p.w, "%s under %s, checked %d version(s)\n", status, res.Mode, len(res.CheckedVersions))
	if res.FailedVersion != nil {
		fmt.Fprintf(p.w, "  failed against %s@%s\n", res.FailedVersion.Subject, res.FailedVersion.Version)
	}
	for _, v := range res.Violations {
		label := p.dim(v.Severity.String())
		if v.IsBreaking() {
			label = p.bad(v.Severity.String())
		} else if v.Severity == sg.ViolationWarning {
			label = p.warn(v.Severity.String())
		}
		fmt.Fprintf(p.w, "  %s %s [%s] %s: %s\n", label, v.Rule, v.Kind, v.Path, v.Description)
		if v.OldValue != "" || v.NewValue != "" {
			fmt.Fprintf(p.w, "    %s\n", p.dim(fmt.Sprintf("%q -> %q", v.OldValue, v.NewValue)))
		}
	}
}

// diff prints a line diff from the previous version to the candidate.
func (p *printer) diff(prev, candidate sg.Schema) {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(prev.Content(), candidate.Content())
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	fmt.Fprintf(p.w, "--- %s@%s\n+++ %s@%s\n", prev.Subject(), prev.Version(), candidate.Subject(), candidate.Version())
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			line = strings.TrimSuffix(line, "\n")
			switch d.Type {
			case diffpatch.DiffInsert:
				fmt.Fprintln(p.w, p.ok("+"+line))
			case diffpatch.DiffDelete:
				fmt.Fprintln(p.w, p.bad("-"+line))
			default:
				fmt.Fprintln(p.w, " "+line)
			}
		}
	}
}
