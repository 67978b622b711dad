package engine

import (
	"fmt"
	"regexp"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
	"github.com/reoring/schemaguard/internal/jsontext"
	"github.com/reoring/schemaguard/rules"
)

type denied struct {
	token string
	re    *regexp.Regexp
}

// denyPattern matches p as a whole word, case-insensitively. Underscores
// count as word characters, so "exec" does not match "exec_time".
func denyPattern(p string) denied {
	return denied{
		token: p,
		re:    regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_])(` + regexp.QuoteMeta(p) + `)(?:$|[^A-Za-z0-9_])`),
	}
}

// positioner is implemented by documents that can map a JSON Pointer back to
// the source text.
type positioner interface {
	Position(ptr string) (line, col int)
}

// security scans for denied tokens and enforces the nesting limit. With a
// parsed document the scan covers keys and string values (JSON formats) or
// declared identifiers (protobuf); otherwise the raw text is scanned.
func (r *run) security() {
	r.res.Metrics.RulesApplied += 2
	doc := r.parsedDocument()
	for _, e := range r.pendingDepth {
		r.res.AddError(e)
	}
	r.pendingDepth = nil

	switch {
	case len(r.e.deny) == 0:
	case doc == nil:
		r.scanText()
	case doc.Tree() != nil:
		r.scanTree(doc, doc.Tree(), "")
	default:
		for _, id := range doc.Identifiers() {
			r.scanValue(id.Name, "identifier", id.Location, id.Line, 0)
		}
	}

	if doc != nil && doc.Depth() > r.e.cfg.MaxRecursionDepth {
		limit := r.e.cfg.MaxRecursionDepth
		r.res.AddError(sg.NewError("security-recursion-depth", sg.CodeRecursionLimitExceeded,
			fmt.Sprintf("Schema nesting depth (%d) exceeds maximum (%d)", doc.Depth(), limit)).
			WithContext("limit", fmt.Sprint(limit)).
			WithSuggestion(i18n.Hint("security-recursion-depth", map[string]string{"limit": fmt.Sprint(limit)})))
	}
}

func (r *run) scanTree(doc sg.Document, node any, ptr string) {
	switch v := node.(type) {
	case map[string]any:
		for _, k := range jsontext.SortedKeys(v) {
			child := jsontext.Join(ptr, k)
			line, col := position(doc, child)
			r.scanValue(k, "key", child, line, col)
			r.scanTree(doc, v[k], child)
		}
	case []any:
		for i, it := range v {
			r.scanTree(doc, it, jsontext.JoinIndex(ptr, i))
		}
	case string:
		line, col := position(doc, ptr)
		r.scanValue(v, "string value", ptr, line, col)
	}
}

func position(doc sg.Document, ptr string) (line, col int) {
	if p, ok := doc.(positioner); ok {
		return p.Position(ptr)
	}
	return 0, 0
}

func (r *run) scanValue(s, what, loc string, line, col int) {
	for _, d := range r.e.deny {
		m := d.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		r.res.AddError(sg.NewError("security-denylist", sg.CodeSecurityViolation,
			fmt.Sprintf("Denied token %q in %s", m[1], what)).
			WithLocation(loc).
			WithPosition(line, col).
			WithContext("pattern", d.token).
			WithSuggestion(i18n.Hint("security-denylist", nil)))
	}
}

func (r *run) scanText() {
	for _, d := range r.e.deny {
		for _, loc := range d.re.FindAllStringSubmatchIndex(r.text, -1) {
			line, col := rules.LineCol(r.text, loc[2])
			r.res.AddError(sg.NewError("security-denylist", sg.CodeSecurityViolation,
				fmt.Sprintf("Denied token %q", r.text[loc[2]:loc[3]])).
				WithPosition(line, col).
				WithContext("pattern", d.token).
				WithSuggestion(i18n.Hint("security-denylist", nil)))
		}
	}
}
