package engine

import (
	"fmt"
	"regexp/syntax"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/i18n"
)

// complexityWarnThreshold is the score above which a schema is reported as
// too complex.
const complexityWarnThreshold = 1000

// performance flags long and catastrophic regular expressions, deep nesting
// and large schemas, and records the complexity score.
func (r *run) performance() {
	doc := r.parsedDocument()
	if doc == nil {
		return
	}
	r.res.Metrics.RulesApplied += 3
	cfg := r.e.cfg

	nested := 0
	for _, p := range doc.Patterns() {
		if len(p.Expr) > cfg.MaxPatternLength {
			r.res.AddWarning(sg.NewWarning("performance-pattern-length",
				fmt.Sprintf("Regular expression is %d characters long, more than %d", len(p.Expr), cfg.MaxPatternLength)).
				WithLocation(p.Location).
				WithSuggestion(i18n.Hint("performance-pattern-length", nil)))
		}
		if NestedQuantifier(p.Expr) {
			nested++
			r.res.AddWarning(sg.NewWarning("performance-nested-quantifier",
				fmt.Sprintf("Regular expression %q nests unbounded quantifiers", p.Expr)).
				WithLocation(p.Location).
				WithSuggestion(i18n.Hint("performance-nested-quantifier", nil)))
		}
	}

	if half := cfg.MaxRecursionDepth / 2; doc.Depth() > half {
		r.res.AddWarning(sg.NewWarning("performance-deep-nesting",
			fmt.Sprintf("Schema nesting depth %d is above half of the limit (%d)", doc.Depth(), cfg.MaxRecursionDepth)).
			WithSuggestion(i18n.Hint("performance-deep-nesting", nil)))
	}

	score := ComplexityScore(doc, nested)
	r.res.Metrics.ComplexityScore = max(r.res.Metrics.ComplexityScore, score)
	if score > complexityWarnThreshold {
		r.res.AddWarning(sg.NewWarning("performance-complexity",
			fmt.Sprintf("Complexity score %d exceeds %d", score, complexityWarnThreshold)).
			WithContext("score", fmt.Sprint(score)).
			WithSuggestion(i18n.Hint("performance-complexity", nil)))
	}
}

// ComplexityScore weighs the declared fields, the nesting depth and the
// regular expressions of doc. nested is the number of patterns with nested
// quantifiers.
func ComplexityScore(doc sg.Document, nested int) int {
	return doc.FieldCount() + 3*doc.Depth() + 5*len(doc.Patterns()) + 25*nested
}

// NestedQuantifier reports whether expr repeats a subexpression made only
// of unbounded repeats, like (a+)+ or (\d*\s*)*. The outer repeat can split
// the input in exponentially many ways, so most regex engines backtrack
// badly. A literal inside the group, as in ([a-z]+-)*, anchors each
// iteration and is not flagged. Patterns Go cannot parse are not flagged.
func NestedQuantifier(expr string) bool {
	re, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return false
	}
	return nestedRepeat(re)
}

func nestedRepeat(re *syntax.Regexp) bool {
	if unbounded(re) && ambiguous(re.Sub[0]) {
		return true
	}
	for _, sub := range re.Sub {
		if nestedRepeat(sub) {
			return true
		}
	}
	return false
}

func unbounded(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		return true
	case syntax.OpRepeat:
		return re.Max == -1
	}
	return false
}

// ambiguous reports whether every part of re can repeat.
func ambiguous(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpCapture:
		return ambiguous(re.Sub[0])
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !ambiguous(sub) {
				return false
			}
		}
		return len(re.Sub) > 0
	case syntax.OpAlternate:
		for _, sub := range re.Sub {
			if ambiguous(sub) {
				return true
			}
		}
		return false
	}
	return unbounded(re)
}
