package rules

import (
	"strings"

	sg "github.com/reoring/schemaguard"
)

// Predicate decides whether a conditional rule applies to a schema.
type Predicate func(text string, format sg.SchemaFormat) bool

// Conditional composes conditional execution of rules.
type Conditional struct {
	pred Predicate
	all  []Conditional // composite AND
	any  []Conditional // composite OR
}

// If builds a conditional from a predicate.
func If(p Predicate) Conditional { return Conditional{pred: p} }

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Conditional) Conditional { return Conditional{all: conds} }

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Conditional) Conditional { return Conditional{any: conds} }

// And combines the receiver with additional conditions using logical AND.
func (c Conditional) And(others ...Conditional) Conditional {
	return IfAll(append([]Conditional{c}, others...)...)
}

// Or combines the receiver with additional conditions using logical OR.
func (c Conditional) Or(others ...Conditional) Conditional {
	return IfAny(append([]Conditional{c}, others...)...)
}

// Then returns a rule named name that runs rules in order when the condition
// holds. Its severity is the highest of the wrapped rules.
func (c Conditional) Then(name string, rules ...sg.ValidationRule) sg.ValidationRule {
	sev := sg.SeverityInfo
	for _, r := range rules {
		if r != nil {
			sev = max(sev, r.Severity())
		}
	}
	return Func(name, sev, func(text string, format sg.SchemaFormat) []sg.ValidationError {
		if !c.eval(text, format) {
			return nil
		}
		var all []sg.ValidationError
		for _, r := range rules {
			if r == nil {
				continue
			}
			all = append(all, r.Validate(text, format)...)
		}
		return all
	})
}

func (c Conditional) eval(text string, format sg.SchemaFormat) bool {
	if len(c.all) > 0 {
		for _, it := range c.all {
			if !it.eval(text, format) {
				return false
			}
		}
		return true
	}
	if len(c.any) > 0 {
		for _, it := range c.any {
			if it.eval(text, format) {
				return true
			}
		}
		return false
	}
	return c.pred != nil && c.pred(text, format)
}

// FormatIs matches schemas of any of the given formats.
func FormatIs(formats ...sg.SchemaFormat) Predicate {
	return func(_ string, format sg.SchemaFormat) bool {
		for _, f := range formats {
			if f == format {
				return true
			}
		}
		return false
	}
}

// Contains matches schema text containing substr.
func Contains(substr string) Predicate {
	return func(text string, _ sg.SchemaFormat) bool { return strings.Contains(text, substr) }
}

// LargerThan matches schema text longer than n bytes.
func LargerThan(n int) Predicate {
	return func(text string, _ sg.SchemaFormat) bool { return len(text) > n }
}
