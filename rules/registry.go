package rules

import (
	"slices"
	"sync"

	sg "github.com/reoring/schemaguard"
)

// Registry is an ordered, concurrency-safe list of custom rules. Rules run
// in registration order; duplicate names are kept.
type Registry struct {
	mu    sync.RWMutex
	rules []sg.ValidationRule
}

// NewRegistry returns a registry holding rules. Nil entries are skipped.
func NewRegistry(rules ...sg.ValidationRule) *Registry {
	r := &Registry{}
	for _, rule := range rules {
		_ = r.Add(rule)
	}
	return r
}

// Add appends rule. Calls in flight keep the snapshot they started with.
func (r *Registry) Add(rule sg.ValidationRule) error {
	if rule == nil {
		return &sg.ConfigurationError{Field: "rule", Reason: "rule is nil"}
	}
	if rule.Name() == "" {
		return &sg.ConfigurationError{Field: "rule", Reason: "rule name is empty"}
	}
	r.mu.Lock()
	r.rules = append(r.rules, rule)
	r.mu.Unlock()
	return nil
}

// Names lists rule names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Name()
	}
	return out
}

// Snapshot returns a copy of the current rule list.
func (r *Registry) Snapshot() []sg.ValidationRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rules)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
