package schemaguard

import (
	"fmt"
	"strings"
	"time"
)

// CompatibilityMode is the evolution policy a candidate is checked under.
type CompatibilityMode int

const (
	ModeNone CompatibilityMode = iota
	ModeBackward
	ModeForward
	ModeFull
	ModeBackwardTransitive
	ModeForwardTransitive
	ModeFullTransitive
)

// Modes lists every mode.
func Modes() []CompatibilityMode {
	return []CompatibilityMode{ModeNone, ModeBackward, ModeForward, ModeFull, ModeBackwardTransitive, ModeForwardTransitive, ModeFullTransitive}
}

func (m CompatibilityMode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeBackward:
		return "BACKWARD"
	case ModeForward:
		return "FORWARD"
	case ModeFull:
		return "FULL"
	case ModeBackwardTransitive:
		return "BACKWARD_TRANSITIVE"
	case ModeForwardTransitive:
		return "FORWARD_TRANSITIVE"
	case ModeFullTransitive:
		return "FULL_TRANSITIVE"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}

// ParseCompatibilityMode accepts the canonical names, case-insensitively,
// with '-' or '_' separators.
func ParseCompatibilityMode(s string) (CompatibilityMode, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, m := range Modes() {
		if m.String() == norm {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m CompatibilityMode) Valid() bool { return m >= ModeNone && m <= ModeFullTransitive }

// IsTransitive reports whether the mode checks the whole history.
func (m CompatibilityMode) IsTransitive() bool {
	return m == ModeBackwardTransitive || m == ModeForwardTransitive || m == ModeFullTransitive
}

// Base maps a transitive mode onto its pairwise mode.
func (m CompatibilityMode) Base() CompatibilityMode {
	switch m {
	case ModeBackwardTransitive:
		return ModeBackward
	case ModeForwardTransitive:
		return ModeForward
	case ModeFullTransitive:
		return ModeFull
	default:
		return m
	}
}

func (m CompatibilityMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CompatibilityMode) UnmarshalText(b []byte) error {
	v, err := ParseCompatibilityMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ViolationSeverity grades a compatibility violation. Only Breaking makes a
// result incompatible.
type ViolationSeverity int

const (
	ViolationInfo ViolationSeverity = iota
	ViolationWarning
	ViolationBreaking
)

func (s ViolationSeverity) String() string {
	switch s {
	case ViolationInfo:
		return "info"
	case ViolationWarning:
		return "warning"
	default:
		return "breaking"
	}
}

func (s ViolationSeverity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ViolationKind classifies the structural change behind a violation.
type ViolationKind string

const (
	KindFieldRemoved           ViolationKind = "field_removed"
	KindTypeChanged            ViolationKind = "type_changed"
	KindRequiredAdded          ViolationKind = "required_added"
	KindConstraintAdded        ViolationKind = "constraint_added"
	KindEnumValueRemoved       ViolationKind = "enum_value_removed"
	KindFormatChanged          ViolationKind = "format_changed"
	KindFieldMadeRequired      ViolationKind = "field_made_required"
	KindArrayItemsChanged      ViolationKind = "array_items_changed"
	KindMapValueChanged        ViolationKind = "map_value_changed"
	KindUnionTypesIncompatible ViolationKind = "union_types_incompatible"
	KindNamespaceChanged       ViolationKind = "namespace_changed"
	KindNameChanged            ViolationKind = "name_changed"
	KindFieldNumberReused      ViolationKind = "field_number_reused"
	KindReservedReused         ViolationKind = "reserved_reused"
	KindUnclassified           ViolationKind = "unclassified"
	KindCustom                 ViolationKind = "custom"
)

// Violation is one compatibility finding.
type Violation struct {
	Rule        string            `json:"rule"`
	Kind        ViolationKind     `json:"kind"`
	Path        string            `json:"path"`
	Description string            `json:"description"`
	Severity    ViolationSeverity `json:"severity"`
	OldValue    string            `json:"old_value,omitempty"`
	NewValue    string            `json:"new_value,omitempty"`
}

// Breaking builds a breaking violation.
func Breaking(rule string, kind ViolationKind, path, desc string) Violation {
	return Violation{Rule: rule, Kind: kind, Path: path, Description: desc, Severity: ViolationBreaking}
}

// Warning builds a non-breaking warning violation.
func Warning(rule string, kind ViolationKind, path, desc string) Violation {
	return Violation{Rule: rule, Kind: kind, Path: path, Description: desc, Severity: ViolationWarning}
}

// Info builds an informational violation.
func Info(rule string, kind ViolationKind, path, desc string) Violation {
	return Violation{Rule: rule, Kind: kind, Path: path, Description: desc, Severity: ViolationInfo}
}

// WithValues records the old and new values involved.
func (v Violation) WithValues(oldV, newV string) Violation {
	v.OldValue, v.NewValue = oldV, newV
	return v
}

func (v Violation) IsBreaking() bool { return v.Severity == ViolationBreaking }

// CompatibilityResult is the outcome of a compatibility check.
type CompatibilityResult struct {
	Compatible bool              `json:"compatible"`
	Mode       CompatibilityMode `json:"mode"`
	Violations []Violation       `json:"violations"`
	// CheckedVersions lists the historical versions compared, in order.
	CheckedVersions []VersionRef `json:"checked_versions,omitempty"`
	// FailedVersion is the earliest incompatible version for transitive
	// modes, or the compared version for pairwise modes.
	FailedVersion *VersionRef   `json:"failed_version,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Breaking returns the breaking violations in order.
func (r CompatibilityResult) Breaking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.IsBreaking() {
			out = append(out, v)
		}
	}
	return out
}

// HasRule reports whether any violation carries rule.
func (r CompatibilityResult) HasRule(rule string) bool {
	for _, v := range r.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Err returns nil when compatible and an *IncompatibleSchemaError otherwise.
func (r CompatibilityResult) Err() error {
	if r.Compatible {
		return nil
	}
	return &IncompatibleSchemaError{Mode: r.Mode, FailedVersion: r.FailedVersion, Violations: r.Breaking()}
}
