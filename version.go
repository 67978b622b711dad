package schemaguard

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SemanticVersion is a major.minor.patch version with optional prerelease
// and build metadata.
type SemanticVersion struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Build      string
}

// NewVersion returns major.minor.patch.
func NewVersion(major, minor, patch uint64) SemanticVersion {
	return SemanticVersion{Major: major, Minor: minor, Patch: patch}
}

// ParseSemanticVersion parses "1.2.3", "1.2.3-rc.1" or "1.2.3+build.5". A
// leading "v" is tolerated; partial versions such as "1.2" are not.
func ParseSemanticVersion(s string) (SemanticVersion, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	sv, err := semver.StrictNewVersion(raw)
	if err != nil {
		return SemanticVersion{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	v := SemanticVersion{
		Major:      sv.Major(),
		Minor:      sv.Minor(),
		Patch:      sv.Patch(),
		Prerelease: sv.Prerelease(),
		Build:      sv.Metadata(),
	}
	// empty prerelease or build parts ("1.2.3-") do not survive the round trip
	if v.String() != raw {
		return SemanticVersion{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return v, nil
}

// MustParseSemanticVersion is like ParseSemanticVersion but panics on error.
func MustParseSemanticVersion(s string) SemanticVersion {
	v, err := ParseSemanticVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v SemanticVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

func (v SemanticVersion) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, v.Prerelease, v.Build)
}

// Compare returns -1, 0 or +1. A prerelease sorts before its release; build
// metadata is ignored.
func (v SemanticVersion) Compare(o SemanticVersion) int {
	return v.semver().Compare(o.semver())
}

// Satisfies reports whether v matches a constraint such as ">= 1.2, < 2"
// or "~1.4".
func (v SemanticVersion) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("%w: constraint %q: %v", ErrInvalidVersion, constraint, err)
	}
	return c.Check(v.semver()), nil
}

func (v SemanticVersion) IsZero() bool { return v == SemanticVersion{} }

func (v SemanticVersion) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *SemanticVersion) UnmarshalText(b []byte) error {
	p, err := ParseSemanticVersion(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}
