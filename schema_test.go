package schemaguard_test

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
)

func TestParseSemanticVersion(t *testing.T) {
	v, err := sg.ParseSemanticVersion("v1.2.3-rc.1+build.5")
	require.NoError(t, err)
	assert.Equal(t, sg.SemanticVersion{Major: 1, Minor: 2, Patch: 3, Prerelease: "rc.1", Build: "build.5"}, v)
	assert.Equal(t, "1.2.3-rc.1+build.5", v.String())

	for _, bad := range []string{"", "1.2", "01.2.3", "1.2.3-", "one.two.three"} {
		_, err := sg.ParseSemanticVersion(bad)
		assert.ErrorIs(t, err, sg.ErrInvalidVersion, bad)
	}
	assert.Panics(t, func() { sg.MustParseSemanticVersion("x") })
}

func TestSemanticVersionCompare(t *testing.T) {
	ordered := []string{"0.9.0", "1.0.0-alpha", "1.0.0-rc.1", "1.0.0", "1.0.1", "1.10.0", "2.0.0"}
	for i := 1; i < len(ordered); i++ {
		a := sg.MustParseSemanticVersion(ordered[i-1])
		b := sg.MustParseSemanticVersion(ordered[i])
		assert.Equal(t, -1, a.Compare(b), "%s < %s", a, b)
		assert.Equal(t, 1, b.Compare(a), "%s > %s", b, a)
	}
	assert.Zero(t, sg.MustParseSemanticVersion("1.0.0+a").Compare(sg.MustParseSemanticVersion("1.0.0+b")))
	assert.True(t, sg.SemanticVersion{}.IsZero())
}

func TestSemanticVersionSatisfies(t *testing.T) {
	v := sg.NewVersion(1, 4, 2)
	for c, want := range map[string]bool{
		">= 1.2, < 2": true,
		"~1.4":        true,
		"^2":          false,
	} {
		got, err := v.Satisfies(c)
		require.NoError(t, err, c)
		assert.Equal(t, want, got, c)
	}
	_, err := v.Satisfies("not a range")
	assert.ErrorIs(t, err, sg.ErrInvalidVersion)
}

func TestSemanticVersionText(t *testing.T) {
	var out struct {
		V sg.SemanticVersion `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":"3.1.4"}`), &out))
	assert.Equal(t, sg.NewVersion(3, 1, 4), out.V)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"3.1.4"}`, string(b))
}

func TestNewSchema(t *testing.T) {
	s := sg.NewSchema("shop", "order", sg.NewVersion(1, 0, 0), sg.Avro, `{"type":"string"}`)
	assert.Equal(t, "shop.order", s.Subject())
	assert.Equal(t, sg.ContentHash(`{"type":"string"}`), s.ContentHash())
	assert.Len(t, s.ContentHash(), 64)
	assert.Nil(t, s.Metadata())

	// identifiers are derived from subject and version only
	same := sg.NewSchema("shop", "order", sg.NewVersion(1, 0, 0), sg.Avro, `"long"`)
	other := sg.NewSchema("shop", "order", sg.NewVersion(1, 0, 1), sg.Avro, `{"type":"string"}`)
	assert.Equal(t, s.ID(), same.ID())
	assert.NotEqual(t, s.ID(), other.ID())

	ref := s.Ref()
	assert.Equal(t, sg.VersionRef{ID: s.ID(), Subject: "shop.order", Version: sg.NewVersion(1, 0, 0)}, ref)

	assert.Equal(t, "order", sg.NewSchema("", "order", sg.NewVersion(1, 0, 0), sg.Avro, "").Subject())
}

func TestSchemaMetadataIsCopied(t *testing.T) {
	md := sg.Metadata{Owner: "team-a", Tags: []string{"pii"}, Custom: map[string]string{"tier": "1"}}
	s := sg.NewSchema("shop", "order", sg.NewVersion(1, 0, 0), sg.Avro, "{}").WithMetadata(md)

	md.Tags[0] = "changed"
	got := s.Metadata()
	require.NotNil(t, got)
	assert.Equal(t, []string{"pii"}, got.Tags)

	got.Custom["tier"] = "2"
	assert.Equal(t, "1", s.Metadata().Custom["tier"])
}

func TestSortVersions(t *testing.T) {
	mk := func(v string) sg.Schema {
		return sg.NewSchema("a", "b", sg.MustParseSemanticVersion(v), sg.Avro, v)
	}
	in := []sg.Schema{mk("2.0.0"), mk("1.0.0"), mk("1.5.0"), mk("1.0.0-rc.1")}
	out := sg.SortVersions(in)

	var got []string
	for _, s := range out {
		got = append(got, s.Version().String())
	}
	assert.Equal(t, []string{"1.0.0-rc.1", "1.0.0", "1.5.0", "2.0.0"}, got)
	assert.Equal(t, "2.0.0", in[0].Version().String(), "input is not reordered")
}

func TestCompatibilityMode(t *testing.T) {
	for _, m := range sg.Modes() {
		parsed, err := sg.ParseCompatibilityMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
		assert.True(t, m.Valid())
	}
	m, err := sg.ParseCompatibilityMode("backward-transitive")
	require.NoError(t, err)
	assert.Equal(t, sg.ModeBackwardTransitive, m)
	assert.True(t, m.IsTransitive())
	assert.Equal(t, sg.ModeBackward, m.Base())
	assert.Equal(t, sg.ModeFull, sg.ModeFull.Base())
	assert.False(t, sg.ModeFull.IsTransitive())

	_, err = sg.ParseCompatibilityMode("SIDEWAYS")
	assert.ErrorIs(t, err, sg.ErrUnknownMode)
	assert.False(t, sg.CompatibilityMode(42).Valid())
	assert.Equal(t, "MODE(42)", sg.CompatibilityMode(42).String())
}

func TestCompatibilityResultErr(t *testing.T) {
	ok := sg.CompatibilityResult{Compatible: true, Mode: sg.ModeBackward}
	assert.NoError(t, ok.Err())

	ref := sg.NewSchema("shop", "order", sg.NewVersion(1, 0, 0), sg.Avro, "{}").Ref()
	res := sg.CompatibilityResult{
		Mode:          sg.ModeBackward,
		FailedVersion: &ref,
		Violations: []sg.Violation{
			sg.Warning("avro-doc", sg.KindCustom, "User.doc", "doc changed"),
			sg.Breaking("avro-field-removed", sg.KindFieldRemoved, "User.age", "field removed").WithValues("int", ""),
		},
	}
	assert.Equal(t, []sg.Violation{res.Violations[1]}, res.Breaking())
	assert.True(t, res.HasRule("avro-doc"))

	err := res.Err()
	assert.ErrorIs(t, err, sg.ErrIncompatibleSchema)
	assert.EqualError(t, err, "schemaguard: incompatible schema (BACKWARD) against version 1.0.0: avro-field-removed at User.age")

	var ie *sg.IncompatibleSchemaError
	require.ErrorAs(t, err, &ie)
	assert.Len(t, ie.Violations, 1)
}
