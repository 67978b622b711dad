package compat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/compat"
)

func version(i int) sg.SemanticVersion { return sg.NewVersion(1, uint64(i), 0) }

func history(format sg.SchemaFormat, texts ...string) []sg.Schema {
	out := make([]sg.Schema, len(texts))
	for i, t := range texts {
		out[i] = sg.NewSchema("test", "subject", version(i), format, t)
	}
	return out
}

func candidate(format sg.SchemaFormat, text string, n int) sg.Schema {
	return sg.NewSchema("test", "subject", version(n), format, text)
}

func check(t *testing.T, cand sg.Schema, hist []sg.Schema, mode sg.CompatibilityMode) sg.CompatibilityResult {
	t.Helper()
	res, err := compat.New().Check(context.Background(), cand, hist, mode)
	require.NoError(t, err)
	return res
}

const jsonV1 = `{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`

// TestCheck_JSONSchemaOptionalFieldAdded covers adding an optional property
// under every pairwise mode.
func TestCheck_JSONSchemaOptionalFieldAdded(t *testing.T) {
	v2 := `{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"}},"required":["id"]}`
	hist := history(sg.JSONSchema, jsonV1)
	for _, mode := range []sg.CompatibilityMode{sg.ModeBackward, sg.ModeForward, sg.ModeFull} {
		t.Run(mode.String(), func(t *testing.T) {
			res := check(t, candidate(sg.JSONSchema, v2, 1), hist, mode)
			assert.True(t, res.Compatible, "violations: %+v", res.Violations)
			assert.Empty(t, res.Breaking())
			require.Len(t, res.CheckedVersions, 1)
		})
	}
}

// TestCheck_AvroPromotion covers int->long promotion and an int->string change.
func TestCheck_AvroPromotion(t *testing.T) {
	rec := func(typ string) string {
		return fmt.Sprintf(`{"type":"record","name":"Person","fields":[{"name":"age","type":%q}]}`, typ)
	}
	hist := history(sg.Avro, rec("int"))

	res := check(t, candidate(sg.Avro, rec("long"), 1), hist, sg.ModeBackward)
	assert.True(t, res.Compatible, "violations: %+v", res.Violations)

	res = check(t, candidate(sg.Avro, rec("string"), 1), hist, sg.ModeBackward)
	assert.False(t, res.Compatible)
	require.NotEmpty(t, res.Breaking())
	assert.Equal(t, sg.KindTypeChanged, res.Breaking()[0].Kind)
	assert.Equal(t, "Person.age", res.Breaking()[0].Path)
}

const (
	protoV1 = `syntax = "proto3";
package shop;
message User {
  string id = 1;
  string name = 2;
  string email = 3;
}`
	protoV2 = `syntax = "proto3";
package shop;
message User {
  string id = 1;
  string name = 2;
}`
	protoV3 = `syntax = "proto3";
package shop;
message User {
  string id = 1;
  string name = 2;
  int32 age = 3;
}`
	// same name as in protoV1, incompatible type
	protoV3SameName = `syntax = "proto3";
package shop;
message User {
  string id = 1;
  string name = 2;
  int64 email = 3;
}`
)

// TestCheck_ProtobufFieldNumberReuse removes field 3 without reserving it and
// reuses the number with another type two versions later.
func TestCheck_ProtobufFieldNumberReuse(t *testing.T) {
	hist := history(sg.Protobuf, protoV1, protoV2)

	cases := []struct {
		name string
		text string
		mode sg.CompatibilityMode
		rule string
	}{
		{"renamed/backward-transitive", protoV3, sg.ModeBackwardTransitive, "protobuf-field-number-reused"},
		{"renamed/full-transitive", protoV3, sg.ModeFullTransitive, "protobuf-field-number-reused"},
		{"renamed/backward", protoV3, sg.ModeBackward, "protobuf-field-number-reused"},
		{"renamed/full", protoV3, sg.ModeFull, "protobuf-field-number-reused"},
		{"same-name/backward", protoV3SameName, sg.ModeBackward, "protobuf-field-number-reused"},
		{"same-name/full", protoV3SameName, sg.ModeFull, "protobuf-field-number-reused"},
		{"same-name/forward", protoV3SameName, sg.ModeForward, "protobuf-field-number-reused"},
		{"same-name/backward-transitive", protoV3SameName, sg.ModeBackwardTransitive, "protobuf-type-changed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := check(t, candidate(sg.Protobuf, tc.text, 2), hist, tc.mode)
			require.False(t, res.Compatible)
			assert.True(t, res.HasRule(tc.rule), "violations: %+v", res.Violations)
			require.NotNil(t, res.FailedVersion)
			assert.Equal(t, version(0), res.FailedVersion.Version)

			var ise *sg.IncompatibleSchemaError
			require.True(t, errors.As(res.Err(), &ise))
			assert.True(t, errors.Is(res.Err(), sg.ErrIncompatibleSchema))
		})
	}
}

// TestCheck_ProtobufReuseIgnoresLatestNumbers does not report a number the
// latest version still declares with the same type.
func TestCheck_ProtobufReuseIgnoresLatestNumbers(t *testing.T) {
	hist := history(sg.Protobuf, protoV1, protoV3SameName)
	cand := candidate(sg.Protobuf, protoV3SameName+"\nmessage Extra {\n  string note = 1;\n}", 2)
	res := check(t, cand, hist, sg.ModeBackward)
	assert.True(t, res.Compatible, "violations: %+v", res.Violations)
	assert.False(t, res.HasRule("protobuf-field-number-reused"))
}

// TestCheck_ProtobufRemovalWarnsUnlessReserved checks the severity of field
// removal with and without a reservation.
func TestCheck_ProtobufRemovalWarnsUnlessReserved(t *testing.T) {
	res := check(t, candidate(sg.Protobuf, protoV2, 1), history(sg.Protobuf, protoV1), sg.ModeBackward)
	assert.True(t, res.Compatible)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, sg.ViolationWarning, res.Violations[0].Severity)

	reserved := `syntax = "proto3";
package shop;
message User {
  reserved 3;
  reserved "email";
  string id = 1;
  string name = 2;
}`
	res = check(t, candidate(sg.Protobuf, reserved, 1), history(sg.Protobuf, protoV1), sg.ModeBackward)
	assert.True(t, res.Compatible)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, sg.ViolationInfo, res.Violations[0].Severity)

	reuse := `syntax = "proto3";
package shop;
message User {
  string id = 1;
  string name = 2;
  string email = 3;
}`
	res = check(t, candidate(sg.Protobuf, reuse, 2), history(sg.Protobuf, protoV1, reserved), sg.ModeBackward)
	assert.False(t, res.Compatible)
	assert.True(t, res.HasRule("protobuf-reserved-reused"))
}

// TestCheck_TransitiveStopsAtFirstFailure verifies that the walk is oldest to
// newest and stops at the first incompatible version.
func TestCheck_TransitiveStopsAtFirstFailure(t *testing.T) {
	v1 := `{"type":"object","properties":{"n":{"type":"integer"}}}`
	v2 := `{"type":"object","properties":{"n":{"type":"string"}}}`
	v3 := `{"type":"object","properties":{"n":{"type":"string"}}}`
	hist := history(sg.JSONSchema, v1, v2, v3)
	cand := candidate(sg.JSONSchema, v3, 3)

	res := check(t, cand, hist, sg.ModeBackwardTransitive)
	require.False(t, res.Compatible)
	require.Len(t, res.CheckedVersions, 1)
	require.NotNil(t, res.FailedVersion)
	assert.Equal(t, version(0), res.FailedVersion.Version)

	// pairwise only sees the identical latest version
	res = check(t, cand, hist, sg.ModeBackward)
	assert.True(t, res.Compatible)
	assert.Empty(t, res.Violations)
	assert.Nil(t, res.FailedVersion)
}

func TestCheck_ModeNoneAndEmptyHistory(t *testing.T) {
	cand := candidate(sg.JSONSchema, `{"type":"string"}`, 1)
	res := check(t, cand, history(sg.JSONSchema, `{"type":"integer"}`), sg.ModeNone)
	assert.True(t, res.Compatible)
	assert.Empty(t, res.CheckedVersions)

	res = check(t, cand, nil, sg.ModeFullTransitive)
	assert.True(t, res.Compatible)
}

func TestCheck_UnknownMode(t *testing.T) {
	_, err := compat.New().Check(context.Background(), candidate(sg.JSONSchema, `{}`, 1), nil, sg.CompatibilityMode(42))
	require.Error(t, err)
	assert.ErrorIs(t, err, sg.ErrUnknownMode)
}

func TestCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := compat.New().Check(ctx, candidate(sg.JSONSchema, `{}`, 1),
		history(sg.JSONSchema, `{"type":"object"}`), sg.ModeBackward)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck_FormatMismatch(t *testing.T) {
	res := check(t, candidate(sg.Avro, `"string"`, 1), history(sg.JSONSchema, `{"type":"string"}`), sg.ModeBackward)
	require.False(t, res.Compatible)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, sg.KindFormatChanged, res.Violations[0].Kind)
	assert.Equal(t, "schema.format", res.Violations[0].Path)
}

// TestCheck_UnparseableIsBreaking fails closed when either side cannot be
// parsed.
func TestCheck_UnparseableIsBreaking(t *testing.T) {
	res := check(t, candidate(sg.JSONSchema, `{"type":`, 1), history(sg.JSONSchema, jsonV1), sg.ModeBackward)
	assert.False(t, res.Compatible)
	assert.True(t, res.HasRule("schema-parse"))

	res = check(t, candidate(sg.Protobuf, protoV1, 1), history(sg.Protobuf, `message {`), sg.ModeForward)
	assert.False(t, res.Compatible)
	assert.True(t, res.HasRule("schema-parse"))
}

// TestCheck_FullDeduplicates reports a violation found in both directions
// once.
func TestCheck_FullDeduplicates(t *testing.T) {
	v1 := `{"type":"object","properties":{"n":{"type":"integer"}}}`
	v2 := `{"type":"object","properties":{"n":{"type":"boolean"}}}`
	res := check(t, candidate(sg.JSONSchema, v2, 1), history(sg.JSONSchema, v1), sg.ModeFull)
	require.False(t, res.Compatible)
	seen := map[string]int{}
	for _, v := range res.Violations {
		seen[v.Rule+" "+v.Path]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}
	assert.Equal(t, 1, seen["json-schema-type /properties/n/type"])
}

// TestCheck_MonotonicSafety adds an optional field with a default in every
// format.
func TestCheck_MonotonicSafety(t *testing.T) {
	cases := []struct {
		format sg.SchemaFormat
		v1, v2 string
	}{
		{sg.JSONSchema, jsonV1,
			`{"type":"object","properties":{"id":{"type":"string"},"tag":{"type":"string","default":"x"}},"required":["id"]}`},
		{sg.Avro,
			`{"type":"record","name":"R","fields":[{"name":"id","type":"string"}]}`,
			`{"type":"record","name":"R","fields":[{"name":"id","type":"string"},{"name":"tag","type":"string","default":"x"}]}`},
		{sg.Protobuf, protoV2, protoV1},
	}
	for _, tc := range cases {
		t.Run(tc.format.String(), func(t *testing.T) {
			res := check(t, candidate(tc.format, tc.v2, 1), history(tc.format, tc.v1), sg.ModeBackward)
			assert.True(t, res.Compatible, "violations: %+v", res.Violations)
		})
	}
}

// TestCheck_MonotonicBreakage removes a required field without a default in
// every format.
func TestCheck_MonotonicBreakage(t *testing.T) {
	cases := []struct {
		format sg.SchemaFormat
		v1, v2 string
	}{
		{sg.JSONSchema, jsonV1, `{"type":"object","properties":{}}`},
		{sg.Avro,
			`{"type":"record","name":"R","fields":[{"name":"id","type":"string"},{"name":"n","type":"int"}]}`,
			`{"type":"record","name":"R","fields":[{"name":"n","type":"int"}]}`},
		{sg.Protobuf,
			"syntax = \"proto2\";\npackage p;\nmessage M {\n  required string id = 1;\n  optional int32 n = 2;\n}",
			"syntax = \"proto2\";\npackage p;\nmessage M {\n  optional int32 n = 2;\n}"},
	}
	for _, tc := range cases {
		for _, mode := range []sg.CompatibilityMode{sg.ModeBackward, sg.ModeForward} {
			t.Run(tc.format.String()+"/"+mode.String(), func(t *testing.T) {
				res := check(t, candidate(tc.format, tc.v2, 1), history(tc.format, tc.v1), mode)
				assert.False(t, res.Compatible)
			})
		}
	}
}

// TestCheck_TransitiveSuperset admits each version under FullTransitive and
// then checks every consecutive pair under Full.
func TestCheck_TransitiveSuperset(t *testing.T) {
	versions := []string{
		`{"type":"record","name":"R","fields":[{"name":"id","type":"string"}]}`,
		`{"type":"record","name":"R","fields":[{"name":"id","type":"string"},{"name":"a","type":"int","default":0}]}`,
		`{"type":"record","name":"R","fields":[{"name":"id","type":"string"},{"name":"a","type":"int","default":0},{"name":"b","type":["null","string"],"default":null}]}`,
	}
	var hist []sg.Schema
	for i, v := range versions {
		cand := candidate(sg.Avro, v, i)
		res := check(t, cand, hist, sg.ModeFullTransitive)
		require.True(t, res.Compatible, "version %d: %+v", i, res.Violations)
		hist = append(hist, cand)
	}
	for i := 1; i < len(hist); i++ {
		res := check(t, hist[i], hist[i-1:i], sg.ModeFull)
		assert.True(t, res.Compatible, "pair %d", i)
	}
}
