package compat_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
)

type ruleCase struct {
	name       string
	prev, next string
	mode       sg.CompatibilityMode
	compatible bool
	rule       string
	kind       sg.ViolationKind
}

func runRuleCases(t *testing.T, format sg.SchemaFormat, cases []ruleCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := check(t, candidate(format, tc.next, 1), history(format, tc.prev), tc.mode)
			assert.Equal(t, tc.compatible, res.Compatible, "violations: %+v", res.Violations)
			if tc.rule == "" {
				assert.Empty(t, res.Breaking())
				return
			}
			var found *sg.Violation
			for i := range res.Violations {
				if res.Violations[i].Rule == tc.rule {
					found = &res.Violations[i]
					break
				}
			}
			require.NotNil(t, found, "no %s in %+v", tc.rule, res.Violations)
			assert.Equal(t, tc.kind, found.Kind)
		})
	}
}

func TestCheck_JSONSchemaRules(t *testing.T) {
	const (
		integer = `{"type":"integer"}`
		number  = `{"type":"number"}`
		max10   = `{"type":"integer","maximum":10}`
		max20   = `{"type":"integer","maximum":20}`
		max5    = `{"type":"integer","maximum":5}`
		ab      = `{"type":"string","enum":["a","b"]}`
		abc     = `{"type":"string","enum":["a","b","c"]}`
		a       = `{"type":"string","enum":["a"]}`
		oneOf2  = `{"oneOf":[{"type":"string"},{"type":"integer"}]}`
		oneOf1  = `{"oneOf":[{"type":"string"}]}`
		open    = `{"type":"object","properties":{"id":{"type":"string"}}}`
		closed  = `{"type":"object","properties":{"id":{"type":"string"}},"additionalProperties":false}`
		refStr  = `{"type":"object","properties":{"id":{"$ref":"#/$defs/Id"}},"$defs":{"Id":{"type":"string"}}}`
		refInt  = `{"type":"object","properties":{"id":{"$ref":"#/$defs/Id"}},"$defs":{"Id":{"type":"integer"}}}`
		optName = `{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"}},"required":["id"]}`
		reqName = `{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"}},"required":["id","name"]}`
	)
	runRuleCases(t, sg.JSONSchema, []ruleCase{
		{"integer widened to number", integer, number, sg.ModeBackward, true, "", ""},
		{"integer widened to number/forward", integer, number, sg.ModeForward, false, "json-schema-type", sg.KindTypeChanged},
		{"number narrowed to integer", number, integer, sg.ModeBackward, false, "json-schema-type", sg.KindTypeChanged},
		{"maximum raised", max10, max20, sg.ModeBackward, true, "", ""},
		{"maximum raised/forward", max10, max20, sg.ModeForward, false, "json-schema-constraint", sg.KindConstraintAdded},
		{"maximum tightened", max10, max5, sg.ModeBackward, false, "json-schema-constraint", sg.KindConstraintAdded},
		{"maximum tightened/forward", max10, max5, sg.ModeForward, true, "", ""},
		{"enum value added", ab, abc, sg.ModeBackward, true, "", ""},
		{"enum value added/forward", ab, abc, sg.ModeForward, false, "json-schema-enum", sg.KindEnumValueRemoved},
		{"enum value removed", ab, a, sg.ModeBackward, false, "json-schema-enum", sg.KindEnumValueRemoved},
		{"enum value removed/forward", ab, a, sg.ModeForward, true, "", ""},
		{"enum added", `{"type":"string"}`, ab, sg.ModeBackward, false, "json-schema-enum", sg.KindConstraintAdded},
		{"oneOf changed", oneOf2, oneOf1, sg.ModeBackward, false, "json-schema-unclassified", sg.KindUnclassified},
		{"oneOf changed/forward", oneOf2, oneOf1, sg.ModeForward, false, "json-schema-unclassified", sg.KindUnclassified},
		{"ref inlined", refStr, open, sg.ModeFull, true, "", ""},
		{"ref target changed", refStr, refInt, sg.ModeBackward, false, "json-schema-type", sg.KindTypeChanged},
		{"additionalProperties closed", open, closed, sg.ModeBackward, false, "json-schema-additional-properties", sg.KindConstraintAdded},
		{"additionalProperties closed/forward", open, closed, sg.ModeForward, true, "", ""},
		{"field made required", optName, reqName, sg.ModeBackward, false, "json-schema-required", sg.KindFieldMadeRequired},
		{"optional field removed", optName, open, sg.ModeBackward, true, "json-schema-field-removed", sg.KindFieldRemoved},
	})
}

func TestCheck_AvroRules(t *testing.T) {
	record := func(fields string) string {
		return fmt.Sprintf(`{"type":"record","name":"Person","fields":[%s]}`, fields)
	}
	const (
		rgb       = `{"type":"enum","name":"Color","symbols":["RED","GREEN"]}`
		red       = `{"type":"enum","name":"Color","symbols":["RED"]}`
		redDef    = `{"type":"enum","name":"Color","symbols":["RED"],"default":"RED"}`
		wideUnion = `{"name":"v","type":["null","string","int"],"default":null}`
		narrow    = `{"name":"v","type":["null","string"],"default":null}`
	)
	runRuleCases(t, sg.Avro, []ruleCase{
		{"enum symbol removed", rgb, red, sg.ModeBackward, false, "avro-enum-symbol", sg.KindEnumValueRemoved},
		{"enum symbol removed with default", rgb, redDef, sg.ModeBackward, true, "", ""},
		{"enum symbol added/forward", red, rgb, sg.ModeForward, false, "avro-enum-symbol", sg.KindEnumValueRemoved},
		{"union narrowed", record(wideUnion), record(narrow), sg.ModeBackward, false, "avro-union", sg.KindUnionTypesIncompatible},
		{"union narrowed/forward", record(wideUnion), record(narrow), sg.ModeForward, true, "", ""},
		{"string to bytes", record(`{"name":"v","type":"string"}`), record(`{"name":"v","type":"bytes"}`), sg.ModeFull, true, "", ""},
		{"int to long/forward", record(`{"name":"v","type":"int"}`), record(`{"name":"v","type":"long"}`), sg.ModeForward, false, "avro-type", sg.KindTypeChanged},
		{"field renamed with alias",
			record(`{"name":"name","type":"string"}`),
			record(`{"name":"fullName","type":"string","aliases":["name"]}`),
			sg.ModeBackward, true, "", ""},
		{"field renamed without alias",
			record(`{"name":"name","type":"string"}`),
			record(`{"name":"fullName","type":"string"}`),
			sg.ModeBackward, false, "avro-missing-default", sg.KindRequiredAdded},
		{"record renamed with alias",
			record(`{"name":"v","type":"int"}`),
			`{"type":"record","name":"Customer","aliases":["Person"],"fields":[{"name":"v","type":"int"}]}`,
			sg.ModeBackward, true, "", ""},
		{"record renamed without alias",
			record(`{"name":"v","type":"int"}`),
			`{"type":"record","name":"Customer","fields":[{"name":"v","type":"int"}]}`,
			sg.ModeBackward, false, "avro-name", sg.KindNameChanged},
	})
}

func TestCheck_ProtobufRules(t *testing.T) {
	msg := func(typ string) string {
		return fmt.Sprintf("syntax = \"proto3\";\npackage shop;\nmessage Order {\n  string id = 1;\n  %s qty = 2;\n}", typ)
	}
	runRuleCases(t, sg.Protobuf, []ruleCase{
		{"int32 to int64", msg("int32"), msg("int64"), sg.ModeBackward, true, "", ""},
		{"int32 to int64/forward", msg("int32"), msg("int64"), sg.ModeForward, true, "", ""},
		{"int32 to string", msg("int32"), msg("string"), sg.ModeBackward, false, "protobuf-type-changed", sg.KindTypeChanged},
		{"int32 to string/forward", msg("int32"), msg("string"), sg.ModeForward, false, "protobuf-type-changed", sg.KindTypeChanged},
		{"int32 to sint32", msg("int32"), msg("sint32"), sg.ModeBackward, false, "protobuf-type-changed", sg.KindTypeChanged},
		{"string to bytes", msg("string"), msg("bytes"), sg.ModeFull, true, "", ""},
	})
}
