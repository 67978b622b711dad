package rules_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/rules"
)

func TestRegistry_OrderAndDuplicates(t *testing.T) {
	reg := rules.NewRegistry()
	noop := func(string, sg.SchemaFormat) []sg.ValidationError { return nil }
	require.NoError(t, reg.Add(rules.Func("b", sg.SeverityError, noop)))
	require.NoError(t, reg.Add(rules.Func("a", sg.SeverityError, noop)))
	require.NoError(t, reg.Add(rules.Func("b", sg.SeverityWarning, noop)))

	assert.Equal(t, []string{"b", "a", "b"}, reg.Names())
	assert.Equal(t, 3, reg.Len())

	err := reg.Add(nil)
	var ce *sg.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, sg.ErrInvalidConfig)
	assert.Equal(t, 3, reg.Len())
}

// TestRegistry_SnapshotIsStable checks that adding a rule does not change a
// snapshot taken earlier.
func TestRegistry_SnapshotIsStable(t *testing.T) {
	reg := rules.NewRegistry(rules.MaxFields("fields", sg.SeverityWarning, 10))
	snap := reg.Snapshot()
	require.NoError(t, reg.Add(rules.MaxFields("fields-2", sg.SeverityWarning, 20)))
	assert.Len(t, snap, 1)
	assert.Len(t, reg.Snapshot(), 2)
}

func TestRegistry_ConcurrentAdd(t *testing.T) {
	reg := rules.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Add(rules.MaxFields("f", sg.SeverityInfo, 1))
			_ = reg.Names()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, reg.Len())
}

func TestFunc_FillsNameAndCapsSeverity(t *testing.T) {
	r := rules.Func("no-todo", sg.SeverityWarning, func(text string, _ sg.SchemaFormat) []sg.ValidationError {
		return []sg.ValidationError{sg.NewError("", "", "found TODO")}
	})
	out := r.Validate("x", sg.JSONSchema)
	require.Len(t, out, 1)
	assert.Equal(t, "no-todo", out[0].Rule)
	assert.Equal(t, sg.SeverityWarning, out[0].Severity)
}

func TestExpr(t *testing.T) {
	r, err := rules.Expr("has-title", sg.SeverityError, `doc != nil && "title" in doc`, "schema needs a title")
	require.NoError(t, err)

	assert.Empty(t, r.Validate(`{"title":"x","type":"string"}`, sg.JSONSchema))
	out := r.Validate(`{"type":"string"}`, sg.JSONSchema)
	require.Len(t, out, 1)
	assert.Equal(t, "schema needs a title", out[0].Message)
	assert.Equal(t, sg.SeverityError, out[0].Severity)

	// protobuf has no JSON tree
	out = r.Validate("syntax = \"proto3\";\nmessage A {}", sg.Protobuf)
	require.Len(t, out, 1)

	size, err := rules.Expr("small", sg.SeverityWarning, `size < 10 && lines == 1 && format == "json-schema"`, "")
	require.NoError(t, err)
	assert.Empty(t, size.Validate(`{}`, sg.JSONSchema))
	assert.Len(t, size.Validate(`{"type": "object"}`, sg.JSONSchema), 1)
}

func TestExpr_CompileError(t *testing.T) {
	_, err := rules.Expr("bad", sg.SeverityError, `size <`, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sg.ErrInvalidConfig)

	_, err = rules.Expr("not-bool", sg.SeverityError, `size + 1`, "")
	require.Error(t, err)
}

func TestDeny_ReportsPositions(t *testing.T) {
	r, err := rules.Deny("no-secrets", sg.SeverityError, `(?i)password`)
	require.NoError(t, err)
	out := r.Validate("{\n  \"properties\": {\"Password\": {}}\n}", sg.JSONSchema)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Line)
	assert.Equal(t, 19, out[0].Column)

	_, err = rules.Deny("broken", sg.SeverityError, `(`)
	assert.ErrorIs(t, err, sg.ErrInvalidConfig)
}

func TestMaxFields(t *testing.T) {
	r := rules.MaxFields("max-fields", sg.SeverityWarning, 1)
	assert.Empty(t, r.Validate(`{"type":"object","properties":{"a":{"type":"string"}}}`, sg.JSONSchema))
	out := r.Validate(`{"type":"record","name":"R","fields":[{"name":"a","type":"int"},{"name":"b","type":"int"}]}`, sg.Avro)
	require.Len(t, out, 1)
	assert.Equal(t, sg.SeverityWarning, out[0].Severity)

	proto := "syntax = \"proto3\";\nmessage M {\n  int32 a = 1;\n  int32 b = 2;\n}"
	assert.Len(t, r.Validate(proto, sg.Protobuf), 1)
	// unparseable text is left to the structural stage
	assert.Empty(t, r.Validate(`{`, sg.JSONSchema))
}

func TestForFormatsAndConditional(t *testing.T) {
	always := rules.Func("always", sg.SeverityError, func(string, sg.SchemaFormat) []sg.ValidationError {
		return []sg.ValidationError{sg.NewError("", "", "hit")}
	})
	only := rules.ForFormats(always, sg.Avro)
	assert.Equal(t, "always", only.Name())
	assert.Empty(t, only.Validate(`{}`, sg.JSONSchema))
	assert.Len(t, only.Validate(`{}`, sg.Avro), 1)

	cond := rules.If(rules.FormatIs(sg.JSONSchema)).And(rules.If(rules.Contains("$ref"))).
		Then("refs", always)
	assert.Equal(t, sg.SeverityError, cond.Severity())
	assert.Empty(t, cond.Validate(`{"type":"string"}`, sg.JSONSchema))
	assert.Empty(t, cond.Validate(`{"$ref":"#/x"}`, sg.Avro))
	assert.Len(t, cond.Validate(`{"$ref":"#/x"}`, sg.JSONSchema), 1)

	anyOf := rules.If(rules.LargerThan(100)).Or(rules.If(rules.FormatIs(sg.Protobuf))).Then("any", always)
	assert.Len(t, anyOf.Validate("short", sg.Protobuf), 1)
	assert.Empty(t, anyOf.Validate("short", sg.Avro))
}
