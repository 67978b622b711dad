package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/engine"
)

func TestSecurity_DenylistOnJSONKeys(t *testing.T) {
	e := newEngine(t)
	text := `{"type":"object","properties":{"__proto__":{"type":"string"},"exec_time":{"type":"integer"}}}`
	res := e.Validate(context.Background(), text, sg.JSONSchema)

	assert.False(t, res.Valid)
	found := res.ErrorsByCode(sg.CodeSecurityViolation)
	require.Len(t, found, 1, "exec_time is a different word")
	assert.Equal(t, "security-denylist", found[0].Rule)
	assert.Equal(t, "/properties/__proto__", found[0].Location)
	assert.Equal(t, "__proto__", found[0].Context["pattern"])
	assert.Equal(t, 1, found[0].Line)
}

func TestSecurity_DenylistOnStringValues(t *testing.T) {
	e := newEngine(t)
	text := `{"type":"string","description":"passed to Eval() downstream"}`
	res := e.Validate(context.Background(), text, sg.JSONSchema)
	found := res.ErrorsByCode(sg.CodeSecurityViolation)
	require.Len(t, found, 1)
	assert.Equal(t, "/description", found[0].Location)
	assert.Contains(t, found[0].Message, `"Eval"`)
}

func TestSecurity_DenylistOnProtobufIdentifiers(t *testing.T) {
	e := newEngine(t)
	text := "syntax = \"proto3\";\npackage jobs;\n\nmessage Job {\n  string exec = 1;\n}\n"
	res := e.Validate(context.Background(), text, sg.Protobuf)
	found := res.ErrorsByCode(sg.CodeSecurityViolation)
	require.Len(t, found, 1)
	assert.Equal(t, 5, found[0].Line)
}

func TestSecurity_CustomDenyPatterns(t *testing.T) {
	cfg := sg.DefaultConfig()
	cfg.DenyPatterns = []string{"secret"}
	e := newEngine(t, engine.WithConfig(cfg))

	res := e.Validate(context.Background(), `{"type":"object","properties":{"eval":{"type":"string"}}}`, sg.JSONSchema)
	assert.Empty(t, res.ErrorsByCode(sg.CodeSecurityViolation))

	// unparseable text is scanned as raw text
	res = e.Validate(context.Background(), "{\n  \"secret\": ", sg.JSONSchema)
	found := res.ErrorsByCode(sg.CodeSecurityViolation)
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].Line)
	assert.Equal(t, 4, found[0].Column)

	cfg.DenyPatterns = nil
	e = newEngine(t, engine.WithConfig(cfg))
	res = e.Validate(context.Background(), `{"type":"string","description":"eval"}`, sg.JSONSchema)
	assert.Empty(t, res.ErrorsByCode(sg.CodeSecurityViolation))
}

func TestPerformance_Patterns(t *testing.T) {
	cfg := sg.DefaultConfig()
	cfg.MaxPatternLength = 20
	e := newEngine(t, engine.WithConfig(cfg))
	text := `{
  "type": "object",
  "properties": {
    "code": {"type": "string", "pattern": "^(a+)+$"},
    "slug": {"type": "string", "pattern": "^[a-z]+(-[a-z]+)*$"},
    "long": {"type": "string", "pattern": "` + strings.Repeat("[0-9]", 8) + `"}
  }
}`
	res := e.Validate(context.Background(), text, sg.JSONSchema)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	var nested, long []string
	for _, w := range res.Warnings {
		switch w.Rule {
		case "performance-nested-quantifier":
			nested = append(nested, w.Location)
		case "performance-pattern-length":
			long = append(long, w.Location)
		}
	}
	assert.Equal(t, []string{"/properties/code/pattern"}, nested)
	assert.Equal(t, []string{"/properties/long/pattern"}, long)
}

func TestPerformance_DeepNestingAndScore(t *testing.T) {
	cfg := sg.DefaultConfig()
	cfg.MaxRecursionDepth = 10
	e := newEngine(t, engine.WithConfig(cfg))

	text := strings.Repeat(`{"type":"array","items":`, 3) + `{"type":"string"}` + strings.Repeat(`}`, 3)
	res := e.Validate(context.Background(), text, sg.JSONSchema)
	assert.True(t, res.Valid)
	assert.False(t, res.HasRule("performance-deep-nesting"))

	text = strings.Repeat(`{"type":"array","items":`, 7) + `{"type":"string"}` + strings.Repeat(`}`, 7)
	res = e.Validate(context.Background(), text, sg.JSONSchema)
	assert.True(t, res.Valid)
	assert.True(t, res.HasRule("performance-deep-nesting"))
	assert.Equal(t, 3*8, res.Metrics.ComplexityScore)
}

func TestNestedQuantifier(t *testing.T) {
	cases := map[string]bool{
		`(a+)+`:              true,
		`^(\d*\s*)*$`:        true,
		`(?:x|y*)+`:          true,
		`^[a-z]+(-[a-z]+)*$`: false,
		`^\d{3}-\d{4}$`:      false,
		`(ab)+`:              false,
		`a{2,5}`:             false,
		`(?=lookahead)`:      false,
	}
	for expr, want := range cases {
		assert.Equal(t, want, engine.NestedQuantifier(expr), expr)
	}
}
