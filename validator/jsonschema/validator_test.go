package jsonschema_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/validator/jsonschema"
)

const userSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://example.com/user.json",
  "type": "object",
  "examples": [{"id": 1, "email": "a@example.com"}],
  "properties": {
    "id": {"type": "integer", "description": "primary key", "minimum": 1},
    "email": {"type": "string", "description": "login", "pattern": "^[^@]+@[^@]+$"}
  },
  "required": ["id", "email"]
}`

func findError(t *testing.T, res sg.ValidationResult, rule string) sg.ValidationError {
	t.Helper()
	for _, e := range res.Errors {
		if e.Rule == rule {
			return e
		}
	}
	t.Fatalf("no %s error in %v", rule, res.Errors)
	return sg.ValidationError{}
}

func TestValidate_ValidSchema(t *testing.T) {
	res := jsonschema.New().Validate(context.Background(), userSchema)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, sg.JSONSchema, res.Format)
	assert.Positive(t, res.Metrics.RulesApplied)
}

func TestParse_Document(t *testing.T) {
	doc, res := jsonschema.New().Parse(userSchema, 32)
	require.True(t, res.Valid)
	require.NotNil(t, doc)

	assert.Equal(t, 2, doc.FieldCount())
	assert.Equal(t, 3, doc.Depth())
	assert.Equal(t, []sg.Pattern{{Location: "/properties/email/pattern", Expr: "^[^@]+@[^@]+$"}}, doc.Patterns())

	ids := doc.Identifiers()
	require.Len(t, ids, 2)
	assert.Equal(t, "email", ids[0].Name)
	assert.Equal(t, 8, ids[0].Line)

	js := doc.(*jsonschema.Document)
	line, col := js.Position("/properties/id/minimum")
	assert.Equal(t, 7, line)
	assert.Positive(t, col)
	assert.NotNil(t, js.Compiled())
	assert.Equal(t, 3, js.SchemaCount())
}

func TestValidate_InvalidType(t *testing.T) {
	res := jsonschema.New().Validate(context.Background(),
		`{"type":"object","properties":{"age":{"type":"integr","description":"x"}}}`)
	assert.False(t, res.Valid)
	e := findError(t, res, "type-validation")
	assert.Equal(t, sg.CodeTypeError, e.Code)
	assert.Equal(t, "/properties/age/type", e.Location)
	assert.Equal(t, "integr", e.Context["type"])
	assert.Equal(t, "Invalid type: integr", e.Message)
}

// TestValidate_InvalidTypeReportedOnce leaves bad "type" values to the type
// stage instead of repeating them as meta-schema errors.
func TestValidate_InvalidTypeReportedOnce(t *testing.T) {
	cases := []struct {
		name, text, loc string
	}{
		{"unknown", `{"type":"object","properties":{"id":{"type":"strin"}}}`, "/properties/id/type"},
		{"unknown in array", `{"type":"object","properties":{"id":{"type":["string","nul"]}}}`, "/properties/id/type"},
		{"not a string", `{"type":7}`, "/type"},
		{"empty array", `{"type":[]}`, "/type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, res := jsonschema.New().Parse(tc.text, 32)
			require.NotNil(t, doc)
			assert.False(t, res.HasRule("json-schema-meta"), "errors: %v", res.Errors)

			res = jsonschema.New().Validate(context.Background(), tc.text)
			assert.False(t, res.Valid)
			require.Len(t, res.Errors, 1, "errors: %v", res.Errors)
			assert.Equal(t, sg.CodeTypeError, res.Errors[0].Code)
			assert.Equal(t, tc.loc, res.Errors[0].Location)
		})
	}

	// other meta-schema violations next to a bad type are still reported
	_, res := jsonschema.New().Parse(`{"type":"object","properties":{"id":{"type":"strin","minLength":-1}}}`, 32)
	e := findError(t, res, "json-schema-meta")
	assert.Equal(t, "/properties/id/minLength", e.Location)
}

func TestValidate_RequiredNotDefined(t *testing.T) {
	res := jsonschema.New().Validate(context.Background(),
		`{"type":"object","properties":{"id":{"type":"integer","description":"x"}},"required":["id","name"]}`)
	assert.False(t, res.Valid)
	e := findError(t, res, "semantic-validation")
	assert.Equal(t, sg.CodeSemanticError, e.Code)
	assert.Equal(t, "/required/1", e.Location)
	assert.Equal(t, "name", e.Context["field"])
}

func TestValidate_ConflictingConstraints(t *testing.T) {
	cases := []struct{ text, loc string }{
		{`{"type":"string","minLength":5,"maxLength":2}`, "/minLength"},
		{`{"type":"number","minimum":10,"maximum":1}`, "/minimum"},
		{`{"type":"number","exclusiveMinimum":5,"exclusiveMaximum":5}`, "/exclusiveMinimum"},
		{`{"type":"string","enum":["a","b"],"default":"c"}`, "/default"},
		{`{"type":"string","enum":["a","b"],"const":"z"}`, "/const"},
	}
	for _, tc := range cases {
		res := jsonschema.New().Validate(context.Background(), tc.text)
		assert.False(t, res.Valid, tc.text)
		e := findError(t, res, "conflicting-constraints")
		assert.Equal(t, tc.loc, e.Location, tc.text)
	}
}

func TestParse_Errors(t *testing.T) {
	v := jsonschema.New()

	doc, res := v.Parse("{\n  \"type\": \"object\",\n  \"properties\": {\n", 32)
	assert.Nil(t, doc)
	e := findError(t, res, "json-schema-parse")
	assert.Equal(t, sg.CodeParseError, e.Code)
	assert.Positive(t, e.Line)

	doc, res = v.Parse(`[1,2]`, 32)
	assert.Nil(t, doc)
	findError(t, res, "json-schema-structure")

	nested := strings.Repeat(`{"type":"array","items":`, 5) + `{}` + strings.Repeat(`}`, 5)
	doc, res = v.Parse(nested, 3)
	assert.Nil(t, doc)
	e = findError(t, res, "security-recursion-depth")
	assert.Equal(t, sg.CodeRecursionLimitExceeded, e.Code)
}

func TestParse_Drafts(t *testing.T) {
	v := jsonschema.New()

	_, res := v.Parse(`{"$schema":"https://example.com/my-draft","type":"string"}`, 32)
	e := findError(t, res, "json-schema-draft")
	assert.Equal(t, sg.CodeUnsupportedFormat, e.Code)

	_, res = v.Parse(`{"$schema":"http://json-schema.org/draft-04/schema#","type":"string"}`, 32)
	assert.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "json-schema-draft", res.Warnings[0].Rule)

	_, res = v.Parse(`{"$schema":"http://json-schema.org/draft-07/schema#","type":"string"}`, 32)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestParse_MetaSchemaViolation(t *testing.T) {
	doc, res := jsonschema.New().Parse(`{"type":"object","properties":{"n":{"type":"string","minLength":-1}}}`, 32)
	require.NotNil(t, doc, "the document is kept for later stages")
	assert.False(t, res.Valid)
	e := findError(t, res, "json-schema-meta")
	assert.Equal(t, "/properties/n/minLength", e.Location)
	assert.Equal(t, 1, e.Line)
	assert.Nil(t, doc.(*jsonschema.Document).Compiled())
}

func TestParse_RemoteRefIsNotFetched(t *testing.T) {
	_, res := jsonschema.New().Parse(`{"$ref":"https://example.com/remote.json"}`, 32)
	assert.False(t, res.Valid)
	e := findError(t, res, "json-schema-ref")
	assert.Equal(t, sg.CodeSemanticError, e.Code)
}

func TestParse_DuplicateKeysWarn(t *testing.T) {
	_, res := jsonschema.New().Parse(`{"type":"string","type":"integer"}`, 32)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, "json-duplicate-key", res.Warnings[0].Rule)
	assert.Equal(t, "/type", res.Warnings[0].Location)
}

func TestCheckSemantics_Advisories(t *testing.T) {
	text := `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "user",
  "properties": {
    "tags": {"items": {"type": "string"}},
    "legacy": {"type": "object", "id": "old", "dependencies": {"a": ["b"]}}
  }
}`
	res := jsonschema.New().Validate(context.Background(), text)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	var rules []string
	for _, w := range res.Warnings {
		rules = append(rules, w.Rule+"@"+w.Location)
	}
	assert.ElementsMatch(t, []string{
		"missing-type@",
		"missing-examples@",
		"json-schema-id@/$id",
		"missing-description@/properties/legacy",
		"missing-description@/properties/tags",
		"missing-type@/properties/tags",
		"deprecated-keyword@/properties/legacy/id",
		"deprecated-keyword@/properties/legacy/dependencies",
	}, rules)
	for _, w := range res.Warnings {
		if w.Rule == "missing-examples" {
			assert.Equal(t, sg.SeverityInfo, w.Severity)
		}
	}
}

func TestValidateInstance(t *testing.T) {
	v := jsonschema.New()
	ctx := context.Background()

	res := v.ValidateInstance(ctx, userSchema, []byte(`{"id": 7, "email": "ada@example.com"}`))
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	res = v.ValidateInstance(ctx, userSchema, []byte(`{"id": "7"}`))
	assert.False(t, res.Valid)
	var locs []string
	for _, e := range res.Errors {
		assert.Equal(t, "instance-validation", e.Rule)
		locs = append(locs, e.Location)
	}
	assert.Contains(t, locs, "/id")
	assert.Contains(t, locs, "/")

	res = v.ValidateInstance(sg.WithFailFast(ctx, true), userSchema, []byte(`{"id": "7"}`))
	assert.Len(t, res.Errors, 1)

	res = v.ValidateInstance(ctx, userSchema, []byte(`{"id": `))
	findError(t, res, "instance-parse")
}
