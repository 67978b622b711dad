package avro_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/validator/avro"
)

const userRecord = `{
  "type": "record",
  "name": "User",
  "namespace": "com.example",
  "fields": [
    {"name": "id", "type": "long", "doc": "primary key"},
    {"name": "email", "type": ["null", "string"], "default": null, "doc": "login"},
    {"name": "status", "doc": "lifecycle",
     "type": {"type": "enum", "name": "Status", "symbols": ["ACTIVE", "BANNED"], "default": "ACTIVE"}},
    {"name": "tags", "type": {"type": "array", "items": "string"}, "default": [], "doc": "labels"}
  ]
}`

func rulesOf(res sg.ValidationResult) []string {
	var out []string
	for _, e := range res.Errors {
		out = append(out, e.Rule)
	}
	for _, w := range res.Warnings {
		out = append(out, w.Rule)
	}
	return out
}

func TestValidate_ValidRecord(t *testing.T) {
	res := avro.New().Validate(context.Background(), userRecord)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 4, res.Metrics.FieldsValidated)
}

func TestParse_Document(t *testing.T) {
	doc, res := avro.New().Parse(userRecord, 32)
	require.True(t, res.Valid)
	require.NotNil(t, doc)
	assert.Equal(t, 4, doc.FieldCount())
	assert.Nil(t, doc.Patterns())

	root := doc.(*avro.Document).Root()
	assert.Equal(t, avro.KindRecord, root.Kind)
	assert.Equal(t, "com.example.User", root.FullName())
	f, ok := root.Field("status")
	require.True(t, ok)
	assert.Equal(t, "com.example.Status", f.Type.FullName())

	var names []string
	for _, id := range doc.Identifiers() {
		names = append(names, id.Name)
	}
	assert.Equal(t, []string{"User", "id", "email", "status", "Status", "ACTIVE", "BANNED", "tags"}, names)
}

func TestParse_StructuralErrors(t *testing.T) {
	cases := []struct{ text, loc string }{
		{`{"name":"x"}`, ""},
		{`{"type":"record","fields":[]}`, ""},
		{`{"type":"record","name":"R"}`, ""},
		{`{"type":"record","name":"R","fields":[{"type":"int"}]}`, "/fields/0"},
		{`{"type":"array"}`, ""},
		{`42`, ""},
	}
	for _, tc := range cases {
		doc, res := avro.New().Parse(tc.text, 32)
		assert.Nil(t, doc, tc.text)
		require.NotEmpty(t, res.Errors, tc.text)
		assert.Equal(t, "avro-parse", res.Errors[0].Rule, tc.text)
		assert.Equal(t, tc.loc, res.Errors[0].Location, tc.text)
	}

	doc, res := avro.New().Parse(`{"type":`, 32)
	assert.Nil(t, doc)
	assert.Equal(t, []string{"avro-parse"}, rulesOf(res))
}

func TestCheckTypes(t *testing.T) {
	text := `{"type":"record","name":"Order","fields":[
  {"name":"customer","type":"Customer","doc":"x"},
  {"name":"qty","type":"int","default":"one","doc":"x"},
  {"name":"kind","doc":"x","type":{"type":"enum","name":"Kind","symbols":["A"],"default":"B"}}
]}`
	res := avro.New().Validate(context.Background(), text)
	assert.False(t, res.Valid)
	assert.ElementsMatch(t, []string{"avro-unknown-type", "avro-invalid-default", "avro-enum-default"}, rulesOf(res))
	for _, e := range res.Errors {
		assert.Equal(t, sg.CodeTypeError, e.Code, e.Rule)
		assert.Positive(t, e.Line, e.Rule)
	}
}

func TestCheckSemantics(t *testing.T) {
	text := `{"type":"record","name":"order","fields":[
  {"name":"id","type":"int"},
  {"name":"id","type":"long","doc":"x"},
  {"name":"Name","type":"string","doc":"x"},
  {"name":"type","type":"string","doc":"x"},
  {"name":"u","type":["string","string"],"doc":"x"},
  {"name":"one","type":["null"],"doc":"x"},
  {"name":"f","doc":"x","type":{"type":"fixed","name":"Empty","size":0}},
  {"name":"e","doc":"x","type":{"type":"enum","name":"E","symbols":[]}},
  {"name":"ts","doc":"x","type":{"type":"string","logicalType":"timestamp-millis"}}
]}`
	res := avro.New().Validate(context.Background(), text)
	assert.False(t, res.Valid)

	var errs, warns []string
	for _, e := range res.Errors {
		errs = append(errs, e.Rule)
	}
	for _, w := range res.Warnings {
		warns = append(warns, w.Rule)
	}
	assert.ElementsMatch(t, []string{
		"avro-duplicate-field",
		"avro-duplicate-union-branch",
		"avro-zero-size-fixed",
		"avro-empty-enum",
	}, errs)
	assert.Subset(t, warns, []string{
		"avro-naming-convention",
		"avro-reserved-field-name",
		"avro-missing-doc",
		"avro-single-union",
		"avro-logical-type",
	})
}

func TestParse_DepthLimit(t *testing.T) {
	text := `{"type":"record","name":"A","fields":[{"name":"b","type":{"type":"record","name":"B","fields":[{"name":"c","type":"int"}]}}]}`
	doc, res := avro.New().Parse(text, 4)
	assert.Nil(t, doc)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "security-recursion-depth", res.Errors[0].Rule)
	assert.Equal(t, sg.CodeRecursionLimitExceeded, res.Errors[0].Code)
}

func TestParse_RecursiveRecord(t *testing.T) {
	text := `{"type":"record","name":"Node","fields":[
  {"name":"value","type":"int","doc":"x"},
  {"name":"next","type":["null","Node"],"default":null,"doc":"x"}
]}`
	res := avro.New().Validate(context.Background(), text)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateInstance(t *testing.T) {
	v := avro.New()
	ctx := context.Background()

	res := v.ValidateInstance(ctx, userRecord, []byte(`{"id": 1, "email": {"string": "a@b.c"}, "status": "ACTIVE"}`))
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	res = v.ValidateInstance(ctx, userRecord, []byte(`{"id": "1", "status": "GONE", "extra": true}`))
	assert.False(t, res.Valid)
	got := map[string]string{}
	for _, e := range res.Errors {
		assert.Equal(t, "instance-validation", e.Rule)
		got[e.Location] = e.Message
	}
	assert.Equal(t, map[string]string{
		"/id":     "expected long, got string",
		"/status": "'GONE' is not a symbol of enum com.example.Status",
		"/extra":  "unknown field 'extra' for record com.example.User",
	}, got)

	res = v.ValidateInstance(sg.WithFailFast(ctx, true), userRecord, []byte(`{"id": "1", "status": "GONE"}`))
	assert.Len(t, res.Errors, 1)
}

func TestParseHelper(t *testing.T) {
	s, err := avro.Parse(userRecord)
	require.NoError(t, err)
	assert.Len(t, s.Fields, 4)

	_, err = avro.Parse(`{"type":"record","name":"R","fields":[{"name":"x","type":"Missing"}]}`)
	assert.ErrorContains(t, err, "Unknown type: Missing")
}
