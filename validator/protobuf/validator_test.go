package protobuf_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/validator/protobuf"
)

const orderProto = `syntax = "proto3";

package shop.v1;

message Order {
  string order_id = 1;
  repeated Item items = 2;
  Status status = 3;
  map<string, int64> totals = 4;
  bytes signature = 5;

  message Item {
    string sku = 1;
    int32 quantity = 2;
  }
}

enum Status {
  STATUS_UNSPECIFIED = 0;
  STATUS_OPEN = 1;
}
`

func rules(res sg.ValidationResult) (errs, warns []string) {
	for _, e := range res.Errors {
		errs = append(errs, e.Rule)
	}
	for _, w := range res.Warnings {
		warns = append(warns, w.Rule)
	}
	return errs, warns
}

func TestValidate_ValidFile(t *testing.T) {
	res := protobuf.New().Validate(context.Background(), orderProto)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 7, res.Metrics.FieldsValidated)
}

func TestParse_Document(t *testing.T) {
	doc, res := protobuf.New().Parse(orderProto, 32)
	require.True(t, res.Valid)
	require.NotNil(t, doc)

	assert.Equal(t, 7, doc.FieldCount())
	assert.Equal(t, 2, doc.Depth())
	assert.Nil(t, doc.Tree())
	assert.Equal(t, `proto3 package="shop.v1" messages=2 enums=1`, doc.(*protobuf.Document).Describe())

	ids := doc.Identifiers()
	require.NotEmpty(t, ids)
	assert.Equal(t, sg.Identifier{Name: "shop.v1", Location: "package", Line: 3}, ids[0])
	assert.Equal(t, sg.Identifier{Name: "Order", Location: "shop.v1.Order", Line: 5}, ids[1])
	assert.Equal(t, sg.Identifier{Name: "order_id", Location: "shop.v1.Order.order_id", Line: 6}, ids[2])
}

func TestParse_Errors(t *testing.T) {
	v := protobuf.New()

	doc, res := v.Parse("syntax = \"proto3\";\nmessage Broken {\n  string name = ;\n}\n", 32)
	assert.Nil(t, doc)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "protobuf-syntax", res.Errors[0].Rule)
	assert.Equal(t, sg.CodeParseError, res.Errors[0].Code)
	assert.Equal(t, 3, res.Errors[0].Line)

	doc, res = v.Parse("syntax = \"proto4\";\nmessage A {}\n", 32)
	assert.Nil(t, doc)
	errs, _ := rules(res)
	assert.Equal(t, []string{"protobuf-syntax"}, errs)

	doc, res = v.Parse("package a;\nsyntax = \"proto3\";\nmessage A {}\n", 32)
	assert.Nil(t, doc)
	errs, _ = rules(res)
	assert.Equal(t, []string{"protobuf-syntax-position"}, errs)

	doc, res = v.Parse("message A {}\n", 32)
	assert.NotNil(t, doc)
	_, warns := rules(res)
	assert.Equal(t, []string{"protobuf-missing-syntax"}, warns)
}

func TestParse_DepthLimit(t *testing.T) {
	text := "syntax = \"proto3\";\npackage deep;\nmessage A {\n  message B {\n    message C {\n      int32 x = 1;\n    }\n  }\n}\n"
	doc, res := protobuf.New().Parse(text, 2)
	assert.Nil(t, doc)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "security-recursion-depth", res.Errors[0].Rule)
	assert.Equal(t, sg.CodeRecursionLimitExceeded, res.Errors[0].Code)
	assert.Equal(t, "deep.A.B.C", res.Errors[0].Location)
	assert.Equal(t, 5, res.Errors[0].Line)
}

func TestCheckTypes(t *testing.T) {
	text := `syntax = "proto3";
package check;
message M {
  Missing a = 1;
  map<double, string> b = 2;
  int32 c = 0;
  int32 d = 19000;
  other.pkg.Type e = 5;
}
`
	res := protobuf.New().Validate(context.Background(), text)
	assert.False(t, res.Valid)
	errs, _ := rules(res)
	assert.ElementsMatch(t, []string{
		"protobuf-unknown-type",
		"protobuf-unknown-type",
		"protobuf-map-key",
		"protobuf-field-number",
		"protobuf-reserved-range",
	}, errs)
	for _, e := range res.Errors {
		assert.Equal(t, sg.CodeTypeError, e.Code, e.Rule)
	}
}

func TestCheckTypes_ImportedTypesWarn(t *testing.T) {
	text := `syntax = "proto3";
package check;
import "google/protobuf/timestamp.proto";
message M {
  google.protobuf.Timestamp at = 1;
}
`
	res := protobuf.New().Validate(context.Background(), text)
	assert.True(t, res.Valid, "errors: %v", res.Errors)
	_, warns := rules(res)
	assert.Equal(t, []string{"protobuf-unknown-type"}, warns)
}

func TestCheckSemantics(t *testing.T) {
	text := `syntax = "proto3";
package Check;
message bad_name {
  reserved 4, 8 to 10;
  reserved "legacy";
  string a = 1;
  string b = 1;
  string a = 2;
  string c = 9;
  string legacy = 3;
  required string r = 5;
  string camelCase = 6;
}
enum kind {
  ONE = 1;
  two = 2;
  THREE = 2;
}
enum Empty {}
`
	res := protobuf.New().Validate(context.Background(), text)
	assert.False(t, res.Valid)
	errs, warns := rules(res)
	assert.ElementsMatch(t, []string{
		"protobuf-duplicate-field-number",
		"protobuf-duplicate-field-name",
		"protobuf-reserved-conflict",
		"protobuf-reserved-conflict",
		"protobuf-required-in-proto3",
		"protobuf-enum-zero",
		"protobuf-duplicate-enum-value",
		"protobuf-enum-empty",
	}, errs)
	assert.ElementsMatch(t, []string{
		"protobuf-package-naming",
		"protobuf-message-naming",
		"protobuf-field-naming",
		"protobuf-enum-naming",
		"protobuf-enum-value-naming",
	}, warns)
}

func TestCheckSemantics_NoMessages(t *testing.T) {
	res := protobuf.New().Validate(context.Background(), "syntax = \"proto3\";\npackage only.enums;\nenum E { E_ZERO = 0; }\n")
	assert.False(t, res.Valid)
	errs, _ := rules(res)
	assert.Equal(t, []string{"protobuf-no-messages"}, errs)
}

func TestParseDescriptor(t *testing.T) {
	fd, err := protobuf.ParseDescriptor(orderProto)
	require.NoError(t, err)
	assert.Equal(t, "proto3", fd.GetSyntax())
	assert.Equal(t, "shop.v1", fd.GetPackage())
	require.Len(t, fd.GetMessageType(), 1)
	order := fd.GetMessageType()[0]
	assert.Equal(t, "Order", order.GetName())
	assert.Equal(t, ".shop.v1.Order.Item", order.GetField()[1].GetTypeName())
	assert.Equal(t, "orderId", order.GetField()[0].GetJsonName())

	_, err = protobuf.ParseDescriptor("message {")
	assert.Error(t, err)
}

func TestValidateInstance(t *testing.T) {
	v := protobuf.New()
	ctx := context.Background()

	valid := `{"orderId":"o-1","items":[{"sku":"a","quantity":2}],"status":"STATUS_OPEN","totals":{"eur":"1200"},"signature":"aGVsbG8="}`
	res := v.ValidateInstance(ctx, orderProto, []byte(valid))
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	invalid := `{"order_id":7,"items":[{"quantity":"many"}],"status":"STATUS_CLOSED","signature":"%%%","bogus":1}`
	res = v.ValidateInstance(ctx, orderProto, []byte(invalid))
	assert.False(t, res.Valid)
	locs := map[string]bool{}
	for _, e := range res.Errors {
		assert.Equal(t, "instance-validation", e.Rule)
		locs[e.Location] = true
	}
	assert.Equal(t, map[string]bool{
		"/bogus":            true,
		"/items/0/quantity": true,
		"/order_id":         true,
		"/signature":        true,
		"/status":           true,
	}, locs)

	res = v.ValidateInstance(sg.WithFailFast(ctx, true), orderProto, []byte(invalid))
	assert.Len(t, res.Errors, 1)

	res = v.ValidateInstance(ctx, orderProto, []byte(`[`))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "instance-parse", res.Errors[0].Rule)
}
