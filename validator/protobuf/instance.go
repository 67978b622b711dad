package protobuf

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/reoring/schemaguard/internal/jsontext"
)

// Registry indexes the messages and enums of a FileDescriptorProto by fully
// qualified name (with a leading dot).
type Registry struct {
	Messages map[string]*descriptorpb.DescriptorProto
	Enums    map[string]*descriptorpb.EnumDescriptorProto
	Syntax   string
}

// NewRegistry indexes fd.
func NewRegistry(fd *descriptorpb.FileDescriptorProto) *Registry {
	r := &Registry{
		Messages: make(map[string]*descriptorpb.DescriptorProto),
		Enums:    make(map[string]*descriptorpb.EnumDescriptorProto),
		Syntax:   fd.GetSyntax(),
	}
	scope := ""
	if fd.GetPackage() != "" {
		scope = "." + fd.GetPackage()
	}
	for _, m := range fd.GetMessageType() {
		r.addMessage(scope, m)
	}
	for _, e := range fd.GetEnumType() {
		r.Enums[scope+"."+e.GetName()] = e
	}
	return r
}

func (r *Registry) addMessage(scope string, m *descriptorpb.DescriptorProto) {
	name := scope + "." + m.GetName()
	r.Messages[name] = m
	for _, n := range m.GetNestedType() {
		r.addMessage(name, n)
	}
	for _, e := range m.GetEnumType() {
		r.Enums[name+"."+e.GetName()] = e
	}
}

type instanceError struct {
	path string
	msg  string
}

// validateMessage checks a proto3 JSON value against the message descriptor.
func (r *Registry) validateMessage(m *descriptorpb.DescriptorProto, v any, path string) []instanceError {
	obj, ok := v.(map[string]any)
	if !ok {
		return []instanceError{{path, fmt.Sprintf("expected object for message %s, got %s", m.GetName(), jsontext.TypeName(v))}}
	}
	byName := make(map[string]*descriptorpb.FieldDescriptorProto, len(m.GetField())*2)
	for _, f := range m.GetField() {
		byName[f.GetName()] = f
		if f.GetJsonName() != "" {
			byName[f.GetJsonName()] = f
		}
	}
	var errs []instanceError
	oneofSet := make(map[int32]string)
	seen := make(map[int32]bool)
	for _, key := range jsontext.SortedKeys(obj) {
		fp := jsontext.Join(path, key)
		f, known := byName[key]
		if !known {
			errs = append(errs, instanceError{fp, fmt.Sprintf("unknown field '%s' for message %s", key, m.GetName())})
			continue
		}
		if seen[f.GetNumber()] {
			errs = append(errs, instanceError{fp, fmt.Sprintf("field '%s' is set more than once", f.GetName())})
			continue
		}
		seen[f.GetNumber()] = true
		val := obj[key]
		if val == nil {
			continue
		}
		if f.OneofIndex != nil && !f.GetProto3Optional() {
			if other, dup := oneofSet[f.GetOneofIndex()]; dup {
				errs = append(errs, instanceError{fp, fmt.Sprintf("fields '%s' and '%s' belong to the same oneof", other, f.GetName())})
			}
			oneofSet[f.GetOneofIndex()] = f.GetName()
		}
		errs = append(errs, r.validateField(f, val, fp)...)
	}
	for _, f := range m.GetField() {
		if f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REQUIRED && !seen[f.GetNumber()] {
			errs = append(errs, instanceError{jsontext.Join(path, f.GetJsonName()), fmt.Sprintf("missing required field '%s'", f.GetName())})
		}
	}
	return errs
}

func (r *Registry) validateField(f *descriptorpb.FieldDescriptorProto, v any, path string) []instanceError {
	if f.GetLabel() != descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
		return r.validateSingular(f, v, path)
	}
	if entry, ok := r.Messages[f.GetTypeName()]; ok && entry.GetOptions().GetMapEntry() {
		obj, ok := v.(map[string]any)
		if !ok {
			return []instanceError{{path, fmt.Sprintf("expected object for map field '%s', got %s", f.GetName(), jsontext.TypeName(v))}}
		}
		key, val := entry.GetField()[0], entry.GetField()[1]
		var errs []instanceError
		for _, k := range jsontext.SortedKeys(obj) {
			kp := jsontext.Join(path, k)
			if msg := checkMapKey(key.GetType(), k); msg != "" {
				errs = append(errs, instanceError{kp, msg})
			}
			if obj[k] == nil {
				errs = append(errs, instanceError{kp, "map values may not be null"})
				continue
			}
			errs = append(errs, r.validateSingular(val, obj[k], kp)...)
		}
		return errs
	}
	arr, ok := v.([]any)
	if !ok {
		return []instanceError{{path, fmt.Sprintf("expected array for repeated field '%s', got %s", f.GetName(), jsontext.TypeName(v))}}
	}
	var errs []instanceError
	for i, item := range arr {
		ip := jsontext.JoinIndex(path, i)
		if item == nil {
			errs = append(errs, instanceError{ip, "repeated values may not be null"})
			continue
		}
		errs = append(errs, r.validateSingular(f, item, ip)...)
	}
	return errs
}

func (r *Registry) validateSingular(f *descriptorpb.FieldDescriptorProto, v any, path string) []instanceError {
	fail := func(format string, args ...any) []instanceError {
		return []instanceError{{path, fmt.Sprintf(format, args...)}}
	}
	switch f.GetType() {
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		m, ok := r.Messages[f.GetTypeName()]
		if !ok {
			// well-known and imported types have their own JSON mappings
			return nil
		}
		return r.validateMessage(m, v, path)
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		e, ok := r.Enums[f.GetTypeName()]
		if !ok {
			return nil
		}
		switch t := v.(type) {
		case string:
			for _, val := range e.GetValue() {
				if val.GetName() == t {
					return nil
				}
			}
			return fail("'%s' is not a value of enum %s", t, e.GetName())
		default:
			n, ok := jsontext.Int(v)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return fail("expected enum name or int32 number, got %s", jsontext.TypeName(v))
			}
			if r.Syntax == "proto2" {
				for _, val := range e.GetValue() {
					if int64(val.GetNumber()) == n {
						return nil
					}
				}
				return fail("%d is not a value of closed enum %s", n, e.GetName())
			}
			return nil
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if _, ok := v.(bool); !ok {
			return fail("expected boolean, got %s", jsontext.TypeName(v))
		}
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		if _, ok := v.(string); !ok {
			return fail("expected string, got %s", jsontext.TypeName(v))
		}
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		s, ok := v.(string)
		if !ok {
			return fail("expected base64 string, got %s", jsontext.TypeName(v))
		}
		if !validBase64(s) {
			return fail("bytes value is not valid base64")
		}
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		switch t := v.(type) {
		case string:
			if t == "NaN" || t == "Infinity" || t == "-Infinity" {
				return nil
			}
			if _, err := strconv.ParseFloat(t, 64); err != nil {
				return fail("expected number, got %q", t)
			}
		default:
			f64, ok := jsontext.Float(v)
			if !ok {
				return fail("expected number, got %s", jsontext.TypeName(v))
			}
			if f.GetType() == descriptorpb.FieldDescriptorProto_TYPE_FLOAT && math.Abs(f64) > math.MaxFloat32 {
				return fail("value %v overflows float", f64)
			}
		}
	default:
		lo, hi, unsigned, ok := intRange(f.GetType())
		if !ok {
			return nil
		}
		if msg := checkInt(v, lo, hi, unsigned); msg != "" {
			return fail("%s", msg)
		}
	}
	return nil
}

func intRange(t descriptorpb.FieldDescriptorProto_Type) (lo int64, hi uint64, unsigned, ok bool) {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_SINT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32:
		return math.MinInt32, math.MaxInt32, false, true
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32, descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		return 0, math.MaxUint32, true, true
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_SINT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64:
		return math.MinInt64, math.MaxInt64, false, true
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64, descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return 0, math.MaxUint64, true, true
	}
	return 0, 0, false, false
}

// checkInt accepts JSON numbers and decimal strings, as proto3 JSON does.
func checkInt(v any, lo int64, hi uint64, unsigned bool) string {
	b, ok := jsontext.BigInt(v)
	if !ok {
		return fmt.Sprintf("expected integer, got %s", jsontext.TypeName(v))
	}
	if unsigned {
		if b.Sign() < 0 || !b.IsUint64() || b.Uint64() > hi {
			return fmt.Sprintf("value %s is out of range", b.String())
		}
		return ""
	}
	if !b.IsInt64() || b.Int64() < lo || b.Int64() > int64(hi) {
		return fmt.Sprintf("value %s is out of range", b.String())
	}
	return ""
}

func checkMapKey(t descriptorpb.FieldDescriptorProto_Type, key string) string {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return ""
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		if key != "true" && key != "false" {
			return fmt.Sprintf("map key %q is not a boolean", key)
		}
		return ""
	}
	lo, hi, unsigned, ok := intRange(t)
	if !ok {
		return ""
	}
	if msg := checkInt(key, lo, hi, unsigned); msg != "" {
		return "map key " + msg
	}
	return ""
}

func validBase64(s string) bool {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if _, err := enc.DecodeString(s); err == nil {
			return true
		}
	}
	return strings.TrimSpace(s) == ""
}
