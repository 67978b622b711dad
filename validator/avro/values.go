package avro

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/reoring/schemaguard/internal/jsontext"
)

type encoding int

const (
	// defaultEncoding is the form of field defaults: unions take a bare
	// value of their first branch.
	defaultEncoding encoding = iota
	// jsonEncoding is the Avro JSON encoding of data: unions take null or a
	// single-key object naming the branch. Bare values are accepted when
	// exactly one branch matches.
	jsonEncoding
)

type valueError struct {
	path string
	msg  string
}

func checkValue(s *Schema, v any, path string, enc encoding) []valueError {
	r := s.Resolve()
	if r == nil || (r.Kind == KindRef && r.Target == nil) {
		return nil
	}
	fail := func(format string, args ...any) []valueError {
		return []valueError{{path: path, msg: fmt.Sprintf(format, args...)}}
	}
	switch r.Kind {
	case KindPrimitive:
		return checkPrimitive(r.Primitive, v, path)
	case KindRecord:
		obj, ok := v.(map[string]any)
		if !ok {
			return fail("expected record %s, got %s", r.FullName(), jsontext.TypeName(v))
		}
		var errs []valueError
		for _, f := range r.Fields {
			fv, present := obj[f.Name]
			if !present {
				if !f.HasDefault {
					errs = append(errs, valueError{path: jsontext.Join(path, f.Name),
						msg: fmt.Sprintf("missing required field '%s'", f.Name)})
				}
				continue
			}
			errs = append(errs, checkValue(f.Type, fv, jsontext.Join(path, f.Name), enc)...)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, known := r.Field(k); !known {
				errs = append(errs, valueError{path: jsontext.Join(path, k),
					msg: fmt.Sprintf("unknown field '%s' for record %s", k, r.FullName())})
			}
		}
		return errs
	case KindEnum:
		sym, ok := v.(string)
		if !ok {
			return fail("expected enum symbol, got %s", jsontext.TypeName(v))
		}
		for _, s := range r.Symbols {
			if s == sym {
				return nil
			}
		}
		return fail("'%s' is not a symbol of enum %s", sym, r.FullName())
	case KindFixed:
		str, ok := v.(string)
		if !ok {
			return fail("expected fixed %s as a string, got %s", r.FullName(), jsontext.TypeName(v))
		}
		if n := byteLen(str); n != r.Size {
			return fail("fixed %s requires %d bytes, got %d", r.FullName(), r.Size, n)
		}
		return nil
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return fail("expected array, got %s", jsontext.TypeName(v))
		}
		var errs []valueError
		for i, item := range arr {
			errs = append(errs, checkValue(r.Items, item, jsontext.JoinIndex(path, i), enc)...)
		}
		return errs
	case KindMap:
		obj, ok := v.(map[string]any)
		if !ok {
			return fail("expected map, got %s", jsontext.TypeName(v))
		}
		var errs []valueError
		for _, k := range jsontext.SortedKeys(obj) {
			errs = append(errs, checkValue(r.Values, obj[k], jsontext.Join(path, k), enc)...)
		}
		return errs
	case KindUnion:
		return checkUnion(r, v, path, enc)
	}
	return nil
}

func checkUnion(u *Schema, v any, path string, enc encoding) []valueError {
	if len(u.Branches) == 0 {
		return []valueError{{path: path, msg: "empty union admits no value"}}
	}
	if enc == defaultEncoding {
		return checkValue(u.Branches[0], v, path, enc)
	}
	if v == nil {
		for _, b := range u.Branches {
			if b.TypeName() == Null {
				return nil
			}
		}
		return []valueError{{path: path, msg: "union does not admit null"}}
	}
	if obj, ok := v.(map[string]any); ok && len(obj) == 1 {
		for k, inner := range obj {
			for _, b := range u.Branches {
				if b.TypeName() == k || (b.IsNamed() && b.Resolve().Name == k) {
					return checkValue(b, inner, jsontext.Join(path, k), enc)
				}
			}
		}
	}
	for _, b := range u.Branches {
		if len(checkValue(b, v, path, enc)) == 0 {
			return nil
		}
	}
	return []valueError{{path: path, msg: fmt.Sprintf("value matches no branch of union %s", unionNames(u))}}
}

func unionNames(u *Schema) string {
	s := "["
	for i, b := range u.Branches {
		if i > 0 {
			s += ", "
		}
		s += b.TypeName()
	}
	return s + "]"
}

func checkPrimitive(name string, v any, path string) []valueError {
	fail := func(format string, args ...any) []valueError {
		return []valueError{{path: path, msg: fmt.Sprintf(format, args...)}}
	}
	switch name {
	case Null:
		if v != nil {
			return fail("expected null, got %s", jsontext.TypeName(v))
		}
	case Boolean:
		if _, ok := v.(bool); !ok {
			return fail("expected boolean, got %s", jsontext.TypeName(v))
		}
	case Int:
		i, ok := jsontext.Int(v)
		if !ok {
			return fail("expected int, got %s", jsontext.TypeName(v))
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return fail("value %d overflows int", i)
		}
	case Long:
		b, ok := jsontext.BigInt(v)
		if _, isString := v.(string); isString || !ok {
			return fail("expected long, got %s", jsontext.TypeName(v))
		}
		if !b.IsInt64() {
			return fail("value %s overflows long", b.String())
		}
	case Float, Double:
		f, ok := jsontext.Float(v)
		if !ok {
			return fail("expected %s, got %s", name, jsontext.TypeName(v))
		}
		if name == Float && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return fail("value %v overflows float", f)
		}
	case Bytes, String:
		if _, ok := v.(string); !ok {
			return fail("expected %s, got %s", name, jsontext.TypeName(v))
		}
	}
	return nil
}

// byteLen is the length of an Avro JSON bytes string: one byte per code
// point, each below 256.
func byteLen(s string) int {
	n := utf8.RuneCountInString(s)
	for _, r := range s {
		if r > 0xff {
			return -1
		}
	}
	return n
}
