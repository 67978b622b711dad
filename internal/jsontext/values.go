package jsontext

import (
	"math"
	"math/big"
	"slices"
	"strconv"

	j "github.com/goccy/go-json"
)

// Float converts a decoded JSON number to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case j.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Int converts a decoded JSON number to int64 when it is integral and in range.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case j.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// IsIntegral reports whether v is a JSON number without a fractional part,
// regardless of magnitude.
func IsIntegral(v any) bool {
	n, ok := v.(j.Number)
	if !ok {
		f, ok := Float(v)
		return ok && f == math.Trunc(f)
	}
	r, ok := new(big.Rat).SetString(string(n))
	return ok && r.IsInt()
}

// BigInt parses v as an arbitrary-precision integer.
func BigInt(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case j.Number:
		r, ok := new(big.Rat).SetString(string(n))
		if !ok || !r.IsInt() {
			return nil, false
		}
		return r.Num(), true
	case string:
		b, ok := new(big.Int).SetString(n, 10)
		return b, ok
	}
	if i, ok := Int(v); ok {
		return big.NewInt(i), true
	}
	return nil, false
}

// TypeName returns the JSON type of a decoded value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case j.Number, float64, int, int64:
		if IsIntegral(v) {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}

// Equal compares decoded JSON values, treating numbers by value.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	if af, ok := Float(a); ok {
		bf, ok := Float(b)
		return ok && af == bf
	}
	return a == b
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DeepCopy copies maps and slices of a decoded tree.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = DeepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = DeepCopy(t[i])
		}
		return out
	}
	return v
}

// Marshal encodes v as compact JSON with sorted object keys.
func Marshal(v any) ([]byte, error) { return j.Marshal(v) }
