package jsontext

import (
	"strconv"
	"strings"
)

var (
	pointerEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// Escape escapes a single JSON Pointer reference token.
func Escape(s string) string { return pointerEscaper.Replace(s) }

// Join appends token to the JSON Pointer base.
func Join(base, token string) string {
	return base + "/" + Escape(token)
}

// JoinIndex appends an array index to base.
func JoinIndex(base string, i int) string {
	return base + "/" + strconv.Itoa(i)
}

// Split returns the unescaped reference tokens of ptr. "" and "/" are the
// root and yield no tokens.
func Split(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, p := range parts {
		parts[i] = pointerUnescaper.Replace(p)
	}
	return parts
}

// Get resolves ptr against a decoded JSON tree.
func Get(tree any, ptr string) (any, bool) {
	cur := tree
	for _, tok := range Split(ptr) {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
