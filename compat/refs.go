package compat

import (
	"strings"

	"github.com/reoring/schemaguard/internal/jsontext"
)

// localDefs returns the definitions a local $ref may point at, keyed by the
// pointer prefix that selects them.
func localDefs(doc map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, 2)
	if m, ok := doc["$defs"].(map[string]any); ok {
		out["#/$defs/"] = m
	}
	if m, ok := doc["definitions"].(map[string]any); ok {
		out["#/definitions/"] = m
	}
	return out
}

// resolveRefs expands local $refs below node in place. Remote and cyclic
// references are left as they are so the delta check still sees them.
func resolveRefs(node any, defs map[string]map[string]any, visited map[string]bool) any {
	switch t := node.(type) {
	case map[string]any:
		return resolveOne(t, defs, visited)
	case []any:
		for i := range t {
			t[i] = resolveRefs(t[i], defs, visited)
		}
		return t
	}
	return node
}

// resolveOne expands a single schema map, merging the target under the
// keywords s already declares.
func resolveOne(s map[string]any, defs map[string]map[string]any, visited map[string]bool) map[string]any {
	var target map[string]any
	if ref, ok := s["$ref"].(string); ok {
		base, key := lookupRef(ref, defs)
		if base != nil && !visited[key] {
			visited[key] = true
			cp, _ := jsontext.DeepCopy(base).(map[string]any)
			target = resolveOne(cp, defs, visited)
			delete(visited, key)
			delete(s, "$ref")
		}
	}
	for _, k := range jsontext.SortedKeys(s) {
		switch k {
		case "$defs", "definitions", "enum", "const", "default", "examples", "required":
			continue
		case "properties", "patternProperties", "dependentSchemas":
			if m, ok := s[k].(map[string]any); ok {
				for _, name := range jsontext.SortedKeys(m) {
					m[name] = resolveRefs(m[name], defs, visited)
				}
				continue
			}
		}
		s[k] = resolveRefs(s[k], defs, visited)
	}
	for k, v := range target {
		if _, exists := s[k]; !exists {
			s[k] = v
		}
	}
	return s
}

func lookupRef(ref string, defs map[string]map[string]any) (map[string]any, string) {
	for prefix, m := range defs {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		key := strings.TrimPrefix(ref, prefix)
		if strings.Contains(key, "/") {
			return nil, ""
		}
		key = strings.NewReplacer("~1", "/", "~0", "~").Replace(key)
		if target, ok := m[key].(map[string]any); ok {
			return target, prefix + key
		}
	}
	return nil, ""
}
