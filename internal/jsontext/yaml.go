package jsontext

import (
	"fmt"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FromYAML converts a single YAML document into JSON text so YAML-authored
// JSON Schemas can go through the JSON pipeline.
func FromYAML(data []byte) ([]byte, error) {
	var node any
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	out, err := j.Marshal(yamlNormalizeValue(node))
	if err != nil {
		return nil, fmt.Errorf("yaml to json: %w", err)
	}
	return out, nil
}

// yamlAnyToStringMap converts YAML-decoded maps (which may be map[any]any)
// into JSON-like map[string]any recursively. Non-string keys are rendered
// with %v.
func yamlAnyToStringMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalizeValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			out[ks] = yamlNormalizeValue(vv)
		}
		return out
	default:
		return nil
	}
}

func yamlNormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return yamlAnyToStringMap(t)
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalizeValue(t[i])
		}
		return arr
	default:
		return v
	}
}
