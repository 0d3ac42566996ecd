package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOverrides reads a sparse override document from a YAML or JSON file.
// JSON is accepted because it is a subset of YAML.
func LoadOverrides(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("read overrides %s", path), Err: err}
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes a YAML or JSON override document.
func ParseOverrides(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "parse overrides", Err: err}
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return normalize(doc).(map[string]any), nil
}

// normalize converts YAML-decoded values into the JSON shapes Merge expects.
// yaml.v3 decodes mappings with string keys as map[string]any already; this
// only walks the tree so nested map[any]any never leaks through.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalize(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalize(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}
