package tool

import (
	"encoding/json"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

var errEmptySchema = errors.New("empty schema")

// compileSchema converts a schema map into a resolved validator.
func compileSchema(raw map[string]any) (*jsonschema.Resolved, error) {
	if len(raw) == 0 {
		return nil, errEmptySchema
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

// StripAdditionalProperties returns a deep copy of schema with the
// "additionalProperties" keyword removed from every subschema. Property
// names are left alone. The input is not modified.
func StripAdditionalProperties(schema map[string]any) map[string]any {
	out := copyMap(schema)
	if out != nil {
		stripKeyword(out, "additionalProperties")
	}
	return out
}

// namedSchemas map user-chosen names to subschemas.
var namedSchemas = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"dependentSchemas":  true,
	"definitions":       true,
	"$defs":             true,
}

// instanceKeywords hold instance data, never subschemas.
var instanceKeywords = map[string]bool{
	"enum":     true,
	"const":    true,
	"default":  true,
	"examples": true,
}

func stripKeyword(schema map[string]any, key string) {
	delete(schema, key)
	for k, v := range schema {
		switch {
		case instanceKeywords[k]:
		case namedSchemas[k]:
			if named, ok := v.(map[string]any); ok {
				for _, sub := range named {
					stripSubschema(sub, key)
				}
			}
		default:
			stripSubschema(v, key)
		}
	}
}

func stripSubschema(v any, key string) {
	switch t := v.(type) {
	case map[string]any:
		stripKeyword(t, key)
	case []any:
		for _, sub := range t {
			stripSubschema(sub, key)
		}
	}
}

// copyMap deep copies a JSON-like map.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return copyValue(m).(map[string]any)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
