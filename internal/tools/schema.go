package tools

import "fmt"

// validateParams checks args against the tool's JSON-schema-shaped
// Parameters: required keys must be present and each provided value
// must match its declared type. Unknown keys are rejected — the model
// inventing parameters is a schema violation, not something to pass
// through to an integration.
func validateParams(tool *Tool, args map[string]any) error {
	schema := tool.Parameters
	if schema == nil {
		return nil
	}

	properties, _ := schema["properties"].(map[string]any)

	for key := range args {
		if _, known := properties[key]; !known {
			return &InvalidParamsError{ToolName: tool.Name, Reason: fmt.Sprintf("unknown parameter %q", key)}
		}
	}

	for _, key := range requiredKeys(schema) {
		if _, present := args[key]; !present {
			return &InvalidParamsError{ToolName: tool.Name, Reason: fmt.Sprintf("missing required parameter %q", key)}
		}
	}

	for key, value := range args {
		prop, _ := properties[key].(map[string]any)
		declared, _ := prop["type"].(string)
		if declared == "" {
			continue
		}
		if !matchesType(value, declared) {
			return &InvalidParamsError{
				ToolName: tool.Name,
				Reason:   fmt.Sprintf("parameter %q: expected %s, got %T", key, declared, value),
			}
		}
	}

	return nil
}

// requiredKeys extracts the schema's required-key list. Schemas built
// in code use []string; schemas that round-tripped through JSON carry
// []any instead, so both shapes are accepted.
func requiredKeys(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		keys := make([]string, 0, len(required))
		for _, k := range required {
			if key, ok := k.(string); ok {
				keys = append(keys, key)
			}
		}
		return keys
	default:
		return nil
	}
}

// matchesType checks a decoded JSON value against a schema type name.
// Numbers arrive as float64 from encoding/json, so "integer" accepts a
// float64 with no fractional part.
func matchesType(value any, declared string) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		// Unrecognized type names pass through; the handler validates.
		return true
	}
}
