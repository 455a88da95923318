package protocol

import "slices"

// Tool is the provider-agnostic schema of a callable tool:
// {name, description, parameters: {type: "object", properties, required}}.
// Tools are immutable once registered.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Properties returns the parameter properties map, or an empty map when the
// schema declares none.
func (t Tool) Properties() map[string]any {
	if props, ok := t.Parameters["properties"].(map[string]any); ok {
		return props
	}
	return map[string]any{}
}

// Required returns the names of required parameters.
func (t Tool) Required() []string {
	switch req := t.Parameters["required"].(type) {
	case []string:
		return slices.Clone(req)
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
