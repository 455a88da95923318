package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives a tool parameter schema from the input struct T.
// Fields without omitempty are required; descriptions come from
// jsonschema_description tags.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		panic("tools: schema marshal: " + err.Error())
	}

	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		panic("tools: schema unmarshal: " + err.Error())
	}
	delete(params, "$schema")
	delete(params, "$id")
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return params
}
