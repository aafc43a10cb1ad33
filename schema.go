package toolscribe

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// InputSchema renders the descriptor's parameters as a JSON Schema object.
// Parameters carrying the "any" marker are present in properties but impose
// no type constraint.
func (d ToolDescriptor) InputSchema() (json.RawMessage, error) {
	properties := make(map[string]interface{}, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))

	for _, p := range d.Parameters {
		if p.Type == TypeAny {
			properties[p.Name] = map[string]interface{}{}
		} else {
			properties[p.Name] = map[string]interface{}{"type": p.Type}
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for tool %s: %w", d.Name, err)
	}
	return data, nil
}

// compileSchema parses a generated schema so argument documents can be
// validated against it.
func compileSchema(schema json.RawMessage) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewBytesLoader(schema)
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("invalid input schema: %v", err)
	}
	return compiled, nil
}
