package toolregistry

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema reflects a Go parameter struct into the JSON-Schema object
// map Parameters expects, using struct tags the same way a tool author would
// write them by hand:
//
//	type AddArgs struct {
//	    A int `json:"a" jsonschema:"required,description=first addend"`
//	    B int `json:"b" jsonschema:"required,description=second addend"`
//	}
//
// Grounded on kadirpekel-hector's pkg/tool/functiontool/schema.go.
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("toolregistry: marshal schema: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		return nil, fmt.Errorf("toolregistry: unmarshal schema: %w", err)
	}
	delete(asMap, "$schema")
	delete(asMap, "$id")

	if asMap["type"] != "object" {
		return asMap, nil
	}
	result := map[string]any{
		"type":       "object",
		"properties": asMap["properties"],
	}
	if required, ok := asMap["required"]; ok {
		result["required"] = required
	}
	if addl, ok := asMap["additionalProperties"]; ok {
		result["additionalProperties"] = addl
	}
	return result, nil
}

// compileSchema compiles a Parameters map into a validator. Round-trips
// through JSON because jsonschema/v5 compiles from a resource document, not
// from a Go map directly.
func compileSchema(name string, params map[string]any) (*jschema.Schema, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	compiler := jschema.NewCompiler()
	resourceName := "toolregistry://" + name + ".schema.json"
	if err := compiler.AddResource(resourceName, bytesReader(encoded)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(resourceName)
}
