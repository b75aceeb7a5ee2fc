// Package schema derives JSON Schema tool parameter descriptions from Go types.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Generate produces an object schema for the Go struct type T.
// It uses struct tags (json, jsonschema) to derive properties, required
// fields, defaults and enums.
func Generate[T any]() map[string]any {
	var zero T
	r := &jsonschema.Reflector{DoNotReference: true}
	root := extractRoot(r.Reflect(&zero))

	out := map[string]any{
		"type":       "object",
		"properties": schemaProperties(root),
	}
	if out["properties"] == nil {
		out["properties"] = map[string]any{}
	}
	if len(root.Required) > 0 {
		out["required"] = root.Required
	}
	return out
}

// extractRoot resolves the root schema, following $ref to $defs if needed.
func extractRoot(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Ref != "" && s.Definitions != nil {
		for _, def := range s.Definitions {
			if def.Type == "object" {
				return def
			}
		}
	}
	return s
}

// schemaProperties converts an ordered property map into a plain map.
func schemaProperties(s *jsonschema.Schema) map[string]any {
	if s.Properties == nil || s.Properties.Len() == 0 {
		return nil
	}
	props := make(map[string]any)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = propertySchema(pair.Value)
	}
	return props
}

// propertySchema converts a single property schema to a serializable map.
func propertySchema(s *jsonschema.Schema) map[string]any {
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.Minimum != "" {
		m["minimum"] = s.Minimum
	}
	if s.Maximum != "" {
		m["maximum"] = s.Maximum
	}

	// invopop/jsonschema uses anyOf for nullable types.
	if len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				m["type"] = sub.Type
				break
			}
		}
	}

	if s.Properties != nil && s.Properties.Len() > 0 {
		m["type"] = "object"
		m["properties"] = schemaProperties(s)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}

	if s.Items != nil {
		m["items"] = propertySchema(s.Items)
	}

	return m
}

// GenerateJSON returns the schema for T as raw JSON.
func GenerateJSON[T any]() (json.RawMessage, error) {
	return json.Marshal(Generate[T]())
}
