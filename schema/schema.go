// Package schema provides the JSON Schema subset used to describe tool
// parameters.
package schema

// Schema describes the structure of a JSON object.
type Schema struct {
	Type                 string               `json:"type"`
	Properties           map[string]*Property `json:"properties"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
}

// Property of a schema.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// Normalized returns a copy of the schema with missing fields defaulted so
// that a backend never receives an incomplete declaration. A nil schema
// becomes an empty object schema. Incomplete schemas are completed, never
// rejected.
func Normalized(s *Schema) *Schema {
	if s == nil {
		return &Schema{Type: "object", Properties: map[string]*Property{}}
	}
	out := &Schema{
		Type:                 s.Type,
		Properties:           s.Properties,
		Required:             s.Required,
		AdditionalProperties: s.AdditionalProperties,
	}
	if out.Type == "" {
		out.Type = "object"
	}
	if out.Properties == nil {
		out.Properties = map[string]*Property{}
	}
	return out
}
