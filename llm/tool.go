package llm

import "github.com/deepnoodle-ai/relay/schema"

// Tool declares a function the model may call. Name must be unique within a
// request. A nil or incomplete Parameters schema is completed by the request
// translator, never rejected.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  *schema.Schema `json:"parameters,omitempty"`
}

// ParametersSchema returns the tool's parameter schema with missing fields
// defaulted.
func (t *Tool) ParametersSchema() *schema.Schema {
	return schema.Normalized(t.Parameters)
}
