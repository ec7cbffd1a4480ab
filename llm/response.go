package llm

import "encoding/json"

// StopReason is the unified classification of why a generation stopped.
type StopReason string

const (
	StopReasonStop      StopReason = "stop"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonSafety    StopReason = "safety"
	StopReasonOther     StopReason = "other"
)

func (r StopReason) String() string {
	return string(r)
}

// Usage contains token usage information for an LLM response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add incremental usage to this usage object.
func (u *Usage) Add(other *Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ToolCall is a call made by an LLM. Input is always valid JSON; an empty
// arguments object is `{}`, never the empty string.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Response from an LLM.
type Response struct {
	ID         string      `json:"id,omitempty"`
	Model      string      `json:"model,omitempty"`
	StopReason StopReason  `json:"stop_reason"`
	Role       Role        `json:"role"`
	Message    *Message    `json:"message"`
	Usage      Usage       `json:"usage"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
}

// ResponseOptions contains the configuration for creating a new Response.
type ResponseOptions struct {
	ID         string
	Model      string
	StopReason StopReason
	Role       Role
	Message    *Message
	Usage      Usage
}

// NewResponse creates a new Response. Tool calls are derived from the
// message's tool_use content blocks so they are a first-class part of every
// response rather than attached after the fact.
func NewResponse(opts ResponseOptions) *Response {
	message := opts.Message
	if message == nil {
		message = &Message{Role: opts.Role}
	}
	var toolCalls []*ToolCall
	for _, content := range message.Content {
		if content.Type == ContentTypeToolUse {
			input := content.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			toolCalls = append(toolCalls, &ToolCall{
				ID:    content.ID,
				Name:  content.Name,
				Input: input,
			})
		}
	}
	return &Response{
		ID:         opts.ID,
		Model:      opts.Model,
		StopReason: opts.StopReason,
		Role:       opts.Role,
		Message:    message,
		Usage:      opts.Usage,
		ToolCalls:  toolCalls,
	}
}
