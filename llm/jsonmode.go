package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/relay/schema"
)

// JSONModeInstruction builds the instruction appended to the system prompt
// when JSON mode is requested. The backend is not guaranteed to comply, so
// responses are validated with ValidateJSONMode after the fact.
func JSONModeInstruction(responseSchema *schema.Schema) string {
	var sb strings.Builder
	sb.WriteString("Your entire response must be a single valid JSON value. ")
	sb.WriteString("Do not include any prose, markdown fences, or explanation outside the JSON.")
	if responseSchema != nil {
		if data, err := json.Marshal(responseSchema); err == nil {
			fmt.Fprintf(&sb, " The JSON must conform to this schema:\n%s", data)
		}
	}
	return sb.String()
}

// AppendSystemInstruction appends an instruction to an existing system
// prompt, preserving whatever the caller configured.
func AppendSystemInstruction(systemPrompt, instruction string) string {
	if instruction == "" {
		return systemPrompt
	}
	if systemPrompt == "" {
		return instruction
	}
	return systemPrompt + "\n\n" + instruction
}

// ValidateJSONMode checks that the response's text content parses as JSON.
// On failure it returns a JSONModeViolationError carrying the raw text, so
// the caller is never handed a response it wrongly believes is valid JSON.
func ValidateJSONMode(backend string, response *Response) error {
	text := response.Message.CompleteText()
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return &JSONModeViolationError{
			Backend: backend,
			RawText: text,
			Err:     err,
		}
	}
	return nil
}
