package google

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/schema"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

func newCallID() string {
	return "call_" + uuid.NewString()
}

// messagesToContents maps the unified message list onto genai contents. The
// API names the assistant role "model". Tool results become FunctionResponse
// parts; the API wants the function name on them, so it is resolved from the
// tool_use block carrying the same call id earlier in the conversation.
func messagesToContents(messages []*llm.Message) ([]*genai.Content, error) {
	toolNames := map[string]string{}
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		if message.Role == llm.System {
			return nil, fmt.Errorf("system messages must be passed via the system prompt")
		}
		role := string(message.Role)
		if message.Role == llm.Assistant {
			role = "model"
		}
		content := &genai.Content{Role: role}
		for _, item := range message.Content {
			switch item.Type {
			case llm.ContentTypeText:
				content.Parts = append(content.Parts, genai.NewPartFromText(item.Text))
			case llm.ContentTypeImage:
				data, err := item.DecodedData()
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				content.Parts = append(content.Parts, genai.NewPartFromBytes(data, item.MediaType))
			case llm.ContentTypeToolUse:
				toolNames[item.ID] = item.Name
				var args map[string]any
				if len(item.Input) > 0 {
					if err := json.Unmarshal(item.Input, &args); err != nil {
						return nil, fmt.Errorf("invalid tool call input for %q: %w", item.Name, err)
					}
				}
				if args == nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   item.ID,
						Name: item.Name,
						Args: args,
					},
				})
			case llm.ContentTypeToolResult:
				name, ok := toolNames[item.ToolUseID]
				if !ok {
					return nil, fmt.Errorf("tool result references unknown call id %q", item.ToolUseID)
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       item.ToolUseID,
						Name:     name,
						Response: map[string]any{"output": item.Text},
					},
				})
			default:
				return nil, fmt.Errorf("unsupported content type: %s", item.Type)
			}
		}
		contents = append(contents, content)
	}
	return contents, nil
}

func schemaToGenAI(s *schema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Type: genai.Type(strings.ToUpper(s.Type))}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, property := range s.Properties {
			out.Properties[name] = propertyToGenAI(property)
		}
	}
	if len(s.Required) > 0 {
		out.Required = s.Required
	}
	return out
}

func propertyToGenAI(property *schema.Property) *genai.Schema {
	if property == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(property.Type)),
		Description: property.Description,
	}
	if len(property.Enum) > 0 {
		out.Enum = property.Enum
	}
	if property.Items != nil {
		out.Items = propertyToGenAI(property.Items)
	}
	if property.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(property.Properties))
		for name, nested := range property.Properties {
			out.Properties[name] = propertyToGenAI(nested)
		}
	}
	if len(property.Required) > 0 {
		out.Required = property.Required
	}
	return out
}

func convertResponse(result *genai.GenerateContentResponse, model string) (*llm.Response, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}

	var content []*llm.Content
	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != "":
			content = append(content, &llm.Content{
				Type: llm.ContentTypeText,
				Text: part.Text,
			})
		case part.FunctionCall != nil:
			block, err := functionCallContent(part.FunctionCall)
			if err != nil {
				return nil, err
			}
			content = append(content, block)
		}
	}
	if len(content) == 0 {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}

	var usage llm.Usage
	if result.UsageMetadata != nil {
		usage = llm.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         "google_" + uuid.NewString(),
		Model:      model,
		Role:       llm.Assistant,
		StopReason: finishReason(candidate.FinishReason),
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage:      usage,
	}), nil
}

// functionCallContent converts a FunctionCall part to a tool_use block. The
// API does not always populate the call id, in which case one is synthesized
// so downstream linkage stays by id.
func functionCallContent(call *genai.FunctionCall) (*llm.Content, error) {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("invalid tool call args for %q: %w", call.Name, err)
	}
	id := call.ID
	if id == "" {
		id = newCallID()
	}
	return &llm.Content{
		Type:  llm.ContentTypeToolUse,
		ID:    id,
		Name:  call.Name,
		Input: json.RawMessage(input),
	}, nil
}

// finishReason maps a Gemini finish reason onto the unified vocabulary. The
// content policy family of codes all collapse to safety.
func finishReason(code genai.FinishReason) llm.StopReason {
	switch code {
	case genai.FinishReasonStop:
		return llm.StopReasonStop
	case genai.FinishReasonMaxTokens:
		return llm.StopReasonMaxTokens
	case genai.FinishReasonSafety,
		genai.FinishReasonRecitation,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return llm.StopReasonSafety
	default:
		return llm.StopReasonOther
	}
}
