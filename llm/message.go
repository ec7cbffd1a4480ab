package llm

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Role indicates the role of a message in a conversation. Either "user",
// "assistant", or "system".
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)

func (r Role) String() string {
	return string(r)
}

// ContentType indicates the type of a content block in a message
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeImage      ContentType = "image"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content is a single block of content in a message. A message may contain
// multiple content blocks. Exactly one variant is active, selected by Type;
// translators never coerce one variant into another.
type Content struct {
	// Type: text, image, tool_use, tool_result
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Data is base64 encoded data for image content
	Data string `json:"data,omitempty"`

	// MediaType is the media type of image content, e.g. "image/png"
	MediaType string `json:"media_type,omitempty"`

	// ID identifies a tool_use block
	ID string `json:"id,omitempty"`

	// Name is the tool name of a tool_use block
	Name string `json:"name,omitempty"`

	// Input is the JSON arguments of a tool_use block
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID links a tool_result back to the tool_use that produced it.
	// Linkage is strictly by call id, never by tool name.
	ToolUseID string `json:"tool_use_id,omitempty"`
}

// DecodedData returns the base64-decoded Data payload of an image block.
func (c *Content) DecodedData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.Data)
}

// Message containing content passed to or from an LLM.
type Message struct {
	Role    Role       `json:"role"`
	Content []*Content `json:"content"`
}

// Text returns the last text content in the message.
func (m *Message) Text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if m.Content[i].Type == ContentTypeText {
			return m.Content[i].Text
		}
	}
	return ""
}

// CompleteText returns a concatenated text from all message content. If there
// were multiple text contents, they are separated by two newlines.
func (m *Message) CompleteText() string {
	var sb strings.Builder
	first := true
	for _, content := range m.Content {
		if content.Type == ContentTypeText {
			if !first {
				sb.WriteString("\n\n")
			}
			sb.WriteString(content.Text)
			first = false
		}
	}
	return sb.String()
}

// ToolUses returns all tool_use content blocks in the message.
func (m *Message) ToolUses() []*Content {
	var result []*Content
	for _, content := range m.Content {
		if content.Type == ContentTypeToolUse {
			result = append(result, content)
		}
	}
	return result
}

// NewMessage creates a new message with the given role and content blocks.
func NewMessage(role Role, content []*Content) *Message {
	return &Message{Role: role, Content: content}
}

// NewUserMessage creates a new user message with a single text content block.
func NewUserMessage(text string) *Message {
	return &Message{
		Role:    User,
		Content: []*Content{{Type: ContentTypeText, Text: text}},
	}
}

// NewAssistantMessage creates a new assistant message with a single text
// content block.
func NewAssistantMessage(text string) *Message {
	return &Message{
		Role:    Assistant,
		Content: []*Content{{Type: ContentTypeText, Text: text}},
	}
}

// ToolOutput carries the result of one tool invocation back to the LLM.
type ToolOutput struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// NewToolOutputMessage creates a new message with the user role and a list of
// tool outputs. Each output references the originating call by its id.
func NewToolOutputMessage(outputs []*ToolOutput) *Message {
	content := make([]*Content, len(outputs))
	for i, output := range outputs {
		content[i] = &Content{
			Type:      ContentTypeToolResult,
			ToolUseID: output.ID,
			Text:      output.Output,
		}
	}
	return &Message{Role: User, Content: content}
}
