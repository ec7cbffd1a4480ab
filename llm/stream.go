package llm

// EventType represents the type of a unified streaming event.
type EventType string

func (e EventType) String() string {
	return string(e)
}

const (
	EventTypePing              EventType = "ping"
	EventTypeMessageStart      EventType = "message_start"
	EventTypeMessageDelta      EventType = "message_delta"
	EventTypeMessageStop       EventType = "message_stop"
	EventTypeContentBlockStart EventType = "content_block_start"
	EventTypeContentBlockDelta EventType = "content_block_delta"
	EventTypeContentBlockStop  EventType = "content_block_stop"
)

// EventDeltaType identifies the kind of incremental content in a delta event.
type EventDeltaType string

const (
	EventDeltaTypeText      EventDeltaType = "text_delta"
	EventDeltaTypeInputJSON EventDeltaType = "input_json_delta"
)

// Event represents a single unified streaming event. A successfully run
// stream ends with a message_delta event carrying the final Response and its
// stop reason, followed by message_stop.
type Event struct {
	Type         EventType          `json:"type"`
	Index        *int               `json:"index,omitempty"`
	ContentBlock *EventContentBlock `json:"content_block,omitempty"`
	Delta        *EventDelta        `json:"delta,omitempty"`
	ToolCall     *ToolCall          `json:"tool_call,omitempty"`
	Usage        *Usage             `json:"usage,omitempty"`
	Response     *Response          `json:"response,omitempty"`
}

// EventContentBlock describes a content block opened by a
// content_block_start event.
type EventContentBlock struct {
	Type ContentType `json:"type"`
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name,omitempty"`
	Text string      `json:"text,omitempty"`
}

// EventDelta carries one fragment of streamed content. Text fragments are
// forwarded as they arrive; input JSON fragments are raw text chunks that are
// concatenated, not merged, by the accumulator.
type EventDelta struct {
	Type        EventDeltaType `json:"type,omitempty"`
	Text        string         `json:"text,omitempty"`
	PartialJSON string         `json:"partial_json,omitempty"`
	StopReason  StopReason     `json:"stop_reason,omitempty"`
}
