package providers

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/log"
	"github.com/google/uuid"
)

// blockState tracks the lifecycle of one streamed content block. A tool-call
// block moves open -> accumulating -> complete; completion happens on an
// explicit block-close event or, for blocks still open, at stream end.
type blockState int

const (
	blockOpen blockState = iota + 1
	blockAccumulating
	blockComplete
)

type streamBlock struct {
	contentType llm.ContentType
	state       blockState
	id          string
	name        string
	text        strings.Builder
	args        strings.Builder
	toolCall    *llm.ToolCall
}

// StreamAccumulator reassembles the content of one streaming call. Backends
// feed it text fragments and tool-call events keyed by the backend-assigned
// block index; fragments belonging to different indices never mix. It lives
// for exactly one stream and is discarded when the stream ends, errors, or
// is cancelled.
type StreamAccumulator struct {
	backend string
	logger  log.Logger
	newID   func() string
	blocks  map[int]*streamBlock
	order   []int
}

// NewStreamAccumulator creates an accumulator for one streaming call.
func NewStreamAccumulator(backend string, logger log.Logger) *StreamAccumulator {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &StreamAccumulator{
		backend: backend,
		logger:  logger,
		newID:   func() string { return "call_" + uuid.NewString() },
		blocks:  make(map[int]*streamBlock),
	}
}

func (a *StreamAccumulator) block(index int, contentType llm.ContentType) *streamBlock {
	b, ok := a.blocks[index]
	if !ok {
		b = &streamBlock{contentType: contentType, state: blockOpen}
		a.blocks[index] = b
		a.order = append(a.order, index)
	}
	return b
}

// AddText records a text fragment for the given block index. Text is also
// forwarded to the caller as it arrives; this copy only feeds the final
// response.
func (a *StreamAccumulator) AddText(index int, text string) {
	b := a.block(index, llm.ContentTypeText)
	b.text.WriteString(text)
	b.state = blockAccumulating
}

// OpenToolCall starts accumulating a tool call at the given block index.
func (a *StreamAccumulator) OpenToolCall(index int, id, name string) {
	b := a.block(index, llm.ContentTypeToolUse)
	if id != "" {
		b.id = id
	}
	if name != "" {
		b.name = name
	}
}

// UpdateToolCall fills in the id or name of an already-open tool call. Some
// backends deliver these after the opening chunk.
func (a *StreamAccumulator) UpdateToolCall(index int, id, name string) {
	b, ok := a.blocks[index]
	if !ok || b.contentType != llm.ContentTypeToolUse {
		return
	}
	if id != "" {
		b.id = id
	}
	if name != "" {
		b.name = name
	}
}

// AppendToolArguments appends one raw argument fragment to the tool call at
// the given index. Fragments are concatenated verbatim; an individual
// fragment need not be valid JSON on its own. An unknown index opens the
// block implicitly.
func (a *StreamAccumulator) AppendToolArguments(index int, fragment string) {
	b := a.block(index, llm.ContentTypeToolUse)
	if b.state == blockComplete {
		return
	}
	b.args.WriteString(fragment)
	b.state = blockAccumulating
}

// CloseToolCall finalizes the tool call at the given index. The accumulated
// argument text is parsed as JSON, with the empty string treated as an empty
// object. A malformed call is dropped and logged rather than aborting the
// stream; nil is returned for that index.
func (a *StreamAccumulator) CloseToolCall(index int) *llm.ToolCall {
	b, ok := a.blocks[index]
	if !ok || b.contentType != llm.ContentTypeToolUse || b.state == blockComplete {
		return nil
	}
	b.state = blockComplete

	args := b.args.String()
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		a.logger.Warn("dropping malformed tool call",
			"backend", a.backend,
			"index", index,
			"tool", b.name,
			"arguments", args)
		return nil
	}
	if b.name == "" {
		a.logger.Warn("dropping tool call with no name",
			"backend", a.backend,
			"index", index)
		return nil
	}
	if b.id == "" {
		b.id = a.newID()
	}
	b.toolCall = &llm.ToolCall{
		ID:    b.id,
		Name:  b.name,
		Input: json.RawMessage(args),
	}
	return b.toolCall
}

// FinishOpenToolCalls finalizes every tool call still open at stream end,
// exactly as if a close event had arrived, and returns the completed calls.
// Used on the terminal event; cancellation discards open blocks instead.
func (a *StreamAccumulator) FinishOpenToolCalls() []*llm.ToolCall {
	var completed []*llm.ToolCall
	indices := make([]int, len(a.order))
	copy(indices, a.order)
	sort.Ints(indices)
	for _, index := range indices {
		b := a.blocks[index]
		if b.contentType != llm.ContentTypeToolUse || b.state == blockComplete {
			continue
		}
		if call := a.CloseToolCall(index); call != nil {
			completed = append(completed, call)
		}
	}
	return completed
}

// ContentBlocks returns the accumulated content in block-index order: text
// blocks with their full text, and completed tool calls as tool_use blocks.
// Dropped tool calls are omitted.
func (a *StreamAccumulator) ContentBlocks() []*llm.Content {
	indices := make([]int, len(a.order))
	copy(indices, a.order)
	sort.Ints(indices)

	var content []*llm.Content
	for _, index := range indices {
		b := a.blocks[index]
		switch b.contentType {
		case llm.ContentTypeText:
			if b.text.Len() > 0 {
				content = append(content, &llm.Content{
					Type: llm.ContentTypeText,
					Text: b.text.String(),
				})
			}
		case llm.ContentTypeToolUse:
			if b.toolCall != nil {
				content = append(content, &llm.Content{
					Type:  llm.ContentTypeToolUse,
					ID:    b.toolCall.ID,
					Name:  b.toolCall.Name,
					Input: b.toolCall.Input,
				})
			}
		}
	}
	return content
}
