package openaicompletions

import (
	"io"
	"sync"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/log"
	"github.com/deepnoodle-ai/relay/providers"
)

var _ llm.StreamIterator = &StreamIterator{}

// Unified block indices for chat completion streams. The wire format has no
// block grammar: text is a bare content field and tool calls carry their own
// zero-based index, so text maps to block 0 and tool call i to block i+1.
const textBlockIndex = 0

func toolBlockIndex(i int) int { return i + 1 }

// StreamIterator translates chat completion chunks into unified events.
// Chunks carry no close events, so blocks are finalized when the stream ends
// with the "[DONE]" sentinel or EOF; the finish_reason seen along the way is
// held until then.
type StreamIterator struct {
	reader       *llm.ServerSentEventsReader[StreamResponse]
	body         io.ReadCloser
	acc          *providers.StreamAccumulator
	queue        []*llm.Event
	currentEvent *llm.Event
	err          error
	closeOnce    sync.Once

	responseID    string
	responseModel string
	usage         llm.Usage
	finishCode    string
	started       bool
	openBlocks    map[int]bool
	finished      bool
}

func newStreamIterator(body io.ReadCloser, logger log.Logger) *StreamIterator {
	return &StreamIterator{
		reader:     llm.NewServerSentEventsReader[StreamResponse](body),
		body:       body,
		acc:        providers.NewStreamAccumulator(BackendName, logger),
		openBlocks: make(map[int]bool),
	}
}

func (s *StreamIterator) Next() bool {
	for {
		if len(s.queue) > 0 {
			s.currentEvent = s.queue[0]
			s.queue = s.queue[1:]
			return true
		}
		if s.err != nil || s.finished {
			s.Close()
			return false
		}
		chunk, ok := s.reader.Next()
		if !ok {
			s.err = s.reader.Err()
			if s.err == nil {
				s.queue = append(s.queue, s.finishEvents()...)
				s.finished = true
				continue
			}
			s.Close()
			return false
		}
		s.queue = append(s.queue, s.translate(&chunk)...)
	}
}

func (s *StreamIterator) translate(chunk *StreamResponse) []*llm.Event {
	var events []*llm.Event
	if !s.started {
		s.started = true
		events = append(events, &llm.Event{Type: llm.EventTypeMessageStart})
	}
	if chunk.ID != "" {
		s.responseID = chunk.ID
	}
	if chunk.Model != "" {
		s.responseModel = chunk.Model
	}
	if chunk.Usage != nil {
		s.usage = llm.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finishCode = *choice.FinishReason
		}
		if choice.Delta.Content != "" {
			events = append(events, s.textEvents(choice.Delta.Content)...)
		}
		for _, call := range choice.Delta.ToolCalls {
			events = append(events, s.toolCallEvents(call)...)
		}
	}
	return events
}

func (s *StreamIterator) textEvents(text string) []*llm.Event {
	var events []*llm.Event
	index := textBlockIndex
	if !s.openBlocks[index] {
		s.openBlocks[index] = true
		events = append(events, &llm.Event{
			Type:         llm.EventTypeContentBlockStart,
			Index:        &index,
			ContentBlock: &llm.EventContentBlock{Type: llm.ContentTypeText},
		})
	}
	s.acc.AddText(index, text)
	return append(events, &llm.Event{
		Type:  llm.EventTypeContentBlockDelta,
		Index: &index,
		Delta: &llm.EventDelta{Type: llm.EventDeltaTypeText, Text: text},
	})
}

func (s *StreamIterator) toolCallEvents(call DeltaToolCall) []*llm.Event {
	var events []*llm.Event
	index := toolBlockIndex(call.Index)
	if !s.openBlocks[index] {
		s.openBlocks[index] = true
		s.acc.OpenToolCall(index, call.ID, call.Function.Name)
		events = append(events, &llm.Event{
			Type:  llm.EventTypeContentBlockStart,
			Index: &index,
			ContentBlock: &llm.EventContentBlock{
				Type: llm.ContentTypeToolUse,
				ID:   call.ID,
				Name: call.Function.Name,
			},
		})
	} else {
		// The id and name can trail the opening chunk
		s.acc.UpdateToolCall(index, call.ID, call.Function.Name)
	}
	if call.Function.Arguments != "" {
		s.acc.AppendToolArguments(index, call.Function.Arguments)
		events = append(events, &llm.Event{
			Type:  llm.EventTypeContentBlockDelta,
			Index: &index,
			Delta: &llm.EventDelta{
				Type:        llm.EventDeltaTypeInputJSON,
				PartialJSON: call.Function.Arguments,
			},
		})
	}
	return events
}

// finishEvents closes every open block, then emits the terminal
// message_delta carrying the final response and the message_stop marker.
func (s *StreamIterator) finishEvents() []*llm.Event {
	var events []*llm.Event
	for _, call := range s.acc.FinishOpenToolCalls() {
		events = append(events, &llm.Event{
			Type:     llm.EventTypeContentBlockStop,
			ToolCall: call,
		})
	}
	reason := llm.StopReasonOther
	if s.finishCode != "" {
		reason = finishReason(s.finishCode)
	}
	usage := s.usage
	response := llm.NewResponse(llm.ResponseOptions{
		ID:         s.responseID,
		Model:      s.responseModel,
		Role:       llm.Assistant,
		StopReason: reason,
		Message:    llm.NewMessage(llm.Assistant, s.acc.ContentBlocks()),
		Usage:      usage,
	})
	events = append(events,
		&llm.Event{
			Type:     llm.EventTypeMessageDelta,
			Delta:    &llm.EventDelta{StopReason: reason},
			Usage:    &usage,
			Response: response,
		},
		&llm.Event{Type: llm.EventTypeMessageStop},
	)
	return events
}

func (s *StreamIterator) Event() *llm.Event {
	return s.currentEvent
}

func (s *StreamIterator) Err() error {
	return s.err
}

func (s *StreamIterator) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
