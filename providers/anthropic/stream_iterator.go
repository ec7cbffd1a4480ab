package anthropic

import (
	"io"
	"sync"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/log"
	"github.com/deepnoodle-ai/relay/providers"
)

var _ llm.StreamIterator = &StreamIterator{}

// StreamIterator translates the Messages API streaming grammar into unified
// events. The grammar already matches the unified one closely, so most events
// pass through with only field renaming; the accumulator carries the state
// needed to build the final response on message_delta.
type StreamIterator struct {
	reader       *llm.ServerSentEventsReader[StreamEvent]
	body         io.ReadCloser
	acc          *providers.StreamAccumulator
	queue        []*llm.Event
	currentEvent *llm.Event
	err          error
	closeOnce    sync.Once

	responseID    string
	responseModel string
	usage         llm.Usage
	terminalSent  bool
	stopSent      bool
}

func newStreamIterator(body io.ReadCloser, logger log.Logger) *StreamIterator {
	return &StreamIterator{
		reader: llm.NewServerSentEventsReader[StreamEvent](body),
		body:   body,
		acc:    providers.NewStreamAccumulator(BackendName, logger),
	}
}

func (s *StreamIterator) Next() bool {
	for {
		if len(s.queue) > 0 {
			s.currentEvent = s.queue[0]
			s.queue = s.queue[1:]
			return true
		}
		if s.err != nil {
			return false
		}
		event, ok := s.reader.Next()
		if !ok {
			s.err = s.reader.Err()
			if s.err == nil {
				// Truncated streams still owe the terminal pair.
				var pending []*llm.Event
				if !s.terminalSent {
					pending = append(pending, s.terminalEvents("")...)
				}
				if !s.stopSent {
					s.stopSent = true
					pending = append(pending, &llm.Event{Type: llm.EventTypeMessageStop})
				}
				if len(pending) > 0 {
					s.queue = append(s.queue, pending...)
					continue
				}
			}
			s.Close()
			return false
		}
		s.queue = append(s.queue, s.translate(&event)...)
	}
}

func (s *StreamIterator) translate(event *StreamEvent) []*llm.Event {
	switch event.Type {
	case "ping":
		return []*llm.Event{{Type: llm.EventTypePing}}

	case "message_start":
		if event.Message != nil {
			s.responseID = event.Message.ID
			s.responseModel = event.Message.Model
			s.usage.Add(&llm.Usage{
				InputTokens:  event.Message.Usage.InputTokens,
				OutputTokens: event.Message.Usage.OutputTokens,
			})
		}
		return []*llm.Event{{Type: llm.EventTypeMessageStart}}

	case "content_block_start":
		index := event.Index
		block := &llm.EventContentBlock{Type: llm.ContentTypeText}
		if event.ContentBlock != nil {
			switch event.ContentBlock.Type {
			case "tool_use":
				s.acc.OpenToolCall(index, event.ContentBlock.ID, event.ContentBlock.Name)
				block = &llm.EventContentBlock{
					Type: llm.ContentTypeToolUse,
					ID:   event.ContentBlock.ID,
					Name: event.ContentBlock.Name,
				}
			default:
				if event.ContentBlock.Text != "" {
					s.acc.AddText(index, event.ContentBlock.Text)
					block.Text = event.ContentBlock.Text
				}
			}
		}
		return []*llm.Event{{
			Type:         llm.EventTypeContentBlockStart,
			Index:        &index,
			ContentBlock: block,
		}}

	case "content_block_delta":
		if event.Delta == nil {
			return nil
		}
		index := event.Index
		switch event.Delta.Type {
		case "text_delta":
			s.acc.AddText(index, event.Delta.Text)
			return []*llm.Event{{
				Type:  llm.EventTypeContentBlockDelta,
				Index: &index,
				Delta: &llm.EventDelta{
					Type: llm.EventDeltaTypeText,
					Text: event.Delta.Text,
				},
			}}
		case "input_json_delta":
			s.acc.AppendToolArguments(index, event.Delta.PartialJSON)
			return []*llm.Event{{
				Type:  llm.EventTypeContentBlockDelta,
				Index: &index,
				Delta: &llm.EventDelta{
					Type:        llm.EventDeltaTypeInputJSON,
					PartialJSON: event.Delta.PartialJSON,
				},
			}}
		}
		return nil

	case "content_block_stop":
		index := event.Index
		out := &llm.Event{Type: llm.EventTypeContentBlockStop, Index: &index}
		if call := s.acc.CloseToolCall(index); call != nil {
			out.ToolCall = call
		}
		return []*llm.Event{out}

	case "message_delta":
		if event.Usage != nil {
			s.usage.Add(&llm.Usage{OutputTokens: event.Usage.OutputTokens})
		}
		code := ""
		if event.Delta != nil {
			code = event.Delta.StopReason
		}
		return s.terminalEvents(code)

	case "message_stop":
		if s.stopSent {
			return nil
		}
		s.stopSent = true
		return []*llm.Event{{Type: llm.EventTypeMessageStop}}
	}
	return nil
}

// terminalEvents finalizes any still-open tool calls, then emits the
// message_delta carrying the final response and stop reason. The pair is
// emitted at most once per stream.
func (s *StreamIterator) terminalEvents(code string) []*llm.Event {
	if s.terminalSent {
		return nil
	}
	s.terminalSent = true

	var events []*llm.Event
	for _, call := range s.acc.FinishOpenToolCalls() {
		events = append(events, &llm.Event{
			Type:     llm.EventTypeContentBlockStop,
			ToolCall: call,
		})
	}
	reason := llm.StopReasonOther
	if code != "" {
		reason = stopReason(code)
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
	events = append(events, &llm.Event{
		Type:     llm.EventTypeMessageDelta,
		Delta:    &llm.EventDelta{StopReason: reason},
		Usage:    &usage,
		Response: response,
	})
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
