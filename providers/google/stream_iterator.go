package google

import (
	"encoding/json"
	"iter"
	"sync"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/log"
	"github.com/deepnoodle-ai/relay/providers"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

var _ llm.StreamIterator = &StreamIterator{}

// StreamIterator translates a genai response sequence into unified events.
// The SDK hands back an iter.Seq2 push sequence; iter.Pull2 turns it into
// the pull shape the StreamIterator contract needs. Gemini delivers each
// function call whole in a single chunk, so tool blocks open, carry their
// full argument payload, and close within one translation step.
type StreamIterator struct {
	next         func() (*genai.GenerateContentResponse, error, bool)
	stop         func()
	acc          *providers.StreamAccumulator
	queue        []*llm.Event
	currentEvent *llm.Event
	err          error
	closeOnce    sync.Once

	model      string
	responseID string
	usage      llm.Usage
	finish     genai.FinishReason
	started    bool
	textOpen   bool
	nextBlock  int
	finished   bool
}

func newStreamIterator(seq iter.Seq2[*genai.GenerateContentResponse, error], model string, logger log.Logger) *StreamIterator {
	next, stop := iter.Pull2(seq)
	return &StreamIterator{
		next:       next,
		stop:       stop,
		acc:        providers.NewStreamAccumulator(BackendName, logger),
		model:      model,
		responseID: "google_" + uuid.NewString(),
		nextBlock:  1,
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
		chunk, err, ok := s.next()
		if !ok {
			s.queue = append(s.queue, s.finishEvents()...)
			s.finished = true
			continue
		}
		if err != nil {
			s.err = err
			s.Close()
			return false
		}
		s.queue = append(s.queue, s.translate(chunk)...)
	}
}

func (s *StreamIterator) translate(chunk *genai.GenerateContentResponse) []*llm.Event {
	var events []*llm.Event
	if !s.started {
		s.started = true
		events = append(events, &llm.Event{Type: llm.EventTypeMessageStart})
	}
	if chunk.UsageMetadata != nil {
		s.usage = llm.Usage{
			InputTokens:  int(chunk.UsageMetadata.PromptTokenCount),
			OutputTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(chunk.Candidates) == 0 {
		return events
	}
	candidate := chunk.Candidates[0]
	if candidate.FinishReason != "" {
		s.finish = candidate.FinishReason
	}
	if candidate.Content == nil {
		return events
	}
	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != "":
			events = append(events, s.textEvents(part.Text)...)
		case part.FunctionCall != nil:
			events = append(events, s.toolCallEvents(part.FunctionCall)...)
		}
	}
	return events
}

func (s *StreamIterator) textEvents(text string) []*llm.Event {
	var events []*llm.Event
	index := 0
	if !s.textOpen {
		s.textOpen = true
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

func (s *StreamIterator) toolCallEvents(call *genai.FunctionCall) []*llm.Event {
	index := s.nextBlock
	s.nextBlock++

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	input, err := json.Marshal(args)
	if err != nil {
		// Args came from decoded JSON, so this should not happen; treat it
		// like a malformed call and let the accumulator drop it.
		input = []byte("not json")
	}

	s.acc.OpenToolCall(index, call.ID, call.Name)
	s.acc.AppendToolArguments(index, string(input))

	events := []*llm.Event{
		{
			Type:  llm.EventTypeContentBlockStart,
			Index: &index,
			ContentBlock: &llm.EventContentBlock{
				Type: llm.ContentTypeToolUse,
				ID:   call.ID,
				Name: call.Name,
			},
		},
		{
			Type:  llm.EventTypeContentBlockDelta,
			Index: &index,
			Delta: &llm.EventDelta{
				Type:        llm.EventDeltaTypeInputJSON,
				PartialJSON: string(input),
			},
		},
	}
	stop := &llm.Event{Type: llm.EventTypeContentBlockStop, Index: &index}
	if completed := s.acc.CloseToolCall(index); completed != nil {
		stop.ToolCall = completed
	}
	return append(events, stop)
}

func (s *StreamIterator) finishEvents() []*llm.Event {
	var events []*llm.Event
	for _, call := range s.acc.FinishOpenToolCalls() {
		events = append(events, &llm.Event{
			Type:     llm.EventTypeContentBlockStop,
			ToolCall: call,
		})
	}
	reason := llm.StopReasonOther
	if s.finish != "" {
		reason = finishReason(s.finish)
	}
	usage := s.usage
	response := llm.NewResponse(llm.ResponseOptions{
		ID:         s.responseID,
		Model:      s.model,
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
	s.closeOnce.Do(s.stop)
	return nil
}
