package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// ServerSentEventsReader reads typed events from a server-sent-events stream.
// It reassembles logical events from the byte stream, so consumers operate on
// whole events and never see partial lines. The literal "[DONE]" sentinel
// used by OpenAI-style streams ends the stream.
type ServerSentEventsReader[T any] struct {
	body   io.ReadCloser
	reader *bufio.Reader
	err    error
}

func NewServerSentEventsReader[T any](stream io.ReadCloser) *ServerSentEventsReader[T] {
	return &ServerSentEventsReader[T]{
		body:   stream,
		reader: bufio.NewReader(stream),
	}
}

func (s *ServerSentEventsReader[T]) Err() error {
	return s.err
}

// Next returns the next event in the stream. Returns false when the stream
// ends, the sentinel is seen, or an error occurs (check Err).
func (s *ServerSentEventsReader[T]) Next() (T, bool) {
	var zero T
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				s.err = err
			}
			return zero, false
		}

		// Skip blank separator lines
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		// SSE metadata lines ("event: ...") are not payloads
		if bytes.HasPrefix(line, []byte("event:")) {
			continue
		}

		line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data: ")))

		if bytes.Equal(line, []byte("[DONE]")) {
			return zero, false
		}

		// Skip any remaining non-JSON lines (comments, retry hints)
		if !bytes.HasPrefix(line, []byte("{")) {
			continue
		}

		var event T
		if err := json.Unmarshal(line, &event); err != nil {
			s.err = err
			return zero, false
		}
		return event, true
	}
}
