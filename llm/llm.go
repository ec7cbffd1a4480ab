// Package llm defines the unified vocabulary and operation contract shared by
// all Relay backends. Backend packages translate between this vocabulary and
// their own wire shapes; callers only ever see the types defined here.
package llm

import "context"

// LLM is the minimal capability every backend offers: single-shot generation.
type LLM interface {
	// Name returns the backend identifier, e.g. "anthropic".
	Name() string

	// Generate a complete response from the model.
	Generate(ctx context.Context, opts ...Option) (*Response, error)
}

// StreamingLLM is implemented by backends that support incremental streaming.
type StreamingLLM interface {
	LLM

	// Stream a response from the model. The returned iterator yields unified
	// events and must be closed by the caller.
	Stream(ctx context.Context, opts ...Option) (StreamIterator, error)
}

// TokenCounter is implemented by backends that can count (or estimate) the
// input tokens of a request. Implementations must not fail for a well-formed
// request; backends without a native counting endpoint estimate from
// character length.
type TokenCounter interface {
	// CountTokens returns the input token count for the given request.
	CountTokens(ctx context.Context, opts ...Option) (int, error)
}

// StreamIterator iterates over unified events produced by a streaming call.
type StreamIterator interface {
	// Next advances to the next event in the stream. Returns true if an event
	// was successfully read, false when the stream is complete or an error
	// occurs.
	Next() bool

	// Event returns the current event. Should only be called after a
	// successful Next().
	Event() *Event

	// Err returns any error that occurred while reading from the stream.
	Err() error

	// Close closes the stream and releases any associated resources.
	Close() error
}
