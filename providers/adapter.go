package providers

import (
	"context"

	"github.com/deepnoodle-ai/relay/embedding"
	"github.com/deepnoodle-ai/relay/llm"
)

// Adapter exposes the four unified operations over one backend. It is pure
// routing: capability probing is by interface assertion, and a missing
// capability fails with llm.UnsupportedCapabilityError before any network
// call. All translation lives in the backend packages.
type Adapter struct {
	impl llm.LLM
}

// NewAdapter wraps a backend provider.
func NewAdapter(impl llm.LLM) *Adapter {
	return &Adapter{impl: impl}
}

// Name returns the backend identifier.
func (a *Adapter) Name() string {
	return a.impl.Name()
}

// Unwrap returns the underlying provider.
func (a *Adapter) Unwrap() llm.LLM {
	return a.impl
}

// Generate a complete response.
func (a *Adapter) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	return a.impl.Generate(ctx, opts...)
}

// Stream a response incrementally.
func (a *Adapter) Stream(ctx context.Context, opts ...llm.Option) (llm.StreamIterator, error) {
	streamer, ok := a.impl.(llm.StreamingLLM)
	if !ok {
		return nil, &llm.UnsupportedCapabilityError{
			Backend:    a.impl.Name(),
			Capability: "streaming",
		}
	}
	return streamer.Stream(ctx, opts...)
}

// CountTokens returns the input token count for a request. Backends without
// a native counting endpoint estimate from character length, so this never
// fails for a well-formed request.
func (a *Adapter) CountTokens(ctx context.Context, opts ...llm.Option) (int, error) {
	counter, ok := a.impl.(llm.TokenCounter)
	if !ok {
		return 0, &llm.UnsupportedCapabilityError{
			Backend:    a.impl.Name(),
			Capability: "token counting",
		}
	}
	return counter.CountTokens(ctx, opts...)
}

// Embed creates embedding vectors from input text.
func (a *Adapter) Embed(ctx context.Context, opts ...embedding.Option) (*embedding.Response, error) {
	embedder, ok := a.impl.(embedding.Embedder)
	if !ok {
		return nil, &llm.UnsupportedCapabilityError{
			Backend:    a.impl.Name(),
			Capability: "embeddings",
		}
	}
	return embedder.Embed(ctx, opts...)
}
