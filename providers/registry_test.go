package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/stretchr/testify/require"
)

// fakeProvider implements llm.LLM only; no streaming, counting, or
// embedding.
type fakeProvider struct {
	name      string
	generated int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	p.generated++
	return llm.NewResponse(llm.ResponseOptions{
		Role:       llm.Assistant,
		Message:    llm.NewAssistantMessage("ok"),
		StopReason: llm.StopReasonStop,
	}), nil
}

func TestRegistryUnknownBackend(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.New("nope", "", "")
	require.Error(t, err)

	var unsupported *llm.UnsupportedBackendError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "nope", unsupported.Backend)
}

func TestRegistryLazyConstruction(t *testing.T) {
	registry := NewRegistry()
	constructed := 0
	registry.Register("fake", func(model, endpoint string) llm.LLM {
		constructed++
		return &fakeProvider{name: "fake"}
	})

	require.Equal(t, 0, constructed)
	adapter, err := registry.New("fake", "", "")
	require.NoError(t, err)
	require.Equal(t, 1, constructed)
	require.Equal(t, "fake", adapter.Name())
}

func TestRegistryNames(t *testing.T) {
	registry := NewRegistry()
	registry.Register("beta", func(model, endpoint string) llm.LLM { return &fakeProvider{name: "beta"} })
	registry.Register("alpha", func(model, endpoint string) llm.LLM { return &fakeProvider{name: "alpha"} })
	require.Equal(t, []string{"alpha", "beta"}, registry.Names())
}

func TestAdapterUnsupportedCapabilities(t *testing.T) {
	adapter := NewAdapter(&fakeProvider{name: "fake"})
	ctx := context.Background()

	_, err := adapter.Stream(ctx)
	var unsupported *llm.UnsupportedCapabilityError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "fake", unsupported.Backend)

	_, err = adapter.CountTokens(ctx)
	require.True(t, errors.As(err, &unsupported))

	_, err = adapter.Embed(ctx)
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "embeddings", unsupported.Capability)
}

func TestAdapterDelegatesGenerate(t *testing.T) {
	impl := &fakeProvider{name: "fake"}
	adapter := NewAdapter(impl)
	response, err := adapter.Generate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", response.Message.Text())
	require.Equal(t, 1, impl.generated)
}
