package google

import (
	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/providers"
)

func init() {
	// The endpoint is managed by the genai SDK and cannot be overridden here.
	providers.Register(BackendName, func(model, endpoint string) llm.LLM {
		opts := []Option{}
		if model != "" {
			opts = append(opts, WithModel(model))
		}
		return New(opts...)
	})
}
