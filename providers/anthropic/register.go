package anthropic

import (
	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/providers"
)

func init() {
	providers.Register(BackendName, func(model, endpoint string) llm.LLM {
		opts := []Option{}
		if model != "" {
			opts = append(opts, WithModel(model))
		}
		if endpoint != "" {
			opts = append(opts, WithEndpoint(endpoint))
		}
		return New(opts...)
	})
}
