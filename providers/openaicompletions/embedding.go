package openaicompletions

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/relay/embedding"
	"github.com/deepnoodle-ai/relay/providers"
	"github.com/deepnoodle-ai/wonton/retry"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

var _ embedding.Embedder = &Provider{}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Embed generates embeddings for the given inputs.
func (p *Provider) Embed(ctx context.Context, opts ...embedding.Option) (*embedding.Response, error) {
	config := &embedding.Config{Model: DefaultEmbeddingModel}
	config.Apply(opts)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(embeddingRequest{
		Input:      config.Inputs,
		Model:      config.Model,
		Dimensions: config.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	var result embeddingResponse
	err = retry.DoSimple(ctx, func() error {
		resp, err := p.post(ctx, p.embeddingEndpoint, nil, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return providers.NewError(BackendName, resp.StatusCode, readBody(resp.Body))
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 30*time.Second))
	if err != nil {
		return nil, err
	}

	response := &embedding.Response{
		Model: result.Model,
		Usage: embedding.Usage{
			PromptTokens: result.Usage.PromptTokens,
			TotalTokens:  result.Usage.TotalTokens,
		},
	}
	for _, item := range result.Data {
		response.Data = append(response.Data, embedding.Embedding{
			Index:  item.Index,
			Vector: item.Embedding,
		})
	}
	return response, nil
}
