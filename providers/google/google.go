package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/deepnoodle-ai/relay/embedding"
	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/wonton/retry"
	"google.golang.org/genai"
)

const (
	BackendName = "google"

	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultTaskType       = "RETRIEVAL_DOCUMENT"
	DefaultMaxTokens      = 8192
	DefaultMaxRetries     = 6
	DefaultRetryBaseWait  = 2 * time.Second
)

var (
	_ llm.LLM            = &Provider{}
	_ llm.StreamingLLM   = &Provider{}
	_ llm.TokenCounter   = &Provider{}
	_ embedding.Embedder = &Provider{}
)

// Provider talks to Gemini through the google.golang.org/genai SDK rather
// than a hand-rolled wire codec. The client is created lazily on first use so
// that registering the backend costs nothing.
type Provider struct {
	client        *genai.Client
	apiKey        string
	projectID     string
	location      string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
	taskType      string
	mutex         sync.Mutex
}

func New(opts ...Option) *Provider {
	var apiKey string
	if value := os.Getenv("GEMINI_API_KEY"); value != "" {
		apiKey = value
	} else if value := os.Getenv("GOOGLE_API_KEY"); value != "" {
		apiKey = value
	}
	p := &Provider{
		apiKey:        apiKey,
		projectID:     os.Getenv("GOOGLE_PROJECT_ID"),
		location:      os.Getenv("GOOGLE_LOCATION"),
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
		taskType:      DefaultTaskType,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) initClient(ctx context.Context) (*genai.Client, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:   p.apiKey,
		Project:  p.projectID,
		Location: p.location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return p.client, nil
}

func (p *Provider) Name() string {
	return BackendName
}

func (p *Provider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &llm.Config{}
	config.Apply(opts...)

	model, contents, genConfig, err := p.buildRequest(config)
	if err != nil {
		return nil, err
	}

	var response *llm.Response
	err = retry.DoSimple(ctx, func() error {
		result, err := client.Models.GenerateContent(ctx, model, contents, genConfig)
		if err != nil {
			return err
		}
		response, err = convertResponse(result, model)
		return err
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 30*time.Second))
	if err != nil {
		return nil, err
	}
	if config.JSONMode {
		if err := llm.ValidateJSONMode(BackendName, response); err != nil {
			return nil, err
		}
	}
	return response, nil
}

func (p *Provider) Stream(ctx context.Context, opts ...llm.Option) (llm.StreamIterator, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &llm.Config{}
	config.Apply(opts...)

	model, contents, genConfig, err := p.buildRequest(config)
	if err != nil {
		return nil, err
	}
	seq := client.Models.GenerateContentStream(ctx, model, contents, genConfig)
	return newStreamIterator(seq, model, config.Logger), nil
}

// CountTokens counts prompt tokens with the model's own tokenizer via the
// API's count endpoint.
func (p *Provider) CountTokens(ctx context.Context, opts ...llm.Option) (int, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return 0, err
	}
	config := &llm.Config{}
	config.Apply(opts...)

	model := config.Model
	if model == "" {
		model = p.model
	}
	contents, err := messagesToContents(config.Messages)
	if err != nil {
		return 0, err
	}
	if config.SystemPrompt != "" {
		contents = append([]*genai.Content{{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(config.SystemPrompt)},
		}}, contents...)
	}

	var total int
	err = retry.DoSimple(ctx, func() error {
		result, err := client.Models.CountTokens(ctx, model, contents, nil)
		if err != nil {
			return err
		}
		total = int(result.TotalTokens)
		return nil
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 30*time.Second))
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Embed generates embeddings for the given inputs. The API embeds one input
// per call, so inputs are processed sequentially.
func (p *Provider) Embed(ctx context.Context, opts ...embedding.Option) (*embedding.Response, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &embedding.Config{Model: DefaultEmbeddingModel}
	config.Apply(opts)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	response := &embedding.Response{Model: config.Model}
	for i, input := range config.Inputs {
		embedConfig := &genai.EmbedContentConfig{TaskType: p.taskType}
		if config.Dimensions != nil {
			dim := int32(*config.Dimensions)
			embedConfig.OutputDimensionality = &dim
		}

		var result *genai.EmbedContentResponse
		err = retry.DoSimple(ctx, func() error {
			var err error
			result, err = client.Models.EmbedContent(ctx, config.Model, genai.Text(input), embedConfig)
			return err
		}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 30*time.Second))
		if err != nil {
			return nil, err
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned for input %d", i)
		}

		vector := make([]float64, len(result.Embeddings[0].Values))
		for j, value := range result.Embeddings[0].Values {
			vector[j] = float64(value)
		}
		response.Data = append(response.Data, embedding.Embedding{
			Index:  i,
			Vector: vector,
		})
		// The embedding API reports no usage; estimate it
		tokens := (len(input) + 3) / 4
		response.Usage.PromptTokens += tokens
		response.Usage.TotalTokens += tokens
	}
	return response, nil
}

func (p *Provider) buildRequest(config *llm.Config) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	model := config.Model
	if model == "" {
		model = p.model
	}
	contents, err := messagesToContents(config.Messages)
	if err != nil {
		return "", nil, nil, err
	}
	if len(contents) == 0 {
		return "", nil, nil, fmt.Errorf("no messages provided")
	}
	system := config.SystemPrompt
	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(config.ResolvedMaxTokens(p.maxTokens)),
	}
	if config.Temperature != nil {
		temperature := float32(*config.Temperature)
		genConfig.Temperature = &temperature
	}
	if config.JSONMode {
		system = llm.AppendSystemInstruction(system,
			llm.JSONModeInstruction(config.ResponseSchema))
		genConfig.ResponseMIMEType = "application/json"
	}
	if system != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		}
	}
	if len(config.Tools) > 0 {
		var declarations []*genai.FunctionDeclaration
		for _, tool := range config.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaToGenAI(tool.ParametersSchema()),
			})
		}
		genConfig.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
		genConfig.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return model, contents, genConfig, nil
}
