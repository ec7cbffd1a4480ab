package openaicompletions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/providers"
	"github.com/deepnoodle-ai/wonton/retry"
)

const (
	BackendName = "openai"

	DefaultModel             = "gpt-4o"
	DefaultEndpoint          = "https://api.openai.com/v1/chat/completions"
	DefaultEmbeddingEndpoint = "https://api.openai.com/v1/embeddings"
	DefaultMaxTokens         = 8192
	DefaultMaxRetries        = 6
	DefaultRetryBaseWait     = 2 * time.Second
)

var (
	_ llm.LLM          = &Provider{}
	_ llm.StreamingLLM = &Provider{}
	_ llm.TokenCounter = &Provider{}
)

type Provider struct {
	apiKey            string
	client            *http.Client
	endpoint          string
	embeddingEndpoint string
	model             string
	maxTokens         int
	maxRetries        int
	retryBaseWait     time.Duration
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:            os.Getenv("OPENAI_API_KEY"),
		client:            http.DefaultClient,
		endpoint:          DefaultEndpoint,
		embeddingEndpoint: DefaultEmbeddingEndpoint,
		model:             DefaultModel,
		maxTokens:         DefaultMaxTokens,
		maxRetries:        DefaultMaxRetries,
		retryBaseWait:     DefaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return BackendName
}

func (p *Provider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	request, err := p.buildRequest(config)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var result Response
	err = retry.DoSimple(ctx, func() error {
		resp, err := p.post(ctx, p.endpoint, config, body)
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

	response, err := convertResponse(&result)
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
	config := &llm.Config{}
	config.Apply(opts...)

	request, err := p.buildRequest(config)
	if err != nil {
		return nil, err
	}
	request.Stream = true
	request.StreamOptions = &StreamOptions{IncludeUsage: true}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var iterator *StreamIterator
	err = retry.DoSimple(ctx, func() error {
		resp, err := p.post(ctx, p.endpoint, config, body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return providers.NewError(BackendName, resp.StatusCode, readBody(resp.Body))
		}
		iterator = newStreamIterator(resp.Body, config.Logger)
		return nil
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 30*time.Second))
	if err != nil {
		return nil, err
	}
	return iterator, nil
}

func (p *Provider) post(ctx context.Context, endpoint string, config *llm.Config, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if config != nil {
		for key, values := range config.RequestHeaders {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
	}
	return p.client.Do(req)
}

func (p *Provider) buildRequest(config *llm.Config) (*Request, error) {
	model := config.Model
	if model == "" {
		model = p.model
	}
	messages, err := convertMessages(config.Messages)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	system := config.SystemPrompt
	request := &Request{
		Model:       model,
		MaxTokens:   config.ResolvedMaxTokens(p.maxTokens),
		Temperature: config.Temperature,
	}
	if config.JSONMode {
		system = llm.AppendSystemInstruction(system,
			llm.JSONModeInstruction(config.ResponseSchema))
		request.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	if system != "" {
		messages = append([]Message{{Role: "system", Content: system}}, messages...)
	}
	request.Messages = messages
	for _, tool := range config.Tools {
		request.Tools = append(request.Tools, Tool{
			Type: "function",
			Function: Function{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.ParametersSchema(),
			},
		})
	}
	return request, nil
}

// convertMessages maps the unified message list onto chat roles. Tool
// results become standalone role "tool" messages linked to their call by
// tool_call_id; tool_use blocks ride as tool_calls on the assistant message
// that issued them.
func convertMessages(messages []*llm.Message) ([]Message, error) {
	var result []Message
	for _, message := range messages {
		if message.Role == llm.System {
			return nil, fmt.Errorf("system messages must be passed via the system prompt")
		}
		var texts []string
		var toolCalls []ToolCall
		var toolResults []Message
		for _, content := range message.Content {
			switch content.Type {
			case llm.ContentTypeText:
				texts = append(texts, content.Text)
			case llm.ContentTypeToolUse:
				arguments := string(content.Input)
				if strings.TrimSpace(arguments) == "" {
					arguments = "{}"
				}
				toolCalls = append(toolCalls, ToolCall{
					ID:   content.ID,
					Type: "function",
					Function: ToolCallFunction{
						Name:      content.Name,
						Arguments: arguments,
					},
				})
			case llm.ContentTypeToolResult:
				toolResults = append(toolResults, Message{
					Role:       "tool",
					ToolCallID: content.ToolUseID,
					Content:    content.Text,
				})
			default:
				return nil, fmt.Errorf("unsupported content type: %s", content.Type)
			}
		}
		if len(texts) > 0 || len(toolCalls) > 0 {
			result = append(result, Message{
				Role:      string(message.Role),
				Content:   strings.Join(texts, "\n"),
				ToolCalls: toolCalls,
			})
		}
		result = append(result, toolResults...)
	}
	return result, nil
}

func convertResponse(result *Response) (*llm.Response, error) {
	if len(result.Choices) == 0 {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}
	choice := result.Choices[0]

	var content []*llm.Content
	if choice.Message.Content != "" {
		content = append(content, &llm.Content{
			Type: llm.ContentTypeText,
			Text: choice.Message.Content,
		})
	}
	for _, call := range choice.Message.ToolCalls {
		arguments := call.Function.Arguments
		if strings.TrimSpace(arguments) == "" {
			arguments = "{}"
		}
		if !json.Valid([]byte(arguments)) {
			return nil, fmt.Errorf("invalid tool call arguments for %q: %s",
				call.Function.Name, truncate(arguments, 200))
		}
		content = append(content, &llm.Content{
			Type:  llm.ContentTypeToolUse,
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(arguments),
		})
	}
	if len(content) == 0 {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         result.ID,
		Model:      result.Model,
		Role:       llm.Assistant,
		StopReason: finishReason(choice.FinishReason),
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage: llm.Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}), nil
}

// finishReason maps a Chat Completions finish_reason onto the unified
// vocabulary.
func finishReason(code string) llm.StopReason {
	switch code {
	case "stop", "tool_calls", "function_call":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonMaxTokens
	case "content_filter":
		return llm.StopReasonSafety
	default:
		return llm.StopReasonOther
	}
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return string(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
