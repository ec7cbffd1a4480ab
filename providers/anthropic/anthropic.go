package anthropic

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
	"unicode/utf8"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/providers"
	"github.com/deepnoodle-ai/wonton/retry"
)

const (
	BackendName = "anthropic"

	DefaultModel         = "claude-sonnet-4-5"
	DefaultEndpoint      = "https://api.anthropic.com/v1/messages"
	DefaultVersion       = "2023-06-01"
	DefaultMaxTokens     = 8192
	DefaultMaxRetries    = 6
	DefaultRetryBaseWait = 2 * time.Second
)

var (
	_ llm.LLM          = &Provider{}
	_ llm.StreamingLLM = &Provider{}
	_ llm.TokenCounter = &Provider{}
)

type Provider struct {
	apiKey        string
	client        *http.Client
	endpoint      string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
	version       string
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:        os.Getenv("ANTHROPIC_API_KEY"),
		client:        http.DefaultClient,
		endpoint:      DefaultEndpoint,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
		version:       DefaultVersion,
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
		resp, err := p.post(ctx, config, body)
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
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var iterator *StreamIterator
	err = retry.DoSimple(ctx, func() error {
		resp, err := p.post(ctx, config, body)
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

// CountTokens estimates the token count of the prompt. The Messages API has
// a dedicated count endpoint but a character heuristic is close enough for
// budget checks, at roughly four characters per token.
func (p *Provider) CountTokens(ctx context.Context, opts ...llm.Option) (int, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	var chars int
	chars += utf8.RuneCountInString(config.SystemPrompt)
	for _, message := range config.Messages {
		for _, content := range message.Content {
			switch content.Type {
			case llm.ContentTypeText:
				chars += utf8.RuneCountInString(content.Text)
			case llm.ContentTypeToolResult:
				chars += utf8.RuneCountInString(content.Text)
			case llm.ContentTypeToolUse:
				chars += len(content.Input)
			}
		}
	}
	return chars/4 + 1, nil
}

func (p *Provider) post(ctx context.Context, config *llm.Config, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)
	req.Header.Set("Anthropic-Version", p.version)
	for key, values := range config.RequestHeaders {
		for _, value := range values {
			req.Header.Add(key, value)
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
	if config.JSONMode {
		system = llm.AppendSystemInstruction(system,
			llm.JSONModeInstruction(config.ResponseSchema))
	}
	request := &Request{
		Model:       model,
		Messages:    messages,
		MaxTokens:   config.ResolvedMaxTokens(p.maxTokens),
		Temperature: config.Temperature,
		System:      system,
	}
	for _, tool := range config.Tools {
		request.Tools = append(request.Tools, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.ParametersSchema(),
		})
	}
	return request, nil
}

// convertMessages maps the unified message list onto the Messages API
// shape. System messages fold into the system slot upstream and are
// rejected here. Consecutive messages with the same role merge into one
// wire message, and runs of text parts within a turn merge into one text
// block, since the API requires alternating roles.
func convertMessages(messages []*llm.Message) ([]Message, error) {
	var result []Message
	for _, message := range messages {
		if message.Role == llm.System {
			return nil, fmt.Errorf("system messages must be passed via the system prompt")
		}
		blocks, err := convertContent(message.Content)
		if err != nil {
			return nil, err
		}
		role := string(message.Role)
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = mergeText(append(result[n-1].Content, blocks...))
			continue
		}
		result = append(result, Message{Role: role, Content: mergeText(blocks)})
	}
	return result, nil
}

func convertContent(content []*llm.Content) ([]ContentBlock, error) {
	var blocks []ContentBlock
	for _, item := range content {
		switch item.Type {
		case llm.ContentTypeText:
			blocks = append(blocks, ContentBlock{Type: "text", Text: item.Text})
		case llm.ContentTypeImage:
			blocks = append(blocks, ContentBlock{
				Type: "image",
				Source: &ImageSource{
					Type:      "base64",
					MediaType: item.MediaType,
					Data:      item.Data,
				},
			})
		case llm.ContentTypeToolUse:
			input := item.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, ContentBlock{
				Type:  "tool_use",
				ID:    item.ID,
				Name:  item.Name,
				Input: input,
			})
		case llm.ContentTypeToolResult:
			blocks = append(blocks, ContentBlock{
				Type:      "tool_result",
				ToolUseID: item.ToolUseID,
				Content:   item.Text,
			})
		default:
			return nil, fmt.Errorf("unsupported content type: %s", item.Type)
		}
	}
	return blocks, nil
}

func mergeText(blocks []ContentBlock) []ContentBlock {
	var merged []ContentBlock
	for _, block := range blocks {
		if n := len(merged); n > 0 && block.Type == "text" && merged[n-1].Type == "text" {
			merged[n-1].Text += block.Text
			continue
		}
		merged = append(merged, block)
	}
	return merged
}

func convertResponse(result *Response) (*llm.Response, error) {
	var content []*llm.Content
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			content = append(content, &llm.Content{
				Type: llm.ContentTypeText,
				Text: block.Text,
			})
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			if !json.Valid(input) {
				return nil, fmt.Errorf("invalid tool call input for %q: %s",
					block.Name, truncate(string(block.Input), 200))
			}
			content = append(content, &llm.Content{
				Type:  llm.ContentTypeToolUse,
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	if len(content) == 0 {
		return nil, &llm.EmptyResponseError{Backend: BackendName}
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         result.ID,
		Model:      result.Model,
		Role:       llm.Assistant,
		StopReason: stopReason(result.StopReason),
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage: llm.Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}), nil
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
