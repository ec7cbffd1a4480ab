package llm

import (
	"net/http"

	"github.com/deepnoodle-ai/relay/log"
	"github.com/deepnoodle-ai/relay/schema"
)

// DefaultMaxTokens is the fallback output token limit applied by request
// translators when the caller sets nothing.
const DefaultMaxTokens = 8192

// Option is a function that configures LLM calls.
type Option func(*Config)

// Config holds the unified request: messages, tools and generation options.
// There is exactly one source of truth for each value; request translators
// read this struct and nothing else.
type Config struct {
	Model          string
	SystemPrompt   string
	Messages       []*Message
	MaxTokens      *int
	Temperature    *float64
	Tools          []*Tool
	JSONMode       bool
	ResponseSchema *schema.Schema
	RequestHeaders http.Header
	Logger         log.Logger
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// ResolvedMaxTokens returns the configured max output tokens, falling back to
// the given provider default, then to DefaultMaxTokens.
func (c *Config) ResolvedMaxTokens(providerDefault int) int {
	if c.MaxTokens != nil {
		return *c.MaxTokens
	}
	if providerDefault > 0 {
		return providerDefault
	}
	return DefaultMaxTokens
}

// WithModel sets the model for the generation.
func WithModel(model string) Option {
	return func(config *Config) {
		config.Model = model
	}
}

// WithMessages sets the conversation messages.
func WithMessages(messages ...*Message) Option {
	return func(config *Config) {
		config.Messages = messages
	}
}

// WithUserTextMessage sets a single user text message as the conversation.
func WithUserTextMessage(text string) Option {
	return func(config *Config) {
		config.Messages = []*Message{NewUserMessage(text)}
	}
}

// WithMaxTokens sets the max output tokens.
func WithMaxTokens(maxTokens int) Option {
	return func(config *Config) {
		config.MaxTokens = &maxTokens
	}
}

// WithTemperature sets the temperature. When unset, backends receive no
// temperature value at all.
func WithTemperature(temperature float64) Option {
	return func(config *Config) {
		config.Temperature = &temperature
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(systemPrompt string) Option {
	return func(config *Config) {
		config.SystemPrompt = systemPrompt
	}
}

// WithTools sets the tools available to the model.
func WithTools(tools ...*Tool) Option {
	return func(config *Config) {
		config.Tools = tools
	}
}

// WithJSONMode requests that the entire textual output be valid JSON. This is
// a cooperative instruction appended to the system prompt; the response is
// validated after the fact and fails with a JSONModeViolationError when the
// model does not comply.
func WithJSONMode(enabled bool) Option {
	return func(config *Config) {
		config.JSONMode = enabled
	}
}

// WithResponseSchema sets the schema the JSON-mode response should match.
func WithResponseSchema(s *schema.Schema) Option {
	return func(config *Config) {
		config.ResponseSchema = s
	}
}

// WithRequestHeaders sets additional HTTP headers sent with each request.
func WithRequestHeaders(headers http.Header) Option {
	return func(config *Config) {
		config.RequestHeaders = headers
	}
}

// WithLogger sets the logger used for diagnostics during the call.
func WithLogger(logger log.Logger) Option {
	return func(config *Config) {
		config.Logger = logger
	}
}
