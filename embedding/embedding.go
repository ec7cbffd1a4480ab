// Package embedding defines the provider-neutral embedding request and
// response types shared by backends that support embedding generation.
package embedding

import (
	"context"
	"fmt"
)

// Embedder represents a service that can generate embeddings from text.
type Embedder interface {
	// Name returns the name of the embedding provider
	Name() string

	// Embed creates embedding vectors from the input text
	Embed(ctx context.Context, opts ...Option) (*Response, error)
}

// Response represents the result of an embedding generation request.
type Response struct {
	// Data contains the generated embedding vectors
	Data []Embedding `json:"data"`

	// Model is the name of the model used to generate the embeddings
	Model string `json:"model"`

	// Usage contains token usage information
	Usage Usage `json:"usage"`
}

// Embedding represents a single embedding vector.
type Embedding struct {
	// Index is the index of this embedding in the request
	Index int `json:"index"`

	// Vector is the embedding vector
	Vector []float64 `json:"vector"`
}

// Usage represents token usage for embedding generation.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Config contains configuration for embedding generation.
type Config struct {
	// Inputs are the texts to embed (required)
	Inputs []string

	// Model to use for embedding generation
	Model string

	// Dimensions for the output embeddings (optional)
	Dimensions *int
}

// Option is a function that configures embedding generation.
type Option func(*Config)

// Apply applies the given options to the config.
func (c *Config) Apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithInput sets a single input text.
func WithInput(input string) Option {
	return func(c *Config) {
		c.Inputs = []string{input}
	}
}

// WithInputs sets multiple input texts.
func WithInputs(inputs []string) Option {
	return func(c *Config) {
		c.Inputs = inputs
	}
}

// WithModel sets the model for embedding generation.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithDimensions sets the number of dimensions for the output embeddings.
func WithDimensions(dimensions int) Option {
	return func(c *Config) {
		c.Dimensions = &dimensions
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return fmt.Errorf("input is required")
	}
	for i, s := range c.Inputs {
		if s == "" {
			return fmt.Errorf("input string at index %d cannot be empty", i)
		}
	}
	if c.Dimensions != nil && *c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be a positive integer")
	}
	return nil
}
