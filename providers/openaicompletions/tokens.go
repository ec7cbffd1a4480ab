package openaicompletions

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// CountTokens counts prompt tokens locally with the cl100k_base encoding.
// The encoding is shared across current chat models and close enough for the
// rest; if the codec cannot be loaded a character heuristic stands in.
func (p *Provider) CountTokens(ctx context.Context, opts ...llm.Option) (int, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	var total int
	count := func(text string) {
		if text == "" {
			return
		}
		c, err := getCodec()
		if err != nil {
			total += utf8.RuneCountInString(text)/4 + 1
			return
		}
		n, err := c.Count(text)
		if err != nil {
			total += utf8.RuneCountInString(text)/4 + 1
			return
		}
		total += n
	}

	count(config.SystemPrompt)
	for _, message := range config.Messages {
		for _, content := range message.Content {
			switch content.Type {
			case llm.ContentTypeText, llm.ContentTypeToolResult:
				count(content.Text)
			case llm.ContentTypeToolUse:
				count(string(content.Input))
			}
		}
	}
	return total, nil
}
