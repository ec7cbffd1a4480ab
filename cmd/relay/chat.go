package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/spf13/cobra"
)

func runChat() error {
	ctx := context.Background()

	adapter, settings, err := newAdapter()
	if err != nil {
		return err
	}
	logger := newLogger(settings)
	system, _ := chatCmd.Flags().GetString("system")

	boldStyle.Printf("Chatting with %s. Type \"exit\" to quit.\n", adapter.Name())

	var messages []*llm.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		boldStyle.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		messages = append(messages, llm.NewUserMessage(input))

		opts := []llm.Option{
			llm.WithMessages(messages...),
			llm.WithLogger(logger),
		}
		if system != "" {
			opts = append(opts, llm.WithSystemPrompt(system))
		}
		if maxTokens := settings.Backend(adapter.Name()).MaxTokens; maxTokens > 0 {
			opts = append(opts, llm.WithMaxTokens(maxTokens))
		}

		response, err := streamTurn(ctx, adapter, opts)
		if err != nil {
			fmt.Println(errorStyle.Sprint(err))
			messages = messages[:len(messages)-1]
			continue
		}
		messages = append(messages, response.Message)
		printUsage(response)
	}
	return scanner.Err()
}

// streamTurn streams one assistant turn to stdout and returns the final
// response assembled by the iterator.
func streamTurn(ctx context.Context, llmClient llm.StreamingLLM, opts []llm.Option) (*llm.Response, error) {
	iterator, err := llmClient.Stream(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer iterator.Close()

	var response *llm.Response
	for iterator.Next() {
		event := iterator.Event()
		switch event.Type {
		case llm.EventTypeContentBlockDelta:
			if event.Delta.Type == llm.EventDeltaTypeText {
				assistantStyle.Print(event.Delta.Text)
			}
		case llm.EventTypeContentBlockStop:
			if event.ToolCall != nil {
				faintStyle.Printf("\n[tool call %s %s %s]",
					event.ToolCall.ID, event.ToolCall.Name, event.ToolCall.Input)
			}
		case llm.EventTypeMessageDelta:
			response = event.Response
		}
	}
	fmt.Println()
	if err := iterator.Err(); err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("stream ended without a final response")
	}
	return response, nil
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively with a backend",
	Args:  cobra.NoArgs,
}

func init() {
	chatCmd.Run = func(cmd *cobra.Command, args []string) {
		if err := runChat(); err != nil {
			fmt.Println(errorStyle.Sprint(err))
			os.Exit(1)
		}
	}
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("system", "", "System prompt")
}
