package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/spf13/cobra"
)

func runGenerate(prompt string) error {
	ctx := context.Background()

	adapter, settings, err := newAdapter()
	if err != nil {
		return err
	}
	logger := newLogger(settings)

	opts := []llm.Option{
		llm.WithUserTextMessage(prompt),
		llm.WithLogger(logger),
	}
	system, _ := generateCmd.Flags().GetString("system")
	if system != "" {
		opts = append(opts, llm.WithSystemPrompt(system))
	}
	maxTokens, _ := generateCmd.Flags().GetInt("max-tokens")
	if maxTokens == 0 {
		maxTokens = settings.Backend(adapter.Name()).MaxTokens
	}
	if maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(maxTokens))
	}
	if generateCmd.Flags().Changed("temperature") {
		temperature, _ := generateCmd.Flags().GetFloat64("temperature")
		opts = append(opts, llm.WithTemperature(temperature))
	}
	jsonMode, _ := generateCmd.Flags().GetBool("json")
	if jsonMode {
		opts = append(opts, llm.WithJSONMode(true))
	}

	response, err := adapter.Generate(ctx, opts...)
	if err != nil {
		return err
	}
	fmt.Println(response.Message.CompleteText())
	for _, call := range response.ToolCalls {
		faintStyle.Fprintf(os.Stderr, "[tool call %s %s %s]\n", call.ID, call.Name, call.Input)
	}
	printUsage(response)
	return nil
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a response to a prompt",
	Args:  cobra.ExactArgs(1),
}

func init() {
	generateCmd.Run = func(cmd *cobra.Command, args []string) {
		if err := runGenerate(args[0]); err != nil {
			fmt.Println(errorStyle.Sprint(err))
			os.Exit(1)
		}
	}
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("system", "", "System prompt")
	generateCmd.Flags().Int("max-tokens", 0, "Maximum output tokens")
	generateCmd.Flags().Float64("temperature", 0, "Sampling temperature")
	generateCmd.Flags().Bool("json", false, "Request a JSON object response")
}
