package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/spf13/cobra"
)

func runCount(prompt string) error {
	adapter, settings, err := newAdapter()
	if err != nil {
		return err
	}
	count, err := adapter.CountTokens(context.Background(),
		llm.WithUserTextMessage(prompt),
		llm.WithLogger(newLogger(settings)),
	)
	if err != nil {
		return err
	}
	fmt.Println(count)
	return nil
}

var countCmd = &cobra.Command{
	Use:   "count [prompt]",
	Short: "Count the tokens in a prompt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCount(args[0]); err != nil {
			fmt.Println(errorStyle.Sprint(err))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
