package main

import (
	"context"
	"fmt"
	"os"

	"github.com/deepnoodle-ai/relay/embedding"
	"github.com/spf13/cobra"
)

func runEmbed(inputs []string) error {
	adapter, _, err := newAdapter()
	if err != nil {
		return err
	}

	opts := []embedding.Option{embedding.WithInputs(inputs)}
	model, _ := embedCmd.Flags().GetString("embedding-model")
	if model != "" {
		opts = append(opts, embedding.WithModel(model))
	}
	dimensions, _ := embedCmd.Flags().GetInt("dimensions")
	if dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(dimensions))
	}

	response, err := adapter.Embed(context.Background(), opts...)
	if err != nil {
		return err
	}
	for _, item := range response.Data {
		fmt.Printf("%d: %d dimensions", item.Index, len(item.Vector))
		if len(item.Vector) > 0 {
			fmt.Printf(", first %v", item.Vector[0])
		}
		fmt.Println()
	}
	faintStyle.Fprintf(os.Stderr, "[%s: %d tokens]\n", response.Model, response.Usage.TotalTokens)
	return nil
}

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Generate embeddings for one or more texts",
	Args:  cobra.MinimumNArgs(1),
}

func init() {
	embedCmd.Run = func(cmd *cobra.Command, args []string) {
		if err := runEmbed(args); err != nil {
			fmt.Println(errorStyle.Sprint(err))
			os.Exit(1)
		}
	}
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().String("embedding-model", "", "Embedding model to use")
	embedCmd.Flags().Int("dimensions", 0, "Output embedding dimensions")
}
