package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deepnoodle-ai/relay/config"
	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/log"
	"github.com/deepnoodle-ai/relay/providers"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/deepnoodle-ai/relay/providers/anthropic"
	_ "github.com/deepnoodle-ai/relay/providers/google"
	_ "github.com/deepnoodle-ai/relay/providers/openaicompletions"
)

var (
	errorStyle     = color.New(color.FgRed)
	boldStyle      = color.New(color.Bold)
	assistantStyle = color.New(color.FgGreen)
	faintStyle     = color.New(color.Faint)
)

var (
	flagBackend  string
	flagModel    string
	flagEndpoint string
	flagConfig   string
	flagLogLevel string
)

// Environment variables each backend reads its API key from, used when the
// config file routes a key through a differently-named variable.
var apiKeyVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GEMINI_API_KEY",
}

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay provides one chat interface across LLM backends",
	Long:  "Relay normalizes requests, responses, streaming, and tool calls across LLM backends.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(errorStyle.Sprint(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBackend, "backend", "b", "", "Backend to use (anthropic, openai, google)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "API endpoint override")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "relay.yaml"
	}
	return filepath.Join(home, ".relay", "relay.yaml")
}

// newAdapter resolves settings with flags taking precedence over the config
// file and builds the selected backend.
func newAdapter() (*providers.Adapter, *config.Settings, error) {
	settings, err := config.LoadOrDefault(configPath())
	if err != nil {
		return nil, nil, err
	}

	backend := flagBackend
	if backend == "" {
		backend = settings.DefaultBackend
	}
	backendSettings := settings.Backend(backend)

	model := flagModel
	if model == "" {
		model = backendSettings.Model
	}
	endpoint := flagEndpoint
	if endpoint == "" {
		endpoint = backendSettings.Endpoint
	}
	if key := backendSettings.APIKey(); key != "" {
		if envVar, ok := apiKeyVars[backend]; ok {
			os.Setenv(envVar, key)
		}
	}

	adapter, err := providers.New(backend, model, endpoint)
	if err != nil {
		return nil, nil, err
	}
	return adapter, settings, nil
}

func newLogger(settings *config.Settings) log.Logger {
	level := flagLogLevel
	if level == "" {
		level = settings.LogLevel
	}
	return log.New(log.LevelFromString(level))
}

func printUsage(response *llm.Response) {
	faintStyle.Fprintf(os.Stderr, "[%s: %d in, %d out]\n",
		response.Model, response.Usage.InputTokens, response.Usage.OutputTokens)
}
