// Package config loads relay settings from a YAML file and resolves backend
// credentials through environment variable indirection, so no file ever
// carries an API key directly.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

const (
	DefaultBackend  = "anthropic"
	DefaultLogLevel = "info"
)

// Settings is the root of the relay configuration file.
type Settings struct {
	// DefaultBackend is used when a caller does not name one.
	DefaultBackend string `yaml:"default_backend"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Backends holds per-backend overrides keyed by backend identifier.
	Backends map[string]*BackendSettings `yaml:"backends"`
}

// BackendSettings configures one backend.
type BackendSettings struct {
	// Model overrides the backend's default model.
	Model string `yaml:"model"`

	// Endpoint overrides the backend's default API endpoint.
	Endpoint string `yaml:"endpoint"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// MaxTokens overrides the default output token budget.
	MaxTokens int `yaml:"max_tokens"`
}

// APIKey resolves the backend's API key from the configured environment
// variable. Empty when no variable is configured or it is unset; providers
// fall back to their own environment defaults in that case.
func (b *BackendSettings) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// Default returns settings with all defaults applied and no file loaded.
func Default() *Settings {
	return &Settings{
		DefaultBackend: DefaultBackend,
		LogLevel:       DefaultLogLevel,
		Backends:       map[string]*BackendSettings{},
	}
}

// Load reads and parses the settings file at the given path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads the settings file if it exists, and returns defaults
// when it does not.
func LoadOrDefault(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse parses YAML settings and applies defaults for anything unset.
func Parse(data []byte) (*Settings, error) {
	settings := Default()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if settings.DefaultBackend == "" {
		settings.DefaultBackend = DefaultBackend
	}
	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}
	if settings.Backends == nil {
		settings.Backends = map[string]*BackendSettings{}
	}
	return settings, nil
}

// Backend returns the settings for the named backend, or empty settings when
// the file has no section for it.
func (s *Settings) Backend(name string) *BackendSettings {
	if b, ok := s.Backends[name]; ok && b != nil {
		return b
	}
	return &BackendSettings{}
}
