package embedding

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigApply(t *testing.T) {
	config := &Config{}
	config.Apply([]Option{
		WithInputs([]string{"alpha", "beta"}),
		WithModel("text-embedding-3-small"),
		WithDimensions(256),
	})
	require.Equal(t, []string{"alpha", "beta"}, config.Inputs)
	require.Equal(t, "text-embedding-3-small", config.Model)
	require.NotNil(t, config.Dimensions)
	require.Equal(t, 256, *config.Dimensions)
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, (&Config{}).Validate())
	require.Error(t, (&Config{Inputs: []string{"ok", ""}}).Validate())

	negative := -1
	require.Error(t, (&Config{Inputs: []string{"ok"}, Dimensions: &negative}).Validate())

	require.NoError(t, (&Config{Inputs: []string{"ok"}}).Validate())
}

func TestWithInputOverrides(t *testing.T) {
	config := &Config{}
	config.Apply([]Option{WithInput("only")})
	require.Equal(t, []string{"only"}, config.Inputs)
}
