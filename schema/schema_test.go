package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizedNil(t *testing.T) {
	s := Normalized(nil)
	require.Equal(t, "object", s.Type)
	require.NotNil(t, s.Properties)
	require.Empty(t, s.Properties)
}

func TestNormalizedDefaultsMissingFields(t *testing.T) {
	s := Normalized(&Schema{})
	require.Equal(t, "object", s.Type)
	require.NotNil(t, s.Properties)
}

func TestNormalizedPreservesExisting(t *testing.T) {
	in := &Schema{
		Type: "object",
		Properties: map[string]*Property{
			"query": {Type: "string", Description: "Search query"},
		},
		Required: []string{"query"},
	}
	out := Normalized(in)
	require.Equal(t, in.Type, out.Type)
	require.Equal(t, in.Properties, out.Properties)
	require.Equal(t, in.Required, out.Required)
}
