package google

import (
	"encoding/json"
	"testing"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/deepnoodle-ai/relay/schema"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestMessagesToContentsRoles(t *testing.T) {
	contents, err := messagesToContents([]*llm.Message{
		llm.NewUserMessage("hello"),
		llm.NewAssistantMessage("hi"),
	})
	require.NoError(t, err)
	require.Len(t, contents, 2)
	require.Equal(t, "user", contents[0].Role)
	require.Equal(t, "model", contents[1].Role)
	require.Equal(t, "hello", contents[0].Parts[0].Text)
}

func TestMessagesToContentsRejectsSystemRole(t *testing.T) {
	_, err := messagesToContents([]*llm.Message{
		{Role: llm.System, Content: []*llm.Content{{Type: llm.ContentTypeText, Text: "be brief"}}},
	})
	require.Error(t, err)
}

func TestMessagesToContentsToolLinkage(t *testing.T) {
	contents, err := messagesToContents([]*llm.Message{
		llm.NewUserMessage("weather?"),
		{
			Role: llm.Assistant,
			Content: []*llm.Content{{
				Type:  llm.ContentTypeToolUse,
				ID:    "call_1",
				Name:  "get_weather",
				Input: json.RawMessage(`{"city":"Berlin"}`),
			}},
		},
		llm.NewToolOutputMessage([]*llm.ToolOutput{
			{ID: "call_1", Output: "12C"},
		}),
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	call := contents[1].Parts[0].FunctionCall
	require.NotNil(t, call)
	require.Equal(t, "call_1", call.ID)
	require.Equal(t, "get_weather", call.Name)
	require.Equal(t, map[string]any{"city": "Berlin"}, call.Args)

	result := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, result)
	require.Equal(t, "call_1", result.ID)
	require.Equal(t, "get_weather", result.Name)
	require.Equal(t, map[string]any{"output": "12C"}, result.Response)
}

func TestMessagesToContentsUnknownToolResultID(t *testing.T) {
	_, err := messagesToContents([]*llm.Message{
		llm.NewToolOutputMessage([]*llm.ToolOutput{
			{ID: "call_unknown", Output: "12C"},
		}),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "call_unknown")
}

func TestSchemaToGenAI(t *testing.T) {
	out := schemaToGenAI(&schema.Schema{
		Type: "object",
		Properties: map[string]*schema.Property{
			"city": {Type: "string", Description: "City name"},
			"tags": {Type: "array", Items: &schema.Property{Type: "string"}},
		},
		Required: []string{"city"},
	})
	require.Equal(t, genai.TypeObject, out.Type)
	require.Equal(t, genai.TypeString, out.Properties["city"].Type)
	require.Equal(t, genai.TypeArray, out.Properties["tags"].Type)
	require.Equal(t, genai.TypeString, out.Properties["tags"].Items.Type)
	require.Equal(t, []string{"city"}, out.Required)
}

func TestFinishReasonMapping(t *testing.T) {
	cases := map[genai.FinishReason]llm.StopReason{
		genai.FinishReasonStop:              llm.StopReasonStop,
		genai.FinishReasonMaxTokens:         llm.StopReasonMaxTokens,
		genai.FinishReasonSafety:            llm.StopReasonSafety,
		genai.FinishReasonRecitation:        llm.StopReasonSafety,
		genai.FinishReasonBlocklist:         llm.StopReasonSafety,
		genai.FinishReasonProhibitedContent: llm.StopReasonSafety,
		genai.FinishReasonSPII:              llm.StopReasonSafety,
		genai.FinishReason("BRAND_NEW"):     llm.StopReasonOther,
	}
	for code, want := range cases {
		require.Equal(t, want, finishReason(code), "code %q", code)
	}
}

func TestConvertResponseEmpty(t *testing.T) {
	var emptyErr *llm.EmptyResponseError

	_, err := convertResponse(nil, "m")
	require.ErrorAs(t, err, &emptyErr)

	_, err = convertResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	}, "m")
	require.ErrorAs(t, err, &emptyErr)
}

func TestConvertResponseSynthesizesCallID(t *testing.T) {
	response, err := convertResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{
						Name: "get_weather",
						Args: map[string]any{"city": "Berlin"},
					},
				}},
			},
			FinishReason: genai.FinishReasonStop,
		}},
	}, "gemini-2.5-flash")
	require.NoError(t, err)
	require.Len(t, response.ToolCalls, 1)
	require.NotEmpty(t, response.ToolCalls[0].ID)
	require.JSONEq(t, `{"city":"Berlin"}`, string(response.ToolCalls[0].Input))

	other, err := convertResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: "get_weather"},
				}},
			},
			FinishReason: genai.FinishReasonStop,
		}},
	}, "gemini-2.5-flash")
	require.NoError(t, err)
	require.NotEqual(t, response.ToolCalls[0].ID, other.ToolCalls[0].ID,
		"synthesized ids must be unique")
}

func TestNameIsBareBackendIdentifier(t *testing.T) {
	p := New(WithModel("gemini-2.5-pro"))
	require.Equal(t, BackendName, p.Name(), "Name must not carry the model")
}
