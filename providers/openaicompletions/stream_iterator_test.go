package openaicompletions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/stretchr/testify/require"
)

func chunkServer(t *testing.T, chunks []string, done bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.True(t, request.Stream)
		require.NotNil(t, request.StreamOptions)
		require.True(t, request.StreamOptions.IncludeUsage)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			_, err := w.Write([]byte("data: " + chunk + "\n\n"))
			require.NoError(t, err)
		}
		if done {
			_, err := w.Write([]byte("data: [DONE]\n\n"))
			require.NoError(t, err)
		}
	}))
}

func drain(t *testing.T, iterator llm.StreamIterator) []*llm.Event {
	t.Helper()
	var events []*llm.Event
	for iterator.Next() {
		events = append(events, iterator.Event())
	}
	require.NoError(t, iterator.Err())
	require.NoError(t, iterator.Close())
	return events
}

func finalResponse(t *testing.T, events []*llm.Event) *llm.Response {
	t.Helper()
	var response *llm.Response
	for _, event := range events {
		if event.Type == llm.EventTypeMessageDelta {
			require.Nil(t, response, "terminal message_delta must be emitted exactly once")
			require.NotNil(t, event.Response)
			response = event.Response
		}
	}
	require.NotNil(t, response)
	return response
}

func TestStreamTextAndToolCall(t *testing.T) {
	server := chunkServer(t, []string{
		`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"check."}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"ci"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ty\":\"Berlin\"}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"id":"chatcmpl-1","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":9}}`,
	}, true)
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("weather?"))
	require.NoError(t, err)

	events := drain(t, iterator)
	require.Equal(t, llm.EventTypeMessageStart, events[0].Type)

	response := finalResponse(t, events)
	require.Equal(t, "chatcmpl-1", response.ID)
	require.Equal(t, llm.StopReasonStop, response.StopReason)
	require.Equal(t, "Let me check.", response.Message.Text())
	require.Len(t, response.ToolCalls, 1)
	require.Equal(t, "call_1", response.ToolCalls[0].ID)
	require.Equal(t, "get_weather", response.ToolCalls[0].Name)
	require.JSONEq(t, `{"city":"Berlin"}`, string(response.ToolCalls[0].Input))
	require.Equal(t, 12, response.Usage.InputTokens)
	require.Equal(t, 9, response.Usage.OutputTokens)
	require.Equal(t, llm.EventTypeMessageStop, events[len(events)-1].Type)
}

func TestStreamParallelToolCallsDoNotMix(t *testing.T) {
	server := chunkServer(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"alpha","arguments":"{\"a\":"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"beta","arguments":"{\"b\":"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"function":{"arguments":"2}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}, true)
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	response := finalResponse(t, drain(t, iterator))

	require.Len(t, response.ToolCalls, 2)
	require.Equal(t, "call_a", response.ToolCalls[0].ID)
	require.JSONEq(t, `{"a":1}`, string(response.ToolCalls[0].Input))
	require.Equal(t, "call_b", response.ToolCalls[1].ID)
	require.JSONEq(t, `{"b":2}`, string(response.ToolCalls[1].Input))
}

func TestStreamSynthesizesMissingToolCallID(t *testing.T) {
	server := chunkServer(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"search","arguments":"{}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}, true)
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	response := finalResponse(t, drain(t, iterator))

	require.Len(t, response.ToolCalls, 1)
	require.NotEmpty(t, response.ToolCalls[0].ID)
}

func TestStreamWithoutDoneSentinelStillTerminates(t *testing.T) {
	server := chunkServer(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"partial"}}]}`,
	}, false)
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	events := drain(t, iterator)
	response := finalResponse(t, events)
	require.Equal(t, "partial", response.Message.Text())
	require.Equal(t, llm.StopReasonOther, response.StopReason)
	require.Equal(t, llm.EventTypeMessageStop, events[len(events)-1].Type)
}

func TestStreamMalformedToolCallDropped(t *testing.T) {
	server := chunkServer(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"broken","arguments":"{\"q\": tru"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"still here"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	}, true)
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	response := finalResponse(t, drain(t, iterator))
	require.Empty(t, response.ToolCalls)
	require.Equal(t, "still here", response.Message.Text())
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk := `{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"ci"}}]}}]}`
		w.Write([]byte("data: " + chunk + "\n\n"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(ctx, llm.WithUserTextMessage("weather?"))
	require.NoError(t, err)

	require.True(t, iterator.Next())
	cancel()

	var sawTerminal bool
	for iterator.Next() {
		if iterator.Event().Type == llm.EventTypeMessageDelta {
			sawTerminal = true
		}
	}
	require.ErrorIs(t, iterator.Err(), context.Canceled)
	require.False(t, sawTerminal, "canceled stream must not finalize the open call")
	require.NoError(t, iterator.Close())
}
