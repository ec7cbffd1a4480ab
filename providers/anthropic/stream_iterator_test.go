package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepnoodle-ai/relay/llm"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, event := range events {
			_, err := w.Write([]byte("data: " + event + "\n\n"))
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
	server := sseServer(t, []string{
		`{"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-4-5","usage":{"input_tokens":12}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"check."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"ci"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"ty\":\"Berlin\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"type":"message_delta","stop_reason":"tool_use"},"usage":{"output_tokens":9}}`,
		`{"type":"message_stop"}`,
	})
	defer server.Close()

	p := New(WithAPIKey("test-key"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("weather?"))
	require.NoError(t, err)

	events := drain(t, iterator)
	response := finalResponse(t, events)

	require.Equal(t, "msg_1", response.ID)
	require.Equal(t, llm.StopReasonStop, response.StopReason)
	require.Equal(t, "Let me check.", response.Message.Text())
	require.Len(t, response.ToolCalls, 1)
	require.Equal(t, "toolu_1", response.ToolCalls[0].ID)
	require.Equal(t, "get_weather", response.ToolCalls[0].Name)
	require.JSONEq(t, `{"city":"Berlin"}`, string(response.ToolCalls[0].Input))
	require.Equal(t, 12, response.Usage.InputTokens)
	require.Equal(t, 9, response.Usage.OutputTokens)

	last := events[len(events)-1]
	require.Equal(t, llm.EventTypeMessageStop, last.Type)
}

func TestStreamToolCallCompletedAtFragmentBoundaries(t *testing.T) {
	args := `{"query":"tall buildings","limit":25}`
	for size := 1; size <= len(args); size++ {
		events := []string{
			`{"type":"message_start","message":{"id":"msg_1","model":"m"}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search"}}`,
		}
		for start := 0; start < len(args); start += size {
			end := min(start+size, len(args))
			fragment, err := jsonEscape(args[start:end])
			require.NoError(t, err)
			events = append(events,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":`+fragment+`}}`)
		}
		events = append(events,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
			`{"type":"message_stop"}`,
		)
		server := sseServer(t, events)
		p := New(WithAPIKey("k"), WithEndpoint(server.URL))
		iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
		require.NoError(t, err)
		response := finalResponse(t, drain(t, iterator))
		require.Len(t, response.ToolCalls, 1, "fragment size %d", size)
		require.JSONEq(t, args, string(response.ToolCalls[0].Input), "fragment size %d", size)
		server.Close()
	}
}

func TestStreamUnclosedToolCallFinalizedAtEnd(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"message_start","message":{"id":"msg_1","model":"m"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"search"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\":\"x\"}"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
		`{"type":"message_stop"}`,
	})
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	response := finalResponse(t, drain(t, iterator))
	require.Len(t, response.ToolCalls, 1)
	require.JSONEq(t, `{"q":"x"}`, string(response.ToolCalls[0].Input))
}

func TestStreamMalformedToolCallDropped(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"message_start","message":{"id":"msg_1","model":"m"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"broken"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"q\": trunca"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"still here"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`{"type":"message_stop"}`,
	})
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	response := finalResponse(t, drain(t, iterator))
	require.Empty(t, response.ToolCalls)
	require.Equal(t, "still here", response.Message.Text())
	require.Equal(t, llm.StopReasonStop, response.StopReason)
}

func TestStreamTruncatedStillEmitsTerminal(t *testing.T) {
	server := sseServer(t, []string{
		`{"type":"message_start","message":{"id":"msg_1","model":"m"}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}`,
	})
	defer server.Close()

	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(context.Background(), llm.WithUserTextMessage("go"))
	require.NoError(t, err)
	events := drain(t, iterator)
	response := finalResponse(t, events)
	require.Equal(t, llm.StopReasonOther, response.StopReason)
	require.Equal(t, "partial", response.Message.Text())
	require.Equal(t, llm.EventTypeMessageStop, events[len(events)-1].Type)
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(`data: {"type":"message_start","message":{"id":"msg_1","model":"m"}}` + "\n\n"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := New(WithAPIKey("k"), WithEndpoint(server.URL))
	iterator, err := p.Stream(ctx, llm.WithUserTextMessage("go"))
	require.NoError(t, err)

	require.True(t, iterator.Next())
	cancel()

	for iterator.Next() {
	}
	require.Error(t, iterator.Err())
	require.ErrorIs(t, iterator.Err(), context.Canceled)
	require.NoError(t, iterator.Close())
}

func jsonEscape(s string) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}
