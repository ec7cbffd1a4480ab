package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sseBody(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestServerSentEventsReader(t *testing.T) {
	body := sseBody(
		"event: message_start",
		`data: {"type":"message_start"}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0}`,
		"",
	)
	reader := NewServerSentEventsReader[map[string]any](body)

	var events []map[string]any
	for {
		event, ok := reader.Next()
		if !ok {
			break
		}
		events = append(events, event)
	}
	require.NoError(t, reader.Err())
	require.Len(t, events, 2)
	require.Equal(t, "message_start", events[0]["type"])
	require.Equal(t, "content_block_delta", events[1]["type"])
	require.Equal(t, float64(0), events[1]["index"])
}

func TestServerSentEventsReaderDoneSentinel(t *testing.T) {
	body := sseBody(
		`data: {"id":"chunk-1"}`,
		"data: [DONE]",
		`data: {"id":"chunk-2"}`,
	)
	reader := NewServerSentEventsReader[map[string]any](body)

	event, ok := reader.Next()
	require.True(t, ok)
	require.Equal(t, "chunk-1", event["id"])

	// The sentinel ends the stream; the trailing chunk is never surfaced.
	_, ok = reader.Next()
	require.False(t, ok)
	require.NoError(t, reader.Err())
}

func TestServerSentEventsReaderSkipsNonJSON(t *testing.T) {
	body := sseBody(
		": keepalive comment",
		"retry: 1000",
		`data: {"ok":true}`,
	)
	reader := NewServerSentEventsReader[map[string]any](body)

	event, ok := reader.Next()
	require.True(t, ok)
	require.Equal(t, true, event["ok"])
}

func TestServerSentEventsReaderMalformedJSON(t *testing.T) {
	body := sseBody(`data: {"broken`)
	reader := NewServerSentEventsReader[map[string]any](body)

	_, ok := reader.Next()
	require.False(t, ok)
	require.Error(t, reader.Err())
}
