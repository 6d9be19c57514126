package langgraph

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEReader(t *testing.T) {
	body := ": keep-alive\n\n" +
		"event: metadata\ndata: {\"run_id\":\"1\"}\n\n" +
		"data: line one\ndata: line two\n\n" +
		"event: end\ndata: null"

	r := newSSEReader(strings.NewReader(body))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, sseEvent{Event: "metadata", Data: `{"run_id":"1"}`}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, sseEvent{Event: "message", Data: "line one\nline two"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "end", ev.Event)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecode_Interrupt(t *testing.T) {
	c := New("http://unused")

	events, err := c.decode(sseEvent{Event: "updates", Data: `{"__interrupt__":[{"value":"Confirm scope?","resumable":true}]}`})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsPause())
	assert.Equal(t, "Confirm scope?", events[0].Payload)

	events, err = c.decode(sseEvent{Event: "updates", Data: `{"search_web":{"source_str":"..."}}`})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsPause())
	assert.Equal(t, "search_web", events[0].Name)

	_, err = c.decode(sseEvent{Event: "updates", Data: `{"__interrupt__":[]}`})
	assert.Error(t, err)
}
