package state

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractInputItems(t *testing.T) {
	assert.Nil(t, ExtractInputItems(nil))

	items := ExtractInputItems("tell me a joke")
	require.Len(t, items, 1)
	msg := items[0].(map[string]interface{})
	assert.Equal(t, "message", msg["type"])
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "tell me a joke", msg["content"])

	list := []interface{}{map[string]interface{}{"role": "user"}}
	assert.Equal(t, list, ExtractInputItems(list))
}

func TestHydrateRequestWithoutPreviousID(t *testing.T) {
	processor := NewProcessor(NewMemoryStore(), zap.NewNop())
	body := map[string]interface{}{"input": "hello"}

	combined, err := processor.HydrateRequest(context.Background(), body)
	require.NoError(t, err)
	assert.Len(t, combined, 1)

	// Without chaining the body is untouched.
	assert.Equal(t, "hello", body["input"])
}

func TestHydrateRequestChainsPreviousTurn(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "resp_1", &Turn{
		InputItems: []interface{}{map[string]interface{}{"role": "user", "content": "first"}},
		Output:     []interface{}{map[string]interface{}{"role": "assistant", "content": "one"}},
	}))

	body := map[string]interface{}{
		"input":                "second",
		"previous_response_id": "resp_1",
	}

	combined, err := processor.HydrateRequest(ctx, body)
	require.NoError(t, err)
	require.Len(t, combined, 3)

	// The upstream must not see the chaining id.
	assert.NotContains(t, body, "previous_response_id")
	assert.Equal(t, combined, body["input"])
}

func TestHydrateRequestUnknownPreviousID(t *testing.T) {
	processor := NewProcessor(NewMemoryStore(), zap.NewNop())
	body := map[string]interface{}{
		"input":                "hello",
		"previous_response_id": "resp_unknown",
	}

	_, err := processor.HydrateRequest(context.Background(), body)
	assert.ErrorIs(t, err, ErrNotFound)
}

func drainAndClose(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return data
}

func TestWrapResponseCapturesJSONBody(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())

	upstream := `{"id":"resp_abc","output":[{"role":"assistant","content":"hi"}]}`
	capture := &TurnCapture{
		CombinedInput: []interface{}{map[string]interface{}{"role": "user", "content": "hello"}},
		Model:         "gpt-4o",
	}

	wrapped := processor.WrapResponse(io.NopCloser(bytes.NewReader([]byte(upstream))), "", capture)

	// The client sees the upstream bytes unchanged.
	assert.Equal(t, upstream, string(drainAndClose(t, wrapped)))

	turn, err := store.Get(context.Background(), "resp_abc")
	require.NoError(t, err)
	assert.Equal(t, capture.CombinedInput, turn.InputItems)
	require.Len(t, turn.Output, 1)
	assert.Equal(t, "gpt-4o", turn.Model)
}

func TestWrapResponseCapturesSSEStream(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())

	stream := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"h\"}\n\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_sse\",\"output\":[{\"role\":\"assistant\",\"content\":\"hi\"}]}}\n\n" +
		"data: [DONE]\n\n"

	capture := &TurnCapture{IsStreaming: true}
	wrapped := processor.WrapResponse(io.NopCloser(bytes.NewReader([]byte(stream))), "", capture)
	drainAndClose(t, wrapped)

	turn, err := store.Get(context.Background(), "resp_sse")
	require.NoError(t, err)
	assert.True(t, turn.IsStreaming)
	require.Len(t, turn.Output, 1)
}

func TestWrapResponseIncompleteStreamNotStored(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())

	// Deltas only, no completed event: nothing to store.
	stream := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"h\"}\n\n"
	capture := &TurnCapture{IsStreaming: true}
	wrapped := processor.WrapResponse(io.NopCloser(bytes.NewReader([]byte(stream))), "", capture)
	drainAndClose(t, wrapped)

	memory := store
	memory.mu.RLock()
	defer memory.mu.RUnlock()
	assert.Empty(t, memory.turns)
}

func TestWrapResponseGzip(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(`{"id":"resp_gz","output":[{"role":"assistant","content":"hi"}]}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	capture := &TurnCapture{}
	wrapped := processor.WrapResponse(io.NopCloser(bytes.NewReader(buf.Bytes())), "gzip", capture)
	drainAndClose(t, wrapped)

	_, err = store.Get(context.Background(), "resp_gz")
	assert.NoError(t, err)
}

func TestWrapResponseSynthesizesMissingID(t *testing.T) {
	store := NewMemoryStore()
	processor := NewProcessor(store, zap.NewNop())

	upstream := `{"output":[{"role":"assistant","content":"hi"}]}`
	capture := &TurnCapture{}
	wrapped := processor.WrapResponse(io.NopCloser(bytes.NewReader([]byte(upstream))), "", capture)
	drainAndClose(t, wrapped)

	store.mu.RLock()
	defer store.mu.RUnlock()
	require.Len(t, store.turns, 1)
	for id := range store.turns {
		assert.Contains(t, id, "resp_")
	}
}
