package state

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	turn := &Turn{
		InputItems: []interface{}{map[string]interface{}{"role": "user", "content": "hi"}},
		Output:     []interface{}{map[string]interface{}{"role": "assistant", "content": "hello"}},
		Model:      "gpt-4o",
	}
	require.NoError(t, store.Put(ctx, "resp_1", turn))

	got, err := store.Get(ctx, "resp_1")
	require.NoError(t, err)
	assert.Equal(t, turn, got)

	_, err = store.Get(ctx, "resp_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCombine(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	userMsg := func(s string) interface{} {
		return map[string]interface{}{"role": "user", "content": s}
	}
	assistantMsg := func(s string) interface{} {
		return map[string]interface{}{"role": "assistant", "content": s}
	}

	require.NoError(t, store.Put(ctx, "resp_1", &Turn{
		InputItems: []interface{}{userMsg("first")},
		Output:     []interface{}{assistantMsg("one")},
	}))

	combined, err := store.Combine(ctx, "resp_1", []interface{}{userMsg("second")})
	require.NoError(t, err)
	require.Len(t, combined, 3)
	assert.Equal(t, userMsg("first"), combined[0])
	assert.Equal(t, assistantMsg("one"), combined[1])
	assert.Equal(t, userMsg("second"), combined[2])

	// A stored turn holds the already-combined input, so a chain of
	// turns flattens its whole ancestry.
	require.NoError(t, store.Put(ctx, "resp_2", &Turn{
		InputItems: combined,
		Output:     []interface{}{assistantMsg("two")},
	}))

	combined, err = store.Combine(ctx, "resp_2", []interface{}{userMsg("third")})
	require.NoError(t, err)
	require.Len(t, combined, 5)
	assert.Equal(t, assistantMsg("two"), combined[3])
	assert.Equal(t, userMsg("third"), combined[4])

	_, err = store.Combine(ctx, "resp_missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewResponseID(t *testing.T) {
	id := NewResponseID()
	assert.True(t, strings.HasPrefix(id, "resp_"))
	assert.Len(t, id, len("resp_")+32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewResponseID())
}
