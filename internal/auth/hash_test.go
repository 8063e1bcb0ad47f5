package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	// Deterministic, hex-encoded, 256-bit.
	h := HashToken("xproxy_abc123")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("xproxy_abc123"))
	assert.NotEqual(t, h, HashToken("xproxy_abc124"))
}

func TestGenerateProxyToken(t *testing.T) {
	raw, err := GenerateProxyToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "xproxy_"))
	assert.Len(t, strings.TrimPrefix(raw, "xproxy_"), 48)

	other, err := GenerateProxyToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}
