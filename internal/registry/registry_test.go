package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterName(t *testing.T) {
	assert.Equal(t, "openai", KeyInfo{Provider: "openai"}.ClusterName())
	assert.Equal(t, "openai", KeyInfo{Provider: "openai", EgressIP: "default"}.ClusterName())
	assert.Equal(t, "anthropic-10.0.0.7", KeyInfo{Provider: "anthropic", EgressIP: "10.0.0.7"}.ClusterName())
}
