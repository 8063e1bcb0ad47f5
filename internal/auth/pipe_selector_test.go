package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xproxy/xproxy/internal/models"
)

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model    string
		provider string
	}{
		{"gpt-4o", "openai"},
		{"o1-preview", "openai"},
		{"o3-mini", "openai"},
		{"chatgpt-4o-latest", "openai"},
		{"dall-e-3", "openai"},
		{"text-embedding-3-small", "openai"},
		{"whisper-1", "openai"},
		{"tts-1-hd", "openai"},
		{"claude-sonnet-4", "anthropic"},
		{"gemini-2.0-flash", "google"},
		{"gemma-2-9b", "google"},
		{"mistral-large-latest", "mistral"},
		{"mixtral-8x7b", "mistral"},
		{"codestral-latest", "mistral"},
		{"llama-3.3-70b", "meta"},
		{"deepseek-chat", "deepseek"},
		{"command-r-plus", "cohere"},
		{"embed-english-v3.0", "cohere"},
		{"rerank-v3.5", "cohere"},
		// Prefixed names use the prefix regardless of the model part.
		{"openai/claude-haiku", "openai"},
		{"Anthropic/claude-opus-4", "anthropic"},
		// Unknown bare names are the provider themselves.
		{"grok-3", "grok-3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.provider, InferProvider(tt.model), "model %q", tt.model)
	}
}

func pipe(provider, filter string, active bool) models.Pipe {
	return models.Pipe{
		BaseModel:       models.BaseModel{ID: uuid.New()},
		Name:            provider + "-pipe",
		Provider:        provider,
		APIKeyEncrypted: "sk-test",
		ModelFilter:     filter,
		IsActive:        active,
	}
}

func TestSelectPipeFirstMatchWins(t *testing.T) {
	first := pipe("openai", "", true)
	second := pipe("openai", "", true)
	authCtx := &AuthContext{Pipes: []models.Pipe{first, second}}

	selected, err := SelectPipe(authCtx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, first.ID, selected.Pipe.ID)
	assert.Equal(t, "openai", selected.Provider)
}

func TestSelectPipeSkipsInactiveAndWrongProvider(t *testing.T) {
	inactive := pipe("openai", "", false)
	anthropic := pipe("anthropic", "", true)
	openai := pipe("openai", "", true)
	authCtx := &AuthContext{Pipes: []models.Pipe{inactive, anthropic, openai}}

	selected, err := SelectPipe(authCtx, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, openai.ID, selected.Pipe.ID)
}

func TestSelectPipeModelFilter(t *testing.T) {
	restricted := pipe("openai", "gpt-4o-mini, gpt-4o", true)
	authCtx := &AuthContext{Pipes: []models.Pipe{restricted}}

	_, err := SelectPipe(authCtx, "gpt-4o")
	require.NoError(t, err)

	_, err = SelectPipe(authCtx, "gpt-3.5-turbo")
	var notFound *NoPipeFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "openai", notFound.Provider)
	assert.Equal(t, "gpt-3.5-turbo", notFound.Model)
	assert.Equal(t, "no pipe found for provider 'openai' model 'gpt-3.5-turbo'", err.Error())
}

func TestSelectPipeWildcardFilter(t *testing.T) {
	wildcard := pipe("anthropic", "*", true)
	authCtx := &AuthContext{Pipes: []models.Pipe{wildcard}}

	_, err := SelectPipe(authCtx, "claude-opus-4")
	require.NoError(t, err)
}

func TestSelectPipePrefixedModelMatchesBareFilter(t *testing.T) {
	// A filter listing the bare model admits the prefixed form too.
	restricted := pipe("openai", "gpt-4o", true)
	authCtx := &AuthContext{Pipes: []models.Pipe{restricted}}

	_, err := SelectPipe(authCtx, "openai/gpt-4o")
	require.NoError(t, err)
}

func TestSelectPipeNoPipes(t *testing.T) {
	authCtx := &AuthContext{}

	_, err := SelectPipe(authCtx, "claude-sonnet-4")
	var notFound *NoPipeFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "anthropic", notFound.Provider)
}
