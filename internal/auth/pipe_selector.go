package auth

import (
	"fmt"
	"strings"

	"github.com/xproxy/xproxy/internal/models"
)

// SelectedPipe is the outcome of pipe selection: the credential to use
// and the provider inferred from the requested model.
type SelectedPipe struct {
	Pipe     models.Pipe
	Provider string
}

// NoPipeFoundError reports that no active pipe matched the requested
// provider and model.
type NoPipeFoundError struct {
	Provider string
	Model    string
}

func (e *NoPipeFoundError) Error() string {
	return fmt.Sprintf("no pipe found for provider '%s' model '%s'", e.Provider, e.Model)
}

// InferProvider maps a model name to its provider. Provider-prefixed
// names ("openai/gpt-4") use the prefix; bare names are matched against
// well-known prefixes; anything else is treated as the provider itself.
func InferProvider(model string) string {
	if provider, _, ok := strings.Cut(model, "/"); ok {
		return strings.ToLower(provider)
	}

	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"),
		strings.HasPrefix(m, "chatgpt"),
		strings.HasPrefix(m, "dall-e"),
		strings.HasPrefix(m, "text-embedding"),
		strings.HasPrefix(m, "whisper"),
		strings.HasPrefix(m, "tts"):
		return "openai"
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"), strings.HasPrefix(m, "gemma"):
		return "google"
	case strings.HasPrefix(m, "mistral"),
		strings.HasPrefix(m, "mixtral"),
		strings.HasPrefix(m, "ministral"),
		strings.HasPrefix(m, "codestral"),
		strings.HasPrefix(m, "pixtral"):
		return "mistral"
	case strings.HasPrefix(m, "llama"), strings.HasPrefix(m, "meta-llama"):
		return "meta"
	case strings.HasPrefix(m, "deepseek"):
		return "deepseek"
	case strings.HasPrefix(m, "command"),
		strings.HasPrefix(m, "embed-"),
		strings.HasPrefix(m, "rerank-"):
		return "cohere"
	default:
		return m
	}
}

// SelectPipe picks the first active pipe whose provider matches the model's
// inferred provider and whose model filter admits the model. Pipes are
// scanned in list order; first match wins.
func SelectPipe(authCtx *AuthContext, model string) (*SelectedPipe, error) {
	provider := InferProvider(model)

	modelID := model
	if _, rest, ok := strings.Cut(model, "/"); ok {
		modelID = rest
	}

	for _, pipe := range authCtx.Pipes {
		if !pipe.IsActive {
			continue
		}
		if strings.ToLower(pipe.Provider) != provider {
			continue
		}
		if !pipe.AllowsModel(model, modelID) {
			continue
		}
		selected := pipe
		return &SelectedPipe{Pipe: selected, Provider: provider}, nil
	}

	return nil, &NoPipeFoundError{Provider: provider, Model: model}
}
