package routing

// knownModels is the embedded provider to model-list dataset used to
// expand wildcard provider entries at load time. Providers missing here
// are matched dynamically at lookup time.
var knownModels = map[string][]string{
	"openai": {
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
		"gpt-4.1-nano",
		"gpt-4",
		"gpt-4-turbo",
		"gpt-3.5-turbo",
		"o1",
		"o1-mini",
		"o3",
		"o3-mini",
		"o4-mini",
		"text-embedding-3-small",
		"text-embedding-3-large",
	},
	"anthropic": {
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-7-sonnet-20250219",
		"claude-sonnet-4-20250514",
		"claude-opus-4-20250514",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	},
	"google": {
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-pro",
		"gemini-1.5-flash",
		"gemma-3-27b-it",
	},
	"mistral": {
		"mistral-large-latest",
		"mistral-small-latest",
		"codestral-latest",
		"ministral-8b-latest",
		"pixtral-large-latest",
	},
	"deepseek": {
		"deepseek-chat",
		"deepseek-reasoner",
	},
	"cohere": {
		"command-r-plus",
		"command-r",
		"embed-english-v3.0",
		"rerank-english-v3.0",
	},
}

// KnownModels returns the embedded model list for a provider.
func KnownModels(provider string) []string {
	return knownModels[provider]
}
