package routing

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/config"
)

// MetadataPreferenceKey is gateway-private request metadata that must not
// reach the upstream.
const MetadataPreferenceKey = "archgw_preference_config"

// Resolver applies model aliases and provider lookup for the request
// pipeline.
type Resolver struct {
	table   *Table
	aliases map[string]string
}

func NewResolver(cfg *config.RoutingConfig, logger *zap.Logger) (*Resolver, error) {
	table, err := NewTable(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	return &Resolver{table: table, aliases: cfg.ModelAliases}, nil
}

// Table exposes the provider table.
func (r *Resolver) Table() *Table {
	return r.table
}

// ResolveModel maps an aliased client model to its configured target, or
// returns the client model unchanged.
func (r *Resolver) ResolveModel(clientModel string) string {
	if target, ok := r.aliases[clientModel]; ok {
		return target
	}
	return clientModel
}

// ProviderPrefix returns the provider portion of a slug-style name:
// "openai/gpt-4" yields "openai", bare names are returned unchanged.
func ProviderPrefix(name string) string {
	if prefix, _, ok := strings.Cut(name, "/"); ok {
		return prefix
	}
	return name
}

// ModelNameOnly strips a provider prefix: "openai/gpt-4" yields "gpt-4".
func ModelNameOnly(model string) string {
	if _, rest, ok := strings.Cut(model, "/"); ok {
		return rest
	}
	return model
}

// PrepareBody rewrites the body for the upstream: the model field becomes
// the upstream-native name and private metadata keys are dropped.
func PrepareBody(body map[string]interface{}, upstreamModel string) {
	body["model"] = upstreamModel

	if metadata, ok := body["metadata"].(map[string]interface{}); ok {
		delete(metadata, MetadataPreferenceKey)
		if len(metadata) == 0 {
			delete(body, "metadata")
		}
	}
}
