package routing

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/config"
)

var ErrMultipleDefaults = errors.New("there must be at most one default LLM provider")

// Provider is one configured upstream entry. A wildcard entry (model "*"
// or name ending "/*") matches any model of its provider prefix.
type Provider struct {
	Name      string
	Model     string
	AccessKey string
	Endpoint  string
	Default   bool
	Stream    bool
}

// Table resolves a requested model to a provider entry. Wildcards are
// expanded at load time against the known-models dataset; unexpandable
// wildcards are synthesized per lookup. An empty table makes every
// lookup miss and the pipeline forwards to the default upstream.
type Table struct {
	providers map[string]*Provider
	wildcards map[string]*Provider
	fallback  *Provider
}

func NewTable(configs []config.ProviderConfig, logger *zap.Logger) (*Table, error) {
	t := &Table{
		providers: make(map[string]*Provider),
		wildcards: make(map[string]*Provider),
	}

	// Keys claimed by wildcard expansion. A static entry may reclaim
	// them regardless of config order; two static entries may not
	// collide.
	expanded := make(map[string]struct{})

	for _, pc := range configs {
		provider := &Provider{
			Name:      pc.Name,
			Model:     pc.Model,
			AccessKey: pc.AccessKey,
			Endpoint:  pc.Endpoint,
			Default:   pc.Default,
			Stream:    pc.Stream,
		}

		if provider.Default {
			if t.fallback != nil {
				return nil, ErrMultipleDefaults
			}
			t.fallback = provider
		}

		isWildcard := provider.Model == "*" || strings.HasSuffix(provider.Name, "/*")
		if !isWildcard {
			// Index by name, and by model id for bare-model lookups.
			keys := []string{provider.Name}
			if provider.Model != "" && provider.Model != provider.Name {
				keys = append(keys, provider.Model)
			}
			for _, key := range keys {
				if _, exists := t.providers[key]; exists {
					if _, fromWildcard := expanded[key]; !fromWildcard {
						return nil, fmt.Errorf("'%s' is not a unique name", provider.Name)
					}
					delete(expanded, key)
				}
				t.providers[key] = provider
			}
			continue
		}

		prefix := strings.TrimSuffix(provider.Name, "/*")
		prefix = strings.TrimSuffix(prefix, "*")
		t.wildcards[prefix] = provider

		models := KnownModels(prefix)
		if len(models) == 0 {
			logger.Warn("wildcard provider has no known models, matching dynamically",
				zap.String("provider", prefix))
			continue
		}

		logger.Info("expanding wildcard provider",
			zap.String("provider", prefix),
			zap.Int("models", len(models)))
		for _, model := range models {
			entry := *provider
			entry.Model = model
			entry.Name = prefix + "/" + model

			for _, key := range []string{entry.Name, model} {
				if _, exists := t.providers[key]; exists {
					continue
				}
				t.providers[key] = &entry
				expanded[key] = struct{}{}
			}
		}
	}

	return t, nil
}

// Get resolves a model or provider name to its entry. Slugs fall back to
// the wildcard table, synthesizing an entry with the slug's model.
func (t *Table) Get(name string) (*Provider, bool) {
	if provider, ok := t.providers[name]; ok {
		return provider, true
	}

	prefix, model, ok := strings.Cut(name, "/")
	if !ok {
		return nil, false
	}

	if provider, ok := t.providers[prefix+"/"+model]; ok {
		return provider, true
	}
	if provider, ok := t.providers[model]; ok {
		return provider, true
	}

	if wildcard, ok := t.wildcards[prefix]; ok {
		synthesized := *wildcard
		synthesized.Model = model
		return &synthesized, true
	}

	return nil, false
}

// Default returns the configured default provider, if any.
func (t *Table) Default() (*Provider, bool) {
	return t.fallback, t.fallback != nil
}

// Models enumerates every concrete model the table knows about, for
// GET /v1/models. Dynamic wildcards contribute nothing here.
func (t *Table) Models() []string {
	seen := make(map[string]struct{})
	var out []string
	for name, provider := range t.providers {
		model := provider.Model
		if model == "" {
			model = name
		}
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}
		out = append(out, model)
	}
	return out
}
