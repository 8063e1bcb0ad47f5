package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModelPricing is the per-token price pair for one (provider, model), in
// cents per token.
type ModelPricing struct {
	InputPricePerToken  float64
	OutputPricePerToken float64
}

type pricingKey struct {
	Provider string
	Model    string
}

// CustomPricingStore resolves per-project and global pricing overrides.
// Overrides are denominated in cents per million tokens.
type CustomPricingStore interface {
	// GetCustomPricing returns the project-scoped override when present,
	// otherwise the global one, otherwise nil.
	GetCustomPricing(ctx context.Context, projectID *uuid.UUID, provider, model string) (*CustomPricing, error)
}

type CustomPricing struct {
	InputPricePerMillion  float64
	OutputPricePerMillion float64
}

// Registry holds the vendor pricing dataset as an immutable snapshot.
// Reload builds a new map and swaps it in atomically.
type Registry struct {
	prices atomic.Pointer[map[pricingKey]ModelPricing]
	custom CustomPricingStore
	logger *zap.Logger
}

func NewRegistry(custom CustomPricingStore, logger *zap.Logger) *Registry {
	r := &Registry{custom: custom, logger: logger}
	empty := make(map[pricingKey]ModelPricing)
	r.prices.Store(&empty)
	return r
}

// portkeyModel mirrors one model entry of the Portkey pricing dataset.
type portkeyModel struct {
	PricingConfig struct {
		PayAsYouGo struct {
			RequestToken struct {
				Price float64 `json:"price"`
			} `json:"request_token"`
			ResponseToken struct {
				Price float64 `json:"price"`
			} `json:"response_token"`
		} `json:"pay_as_you_go"`
	} `json:"pricing_config"`
}

// LoadDir reads every .json file in dir. The file stem is the provider
// name; top-level keys are model names.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read pricing dir: %w", err)
	}

	prices := make(map[pricingKey]ModelPricing)
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		provider := strings.TrimSuffix(entry.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable pricing file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		var modelMap map[string]portkeyModel
		if err := json.Unmarshal(data, &modelMap); err != nil {
			r.logger.Warn("skipping malformed pricing file",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		for model, entry := range modelMap {
			prices[pricingKey{Provider: provider, Model: model}] = ModelPricing{
				InputPricePerToken:  entry.PricingConfig.PayAsYouGo.RequestToken.Price,
				OutputPricePerToken: entry.PricingConfig.PayAsYouGo.ResponseToken.Price,
			}
		}
		files++
	}

	r.prices.Store(&prices)
	r.logger.Info("loaded model pricing",
		zap.Int("providers", files),
		zap.Int("models", len(prices)))
	return nil
}

// Lookup returns the registry pricing for (provider, model).
func (r *Registry) Lookup(provider, model string) (ModelPricing, bool) {
	p, ok := (*r.prices.Load())[pricingKey{Provider: provider, Model: model}]
	return p, ok
}

// CalculateCost prices a request from the registry alone, in cents.
// Missing pricing logs a warning and costs zero; pricing gaps never fail
// a request.
func (r *Registry) CalculateCost(provider, model string, inputTokens, outputTokens int64) float64 {
	pricing, ok := r.Lookup(provider, model)
	if !ok {
		r.logger.Warn("no pricing found for model",
			zap.String("provider", provider),
			zap.String("model", model))
		return 0
	}
	return float64(inputTokens)*pricing.InputPricePerToken + float64(outputTokens)*pricing.OutputPricePerToken
}

// CalculateCostWithCustom resolves pricing as project-scoped custom, then
// global custom, then the registry. Custom prices are cents per million
// tokens.
func (r *Registry) CalculateCostWithCustom(ctx context.Context, projectID *uuid.UUID, provider, model string, inputTokens, outputTokens int64) float64 {
	if r.custom != nil {
		custom, err := r.custom.GetCustomPricing(ctx, projectID, provider, model)
		if err != nil {
			r.logger.Warn("custom pricing lookup failed",
				zap.String("provider", provider),
				zap.String("model", model),
				zap.Error(err))
		} else if custom != nil {
			return float64(inputTokens)*custom.InputPricePerMillion/1_000_000 +
				float64(outputTokens)*custom.OutputPricePerMillion/1_000_000
		}
	}
	return r.CalculateCost(provider, model, inputTokens, outputTokens)
}
