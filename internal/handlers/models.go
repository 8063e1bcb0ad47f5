package handlers

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/routing"
)

// ModelsHandler enumerates the configured models in the OpenAI list
// format.
type ModelsHandler struct {
	resolver *routing.Resolver
	logger   *zap.Logger
}

func NewModelsHandler(resolver *routing.Resolver, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{resolver: resolver, logger: logger}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	models := h.resolver.Table().Models()
	sort.Strings(models)

	data := make([]map[string]interface{}, 0, len(models))
	for _, model := range models {
		data = append(data, map[string]interface{}{
			"id":       model,
			"object":   "model",
			"owned_by": "xproxy",
		})
	}

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
	})
}
