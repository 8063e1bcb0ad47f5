package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/database"
)

type HealthHandler struct {
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "ok",
		"database": database.IsHealthy(),
	}
	sendJSON(w, h.logger, http.StatusOK, status)
}
