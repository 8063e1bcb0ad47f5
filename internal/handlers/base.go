package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Admission headers consumed by the data plane.
const (
	HeaderMode         = "x-xproxy-mode"
	HeaderProviderHint = "x-xproxy-provider-hint"
	HeaderAPIKey       = "x-xproxy-api-key"
	HeaderModel        = "x-xproxy-model"
	HeaderUserID       = "x-xproxy-user-id"
	HeaderProjectID    = "x-xproxy-project-id"
	HeaderPipeID       = "x-xproxy-pipe-id"
	HeaderFirewallMode = "x-xproxy-firewall-mode"
	HeaderUpstreamURL  = "x-xproxy-upstream-url"
	HeaderAPIKeyHash   = "x-xproxy-api-key-hash"
)

// Upstream-bound headers, propagated or synthesized by the pipeline.
const (
	HeaderRequestID        = "x-request-id"
	HeaderTraceparent      = "traceparent"
	HeaderArchProviderHint = "x-arch-provider-hint"
	HeaderArchIsStreaming  = "x-arch-is-streaming"
)

func sendJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func sendError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	sendJSON(w, logger, status, map[string]string{"error": message})
}
