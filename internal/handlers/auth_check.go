package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/billing"
	"github.com/xproxy/xproxy/internal/middleware"
	"github.com/xproxy/xproxy/internal/models"
	"github.com/xproxy/xproxy/internal/registry"
)

// LimitStore returns the active spending limits that can apply to a
// resolved request: the user's and the project's.
type LimitStore interface {
	GetActiveLimitsForEntities(ctx context.Context, userID, projectID uuid.UUID) ([]models.SpendingLimit, error)
}

// KeyRegistry is the firewall-mode lookup surface.
type KeyRegistry interface {
	Lookup(keyHash string) (registry.KeyInfo, bool)
}

type AuthCheckConfig struct {
	Cache    *auth.Cache
	Registry KeyRegistry
	Limits   LimitStore
	Counters *billing.SpendingCounters
	Logger   *zap.Logger
}

// AuthCheckHandler is the admission side-channel. A data-plane proxy
// calls it before forwarding; the in-process pipeline reuses the same
// logic.
type AuthCheckHandler struct {
	cache    *auth.Cache
	registry KeyRegistry
	limits   LimitStore
	counters *billing.SpendingCounters
	logger   *zap.Logger
}

func NewAuthCheckHandler(cfg *AuthCheckConfig) *AuthCheckHandler {
	return &AuthCheckHandler{
		cache:    cfg.Cache,
		registry: cfg.Registry,
		limits:   cfg.Limits,
		counters: cfg.Counters,
		logger:   cfg.Logger,
	}
}

func (h *AuthCheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get(HeaderMode), "firewall") {
		h.checkFirewall(w, r)
		return
	}
	h.checkManaged(w, r)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func (h *AuthCheckHandler) checkManaged(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		middleware.RecordAdmission("managed", "unauthenticated")
		sendError(w, h.logger, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	authCtx, err := h.cache.GetOrResolve(r.Context(), auth.HashToken(token))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			middleware.RecordAdmission("managed", "unauthenticated")
			sendError(w, h.logger, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		h.logger.Error("token resolution failed", zap.Error(err))
		middleware.RecordAdmission("managed", "error")
		sendError(w, h.logger, http.StatusInternalServerError, "authentication backend unavailable")
		return
	}

	var body struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		middleware.RecordAdmission("managed", "invalid_input")
		sendError(w, h.logger, http.StatusBadRequest, "model field required in request body")
		return
	}

	selected, err := auth.SelectPipe(authCtx, body.Model)
	if err != nil {
		middleware.RecordAdmission("managed", "forbidden")
		sendError(w, h.logger, http.StatusForbidden, err.Error())
		return
	}

	if rejected, message := h.checkBudget(r.Context(), authCtx); rejected {
		middleware.RecordAdmission("managed", "over_budget")
		sendJSON(w, h.logger, http.StatusTooManyRequests, map[string]string{
			"error":   "spending_limit_exceeded",
			"message": message,
		})
		return
	}

	w.Header().Set(HeaderProviderHint, selected.Provider)
	w.Header().Set(HeaderAPIKey, selected.Pipe.APIKeyEncrypted)
	w.Header().Set(HeaderModel, body.Model)
	w.Header().Set(HeaderUserID, authCtx.UserID.String())
	w.Header().Set(HeaderProjectID, authCtx.ProjectID.String())
	w.Header().Set(HeaderPipeID, selected.Pipe.ID.String())

	middleware.RecordAdmission("managed", "ok")
	sendJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// checkBudget evaluates every active limit for the user and project
// against the in-memory counters. First exceeded limit rejects.
func (h *AuthCheckHandler) checkBudget(ctx context.Context, authCtx *auth.AuthContext) (bool, string) {
	limits, err := h.limits.GetActiveLimitsForEntities(ctx, authCtx.UserID, authCtx.ProjectID)
	if err != nil {
		// Budget checks fail open: a store outage must not take down
		// admission.
		h.logger.Warn("spending limit lookup failed", zap.Error(err))
		return false, ""
	}

	now := time.Now()
	for _, limit := range limits {
		key := billing.NewCounterKey(limit.EntityType, limit.EntityID, limit.PeriodType, now)
		if !h.counters.Check(key, limit.LimitCents*10_000) {
			return true, fmt.Sprintf("%s %s spending limit of %d cents exceeded",
				limit.PeriodType, limit.EntityType, limit.LimitCents)
		}
	}
	return false, ""
}

func (h *AuthCheckHandler) checkFirewall(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := bearerToken(r)
	if !ok {
		middleware.RecordAdmission("firewall", "unauthenticated")
		sendError(w, h.logger, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}

	keyHash := auth.HashToken(apiKey)
	info, found := h.registry.Lookup(keyHash)
	if !found {
		middleware.RecordAdmission("firewall", "unauthenticated")
		sendError(w, h.logger, http.StatusUnauthorized, "API key not registered with the gateway")
		return
	}

	w.Header().Set(HeaderFirewallMode, "true")
	w.Header().Set(HeaderUpstreamURL, info.UpstreamURL)
	w.Header().Set(HeaderProjectID, info.ProjectID.String())
	w.Header().Set(HeaderProviderHint, info.ClusterName())
	w.Header().Set(HeaderAPIKeyHash, keyHash)

	middleware.RecordAdmission("firewall", "ok")
	sendJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
