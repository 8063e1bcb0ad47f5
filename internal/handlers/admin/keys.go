package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/models"
)

// RegistryReloader refreshes the firewall key snapshot after a write so
// new registrations take effect without waiting for the next tick.
type RegistryReloader interface {
	Reload(ctx context.Context) (int, error)
}

// RegisteredKeyHandler manages firewall-mode key registrations. The
// submitted upstream key is hashed immediately; the raw key is never
// stored.
type RegisteredKeyHandler struct {
	baseHandler
	registry RegistryReloader
}

func NewRegisteredKeyHandler(db *gorm.DB, registry RegistryReloader, logger *zap.Logger) *RegisteredKeyHandler {
	return &RegisteredKeyHandler{baseHandler: baseHandler{db: db, logger: logger}, registry: registry}
}

type registerKeyRequest struct {
	APIKey      string `json:"api_key"`
	Provider    string `json:"provider"`
	UpstreamURL string `json:"upstream_url"`
	DisplayName string `json:"display_name"`
	EgressIP    string `json:"egress_ip"`
}

func (h *RegisteredKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req registerKeyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.APIKey == "" || req.Provider == "" || req.UpstreamURL == "" {
		h.sendError(w, http.StatusBadRequest, "api_key, provider and upstream_url are required")
		return
	}
	if req.EgressIP == "" {
		req.EgressIP = "default"
	}

	key := models.RegisteredAPIKey{
		ProjectID:   project.ID,
		KeyHash:     auth.HashToken(req.APIKey),
		Provider:    req.Provider,
		UpstreamURL: req.UpstreamURL,
		DisplayName: req.DisplayName,
		EgressIP:    req.EgressIP,
		IsActive:    true,
	}
	if err := h.db.WithContext(r.Context()).Create(&key).Error; err != nil {
		h.logger.Error("failed to register API key", zap.Error(err))
		h.sendError(w, http.StatusConflict, "API key already registered")
		return
	}

	if h.registry != nil {
		if _, err := h.registry.Reload(r.Context()); err != nil {
			h.logger.Warn("registry reload after registration failed", zap.Error(err))
		}
	}

	h.sendJSON(w, http.StatusCreated, key)
}

func (h *RegisteredKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var keys []models.RegisteredAPIKey
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", project.ID).
		Order("created_at ASC").
		Find(&keys).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list registered keys")
		return
	}

	h.sendJSON(w, http.StatusOK, keys)
}

func (h *RegisteredKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.RegisteredAPIKey{}).
		Where("id = ? AND project_id = ?", keyID, project.ID).
		Update("is_active", false)
	if result.Error != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to deactivate key")
		return
	}
	if result.RowsAffected == 0 {
		h.sendError(w, http.StatusNotFound, "key not found")
		return
	}

	if h.registry != nil {
		if _, err := h.registry.Reload(r.Context()); err != nil {
			h.logger.Warn("registry reload after deactivation failed", zap.Error(err))
		}
	}

	h.sendJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
