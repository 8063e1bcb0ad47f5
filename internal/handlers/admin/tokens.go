package admin

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/models"
)

// TokenHandler issues and revokes proxy tokens. The raw token appears in
// exactly one response: the creation one. Revocation invalidates the
// auth cache entry immediately rather than waiting out the TTL.
type TokenHandler struct {
	baseHandler
	cache *auth.Cache
}

func NewTokenHandler(db *gorm.DB, cache *auth.Cache, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{baseHandler: baseHandler{db: db, logger: logger}, cache: cache}
}

type tokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	raw, err := auth.GenerateProxyToken()
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	token := models.ProxyToken{
		ProjectID: project.ID,
		TokenHash: auth.HashToken(raw),
		Name:      req.Name,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := h.db.WithContext(r.Context()).Create(&token).Error; err != nil {
		h.logger.Error("failed to create token", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	h.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"token_id":   token.ID,
		"project_id": token.ProjectID,
		"name":       token.Name,
		"expires_at": token.ExpiresAt,
		// Shown once. Only the hash is stored.
		"token": raw,
	})
}

func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var tokens []models.ProxyToken
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", project.ID).
		Order("created_at ASC").
		Find(&tokens).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	h.sendJSON(w, http.StatusOK, tokens)
}

func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	tokenID, err := uuid.Parse(chi.URLParam(r, "tokenID"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	var token models.ProxyToken
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND project_id = ?", tokenID, project.ID).
		First(&token).Error; err != nil {
		h.sendError(w, http.StatusNotFound, "token not found")
		return
	}

	if err := h.db.WithContext(r.Context()).
		Model(&models.ProxyToken{}).
		Where("id = ?", token.ID).
		Update("is_active", false).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	h.cache.Invalidate(token.TokenHash)

	h.sendJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
