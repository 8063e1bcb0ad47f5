package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// PipeHandler manages provider credentials per project. Keys are stored
// as submitted; the api_key_encrypted column name preserves the contract
// for transparent encryption later.
type PipeHandler struct {
	baseHandler
}

func NewPipeHandler(db *gorm.DB, logger *zap.Logger) *PipeHandler {
	return &PipeHandler{baseHandler: baseHandler{db: db, logger: logger}}
}

type pipeRequest struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	APIKey      string `json:"api_key"`
	ModelFilter string `json:"model_filter"`
}

func (h *PipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req pipeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Provider == "" || req.APIKey == "" {
		h.sendError(w, http.StatusBadRequest, "name, provider and api_key are required")
		return
	}

	pipe := models.Pipe{
		ProjectID:       project.ID,
		Name:            req.Name,
		Provider:        req.Provider,
		APIKeyEncrypted: req.APIKey,
		ModelFilter:     req.ModelFilter,
		IsActive:        true,
	}
	if err := h.db.WithContext(r.Context()).Create(&pipe).Error; err != nil {
		h.logger.Error("failed to create pipe", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to create pipe")
		return
	}

	h.sendJSON(w, http.StatusCreated, pipe)
}

func (h *PipeHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var pipes []models.Pipe
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", project.ID).
		Order("created_at ASC").
		Find(&pipes).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list pipes")
		return
	}

	h.sendJSON(w, http.StatusOK, pipes)
}

func (h *PipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	pipeID, err := uuid.Parse(chi.URLParam(r, "pipeID"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid pipe id")
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.Pipe{}).
		Where("id = ? AND project_id = ?", pipeID, project.ID).
		Update("is_active", false)
	if result.Error != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to deactivate pipe")
		return
	}
	if result.RowsAffected == 0 {
		h.sendError(w, http.StatusNotFound, "pipe not found")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
