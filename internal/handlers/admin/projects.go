package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// ProjectHandler is the project CRUD surface. Every operation is scoped
// to the session user.
type ProjectHandler struct {
	baseHandler
}

func NewProjectHandler(db *gorm.DB, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{baseHandler: baseHandler{db: db, logger: logger}}
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req projectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := models.Project{
		UserID:      session.UserID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		h.logger.Error("failed to create project", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	h.sendJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "no session")
		return
	}

	var projects []models.Project
	if err := h.db.WithContext(r.Context()).
		Where("user_id = ?", session.UserID).
		Order("created_at ASC").
		Find(&projects).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	h.sendJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}
	h.sendJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).
		Model(&models.Project{}).
		Where("id = ?", project.ID).
		Update("is_active", false).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to deactivate project")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// ownedProject loads the path project and verifies session ownership.
func (h *baseHandler) ownedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "no session")
		return nil, false
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid project id")
		return nil, false
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", projectID, session.UserID).
		First(&project).Error; err != nil {
		h.sendError(w, http.StatusNotFound, "project not found")
		return nil, false
	}

	return &project, true
}
