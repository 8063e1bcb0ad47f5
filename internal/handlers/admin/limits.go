package admin

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xproxy/xproxy/internal/models"
)

// LimitHandler manages spending limits. One row per
// (entity_type, entity_id, period_type); setting again overwrites.
type LimitHandler struct {
	baseHandler
}

func NewLimitHandler(db *gorm.DB, logger *zap.Logger) *LimitHandler {
	return &LimitHandler{baseHandler: baseHandler{db: db, logger: logger}}
}

type limitRequest struct {
	EntityType string `json:"entity_type"`
	PeriodType string `json:"period_type"`
	LimitCents int64  `json:"limit_cents"`
}

func (h *LimitHandler) Set(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req limitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.EntityType == "" {
		req.EntityType = models.EntityTypeProject
	}
	if req.EntityType != models.EntityTypeUser && req.EntityType != models.EntityTypeProject {
		h.sendError(w, http.StatusBadRequest, "entity_type must be user or project")
		return
	}
	if req.PeriodType != models.PeriodTypeDaily && req.PeriodType != models.PeriodTypeMonthly {
		h.sendError(w, http.StatusBadRequest, "period_type must be daily or monthly")
		return
	}
	if req.LimitCents <= 0 {
		h.sendError(w, http.StatusBadRequest, "limit_cents must be positive")
		return
	}

	entityID := project.ID
	if req.EntityType == models.EntityTypeUser {
		entityID = project.UserID
	}

	limit := models.SpendingLimit{
		EntityType: req.EntityType,
		EntityID:   entityID,
		PeriodType: req.PeriodType,
		LimitCents: req.LimitCents,
		IsActive:   true,
	}
	err := h.db.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "period_type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"limit_cents", "is_active", "updated_at"}),
	}).Create(&limit).Error
	if err != nil {
		h.logger.Error("failed to set spending limit", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to set spending limit")
		return
	}

	h.sendJSON(w, http.StatusOK, limit)
}

func (h *LimitHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var limits []models.SpendingLimit
	if err := h.db.WithContext(r.Context()).
		Where("(entity_type = ? AND entity_id = ?) OR (entity_type = ? AND entity_id = ?)",
			models.EntityTypeProject, project.ID, models.EntityTypeUser, project.UserID).
		Find(&limits).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list limits")
		return
	}

	h.sendJSON(w, http.StatusOK, limits)
}
