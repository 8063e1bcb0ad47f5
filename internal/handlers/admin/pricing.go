package admin

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// PricingHandler manages custom pricing overrides, denominated in cents
// per million tokens. Global overrides (no project) are set with the
// global flag.
type PricingHandler struct {
	baseHandler
}

func NewPricingHandler(db *gorm.DB, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{baseHandler: baseHandler{db: db, logger: logger}}
}

type customPricingRequest struct {
	Provider              string  `json:"provider"`
	Model                 string  `json:"model"`
	InputPricePerMillion  float64 `json:"input_price_per_million"`
	OutputPricePerMillion float64 `json:"output_price_per_million"`
	Global                bool    `json:"global"`
}

func (h *PricingHandler) Create(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req customPricingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Provider == "" || req.Model == "" {
		h.sendError(w, http.StatusBadRequest, "provider and model are required")
		return
	}

	pricing := models.CustomModelPricing{
		Provider:              req.Provider,
		Model:                 req.Model,
		InputPricePerMillion:  req.InputPricePerMillion,
		OutputPricePerMillion: req.OutputPricePerMillion,
		IsActive:              true,
	}
	if !req.Global {
		projectID := project.ID
		pricing.ProjectID = &projectID
	}

	if err := h.db.WithContext(r.Context()).Create(&pricing).Error; err != nil {
		h.logger.Error("failed to create custom pricing", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to create custom pricing")
		return
	}

	h.sendJSON(w, http.StatusCreated, pricing)
}

func (h *PricingHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var rows []models.CustomModelPricing
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ? OR project_id IS NULL", project.ID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to list custom pricing")
		return
	}

	h.sendJSON(w, http.StatusOK, rows)
}
