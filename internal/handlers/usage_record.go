package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/billing"
	"github.com/xproxy/xproxy/internal/models"
)

// UsageRecordRequest is the data-plane callback payload with one
// request's token counts.
type UsageRecordRequest struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ProjectID    uuid.UUID  `json:"project_id"`
	PipeID       *uuid.UUID `json:"pipe_id,omitempty"`
	TokenID      *uuid.UUID `json:"token_id,omitempty"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	IsStreaming  bool       `json:"is_streaming"`
	StatusCode   *int       `json:"status_code,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
	FirewallMode bool       `json:"firewall_mode"`
	APIKeyHash   string     `json:"api_key_hash,omitempty"`
}

type UsageRecordConfig struct {
	Pricer   billing.CostResolver
	Counters *billing.SpendingCounters
	Flusher  *billing.UsageFlusher
	Logger   *zap.Logger
}

// UsageRecordHandler prices managed-mode usage on the spot and feeds the
// counters; firewall-mode usage is enqueued unpriced for the async
// calculator.
type UsageRecordHandler struct {
	pricer   billing.CostResolver
	counters *billing.SpendingCounters
	flusher  *billing.UsageFlusher
	logger   *zap.Logger
}

func NewUsageRecordHandler(cfg *UsageRecordConfig) *UsageRecordHandler {
	return &UsageRecordHandler{
		pricer:   cfg.Pricer,
		counters: cfg.Counters,
		flusher:  cfg.Flusher,
		logger:   cfg.Logger,
	}
}

func (h *UsageRecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req UsageRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, h.logger, http.StatusBadRequest, "invalid usage record body: "+err.Error())
		return
	}
	if req.ProjectID == uuid.Nil {
		sendError(w, h.logger, http.StatusBadRequest, "project_id is required")
		return
	}

	var (
		costCents float64
		isPriced  bool
	)
	if !req.FirewallMode {
		projectID := req.ProjectID
		costCents = h.pricer.CalculateCostWithCustom(r.Context(), &projectID, req.Provider, req.Model, req.InputTokens, req.OutputTokens)
		isPriced = true

		if costCents > 0 {
			microCents := int64(math.Round(costCents * 10_000))
			now := time.Now()
			if req.UserID != nil {
				h.counters.Record(billing.NewCounterKey(models.EntityTypeUser, *req.UserID, models.PeriodTypeDaily, now), microCents)
				h.counters.Record(billing.NewCounterKey(models.EntityTypeUser, *req.UserID, models.PeriodTypeMonthly, now), microCents)
			}
			h.counters.Record(billing.NewCounterKey(models.EntityTypeProject, req.ProjectID, models.PeriodTypeDaily, now), microCents)
			h.counters.Record(billing.NewCounterKey(models.EntityTypeProject, req.ProjectID, models.PeriodTypeMonthly, now), microCents)
		}
	}

	h.flusher.Enqueue(billing.UsageEvent{
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		PipeID:       req.PipeID,
		TokenID:      req.TokenID,
		Provider:     req.Provider,
		Model:        req.Model,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		CostCents:    costCents,
		IsStreaming:  req.IsStreaming,
		StatusCode:   req.StatusCode,
		RequestID:    req.RequestID,
		IsPriced:     isPriced,
		CreatedAt:    time.Now().UTC(),
	})

	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"cost_cents": costCents,
	})
}
