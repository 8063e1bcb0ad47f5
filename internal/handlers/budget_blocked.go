package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/billing"
)

// BudgetBlockedHandler serves the over-limit project set. Data planes
// poll it to short-circuit requests for blocked projects.
type BudgetBlockedHandler struct {
	checker *billing.BudgetChecker
	logger  *zap.Logger
}

func NewBudgetBlockedHandler(checker *billing.BudgetChecker, logger *zap.Logger) *BudgetBlockedHandler {
	return &BudgetBlockedHandler{checker: checker, logger: logger}
}

func (h *BudgetBlockedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	blocked := h.checker.BlockedProjects()
	ids := make([]string, 0, len(blocked))
	for _, id := range blocked {
		ids = append(ids, id.String())
	}
	sendJSON(w, h.logger, http.StatusOK, map[string]interface{}{"blocked": ids})
}
