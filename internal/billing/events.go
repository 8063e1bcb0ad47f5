package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/xproxy/xproxy/internal/models"
)

// UsageEvent is one request's accounting payload on its way to the
// usage_log table. IsPriced is false when the cost is computed later by
// the price calculator (firewall mode).
type UsageEvent struct {
	UserID       *uuid.UUID
	ProjectID    uuid.UUID
	PipeID       *uuid.UUID
	TokenID      *uuid.UUID
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostCents    float64
	IsStreaming  bool
	StatusCode   *int
	RequestID    string
	IsPriced     bool
	CreatedAt    time.Time
}

func (e UsageEvent) record() models.UsageRecord {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return models.UsageRecord{
		UserID:       e.UserID,
		ProjectID:    e.ProjectID,
		PipeID:       e.PipeID,
		TokenID:      e.TokenID,
		Provider:     e.Provider,
		Model:        e.Model,
		InputTokens:  e.InputTokens,
		OutputTokens: e.OutputTokens,
		CostCents:    e.CostCents,
		IsStreaming:  e.IsStreaming,
		StatusCode:   e.StatusCode,
		RequestID:    e.RequestID,
		IsPriced:     e.IsPriced,
		CreatedAt:    created,
	}
}
