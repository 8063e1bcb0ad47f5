package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UsageRecord is one proxied request's token accounting. Rows arrive with
// IsPriced=false when cost is not known at ingest (firewall mode) and are
// priced later by the price calculator.
type UsageRecord struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ProjectID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	PipeID       *uuid.UUID `gorm:"type:uuid" json:"pipe_id,omitempty"`
	TokenID      *uuid.UUID `gorm:"type:uuid" json:"token_id,omitempty"`
	Provider     string     `gorm:"not null" json:"provider"`
	Model        string     `gorm:"not null" json:"model"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	CostCents    float64    `json:"cost_cents"`
	IsStreaming  bool       `json:"is_streaming"`
	StatusCode   *int       `json:"status_code,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
	IsPriced     bool       `gorm:"index;default:false" json:"is_priced"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (UsageRecord) TableName() string {
	return "usage_log"
}

func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
