package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EntityTypeUser    = "user"
	EntityTypeProject = "project"

	PeriodTypeDaily   = "daily"
	PeriodTypeMonthly = "monthly"
)

// PeriodStart returns the canonical period_start date for a period type:
// today for daily, the first of the month for monthly. Always UTC.
func PeriodStart(periodType string, now time.Time) time.Time {
	now = now.UTC()
	if periodType == PeriodTypeMonthly {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

type SpendingLimit struct {
	BaseModel
	EntityType string    `gorm:"not null;uniqueIndex:idx_limit_entity_period" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_limit_entity_period" json:"entity_id"`
	PeriodType string    `gorm:"not null;uniqueIndex:idx_limit_entity_period" json:"period_type"`
	LimitCents int64     `gorm:"not null" json:"limit_cents"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
}

func (SpendingLimit) TableName() string {
	return "spending_limits"
}

// SpendingCounter is the durable cumulative spend per entity and period.
// Rows are upserted additively; past periods are retained for audit.
type SpendingCounter struct {
	EntityType      string    `gorm:"primaryKey" json:"entity_type"`
	EntityID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"entity_id"`
	PeriodType      string    `gorm:"primaryKey" json:"period_type"`
	PeriodStart     time.Time `gorm:"type:date;primaryKey" json:"period_start"`
	SpentMicroCents int64     `gorm:"not null;default:0" json:"spent_micro_cents"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (SpendingCounter) TableName() string {
	return "spending_counters"
}

// CustomModelPricing overrides the vendor pricing dataset. ProjectID nil
// means a global override. Prices are cents per million tokens.
type CustomModelPricing struct {
	BaseModel
	ProjectID              *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Provider               string     `gorm:"not null" json:"provider"`
	Model                  string     `gorm:"not null" json:"model"`
	InputPricePerMillion   float64    `gorm:"not null" json:"input_price_per_million"`
	OutputPricePerMillion  float64    `gorm:"not null" json:"output_price_per_million"`
	IsActive               bool       `gorm:"default:true" json:"is_active"`
}

func (CustomModelPricing) TableName() string {
	return "custom_model_pricing"
}
