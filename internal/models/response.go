package models

import (
	"time"

	"gorm.io/datatypes"
)

// StoredResponse is the relational backend row for one conversation turn
// of the responses API. InputItems and Output hold the serialized items.
type StoredResponse struct {
	ResponseID         string         `gorm:"primaryKey" json:"response_id"`
	InputItems         datatypes.JSON `gorm:"not null" json:"input_items"`
	Output             datatypes.JSON `json:"output"`
	Model              string         `json:"model"`
	AliasResolvedModel string         `json:"alias_resolved_model"`
	IsStreaming        bool           `json:"is_streaming"`
	RequestID          string         `json:"request_id"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (StoredResponse) TableName() string {
	return "stored_responses"
}
