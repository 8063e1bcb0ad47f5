package state

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// RelationalStore persists turns to the stored_responses table.
type RelationalStore struct {
	db *gorm.DB
}

func NewRelationalStore(db *gorm.DB) *RelationalStore {
	return &RelationalStore{db: db}
}

func (s *RelationalStore) Get(ctx context.Context, responseID string) (*Turn, error) {
	var row models.StoredResponse
	err := s.db.WithContext(ctx).
		Where("response_id = ?", responseID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	turn := &Turn{
		Model:              row.Model,
		AliasResolvedModel: row.AliasResolvedModel,
		IsStreaming:        row.IsStreaming,
		RequestID:          row.RequestID,
	}
	if len(row.InputItems) > 0 {
		if err := json.Unmarshal(row.InputItems, &turn.InputItems); err != nil {
			return nil, fmt.Errorf("decode stored input items: %w", err)
		}
	}
	if len(row.Output) > 0 {
		if err := json.Unmarshal(row.Output, &turn.Output); err != nil {
			return nil, fmt.Errorf("decode stored output: %w", err)
		}
	}
	return turn, nil
}

func (s *RelationalStore) Put(ctx context.Context, responseID string, turn *Turn) error {
	inputItems, err := json.Marshal(turn.InputItems)
	if err != nil {
		return fmt.Errorf("encode input items: %w", err)
	}
	output, err := json.Marshal(turn.Output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	row := models.StoredResponse{
		ResponseID:         responseID,
		InputItems:         inputItems,
		Output:             output,
		Model:              turn.Model,
		AliasResolvedModel: turn.AliasResolvedModel,
		IsStreaming:        turn.IsStreaming,
		RequestID:          turn.RequestID,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *RelationalStore) Combine(ctx context.Context, previousResponseID string, newItems []interface{}) ([]interface{}, error) {
	previous, err := s.Get(ctx, previousResponseID)
	if err != nil {
		return nil, err
	}
	return combineTurn(previous, newItems), nil
}
