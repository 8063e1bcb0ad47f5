package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// Store resolves custom pricing overrides from the custom_model_pricing
// table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetCustomPricing(ctx context.Context, projectID *uuid.UUID, provider, model string) (*CustomPricing, error) {
	var row models.CustomModelPricing

	if projectID != nil {
		err := s.db.WithContext(ctx).
			Where("project_id = ? AND provider = ? AND model = ? AND is_active = ?", *projectID, provider, model, true).
			First(&row).Error
		if err == nil {
			return &CustomPricing{
				InputPricePerMillion:  row.InputPricePerMillion,
				OutputPricePerMillion: row.OutputPricePerMillion,
			}, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	err := s.db.WithContext(ctx).
		Where("project_id IS NULL AND provider = ? AND model = ? AND is_active = ?", provider, model, true).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &CustomPricing{
		InputPricePerMillion:  row.InputPricePerMillion,
		OutputPricePerMillion: row.OutputPricePerMillion,
	}, nil
}
