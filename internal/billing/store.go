package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xproxy/xproxy/internal/models"
)

// Store is the gorm-backed persistence for the billing workers.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FlushUsage inserts the usage batch and additively upserts the counter
// deltas in a single transaction.
func (s *Store) FlushUsage(ctx context.Context, records []models.UsageRecord, deltas []CounterDelta) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 500).Error; err != nil {
				return err
			}
		}

		for _, delta := range deltas {
			row := models.SpendingCounter{
				EntityType:      delta.Key.EntityType,
				EntityID:        delta.Key.EntityID,
				PeriodType:      delta.Key.PeriodType,
				PeriodStart:     delta.Key.PeriodStart,
				SpentMicroCents: delta.MicroCents,
				UpdatedAt:       time.Now().UTC(),
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "entity_type"},
					{Name: "entity_id"},
					{Name: "period_type"},
					{Name: "period_start"},
				},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"spent_micro_cents": gorm.Expr("spending_counters.spent_micro_cents + EXCLUDED.spent_micro_cents"),
					"updated_at":        time.Now().UTC(),
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// GetUnpricedUsage returns up to limit rows awaiting pricing, oldest
// first.
func (s *Store) GetUnpricedUsage(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	var rows []models.UsageRecord
	err := s.db.WithContext(ctx).
		Where("is_priced = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkUsagePriced sets the row's cost and flips is_priced. The transition
// is one-way.
func (s *Store) MarkUsagePriced(ctx context.Context, id uuid.UUID, costCents float64) error {
	return s.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("id = ? AND is_priced = ?", id, false).
		Updates(map[string]interface{}{
			"cost_cents": costCents,
			"is_priced":  true,
		}).Error
}

// GetActiveSpendingLimits returns every active limit row.
func (s *Store) GetActiveSpendingLimits(ctx context.Context) ([]models.SpendingLimit, error) {
	var limits []models.SpendingLimit
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&limits).Error
	return limits, err
}

// GetActiveLimitsForEntities returns the active limits applying to a
// resolved request: the user's and the project's.
func (s *Store) GetActiveLimitsForEntities(ctx context.Context, userID, projectID uuid.UUID) ([]models.SpendingLimit, error) {
	var limits []models.SpendingLimit
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("(entity_type = ? AND entity_id = ?) OR (entity_type = ? AND entity_id = ?)",
			models.EntityTypeUser, userID, models.EntityTypeProject, projectID).
		Find(&limits).Error
	return limits, err
}

// GetCurrentSpending reads the durable cumulative counter for the
// entity's current period. Zero when no row exists.
func (s *Store) GetCurrentSpending(ctx context.Context, entityType string, entityID uuid.UUID, periodType string) (int64, error) {
	var row models.SpendingCounter
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND period_type = ? AND period_start = ?",
			entityType, entityID, periodType, models.PeriodStart(periodType, time.Now())).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return row.SpentMicroCents, nil
}

// LoadCurrentCounters returns the durable counter rows for today and the
// current month, used to hydrate the in-memory counters at startup.
func (s *Store) LoadCurrentCounters(ctx context.Context) ([]models.SpendingCounter, error) {
	now := time.Now()
	var rows []models.SpendingCounter
	err := s.db.WithContext(ctx).
		Where("(period_type = ? AND period_start = ?) OR (period_type = ? AND period_start = ?)",
			models.PeriodTypeDaily, models.PeriodStart(models.PeriodTypeDaily, now),
			models.PeriodTypeMonthly, models.PeriodStart(models.PeriodTypeMonthly, now)).
		Find(&rows).Error
	return rows, err
}
