package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/models"
)

type fakeCalculatorStore struct {
	unpriced []models.UsageRecord
	priced   map[uuid.UUID]float64
}

func (s *fakeCalculatorStore) GetUnpricedUsage(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	if len(s.unpriced) > limit {
		return s.unpriced[:limit], nil
	}
	return s.unpriced, nil
}

func (s *fakeCalculatorStore) MarkUsagePriced(ctx context.Context, id uuid.UUID, costCents float64) error {
	if s.priced == nil {
		s.priced = make(map[uuid.UUID]float64)
	}
	s.priced[id] = costCents
	remaining := s.unpriced[:0]
	for _, row := range s.unpriced {
		if row.ID != id {
			remaining = append(remaining, row)
		}
	}
	s.unpriced = remaining
	return nil
}

type fakePricer struct {
	perToken float64
}

func (p *fakePricer) CalculateCostWithCustom(ctx context.Context, projectID *uuid.UUID, provider, model string, inputTokens, outputTokens int64) float64 {
	return float64(inputTokens+outputTokens) * p.perToken
}

func newUnpricedRow(projectID uuid.UUID, in, out int64) models.UsageRecord {
	return models.UsageRecord{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Provider:     "openai",
		Model:        "gpt-4o",
		InputTokens:  in,
		OutputTokens: out,
	}
}

func TestPriceBatchPricesRowsAndFeedsCounters(t *testing.T) {
	projectID := uuid.New()
	store := &fakeCalculatorStore{
		unpriced: []models.UsageRecord{
			newUnpricedRow(projectID, 1000, 500),
			newUnpricedRow(projectID, 200, 100),
		},
	}
	counters := NewSpendingCounters()

	calculator := NewPriceCalculator(&CalculatorConfig{
		Store:    store,
		Pricer:   &fakePricer{perToken: 0.01},
		Counters: counters,
		Logger:   zap.NewNop(),
	})

	require.NoError(t, calculator.priceBatch(context.Background()))

	require.Len(t, store.priced, 2)
	assert.Empty(t, store.unpriced)

	// 1800 tokens at 0.01 cents each, in micro-cents, in both periods.
	now := time.Now()
	daily := NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, now)
	monthly := NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeMonthly, now)
	assert.Equal(t, int64(180_000), counters.Get(daily))
	assert.Equal(t, int64(180_000), counters.Get(monthly))
}

func TestPriceBatchRoundsFractionalMicroCents(t *testing.T) {
	projectID := uuid.New()
	store := &fakeCalculatorStore{
		unpriced: []models.UsageRecord{newUnpricedRow(projectID, 1000, 0)},
	}
	counters := NewSpendingCounters()

	// 1000 tokens at 0.00000015 cents each is 1.5 micro-cents; rounding,
	// not truncation, decides the recorded spend.
	calculator := NewPriceCalculator(&CalculatorConfig{
		Store:    store,
		Pricer:   &fakePricer{perToken: 0.00000015},
		Counters: counters,
		Logger:   zap.NewNop(),
	})

	require.NoError(t, calculator.priceBatch(context.Background()))

	daily := NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, time.Now())
	assert.Equal(t, int64(2), counters.Get(daily))
}

func TestPriceBatchZeroCostSkipsCounters(t *testing.T) {
	projectID := uuid.New()
	store := &fakeCalculatorStore{
		unpriced: []models.UsageRecord{newUnpricedRow(projectID, 100, 50)},
	}
	counters := NewSpendingCounters()

	calculator := NewPriceCalculator(&CalculatorConfig{
		Store:    store,
		Pricer:   &fakePricer{perToken: 0},
		Counters: counters,
		Logger:   zap.NewNop(),
	})

	require.NoError(t, calculator.priceBatch(context.Background()))

	// The row is marked priced so it is not retried forever, but no
	// spend is recorded.
	require.Len(t, store.priced, 1)
	daily := NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, time.Now())
	assert.Equal(t, int64(0), counters.Get(daily))
}

func TestPriceBatchEmpty(t *testing.T) {
	store := &fakeCalculatorStore{}
	calculator := NewPriceCalculator(&CalculatorConfig{
		Store:    store,
		Pricer:   &fakePricer{},
		Counters: NewSpendingCounters(),
		Logger:   zap.NewNop(),
	})

	require.NoError(t, calculator.priceBatch(context.Background()))
	assert.Empty(t, store.priced)
}
