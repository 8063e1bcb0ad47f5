package billing

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/models"
)

// CalculatorStore is the slice of the store the price calculator needs.
type CalculatorStore interface {
	GetUnpricedUsage(ctx context.Context, limit int) ([]models.UsageRecord, error)
	MarkUsagePriced(ctx context.Context, id uuid.UUID, costCents float64) error
}

// CostResolver prices a request, applying custom pricing overrides when a
// project is known.
type CostResolver interface {
	CalculateCostWithCustom(ctx context.Context, projectID *uuid.UUID, provider, model string, inputTokens, outputTokens int64) float64
}

type CalculatorConfig struct {
	Store     CalculatorStore
	Pricer    CostResolver
	Counters  *SpendingCounters
	Logger    *zap.Logger
	Interval  time.Duration
	BatchSize int
}

// PriceCalculator prices usage rows that arrived unpriced and feeds the
// resulting cost back into the in-memory project counters. Exactly one
// instance may run: concurrent calculators would double-count.
type PriceCalculator struct {
	store     CalculatorStore
	pricer    CostResolver
	counters  *SpendingCounters
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewPriceCalculator(cfg *CalculatorConfig) *PriceCalculator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	return &PriceCalculator{
		store:     cfg.Store,
		pricer:    cfg.Pricer,
		counters:  cfg.Counters,
		logger:    cfg.Logger,
		interval:  interval,
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (p *PriceCalculator) Start() {
	go p.run()
}

func (p *PriceCalculator) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *PriceCalculator) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.priceBatch(context.Background()); err != nil {
				p.logger.Error("price calculator tick failed", zap.Error(err))
			}
		case <-p.stopCh:
			return
		}
	}
}

func (p *PriceCalculator) priceBatch(ctx context.Context) error {
	rows, err := p.store.GetUnpricedUsage(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now()
	priced := 0
	for _, row := range rows {
		projectID := row.ProjectID
		cost := p.pricer.CalculateCostWithCustom(ctx, &projectID, row.Provider, row.Model, row.InputTokens, row.OutputTokens)

		if err := p.store.MarkUsagePriced(ctx, row.ID, cost); err != nil {
			p.logger.Error("failed to mark usage priced",
				zap.String("usage_id", row.ID.String()),
				zap.Error(err))
			continue
		}

		if cost > 0 {
			microCents := int64(math.Round(cost * 10_000))
			p.counters.Record(NewCounterKey(models.EntityTypeProject, row.ProjectID, models.PeriodTypeDaily, now), microCents)
			p.counters.Record(NewCounterKey(models.EntityTypeProject, row.ProjectID, models.PeriodTypeMonthly, now), microCents)
		}
		priced++
	}

	p.logger.Debug("priced usage rows", zap.Int("rows", priced))
	return nil
}
