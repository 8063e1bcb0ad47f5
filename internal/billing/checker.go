package billing

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/models"
)

// CheckerStore is the slice of the store the budget checker needs.
type CheckerStore interface {
	GetActiveSpendingLimits(ctx context.Context) ([]models.SpendingLimit, error)
	GetCurrentSpending(ctx context.Context, entityType string, entityID uuid.UUID, periodType string) (int64, error)
}

type CheckerConfig struct {
	Store    CheckerStore
	Logger   *zap.Logger
	Interval time.Duration
}

// BudgetChecker maintains the set of projects whose durable cumulative
// spend has reached an active limit. External data planes poll the set
// via GET /budget/blocked.
type BudgetChecker struct {
	store    CheckerStore
	logger   *zap.Logger
	interval time.Duration

	blocked atomic.Pointer[map[uuid.UUID]struct{}]

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewBudgetChecker(cfg *CheckerConfig) *BudgetChecker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	c := &BudgetChecker{
		store:    cfg.Store,
		logger:   cfg.Logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	empty := make(map[uuid.UUID]struct{})
	c.blocked.Store(&empty)
	return c
}

// BlockedProjects returns the current blocked set as a slice.
func (c *BudgetChecker) BlockedProjects() []uuid.UUID {
	blocked := *c.blocked.Load()
	out := make([]uuid.UUID, 0, len(blocked))
	for id := range blocked {
		out = append(out, id)
	}
	return out
}

func (c *BudgetChecker) IsBlocked(projectID uuid.UUID) bool {
	_, ok := (*c.blocked.Load())[projectID]
	return ok
}

func (c *BudgetChecker) Start() {
	go c.run()
}

func (c *BudgetChecker) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *BudgetChecker) run() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.CheckBudgets(context.Background()); err != nil {
				c.logger.Error("budget check failed", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// CheckBudgets recomputes the blocked set from active limits and the
// durable counters, then swaps it in atomically.
func (c *BudgetChecker) CheckBudgets(ctx context.Context) error {
	limits, err := c.store.GetActiveSpendingLimits(ctx)
	if err != nil {
		return err
	}

	newBlocked := make(map[uuid.UUID]struct{})
	for _, limit := range limits {
		limitMicroCents := limit.LimitCents * 10_000

		spent, err := c.store.GetCurrentSpending(ctx, limit.EntityType, limit.EntityID, limit.PeriodType)
		if err != nil {
			c.logger.Warn("failed to read durable spending",
				zap.String("entity_type", limit.EntityType),
				zap.String("entity_id", limit.EntityID.String()),
				zap.Error(err))
			continue
		}

		// Only projects are blocked at the data plane.
		if spent >= limitMicroCents && limit.EntityType == models.EntityTypeProject {
			newBlocked[limit.EntityID] = struct{}{}
		}
	}

	c.blocked.Store(&newBlocked)
	if len(newBlocked) > 0 {
		c.logger.Debug("budget check complete", zap.Int("blocked", len(newBlocked)))
	}
	return nil
}
