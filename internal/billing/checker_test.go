package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/models"
)

type fakeCheckerStore struct {
	limits   []models.SpendingLimit
	spending map[uuid.UUID]int64
	err      error
}

func (s *fakeCheckerStore) GetActiveSpendingLimits(ctx context.Context) ([]models.SpendingLimit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.limits, nil
}

func (s *fakeCheckerStore) GetCurrentSpending(ctx context.Context, entityType string, entityID uuid.UUID, periodType string) (int64, error) {
	return s.spending[entityID], nil
}

func newTestChecker(store CheckerStore) *BudgetChecker {
	return NewBudgetChecker(&CheckerConfig{
		Store:  store,
		Logger: zap.NewNop(),
	})
}

func TestCheckBudgetsBlocksOverLimitProjects(t *testing.T) {
	overID := uuid.New()
	underID := uuid.New()

	store := &fakeCheckerStore{
		limits: []models.SpendingLimit{
			{EntityType: models.EntityTypeProject, EntityID: overID, PeriodType: models.PeriodTypeDaily, LimitCents: 100},
			{EntityType: models.EntityTypeProject, EntityID: underID, PeriodType: models.PeriodTypeDaily, LimitCents: 100},
		},
		spending: map[uuid.UUID]int64{
			overID:  100 * 10_000, // exactly at the limit blocks
			underID: 99 * 10_000,
		},
	}

	checker := newTestChecker(store)
	require.NoError(t, checker.CheckBudgets(context.Background()))

	assert.True(t, checker.IsBlocked(overID))
	assert.False(t, checker.IsBlocked(underID))
	assert.Equal(t, []uuid.UUID{overID}, checker.BlockedProjects())
}

func TestCheckBudgetsIgnoresUserLimits(t *testing.T) {
	userID := uuid.New()

	store := &fakeCheckerStore{
		limits: []models.SpendingLimit{
			{EntityType: models.EntityTypeUser, EntityID: userID, PeriodType: models.PeriodTypeMonthly, LimitCents: 10},
		},
		spending: map[uuid.UUID]int64{userID: 500 * 10_000},
	}

	checker := newTestChecker(store)
	require.NoError(t, checker.CheckBudgets(context.Background()))

	// User limits gate admission but are not published to data planes.
	assert.Empty(t, checker.BlockedProjects())
}

func TestCheckBudgetsUnblocksAfterLimitRaise(t *testing.T) {
	projectID := uuid.New()

	store := &fakeCheckerStore{
		limits: []models.SpendingLimit{
			{EntityType: models.EntityTypeProject, EntityID: projectID, PeriodType: models.PeriodTypeMonthly, LimitCents: 100},
		},
		spending: map[uuid.UUID]int64{projectID: 150 * 10_000},
	}

	checker := newTestChecker(store)
	require.NoError(t, checker.CheckBudgets(context.Background()))
	assert.True(t, checker.IsBlocked(projectID))

	store.limits[0].LimitCents = 200
	require.NoError(t, checker.CheckBudgets(context.Background()))
	assert.False(t, checker.IsBlocked(projectID))
}

func TestCheckBudgetsPreservesSetOnStoreError(t *testing.T) {
	projectID := uuid.New()

	store := &fakeCheckerStore{
		limits: []models.SpendingLimit{
			{EntityType: models.EntityTypeProject, EntityID: projectID, PeriodType: models.PeriodTypeDaily, LimitCents: 1},
		},
		spending: map[uuid.UUID]int64{projectID: 10 * 10_000},
	}

	checker := newTestChecker(store)
	require.NoError(t, checker.CheckBudgets(context.Background()))
	require.True(t, checker.IsBlocked(projectID))

	store.err = errors.New("database unavailable")
	require.Error(t, checker.CheckBudgets(context.Background()))

	// A failed recomputation keeps the previous blocked set.
	assert.True(t, checker.IsBlocked(projectID))
}
