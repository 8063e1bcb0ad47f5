package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/billing"
	"github.com/xproxy/xproxy/internal/models"
)

type recordingFlushStore struct {
	mu      sync.Mutex
	records []models.UsageRecord
}

func (s *recordingFlushStore) FlushUsage(ctx context.Context, records []models.UsageRecord, deltas []billing.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

type flatPricer struct {
	costCents float64
}

func (p *flatPricer) CalculateCostWithCustom(ctx context.Context, projectID *uuid.UUID, provider, model string, inputTokens, outputTokens int64) float64 {
	return p.costCents
}

type usageFixture struct {
	handler  *UsageRecordHandler
	counters *billing.SpendingCounters
	store    *recordingFlushStore
	stop     func()
}

func newUsageFixture(t *testing.T, costCents float64) *usageFixture {
	t.Helper()

	store := &recordingFlushStore{}
	counters := billing.NewSpendingCounters()
	flusher := billing.NewUsageFlusher(&billing.FlusherConfig{
		Store:    store,
		Counters: counters,
		Logger:   zap.NewNop(),
	})
	flusher.Start()

	var once sync.Once
	stop := func() { once.Do(flusher.Stop) }
	t.Cleanup(stop)

	handler := NewUsageRecordHandler(&UsageRecordConfig{
		Pricer:   &flatPricer{costCents: costCents},
		Counters: counters,
		Flusher:  flusher,
		Logger:   zap.NewNop(),
	})

	return &usageFixture{handler: handler, counters: counters, store: store, stop: stop}
}

func postUsage(t *testing.T, handler *UsageRecordHandler, req UsageRecordRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usage/record", bytes.NewReader(body)))
	return rec
}

func TestUsageRecordManagedMode(t *testing.T) {
	f := newUsageFixture(t, 2.5)

	userID := uuid.New()
	projectID := uuid.New()
	rec := postUsage(t, f.handler, UsageRecordRequest{
		UserID:       &userID,
		ProjectID:    projectID,
		Provider:     "openai",
		Model:        "gpt-4o",
		InputTokens:  1000,
		OutputTokens: 200,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2.5, resp["cost_cents"])

	// Both the user's and the project's counters advance, daily and
	// monthly.
	now := time.Now()
	expected := int64(2.5 * 10_000)
	for _, key := range []billing.CounterKey{
		billing.NewCounterKey(models.EntityTypeUser, userID, models.PeriodTypeDaily, now),
		billing.NewCounterKey(models.EntityTypeUser, userID, models.PeriodTypeMonthly, now),
		billing.NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, now),
		billing.NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeMonthly, now),
	} {
		assert.Equal(t, expected, f.counters.Get(key), key.String())
	}
}

func TestUsageRecordRoundsFractionalMicroCents(t *testing.T) {
	// 0.00017 cents is 1.7 micro-cents; truncation would record 1.
	f := newUsageFixture(t, 0.00017)

	projectID := uuid.New()
	rec := postUsage(t, f.handler, UsageRecordRequest{
		ProjectID:    projectID,
		Provider:     "openai",
		Model:        "gpt-4o",
		InputTokens:  10,
		OutputTokens: 5,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	daily := billing.NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, time.Now())
	assert.Equal(t, int64(2), f.counters.Get(daily))
}

func TestUsageRecordFirewallModeDefersPricing(t *testing.T) {
	f := newUsageFixture(t, 99)

	projectID := uuid.New()
	rec := postUsage(t, f.handler, UsageRecordRequest{
		ProjectID:    projectID,
		Provider:     "anthropic",
		Model:        "claude-sonnet-4",
		InputTokens:  500,
		OutputTokens: 100,
		FirewallMode: true,
		APIKeyHash:   "abc123",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["cost_cents"])

	// No counter movement until the price calculator runs.
	now := time.Now()
	daily := billing.NewCounterKey(models.EntityTypeProject, projectID, models.PeriodTypeDaily, now)
	assert.Equal(t, int64(0), f.counters.Get(daily))

	// The event reaches the flusher unpriced.
	f.stop()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	require.Len(t, f.store.records, 1)
	assert.False(t, f.store.records[0].IsPriced)
	assert.Equal(t, float64(0), f.store.records[0].CostCents)
}

func TestUsageRecordMissingProject(t *testing.T) {
	f := newUsageFixture(t, 1)

	rec := postUsage(t, f.handler, UsageRecordRequest{
		Provider: "openai",
		Model:    "gpt-4o",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "project_id is required")
}

func TestUsageRecordInvalidBody(t *testing.T) {
	f := newUsageFixture(t, 1)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/usage/record", bytes.NewReader([]byte("{bad"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
