package billing

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xproxy/xproxy/internal/models"
)

// CounterKey identifies one in-memory spending counter. PeriodStart is a
// UTC date (midnight) per models.PeriodStart.
type CounterKey struct {
	EntityType  string
	EntityID    uuid.UUID
	PeriodType  string
	PeriodStart time.Time
}

func NewCounterKey(entityType string, entityID uuid.UUID, periodType string, now time.Time) CounterKey {
	return CounterKey{
		EntityType:  entityType,
		EntityID:    entityID,
		PeriodType:  periodType,
		PeriodStart: models.PeriodStart(periodType, now),
	}
}

// CounterDelta is one counter's extracted value, produced by
// SnapshotAndReset and consumed by the flusher's durable upsert.
type CounterDelta struct {
	Key        CounterKey
	MicroCents int64
}

const counterShards = 32

type counterShard struct {
	mu       sync.RWMutex
	counters map[CounterKey]*atomic.Int64
}

// SpendingCounters is the process-local hot counter map in micro-cents.
// Adds are lock-free atomic increments; the per-shard mutex guards only
// map membership.
type SpendingCounters struct {
	shards [counterShards]*counterShard
}

func NewSpendingCounters() *SpendingCounters {
	c := &SpendingCounters{}
	for i := range c.shards {
		c.shards[i] = &counterShard{counters: make(map[CounterKey]*atomic.Int64)}
	}
	return c
}

func (c *SpendingCounters) shard(key CounterKey) *counterShard {
	h := fnv.New32a()
	h.Write(key.EntityID[:])
	h.Write([]byte(key.EntityType))
	h.Write([]byte(key.PeriodType))
	h.Write([]byte(key.PeriodStart.Format("2006-01-02")))
	return c.shards[h.Sum32()%counterShards]
}

func (c *SpendingCounters) counter(key CounterKey, create bool) *atomic.Int64 {
	s := c.shard(key)

	s.mu.RLock()
	v, ok := s.counters[key]
	s.mu.RUnlock()
	if ok || !create {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.counters[key]; ok {
		return v
	}
	v = &atomic.Int64{}
	s.counters[key] = v
	return v
}

// Check reports whether the entity is under the limit. An absent counter
// admits. Admission is best-effort against the process-local view.
func (c *SpendingCounters) Check(key CounterKey, limitMicroCents int64) bool {
	v := c.counter(key, false)
	if v == nil {
		return true
	}
	return v.Load() < limitMicroCents
}

// Record atomically adds microCents, creating the counter if absent, and
// returns the new total.
func (c *SpendingCounters) Record(key CounterKey, microCents int64) int64 {
	return c.counter(key, true).Add(microCents)
}

// Get returns the current value, zero when absent.
func (c *SpendingCounters) Get(key CounterKey) int64 {
	v := c.counter(key, false)
	if v == nil {
		return 0
	}
	return v.Load()
}

// Hydrate additively loads durable counter rows, typically at startup for
// the current day and month.
func (c *SpendingCounters) Hydrate(rows []models.SpendingCounter) {
	for _, row := range rows {
		key := CounterKey{
			EntityType:  row.EntityType,
			EntityID:    row.EntityID,
			PeriodType:  row.PeriodType,
			PeriodStart: row.PeriodStart.UTC().Truncate(24 * time.Hour),
		}
		c.counter(key, true).Add(row.SpentMicroCents)
	}
}

// SnapshotAndReset atomically swaps every counter to zero and returns the
// non-zero deltas. Restore is its inverse.
func (c *SpendingCounters) SnapshotAndReset() []CounterDelta {
	var deltas []CounterDelta
	for _, s := range c.shards {
		s.mu.RLock()
		for key, v := range s.counters {
			if delta := v.Swap(0); delta != 0 {
				deltas = append(deltas, CounterDelta{Key: key, MicroCents: delta})
			}
		}
		s.mu.RUnlock()
	}
	return deltas
}

// Restore re-adds deltas after a failed flush.
func (c *SpendingCounters) Restore(deltas []CounterDelta) {
	for _, d := range deltas {
		c.counter(d.Key, true).Add(d.MicroCents)
	}
}

func (k CounterKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.EntityType, k.EntityID, k.PeriodType, k.PeriodStart.Format("2006-01-02"))
}
