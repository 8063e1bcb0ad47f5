package billing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/models"
)

// FlushStore persists a usage batch and the matching counter deltas in
// one transaction.
type FlushStore interface {
	FlushUsage(ctx context.Context, records []models.UsageRecord, deltas []CounterDelta) error
}

type FlusherConfig struct {
	Store         FlushStore
	Counters      *SpendingCounters
	Logger        *zap.Logger
	QueueSize     int
	FlushInterval time.Duration
	BatchSize     int
}

// UsageFlusher is the single consumer of the usage event channel. Batches
// are flushed on a timer, when the pending batch reaches BatchSize, and
// once more when the channel closes. Delivery is at least once: a failed
// flush restores the counter deltas and keeps the batch.
type UsageFlusher struct {
	store    FlushStore
	counters *SpendingCounters
	logger   *zap.Logger

	events    chan UsageEvent
	interval  time.Duration
	batchSize int

	pending []UsageEvent
	wg      sync.WaitGroup
}

func NewUsageFlusher(cfg *FlusherConfig) *UsageFlusher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	return &UsageFlusher{
		store:     cfg.Store,
		counters:  cfg.Counters,
		logger:    cfg.Logger,
		events:    make(chan UsageEvent, queueSize),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Enqueue submits an event. The bounded channel applies backpressure when
// the flusher falls behind.
func (f *UsageFlusher) Enqueue(event UsageEvent) {
	f.events <- event
}

// QueueDepth is exported for the metrics gauge.
func (f *UsageFlusher) QueueDepth() int {
	return len(f.events)
}

func (f *UsageFlusher) Start() {
	f.wg.Add(1)
	go f.run()
}

// Stop closes the event channel and waits for the final flush.
func (f *UsageFlusher) Stop() {
	close(f.events)
	f.wg.Wait()
}

func (f *UsageFlusher) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-f.events:
			if !ok {
				f.flush()
				f.logger.Info("usage flusher shutting down")
				return
			}
			f.pending = append(f.pending, event)
			if len(f.pending) >= f.batchSize {
				f.flush()
			}

		case <-ticker.C:
			f.drain()
			f.flush()
		}
	}
}

// drain moves everything currently buffered in the channel into the
// pending batch without blocking.
func (f *UsageFlusher) drain() {
	for {
		select {
		case event, ok := <-f.events:
			if !ok {
				return
			}
			f.pending = append(f.pending, event)
		default:
			return
		}
	}
}

// flush writes the pending batch and the counter deltas. Counters are
// flushed even when the batch is empty so that admission-time counter
// updates still reach durable storage.
func (f *UsageFlusher) flush() {
	deltas := f.counters.SnapshotAndReset()
	if len(f.pending) == 0 && len(deltas) == 0 {
		return
	}

	records := make([]models.UsageRecord, 0, len(f.pending))
	for _, event := range f.pending {
		records = append(records, event.record())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.store.FlushUsage(ctx, records, deltas); err != nil {
		f.counters.Restore(deltas)
		f.logger.Error("usage flush failed, batch retained",
			zap.Int("events", len(f.pending)),
			zap.Int("deltas", len(deltas)),
			zap.Error(err))
		return
	}

	f.logger.Debug("usage flushed",
		zap.Int("events", len(f.pending)),
		zap.Int("deltas", len(deltas)))
	f.pending = f.pending[:0]
}
