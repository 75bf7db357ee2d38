package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/telemetry"
)

// maxLogCapacity is the hard upper limit on buffered entries. Run logs
// must never block the pipeline, so entries past this limit are dropped
// and counted rather than applying backpressure.
const maxLogCapacity = 10_000

// LogBuffer accumulates one run's log entries in memory and flushes
// them to the underlying store when either the batch size or the flush
// interval is reached.
type LogBuffer struct {
	store    LogStore
	runID    uuid.UUID
	logger   *slog.Logger
	maxBatch int
	interval time.Duration

	mu      sync.Mutex
	entries []model.RunLogEntry

	dropped atomic.Int64
	started atomic.Bool

	flushCh    chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc
	drainCtx   context.Context // set by Drain so the final flush respects the caller's deadline
}

// NewLogBuffer creates a buffer for one run's log stream.
func NewLogBuffer(store LogStore, runID uuid.UUID, logger *slog.Logger, maxBatch int, interval time.Duration) *LogBuffer {
	return &LogBuffer{
		store:    store,
		runID:    runID,
		logger:   logger,
		maxBatch: maxBatch,
		interval: interval,
		flushCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush loop and registers gauges. Call
// Drain to stop. A second Start is a no-op.
func (b *LogBuffer) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		b.logger.Warn("log buffer already started")
		return
	}
	b.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancelLoop = cancel
	go b.flushLoop(loopCtx)
}

// Append buffers one entry, stamping a zero time. Entries past
// capacity are dropped and counted.
func (b *LogBuffer) Append(entry model.RunLogEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	b.mu.Lock()
	if len(b.entries) >= maxLogCapacity {
		b.mu.Unlock()
		b.dropped.Add(1)
		return
	}
	b.entries = append(b.entries, entry)
	full := len(b.entries) >= b.maxBatch
	b.mu.Unlock()

	if full {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
}

func (b *LogBuffer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush needs a live context because ctx is already
			// done; Drain supplies one with the caller's deadline.
			if b.drainCtx != nil {
				b.flush(b.drainCtx)
			} else {
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				b.flush(fallbackCtx)
				cancel()
			}
			close(b.done)
			return
		case <-ticker.C:
			b.flush(ctx)
		case <-b.flushCh:
			b.flush(ctx)
		}
	}
}

func (b *LogBuffer) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.entries) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.entries
	b.entries = nil
	b.mu.Unlock()

	if err := b.store.AppendLog(ctx, b.runID, batch...); err != nil {
		b.logger.Error("run log flush failed", "error", err, "batch_size", len(batch))
		// Put entries back for the next flush, respecting capacity.
		b.mu.Lock()
		if len(b.entries)+len(batch) <= maxLogCapacity {
			b.entries = append(batch, b.entries...)
		} else {
			b.dropped.Add(int64(len(batch)))
			b.logger.Error("dropping run log entries, buffer at capacity after flush failure", "dropped", len(batch))
		}
		b.mu.Unlock()
	}
}

// Drain stops the flush loop, waits for its final flush, and returns.
// The ctx bounds the wait and the final flush itself.
func (b *LogBuffer) Drain(ctx context.Context) {
	if !b.started.Load() {
		return
	}
	b.drainCtx = ctx
	if b.cancelLoop != nil {
		b.cancelLoop()
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		b.logger.Warn("run log drain timed out waiting for flush loop")
	}
}

func (b *LogBuffer) registerMetrics() {
	meter := telemetry.Meter("rentl/storage")

	_, _ = meter.Int64ObservableGauge("rentl.logbuf.depth",
		metric.WithDescription("Current number of buffered run log entries"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(b.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("rentl.logbuf.dropped_total",
		metric.WithDescription("Total run log entries dropped due to capacity exhaustion"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(b.Dropped())
			return nil
		}),
	)
}

// Len returns the current number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Dropped returns the total entries dropped at capacity. A non-zero
// value indicates log loss, never run failure.
func (b *LogBuffer) Dropped() int64 {
	return b.dropped.Load()
}
