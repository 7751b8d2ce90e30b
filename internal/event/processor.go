package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TimurManjosov/flagship-go-sdk/internal/storage"
	"github.com/TimurManjosov/flagship-go-sdk/internal/telemetry"
)

// ProcessorOptions configures the event processor.
type ProcessorOptions struct {
	// BatchSize is the buffered-event count that triggers an early flush.
	BatchSize int
	// Capacity bounds the in-memory queue; when full the oldest event is
	// evicted together with its durable row.
	Capacity int
	// FlushInterval is the periodic flush cadence.
	FlushInterval time.Duration
	// Retention bounds the durable store row count; oldest rows beyond it
	// are pruned unconditionally.
	Retention int64
}

type queuedEvent struct {
	item  Item
	rowID int64
}

// Processor accepts produced events after dedup filtering, records them
// durably, and flushes them in batches: when the buffer crosses the batch
// threshold, when the periodic timer fires, or on demand. Dispatch always
// runs off the calling goroutine.
type Processor struct {
	dedup      *DedupCache
	store      storage.EventStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	opts       ProcessorOptions

	mu     sync.Mutex
	buffer []queuedEvent

	flushSignal chan struct{}
	stopCh      chan struct{}
	done        chan struct{}
	started     int32
	stopped     int32
}

// NewProcessor wires the publish path. The store may be nil, in which case
// events are delivered at-most-once from memory only.
func NewProcessor(dedup *DedupCache, store storage.EventStore, dispatcher *Dispatcher, logger *slog.Logger, opts ProcessorOptions) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 10 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 10000
	}
	return &Processor{
		dedup:       dedup,
		store:       store,
		dispatcher:  dispatcher,
		logger:      logger,
		opts:        opts,
		flushSignal: make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Process accepts one event. It never blocks on the network: at most it
// performs the dedup check, a local durable insert, and a buffer append.
func (p *Processor) Process(e UserEvent) {
	if p.dedup != nil && !p.dedup.ShouldEmit(e) {
		telemetry.EventsDeduped.Inc()
		return
	}
	item, err := Serialize(e)
	if err != nil {
		p.logger.Warn("dropping unserializable event",
			slog.String("insert_id", e.InsertID()), slog.String("error", err.Error()))
		return
	}

	var rowID int64
	if p.store != nil {
		rowID, err = p.store.Save(context.Background(), int(item.Type), item.Body)
		if err != nil {
			p.logger.Warn("durable save failed", slog.String("error", err.Error()))
			rowID = 0
		} else if err := p.store.TrimTo(context.Background(), p.opts.Retention); err != nil {
			p.logger.Warn("durable trim failed", slog.String("error", err.Error()))
		}
	}

	p.mu.Lock()
	if len(p.buffer) >= p.opts.Capacity {
		evicted := p.buffer[0]
		p.buffer = p.buffer[1:]
		telemetry.EventsDropped.Inc()
		if p.store != nil && evicted.rowID != 0 {
			if err := p.store.Delete(context.Background(), []int64{evicted.rowID}); err != nil {
				p.logger.Warn("evicted row delete failed", slog.String("error", err.Error()))
			}
		}
	}
	p.buffer = append(p.buffer, queuedEvent{item: item, rowID: rowID})
	depth := len(p.buffer)
	telemetry.QueueDepth.Set(float64(depth))
	p.mu.Unlock()

	telemetry.EventsQueued.Inc()

	if depth >= p.opts.BatchSize {
		select {
		case p.flushSignal <- struct{}{}:
		default:
		}
	}
}

// Start launches the periodic flush worker. Starting twice is a no-op.
func (p *Processor) Start() {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}
	go p.worker()
}

// Stop performs one final synchronous flush and cancels the timer. Safe to
// call multiple times.
func (p *Processor) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopped, 0, 1) {
		return
	}
	if atomic.LoadInt32(&p.started) == 1 {
		close(p.stopCh)
		<-p.done
	}
	p.Flush()
}

// Flush drains and dispatches whatever is pending and persists the dedup
// state, synchronously. Called on app backgrounding and during Stop; a
// background-then-kill must not lose suppression state.
func (p *Processor) Flush() {
	p.flush(context.Background())
	if p.dedup != nil {
		p.dedup.Save()
	}
}

func (p *Processor) worker() {
	defer close(p.done)
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.flush(context.Background())
		case <-p.flushSignal:
			p.flush(context.Background())
		}
	}
}

// flush drains the buffer atomically, picks up any durable rows left over
// from a previous process, and hands everything to the dispatcher as one
// batch. On failure the durable rows revert to pending for a later retry.
func (p *Processor) flush(ctx context.Context) {
	start := time.Now()

	p.mu.Lock()
	batch := p.buffer
	p.buffer = nil
	// Gauge updates stay under the mutex so a concurrent Process cannot be
	// overwritten by a stale depth.
	telemetry.QueueDepth.Set(float64(len(p.buffer)))
	p.mu.Unlock()

	items := make([]Item, 0, len(batch))
	ids := make([]int64, 0, len(batch))
	for _, q := range batch {
		items = append(items, q.item)
		if q.rowID != 0 {
			ids = append(ids, q.rowID)
		}
	}

	if p.store != nil {
		if err := p.store.MarkFlushing(ctx, ids); err != nil {
			p.logger.Warn("mark flushing failed", slog.String("error", err.Error()))
		}
		// Rows still pending at this point were produced by a previous
		// process; include them in the batch.
		recovered, err := p.store.FetchPending(ctx, p.opts.BatchSize)
		if err != nil {
			p.logger.Warn("fetch pending failed", slog.String("error", err.Error()))
		}
		for _, r := range recovered {
			items = append(items, Item{Type: Type(r.Type), Body: r.Body})
			ids = append(ids, r.ID)
		}
	}
	if len(items) == 0 {
		return
	}

	err := p.dispatcher.Dispatch(ctx, items)
	telemetry.FlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.DispatchTotal.WithLabelValues("failure").Inc()
		p.logger.Warn("event dispatch failed", slog.Int("events", len(items)), slog.String("error", err.Error()))
		if p.store != nil {
			if err := p.store.RevertToPending(ctx, ids); err != nil {
				p.logger.Warn("revert to pending failed", slog.String("error", err.Error()))
			}
		}
		return
	}

	telemetry.DispatchTotal.WithLabelValues("success").Inc()
	if p.store != nil {
		if err := p.store.Delete(ctx, ids); err != nil {
			p.logger.Warn("acknowledged row delete failed", slog.String("error", err.Error()))
		}
	}
}
