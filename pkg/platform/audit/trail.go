package audit

import (
	"context"
	"log/slog"
	"time"
)

// Trail buffers events and delivers them to a Sink in the background.
//
// Emit never blocks and never returns an error to the caller: a privacy
// operation must not fail because the audit pipeline is degraded. Events that
// cannot be delivered after delivery retries are pushed to the Spill and
// replayed on a ticker; if even that fails they are counted as dropped.
type Trail struct {
	buffer *ringBuffer
	sink   Sink
	spill  Spill
	logger *slog.Logger

	flushInterval  time.Duration
	replayInterval time.Duration
	batchSize      int

	onDrop func(n int)
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) { t.logger = logger }
}

// WithSpill sets the overflow queue for undeliverable events.
func WithSpill(spill Spill) Option {
	return func(t *Trail) { t.spill = spill }
}

// WithBufferSize sets the in-memory buffer capacity.
func WithBufferSize(n int) Option {
	return func(t *Trail) { t.buffer = newRingBuffer(n) }
}

// WithFlushInterval sets how often buffered events are flushed to the sink.
func WithFlushInterval(d time.Duration) Option {
	return func(t *Trail) { t.flushInterval = d }
}

// WithDropCallback registers a hook invoked with the number of events lost.
// Wire this to a metrics counter.
func WithDropCallback(fn func(n int)) Option {
	return func(t *Trail) { t.onDrop = fn }
}

// NewTrail creates a trail writing to sink.
func NewTrail(sink Sink, opts ...Option) *Trail {
	t := &Trail{
		buffer:         newRingBuffer(8192),
		sink:           sink,
		logger:         slog.Default(),
		flushInterval:  250 * time.Millisecond,
		replayInterval: 15 * time.Second,
		batchSize:      128,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Emit records an event. It stamps the timestamp and category when unset,
// enqueues without blocking, and returns immediately.
func (t *Trail) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	t.buffer.enqueue(event)
}

// Run drains the buffer until ctx is cancelled, then performs a final flush.
// Intended to run under an errgroup alongside the server.
func (t *Trail) Run(ctx context.Context) error {
	flush := time.NewTicker(t.flushInterval)
	defer flush.Stop()
	replay := time.NewTicker(t.replayInterval)
	defer replay.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			t.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-flush.C:
			t.flush(ctx)
		case <-replay.C:
			t.replaySpill(ctx)
		}
	}
}

// flush moves buffered events to the sink, spilling what it cannot deliver.
func (t *Trail) flush(ctx context.Context) {
	for {
		batch := t.buffer.dequeueBatch(t.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := t.sink.Append(ctx, event); err != nil {
				t.divert(ctx, event, err)
			}
		}
	}
}

// divert routes an undeliverable event to the spill, or drops it.
func (t *Trail) divert(ctx context.Context, event Event, cause error) {
	if t.spill != nil {
		if err := t.spill.Push(ctx, event); err == nil {
			return
		}
	}
	t.logger.WarnContext(ctx, "audit event dropped",
		"action", event.Action,
		"tenant_id", event.TenantID,
		"error", cause,
	)
	if t.onDrop != nil {
		t.onDrop(1)
	}
}

// replaySpill retries spilled events against the sink. Events that still fail
// are pushed back and retried on the next tick.
func (t *Trail) replaySpill(ctx context.Context) {
	if t.spill == nil {
		return
	}
	for i := 0; i < t.batchSize; i++ {
		event, ok, err := t.spill.Pop(ctx)
		if err != nil || !ok {
			return
		}
		if err := t.sink.Append(ctx, event); err != nil {
			// Still down; requeue and stop this round.
			_ = t.spill.Push(ctx, event)
			return
		}
	}
}

// Pending reports events waiting in the in-memory buffer. Test hook.
func (t *Trail) Pending() int { return t.buffer.len() }

// Dropped reports events lost since startup.
func (t *Trail) Dropped() int64 { return t.buffer.droppedCount() }
