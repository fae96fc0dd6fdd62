package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultMaxBatch      = 64
	defaultFlushInterval = 200 * time.Millisecond
)

type Config struct {
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking the emitter.
	DropIfFull bool
	// MaxBatch caps how many events one delivery carries.
	MaxBatch int
	// FlushInterval bounds how long a partial batch waits before delivery.
	FlushInterval time.Duration
}

// Dispatcher queues events and delivers them from one background goroutine, so sink
// latency stays off the request path. Events are grouped into batches for sinks that
// implement [BatchSink].
type Dispatcher struct {
	cfg   Config
	sink  Sink
	batch BatchSink

	queue   chan Event
	stop    chan struct{}
	stopped chan struct{}

	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewDispatcher starts the delivery goroutine. Close stops it after flushing.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	cfg.BufferSize = max(cfg.BufferSize, 1)
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan Event, cfg.BufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	d.batch, _ = sink.(BatchSink)

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)

	ctx := context.Background()
	pending := make([]Event, 0, d.cfg.MaxBatch)
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		d.deliver(ctx, pending)
		pending = pending[:0]
	}

	for {
		select {
		case event := <-d.queue:
			pending = append(pending, event)
			if len(pending) >= d.cfg.MaxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					pending = append(pending, event)
					if len(pending) >= d.cfg.MaxBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, events []Event) {
	if d.batch != nil {
		d.batch.EmitBatch(ctx, events)
		return
	}
	for _, event := range events {
		d.sink.Emit(ctx, event)
	}
}

// Emit queues event. Overflow is counted in Dropped, never returned.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events, delivers everything queued and waits for delivery to
// finish. Later calls return immediately.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		<-d.stopped
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
