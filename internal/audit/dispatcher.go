package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior. OnDrop, when set, is called
// synchronously for every event discarded because the buffer was full.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	OnDrop     func(Event)
}

// Dispatcher relays events to a Sink from a single goroutine, so the sink
// sees them in emit order. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	onDrop     func(Event)

	// mu guards queue against a send racing Close; senders hold it shared.
	mu     sync.RWMutex
	queue  chan Event
	closed bool

	stopped chan struct{}
	dropped atomic.Uint64
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		onDrop:     cfg.OnDrop,
		queue:      make(chan Event, size),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event and reports whether it was accepted. With DropIfFull a
// full buffer drops the event; otherwise Emit waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if !d.dropIfFull {
		select {
		case d.queue <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	select {
	case d.queue <- event:
		return true
	default:
	}
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(event)
	}
	return false
}

// Close stops accepting events and waits until the queued ones reach the
// sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
