package portalauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink on one worker goroutine. A nil
// dispatcher discards everything.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	onDrop     func(AuditEvent)

	queue chan AuditEvent
	stop  chan struct{}

	// mu guards sends on queue against Close closing it.
	mu      sync.RWMutex
	closed  bool
	stopped sync.Once
	worker  sync.WaitGroup
	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, onDrop func(AuditEvent)) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		onDrop:     onDrop,
		queue:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	d.worker.Go(func() {
		for event := range d.queue {
			d.sink.Emit(context.Background(), event)
		}
	})
	return d
}

// Emit queues event for the sink. With dropIfFull a full queue drops and
// counts the event; otherwise Emit waits for room, ctx or Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(event)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close releases blocked emitters, lets the worker drain the queue and
// waits for it. It is idempotent.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopped.Do(func() {
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.worker.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
