package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBusFull is returned when the in-process buffer cannot take another event.
var ErrBusFull = errors.New("event bus full")

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus closed")

// Bus is an in-process Publisher backed by a buffered channel. Publish never
// blocks; a full buffer drops the event and reports ErrBusFull.
type Bus struct {
	mu     sync.RWMutex
	inbox  chan Event
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{inbox: make(chan Event, buffer)}
}

func (b *Bus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	select {
	case b.inbox <- e:
		return nil
	default:
		return ErrBusFull
	}
}

// Inbox is the receive side for a Worker.
func (b *Bus) Inbox() <-chan Event {
	return b.inbox
}

// Close stops accepting events. Buffered events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.inbox)
	}
}

// Worker drains an inbox into a Handler. Handler failures are logged and the
// event is dropped; delivery is best-effort.
type Worker struct {
	handler Handler
	inbox   <-chan Event
	logger  *slog.Logger
}

func NewWorker(handler Handler, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{handler: handler, inbox: inbox, logger: logger}
}

// Run processes events until ctx ends or the inbox closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.handler.Handle(ctx, e); err != nil {
				w.logger.WarnContext(ctx, "event handler failed",
					"type", e.Type,
					"event_id", e.ID,
					"error", err,
				)
			}
		}
	}
}
