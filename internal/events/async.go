package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultQueueSize is the number of events an AsyncPublisher buffers.
const DefaultQueueSize = 256

var (
	// ErrQueueFull is returned when the buffer of an AsyncPublisher is full.
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("event publisher is closed")
)

type queuedEvent struct {
	ctx context.Context
	ev  Event
}

// AsyncPublisher hands events to one background worker through a bounded queue,
// so Publish never waits on the broker. Delivery failures are logged by the worker.
type AsyncPublisher struct {
	next  Publisher
	queue chan queuedEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &AsyncPublisher{
		next:  next,
		queue: make(chan queuedEvent, size),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues ev. The request's cancellation does not reach delivery; its
// logger does.
func (p *AsyncPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for item := range p.queue {
		if err := p.next.Publish(item.ctx, item.ev); err != nil {
			zerolog.Ctx(item.ctx).Warn().Err(err).
				Str("event", item.ev.Type).
				Int64("user_id", item.ev.UserID).
				Msg("Failed to deliver event")
		}
	}
}

// Close stops accepting events, delivers what is already queued and then
// closes the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
