package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
	ErrQueueFull       = errors.New("publish queue full")
)

const defaultAsyncTimeout = 30 * time.Second

// AsyncPublisher hands events to next on a background worker, so a slow
// consumer such as an SMTP server never runs inside the caller's write.
// Events are delivered in order. When the queue is full the event is dropped.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan asyncEvent
	done   chan struct{}
}

type asyncEvent struct {
	ctx   context.Context
	key   string
	event any
}

// NewAsync starts the worker. timeout bounds each delivery to next.
func NewAsync(next Publisher, buffer int, timeout time.Duration, logger *zap.Logger) *AsyncPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultAsyncTimeout
	}
	a := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		logger:  logger.Named("async_publisher"),
		queue:   make(chan asyncEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish queues the event and returns without waiting for delivery.
func (a *AsyncPublisher) Publish(ctx context.Context, key string, event any) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}

	select {
	case a.queue <- asyncEvent{ctx: context.WithoutCancel(ctx), key: key, event: event}:
		return nil
	default:
		a.logger.Warn("event dropped", zap.String("key", key), zap.Int("queued", len(a.queue)))
		return ErrQueueFull
	}
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(e.ctx, a.timeout)
		if err := a.next.Publish(ctx, e.key, e.event); err != nil {
			a.logger.Warn("event not delivered", zap.String("key", e.key), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are delivered
// or ctx is done.
func (a *AsyncPublisher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
