package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Async.Notify after Close.
var ErrClosed = errors.New("notify: closed")

// ErrQueueFull is returned when the queue has no room for another message.
var ErrQueueFull = errors.New("notify: queue full")

// Async delivers messages in the background so callers never wait on the
// transport. Delivery errors are logged and dropped.
type Async struct {
	next    Notifier
	logger  *zap.Logger
	timeout time.Duration
	queue   chan Message
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// AsyncOption configures Async.
type AsyncOption func(*Async)

// WithAsyncLogger sets the logger for delivery failures.
func WithAsyncLogger(logger *zap.Logger) AsyncOption {
	return func(a *Async) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDeliveryTimeout bounds each delivery.
func WithDeliveryTimeout(timeout time.Duration) AsyncOption {
	return func(a *Async) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// NewAsync starts workers delivering to next through a queue of size.
func NewAsync(next Notifier, size, workers int, opts ...AsyncOption) *Async {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 1
	}
	a := &Async{
		next:    next,
		logger:  zap.NewNop(),
		timeout: 10 * time.Second,
		queue:   make(chan Message, size),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.work()
	}
	return a
}

// Notify enqueues msg without blocking.
func (a *Async) Notify(_ context.Context, msg Message) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- msg:
		return nil
	default:
		a.logger.Warn("notification dropped, queue full", zap.String("subject", msg.Subject))
		return ErrQueueFull
	}
}

func (a *Async) work() {
	defer a.wg.Done()
	for msg := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, msg); err != nil {
			a.logger.Warn("notification delivery failed",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until the queue drains or ctx
// ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
