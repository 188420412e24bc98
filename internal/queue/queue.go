// Package queue implements the bounded FIFO buffer that sits between relay
// producers and the relay worker.
//
// The buffer is a fixed-size ring guarded by a single mutex. Two condition
// variables park blocked producers (notFull) and the draining worker
// (notEmpty). Closing the queue is a one-way transition: admission stops
// immediately, while records already buffered remain drainable until the
// queue reports end-of-stream.
package queue

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperrelay"
)

// Bounded is a fixed-capacity, multi-producer single-consumer FIFO queue.
type Bounded[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items  []T
	head   int
	count  int
	closed bool
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int) (*Bounded[T], error) {
	if capacity <= 0 {
		return nil, ewrap.Wrap(hyperrelay.ErrInvalidCapacity, "creating bounded queue").
			WithMetadata("capacity", capacity)
	}

	q := &Bounded[T]{
		items: make([]T, capacity),
	}

	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q, nil
}

// TryAdmit enqueues item without blocking. It returns hyperrelay.ErrQueueClosed
// once the queue is closed and hyperrelay.ErrQueueFull when no slot is free.
func (q *Bounded[T]) TryAdmit(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return hyperrelay.ErrQueueClosed
	}

	if q.count == len(q.items) {
		return hyperrelay.ErrQueueFull
	}

	q.push(item)

	return nil
}

// Admit enqueues item, waiting for a free slot. It fails with
// hyperrelay.ErrQueueClosed if the queue is closed before or while waiting, and
// with the context error if ctx is done while no slot is free.
func (q *Bounded[T]) Admit(ctx context.Context, item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.notFull.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	for q.count == len(q.items) && !q.closed {
		err := ctx.Err()
		if err != nil {
			return ewrap.Wrap(err, "waiting for queue capacity")
		}

		q.notFull.Wait()
	}

	if q.closed {
		return hyperrelay.ErrQueueClosed
	}

	q.push(item)

	return nil
}

// DrainNext removes the oldest item, waiting while the queue is empty and open.
// The boolean is false once the queue is closed and fully drained.
func (q *Bounded[T]) DrainNext() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.count == 0 {
		var zero T

		return zero, false
	}

	item := q.pop()
	q.notFull.Signal()

	return item, true
}

// DrainRemaining removes and returns every buffered item without waiting.
func (q *Bounded[T]) DrainRemaining() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	remaining := make([]T, 0, q.count)
	for q.count > 0 {
		remaining = append(remaining, q.pop())
	}

	q.notFull.Broadcast()

	return remaining
}

// Close stops admission and wakes every waiter. It reports whether this call
// performed the transition.
func (q *Bounded[T]) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()

	return true
}

// Len returns the number of buffered items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

// Cap returns the configured capacity.
func (q *Bounded[T]) Cap() int {
	return len(q.items)
}

// IsClosed reports whether admission has stopped.
func (q *Bounded[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// push appends item at the tail. Callers hold q.mu and have checked for space.
func (q *Bounded[T]) push(item T) {
	tail := (q.head + q.count) % len(q.items)
	q.items[tail] = item
	q.count++

	q.notEmpty.Signal()
}

// pop removes the head item. Callers hold q.mu and have checked count > 0.
func (q *Bounded[T]) pop() T {
	var zero T

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--

	return item
}
