// Package queue provides a thread-safe, unbounded FIFO used to hand lines
// from pipe reader goroutines to the UI loop.
package queue

import "sync"

// Queue is a thread-safe FIFO. Producers never block on it and the consumer
// never waits for it.
type Queue[T any] struct {
	entries []T
	mu      sync.Mutex
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{entries: make([]T, 0)}
}

// Put appends v to the back of the queue.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, v)
}

// Drain removes and returns everything queued, oldest first.
// Returns an empty slice if the queue was already empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return []T{}
	}

	result := q.entries
	q.entries = make([]T, 0, len(result))
	return result
}

// Len returns the current number of queued entries.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.entries)
}
