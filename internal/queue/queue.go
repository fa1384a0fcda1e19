package queue

import (
	"sync"
)

// Bounded is a thread-safe queue with a size cap. Pushing past the cap
// drops the oldest items, so a slow consumer sees the most recent
// state instead of an ever-growing backlog.
type Bounded[T any] struct {
	mu      sync.Mutex
	items   []T
	max     int
	dropped uint64
}

// NewBounded creates a bounded queue holding at most max items.
func NewBounded[T any](max int) *Bounded[T] {
	if max < 1 {
		max = 1
	}
	return &Bounded[T]{
		items: make([]T, 0, max),
		max:   max,
	}
}

// Push appends items, evicting from the front when over capacity.
func (q *Bounded[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if over := len(q.items) - q.max; over > 0 {
		q.dropped += uint64(over)
		q.items = q.items[over:]
	}
}

// Len returns the number of items in the queue.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of evicted items.
func (q *Bounded[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// GetAndEmpty returns all items and clears the queue.
func (q *Bounded[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, q.max)
	return result
}
