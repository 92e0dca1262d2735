package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Pop removes and returns the first item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Peek returns the first item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Drain returns all items and clears the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = nil
	return result
}

// Inbox keeps at most one pending item per key. A newer Put for the same key
// replaces the older item, which is returned to the caller.
type Inbox[T any] struct {
	mu    sync.Mutex
	slots []*T
}

// NewInbox creates an inbox for keys in [0, size).
func NewInbox[T any](size int) *Inbox[T] {
	return &Inbox[T]{slots: make([]*T, size)}
}

// Put stores item under key. Keys out of range are dropped and reported as
// not stored.
func (b *Inbox[T]) Put(key int, item *T) (replaced *T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if key < 0 || key >= len(b.slots) {
		return nil, false
	}
	replaced = b.slots[key]
	b.slots[key] = item
	return replaced, true
}

// TakeAll hands every pending item to the caller, indexed by key, and
// leaves the inbox empty. Each item is returned exactly once.
func (b *Inbox[T]) TakeAll() []*T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.slots
	b.slots = make([]*T, len(out))
	return out
}

// Pending counts stored items.
func (b *Inbox[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, it := range b.slots {
		if it != nil {
			n++
		}
	}
	return n
}
