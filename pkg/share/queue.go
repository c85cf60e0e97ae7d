package share

import (
	"fmt"
	"sync"
)

// Queue is a bounded FIFO. When full, Put either rejects the value or,
// with overwrite enabled, evicts the oldest one.
type Queue[T any] struct {
	name      string
	overwrite bool

	lock    sync.Mutex
	buf     []T
	head    int
	count   int
	dropped uint64
}

// NewQueue creates a Queue holding at most capacity values.
func NewQueue[T any](name string, capacity int, overwrite bool) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{name: name, overwrite: overwrite, buf: make([]T, capacity)}
}

// Put appends v and reports whether it was stored. It never blocks.
func (q *Queue[T]) Put(v T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.count == len(q.buf) {
		q.dropped++
		if !q.overwrite {
			return false
		}
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	return true
}

// Get removes and returns the oldest value.
func (q *Queue[T]) Get() (v T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.count == 0 {
		return v, false
	}
	var zero T
	v, q.buf[q.head] = q.buf[q.head], zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Drain removes and returns all queued values, oldest first.
func (q *Queue[T]) Drain() []T {
	q.lock.Lock()
	defer q.lock.Unlock()
	out := make([]T, 0, q.count)
	var zero T
	for ; q.count > 0; q.count-- {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
	}
	q.head = 0
	return out
}

// Count returns the number of queued values.
func (q *Queue[T]) Count() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.count
}

// Cap returns the capacity.
func (q *Queue[T]) Cap() int { return len(q.buf) }

// Full reports whether the next Put rejects or evicts.
func (q *Queue[T]) Full() bool { return q.Count() == len(q.buf) }

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool { return q.Count() == 0 }

// Overwrite reports the full policy.
func (q *Queue[T]) Overwrite() bool { return q.overwrite }

// Dropped returns how many values were rejected or evicted since the
// last Clear.
func (q *Queue[T]) Dropped() uint64 {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.dropped
}

// Clear discards all queued values.
func (q *Queue[T]) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head, q.count, q.dropped = 0, 0, 0
}

// Name implements Share.
func (q *Queue[T]) Name() string { return q.name }

func (q *Queue[T]) String() string {
	policy := "reject"
	if q.Overwrite() {
		policy = "overwrite"
	}
	state := ""
	if q.Full() {
		state = " full,"
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	return fmt.Sprintf("%d/%d queued,%s %d dropped (%s)", q.count, q.Cap(), state, q.dropped, policy)
}
