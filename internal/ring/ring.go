// Package ring provides a fixed-capacity FIFO that overwrites its oldest
// entry when full.
package ring

// Buffer is a fixed-capacity FIFO.
// Not safe for concurrent use; callers must synchronize.
type Buffer[T any] struct {
	buf      []T
	capacity int
	head     int // next write position
	count    int
	dropped  int // entries overwritten since the last drain
}

// New creates a buffer holding at most capacity entries (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v. When the buffer is full the oldest entry is overwritten
// and Push reports true.
func (r *Buffer[T]) Push(v T) (overwrote bool) {
	if r.count == r.capacity {
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = v
		r.head = (r.head + 1) % r.capacity
		r.dropped++
		return true
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

// DrainAll removes and returns every entry, oldest first.
// Returns nil when empty.
func (r *Buffer[T]) DrainAll() []T {
	if r.count == 0 {
		return nil
	}

	result := make([]T, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	var zero T
	for i := 0; i < r.count; i++ {
		idx := (start + i) % r.capacity
		result[i] = r.buf[idx]
		r.buf[idx] = zero
	}

	r.count = 0
	r.head = 0
	r.dropped = 0
	return result
}

// Len returns the number of buffered entries.
func (r *Buffer[T]) Len() int {
	return r.count
}

// Dropped returns how many entries were overwritten since the last drain.
func (r *Buffer[T]) Dropped() int {
	return r.dropped
}
