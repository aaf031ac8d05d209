// Package window provides the rolling-window statistics primitives the
// indicator library is built on: a fixed-capacity ring buffer, an
// incremental sum/sum-of-squares accumulator, and a monotonic-deque
// extremum tracker. All operations are O(1) amortized per sample.
package window

// Ring is a fixed-capacity circular buffer holding the last Cap() values
// pushed, oldest-first. Pushing past capacity evicts exactly the oldest
// element. Preallocated once — zero allocations on the hot path.
type Ring[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int
}

// NewRing creates a ring buffer with the given capacity (must be > 0;
// callers validate periods before construction).
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element if the buffer is full.
// Returns the evicted element and true if an eviction happened.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.count == len(r.buf) {
		evicted = r.buf[r.head]
		r.buf[r.head] = v
		r.head = r.next(r.head)
		return evicted, true
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return evicted, false
}

// Len returns the number of elements currently held.
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th element, oldest-first. i must be in [0, Len()).
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

// Oldest returns the oldest element. Buffer must be non-empty.
func (r *Ring[T]) Oldest() T { return r.buf[r.head] }

// Newest returns the most recently pushed element. Buffer must be non-empty.
func (r *Ring[T]) Newest() T {
	return r.buf[(r.head+r.count-1)%len(r.buf)]
}

// Do calls fn for each element oldest-first, stopping early if fn returns
// false. Restartable — Do does not consume the buffer.
func (r *Ring[T]) Do(fn func(v T) bool) {
	for i := 0; i < r.count; i++ {
		if !fn(r.At(i)) {
			return
		}
	}
}

// Reset clears the buffer to empty without reallocating.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
}

// Clone returns an independent deep copy.
func (r *Ring[T]) Clone() *Ring[T] {
	buf := make([]T, len(r.buf))
	copy(buf, r.buf)
	return &Ring[T]{buf: buf, head: r.head, count: r.count}
}

func (r *Ring[T]) next(i int) int {
	i++
	if i == len(r.buf) {
		return 0
	}
	return i
}
