package window

// Order selects whether an Extremum tracks the window minimum or maximum.
type Order int

const (
	Min Order = iota
	Max
)

type candidate struct {
	value float64
	pos   uint64
}

// Extremum answers "what is the min/max of the trailing N samples" in O(1)
// amortized time using a monotonic deque. Candidates dominated by a newer
// value are evicted from the back on push; candidates that age out of the
// window are evicted from the front. The front is always the current
// window extremum.
type Extremum struct {
	order  Order
	period int
	deq    []candidate // front at index 0
}

// NewExtremum creates a tracker over a trailing window of period samples.
func NewExtremum(order Order, period int) *Extremum {
	return &Extremum{
		order:  order,
		period: period,
		deq:    make([]candidate, 0, period),
	}
}

// Push records a new sample at the given feed position. pos must be
// strictly increasing across pushes. Candidates older than
// pos-period+1 are dropped from the front first, then back candidates
// dominated by v are dropped before v is appended.
func (e *Extremum) Push(v float64, pos uint64) {
	if pos+1 >= uint64(e.period) {
		e.evictBefore(pos + 1 - uint64(e.period))
	}
	for len(e.deq) > 0 && e.dominates(v, e.deq[len(e.deq)-1].value) {
		e.deq = e.deq[:len(e.deq)-1]
	}
	e.deq = append(e.deq, candidate{value: v, pos: pos})
}

// Current returns the window extremum, or false if nothing has been pushed.
func (e *Extremum) Current() (float64, bool) {
	if len(e.deq) == 0 {
		return 0, false
	}
	return e.deq[0].value, true
}

// Reset clears all candidates.
func (e *Extremum) Reset() {
	e.deq = e.deq[:0]
}

// Clone returns an independent deep copy.
func (e *Extremum) Clone() *Extremum {
	deq := make([]candidate, len(e.deq), cap(e.deq))
	copy(deq, e.deq)
	return &Extremum{order: e.order, period: e.period, deq: deq}
}

// Candidates returns the live (value, position) pairs front-to-back.
// Used by snapshot serialization.
func (e *Extremum) Candidates() ([]float64, []uint64) {
	vals := make([]float64, len(e.deq))
	pos := make([]uint64, len(e.deq))
	for i, c := range e.deq {
		vals[i] = c.value
		pos[i] = c.pos
	}
	return vals, pos
}

// Restore replaces the deque contents. Pairs must already be monotonic;
// this is only called with data produced by Candidates.
func (e *Extremum) Restore(vals []float64, pos []uint64) {
	e.deq = e.deq[:0]
	for i := range vals {
		e.deq = append(e.deq, candidate{value: vals[i], pos: pos[i]})
	}
}

func (e *Extremum) evictBefore(minPos uint64) {
	i := 0
	for i < len(e.deq) && e.deq[i].pos < minPos {
		i++
	}
	if i > 0 {
		e.deq = append(e.deq[:0], e.deq[i:]...)
	}
}

// dominates reports whether a newer value v makes an older candidate c
// irrelevant. Ties evict too, keeping the deque short.
func (e *Extremum) dominates(v, c float64) bool {
	if e.order == Min {
		return v <= c
	}
	return v >= c
}
