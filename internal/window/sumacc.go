package window

// VarianceKind selects the variance denominator.
type VarianceKind int

const (
	// Population divides by n.
	Population VarianceKind = iota
	// Sample divides by n-1 (Bessel correction).
	Sample
)

// SumAcc maintains a running sum and sum-of-squares over the current
// window contents. Values are added on push and subtracted on evict
// instead of rescanning the window. Owners should call Resync
// periodically (and after Reset) to squash accumulated float error.
type SumAcc struct {
	sum   float64
	sumSq float64
	n     int
}

// Add folds a pushed value into the running totals.
func (a *SumAcc) Add(v float64) {
	a.sum += v
	a.sumSq += v * v
	a.n++
}

// Remove folds an evicted value out of the running totals.
func (a *SumAcc) Remove(v float64) {
	a.sum -= v
	a.sumSq -= v * v
	a.n--
}

// Len returns the number of values currently accounted for.
func (a *SumAcc) Len() int { return a.n }

// Sum returns the running sum.
func (a *SumAcc) Sum() float64 { return a.sum }

// Mean returns sum/n, or 0 for an empty accumulator.
func (a *SumAcc) Mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// Variance returns the variance of the window contents, clamped to ≥ 0 to
// absorb floating-point error from the subtract-on-evict updates.
// Sample variance of fewer than two values is 0.
func (a *SumAcc) Variance(kind VarianceKind) float64 {
	if a.n == 0 || (kind == Sample && a.n < 2) {
		return 0
	}
	mean := a.sum / float64(a.n)
	v := a.sumSq/float64(a.n) - mean*mean
	if kind == Sample {
		v *= float64(a.n) / float64(a.n-1)
	}
	if v < 0 {
		return 0
	}
	return v
}

// Resync recomputes the totals exactly from the given window contents.
func (a *SumAcc) Resync(vals *Ring[float64]) {
	a.sum = 0
	a.sumSq = 0
	a.n = 0
	vals.Do(func(v float64) bool {
		a.sum += v
		a.sumSq += v * v
		a.n++
		return true
	})
}

// Reset clears the accumulator.
func (a *SumAcc) Reset() {
	a.sum = 0
	a.sumSq = 0
	a.n = 0
}
