package gateway

import (
	"sort"
	"sync"
)

// LatencyTracker measures end-to-end delivery latency: the gap between
// a result's source timestamp (stamped by the engine when the bar was
// processed) and the moment the gateway fans the envelope out. Samples
// live in a fixed ring so a long-running gateway never grows, and the
// percentiles always describe the most recent window.
type LatencyTracker struct {
	mu     sync.Mutex
	ring   []float64 // sample values in milliseconds
	next   int       // write cursor
	filled int       // samples recorded, saturates at len(ring)
}

// NewLatencyTracker creates a tracker over the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{ring: make([]float64, capacity)}
}

// Record adds one latency sample in milliseconds, evicting the oldest
// sample once the ring is full.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.ring[lt.next] = ms
	lt.next = (lt.next + 1) % len(lt.ring)
	if lt.filled < len(lt.ring) {
		lt.filled++
	}
	lt.mu.Unlock()
}

// Count returns how many samples the window currently holds.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.filled
}

// Percentiles returns the p50, p95 and p99 delivery latency in
// milliseconds over the current window, or zeros with no samples.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	samples := lt.window()
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(samples)
	return quantile(samples, 0.50), quantile(samples, 0.95), quantile(samples, 0.99)
}

// window copies the live samples out so sorting happens off-lock.
func (lt *LatencyTracker) window() []float64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.filled < len(lt.ring) {
		out := make([]float64, lt.filled)
		copy(out, lt.ring[:lt.filled])
		return out
	}
	// Full ring: next is also the oldest slot.
	out := make([]float64, 0, len(lt.ring))
	out = append(out, lt.ring[lt.next:]...)
	out = append(out, lt.ring[:lt.next]...)
	return out
}

// quantile reads q (0..1) from a sorted slice with linear interpolation
// between the two straddling ranks.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
