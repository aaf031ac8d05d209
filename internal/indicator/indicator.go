// Package indicator provides streaming technical indicators computed
// incrementally, one sample at a time, with memory bounded by the
// configured period. Indicators never rescan history: each Next call is
// O(1) amortized (a few are O(period) by design, noted per type).
//
// All indicators follow the same lifecycle: a validating constructor,
// Next (feed one sample, get the new value), Value (idempotent read of
// the last output), Reset (back to the freshly constructed state), and
// String (human-readable rendering such as "SMA(20)"). Composite
// indicators own their sub-indicators exclusively and reset them
// recursively. Instances are not safe for concurrent mutation; give
// each stream its own instance.
package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// Indicator consumes a stream of scalar samples.
type Indicator interface {
	// Next feeds one sample and returns the updated indicator value.
	Next(v float64) float64

	// Value returns the most recent output without feeding.
	Value() float64

	// Reset returns the indicator to its freshly constructed state.
	Reset()

	// String renders the indicator and its parameters, e.g. "EMA(9)".
	String() string
}

// BarIndicator consumes a stream of OHLCV bars. Scalar indicators also
// implement it by feeding the bar close.
type BarIndicator interface {
	// NextBar feeds one bar and returns the updated indicator value.
	NextBar(b model.Bar) float64

	Value() float64
	Reset()
	String() string
}

// ConfigError reports an invalid constructor parameter. Construction is
// the only fallible operation; a failed constructor yields no instance.
type ConfigError struct {
	Indicator string
	Param     string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Indicator, e.Param, e.Reason)
}

// errPeriod builds the ConfigError for a non-positive period.
func errPeriod(ind string, period int) error {
	return &ConfigError{
		Indicator: ind,
		Param:     "period",
		Reason:    fmt.Sprintf("must be > 0, got %d", period),
	}
}

// errMultiplier builds the ConfigError for a negative multiplier.
func errMultiplier(ind string, k float64) error {
	return &ConfigError{
		Indicator: ind,
		Param:     "multiplier",
		Reason:    fmt.Sprintf("must be >= 0, got %v", k),
	}
}

// resyncInterval bounds floating-point drift in subtract-on-evict
// accumulators: every resyncInterval pushes the owner recomputes its
// sums exactly from the window contents.
const resyncInterval = 1 << 14
