package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// EMA calculates the Exponential Moving Average with smoothing factor
// α = 2/(period+1). The first output is the first sample itself; no
// window storage is needed — O(1) state.
type EMA struct {
	period  int
	alpha   float64
	current float64
	seeded  bool
}

// NewEMA creates an EMA with the given period.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, errPeriod("EMA", period)
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}, nil
}

// Next feeds one sample and returns the new average.
func (e *EMA) Next(v float64) float64 {
	if !e.seeded {
		e.current = v
		e.seeded = true
		return e.current
	}
	e.current = e.alpha*v + (1-e.alpha)*e.current
	return e.current
}

// NextBar feeds the bar close.
func (e *EMA) NextBar(b model.Bar) float64 { return e.Next(b.Close) }

func (e *EMA) Value() float64 { return e.current }

func (e *EMA) Reset() {
	e.current = 0
	e.seeded = false
}

// Clone returns an independently mutable deep copy.
func (e *EMA) Clone() *EMA {
	c := *e
	return &c
}

func (e *EMA) String() string { return fmt.Sprintf("EMA(%d)", e.period) }

// Snapshot serializes the EMA state for checkpoint persistence.
func (e *EMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "EMA",
		Period:  e.period,
		Current: e.current,
		Seeded:  e.seeded,
	}
}

// RestoreFromSnapshot restores EMA state from a checkpoint.
func (e *EMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	e.current = snap.Current
	e.seeded = snap.Seeded
	return nil
}
