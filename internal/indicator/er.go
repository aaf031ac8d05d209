package indicator

import (
	"fmt"
	"math"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// EfficiencyRatio calculates Kaufman's Efficiency Ratio: the absolute
// net change over the window divided by the sum of absolute
// step-by-step changes. 1 means a perfectly straight move, 0 pure
// chop. When total movement is 0 (all samples equal) the output is
// defined as 0.
type EfficiencyRatio struct {
	period  int
	win     *window.Ring[float64]
	current float64
}

// NewEfficiencyRatio creates an EfficiencyRatio over the given period.
func NewEfficiencyRatio(period int) (*EfficiencyRatio, error) {
	if period <= 0 {
		return nil, errPeriod("ER", period)
	}
	return &EfficiencyRatio{
		period: period,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new efficiency ratio.
func (e *EfficiencyRatio) Next(v float64) float64 {
	e.win.Push(v)

	movement := 0.0
	prev := math.NaN()
	e.win.Do(func(x float64) bool {
		if !math.IsNaN(prev) {
			movement += math.Abs(x - prev)
		}
		prev = x
		return true
	})

	if movement == 0 {
		e.current = 0
	} else {
		e.current = math.Abs(e.win.Newest()-e.win.Oldest()) / movement
	}
	return e.current
}

// NextBar feeds the bar close.
func (e *EfficiencyRatio) NextBar(b model.Bar) float64 { return e.Next(b.Close) }

func (e *EfficiencyRatio) Value() float64 { return e.current }

func (e *EfficiencyRatio) Reset() {
	e.win.Reset()
	e.current = 0
}

// Clone returns an independently mutable deep copy.
func (e *EfficiencyRatio) Clone() *EfficiencyRatio {
	c := *e
	c.win = e.win.Clone()
	return &c
}

func (e *EfficiencyRatio) String() string { return fmt.Sprintf("ER(%d)", e.period) }

// Snapshot serializes the EfficiencyRatio state for checkpoint persistence.
func (e *EfficiencyRatio) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "ER",
		Period:  e.period,
		Window:  ringContents(e.win),
		Current: e.current,
	}
}

// RestoreFromSnapshot restores EfficiencyRatio state from a checkpoint.
func (e *EfficiencyRatio) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(e.win, snap.Window); err != nil {
		return err
	}
	e.current = snap.Current
	return nil
}
