package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// ROC calculates the Rate of Change: the percentage move of the current
// sample against the oldest sample in the trailing window,
// (current − oldest) / oldest · 100. A zero base would divide by zero;
// the output is defined as 0 in that case so the stream never stops on
// one degenerate sample.
type ROC struct {
	period  int
	win     *window.Ring[float64]
	current float64
}

// NewROC creates a ROC over the given period.
func NewROC(period int) (*ROC, error) {
	if period <= 0 {
		return nil, errPeriod("ROC", period)
	}
	return &ROC{
		period: period,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new rate of change.
func (r *ROC) Next(v float64) float64 {
	r.win.Push(v)
	oldest := r.win.Oldest()
	if oldest == 0 {
		r.current = 0
	} else {
		r.current = (v - oldest) / oldest * 100
	}
	return r.current
}

// NextBar feeds the bar close.
func (r *ROC) NextBar(b model.Bar) float64 { return r.Next(b.Close) }

func (r *ROC) Value() float64 { return r.current }

func (r *ROC) Reset() {
	r.win.Reset()
	r.current = 0
}

// Clone returns an independently mutable deep copy.
func (r *ROC) Clone() *ROC {
	c := *r
	c.win = r.win.Clone()
	return &c
}

func (r *ROC) String() string { return fmt.Sprintf("ROC(%d)", r.period) }

// Snapshot serializes the ROC state for checkpoint persistence.
func (r *ROC) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "ROC",
		Period:  r.period,
		Window:  ringContents(r.win),
		Current: r.current,
	}
}

// RestoreFromSnapshot restores ROC state from a checkpoint.
func (r *ROC) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(r.win, snap.Window); err != nil {
		return err
	}
	r.current = snap.Current
	return nil
}
