package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// WMA calculates the Weighted Moving Average: the i-th oldest of the N
// most recent samples carries weight i+1, so the newest sample weighs
// most. Recomputed from the window each step — O(period) per Next,
// acceptable because windows are small and the weights shift on every
// eviction.
type WMA struct {
	period  int
	win     *window.Ring[float64]
	current float64
}

// NewWMA creates a WMA with the given period.
func NewWMA(period int) (*WMA, error) {
	if period <= 0 {
		return nil, errPeriod("WMA", period)
	}
	return &WMA{
		period: period,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new weighted average.
// During startup the weights run 1..k over the k samples seen so far.
func (w *WMA) Next(v float64) float64 {
	w.win.Push(v)
	n := w.win.Len()
	weighted := 0.0
	for i := 0; i < n; i++ {
		weighted += w.win.At(i) * float64(i+1)
	}
	w.current = weighted / float64(n*(n+1)/2)
	return w.current
}

// NextBar feeds the bar close.
func (w *WMA) NextBar(b model.Bar) float64 { return w.Next(b.Close) }

func (w *WMA) Value() float64 { return w.current }

func (w *WMA) Reset() {
	w.win.Reset()
	w.current = 0
}

// Clone returns an independently mutable deep copy.
func (w *WMA) Clone() *WMA {
	c := *w
	c.win = w.win.Clone()
	return &c
}

func (w *WMA) String() string { return fmt.Sprintf("WMA(%d)", w.period) }

// Snapshot serializes the WMA state for checkpoint persistence.
func (w *WMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "WMA",
		Period:  w.period,
		Window:  ringContents(w.win),
		Current: w.current,
	}
}

// RestoreFromSnapshot restores WMA state from a checkpoint.
func (w *WMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(w.win, snap.Window); err != nil {
		return err
	}
	w.current = snap.Current
	return nil
}
