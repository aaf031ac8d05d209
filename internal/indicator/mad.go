package indicator

import (
	"fmt"
	"math"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// MeanAbsDev calculates the rolling mean absolute deviation from the
// window mean. O(period) per Next: the mean itself shifts with every
// sample, so the deviations cannot be maintained incrementally without
// approximation.
type MeanAbsDev struct {
	period  int
	win     *window.Ring[float64]
	acc     window.SumAcc
	current float64
}

// NewMeanAbsDev creates a MeanAbsDev over the given period.
func NewMeanAbsDev(period int) (*MeanAbsDev, error) {
	if period <= 0 {
		return nil, errPeriod("MAD", period)
	}
	return &MeanAbsDev{
		period: period,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new mean absolute deviation.
func (m *MeanAbsDev) Next(v float64) float64 {
	if ev, ok := m.win.Push(v); ok {
		m.acc.Remove(ev)
	}
	m.acc.Add(v)

	mean := m.acc.Mean()
	total := 0.0
	m.win.Do(func(x float64) bool {
		total += math.Abs(x - mean)
		return true
	})
	m.current = total / float64(m.win.Len())
	return m.current
}

// NextBar feeds the bar close.
func (m *MeanAbsDev) NextBar(b model.Bar) float64 { return m.Next(b.Close) }

func (m *MeanAbsDev) Value() float64 { return m.current }

func (m *MeanAbsDev) Reset() {
	m.win.Reset()
	m.acc.Reset()
	m.current = 0
}

// Clone returns an independently mutable deep copy.
func (m *MeanAbsDev) Clone() *MeanAbsDev {
	c := *m
	c.win = m.win.Clone()
	return &c
}

func (m *MeanAbsDev) String() string { return fmt.Sprintf("MAD(%d)", m.period) }

// Snapshot serializes the MeanAbsDev state for checkpoint persistence.
func (m *MeanAbsDev) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "MAD",
		Period:  m.period,
		Window:  ringContents(m.win),
		Current: m.current,
	}
}

// RestoreFromSnapshot restores MeanAbsDev state from a checkpoint.
func (m *MeanAbsDev) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(m.win, snap.Window); err != nil {
		return err
	}
	m.acc.Resync(m.win)
	m.current = snap.Current
	return nil
}
