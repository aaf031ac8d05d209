package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// SMA calculates the Simple Moving Average over a rolling window.
// Startup follows a growing-window policy: before period samples have
// been fed, the output is the mean of the samples seen so far.
type SMA struct {
	period  int
	win     *window.Ring[float64]
	acc     window.SumAcc
	current float64
	pushes  int
}

// NewSMA creates an SMA with the given period.
func NewSMA(period int) (*SMA, error) {
	if period <= 0 {
		return nil, errPeriod("SMA", period)
	}
	return &SMA{
		period: period,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new average.
func (s *SMA) Next(v float64) float64 {
	if ev, ok := s.win.Push(v); ok {
		s.acc.Remove(ev)
	}
	s.acc.Add(v)
	s.pushes++
	if s.pushes%resyncInterval == 0 {
		s.acc.Resync(s.win)
	}
	s.current = s.acc.Mean()
	return s.current
}

// NextBar feeds the bar close.
func (s *SMA) NextBar(b model.Bar) float64 { return s.Next(b.Close) }

func (s *SMA) Value() float64 { return s.current }

func (s *SMA) Reset() {
	s.win.Reset()
	s.acc.Reset()
	s.current = 0
	s.pushes = 0
}

// Clone returns an independently mutable deep copy.
func (s *SMA) Clone() *SMA {
	c := *s
	c.win = s.win.Clone()
	return &c
}

func (s *SMA) String() string { return fmt.Sprintf("SMA(%d)", s.period) }

// Snapshot serializes the SMA state for checkpoint persistence.
func (s *SMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "SMA",
		Period:  s.period,
		Window:  ringContents(s.win),
		Sum:     s.acc.Sum(),
		Current: s.current,
	}
}

// RestoreFromSnapshot restores SMA state from a checkpoint.
func (s *SMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(s.win, snap.Window); err != nil {
		return err
	}
	s.acc.Resync(s.win)
	s.current = snap.Current
	s.pushes = s.win.Len()
	return nil
}
