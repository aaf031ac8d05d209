package indicator

import (
	"fmt"
	"math"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// StdDev calculates the rolling standard deviation over a window, using
// the incremental sum/sum-of-squares accumulator (no rescans). The
// default is population standard deviation; NewSampleStdDev applies the
// Bessel correction instead.
type StdDev struct {
	period  int
	kind    window.VarianceKind
	win     *window.Ring[float64]
	acc     window.SumAcc
	current float64
	pushes  int
}

// NewStdDev creates a population standard deviation over the given period.
func NewStdDev(period int) (*StdDev, error) {
	return newStdDev(period, window.Population)
}

// NewSampleStdDev creates a Bessel-corrected standard deviation.
func NewSampleStdDev(period int) (*StdDev, error) {
	return newStdDev(period, window.Sample)
}

func newStdDev(period int, kind window.VarianceKind) (*StdDev, error) {
	if period <= 0 {
		return nil, errPeriod("SD", period)
	}
	return &StdDev{
		period: period,
		kind:   kind,
		win:    window.NewRing[float64](period),
	}, nil
}

// Next feeds one sample and returns the new standard deviation.
func (s *StdDev) Next(v float64) float64 {
	if ev, ok := s.win.Push(v); ok {
		s.acc.Remove(ev)
	}
	s.acc.Add(v)
	s.pushes++
	if s.pushes%resyncInterval == 0 {
		s.acc.Resync(s.win)
	}
	s.current = math.Sqrt(s.acc.Variance(s.kind))
	return s.current
}

// NextBar feeds the bar close.
func (s *StdDev) NextBar(b model.Bar) float64 { return s.Next(b.Close) }

func (s *StdDev) Value() float64 { return s.current }

func (s *StdDev) Reset() {
	s.win.Reset()
	s.acc.Reset()
	s.current = 0
	s.pushes = 0
}

// Clone returns an independently mutable deep copy.
func (s *StdDev) Clone() *StdDev {
	c := *s
	c.win = s.win.Clone()
	return &c
}

func (s *StdDev) String() string { return fmt.Sprintf("SD(%d)", s.period) }

// Snapshot serializes the StdDev state for checkpoint persistence.
func (s *StdDev) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "SD",
		Period:  s.period,
		Window:  ringContents(s.win),
		Current: s.current,
		Sample:  s.kind == window.Sample,
	}
}

// RestoreFromSnapshot restores StdDev state from a checkpoint.
func (s *StdDev) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(s.win, snap.Window); err != nil {
		return err
	}
	s.acc.Resync(s.win)
	s.current = snap.Current
	s.pushes = s.win.Len()
	return nil
}
