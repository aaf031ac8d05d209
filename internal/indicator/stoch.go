package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// StochasticFast calculates the fast stochastic oscillator:
// %K = 100·(close − lowestLow)/(highestHigh − lowestLow) over the
// trailing window, tracked with the monotonic min/max of bar lows and
// highs. When the window range is zero %K is defined as the neutral 50.
type StochasticFast struct {
	period  int
	lowMin  *Minimum
	highMax *Maximum
	current float64
}

// NewStochasticFast creates a fast stochastic over the given period.
func NewStochasticFast(period int) (*StochasticFast, error) {
	if period <= 0 {
		return nil, errPeriod("STOCH", period)
	}
	mn, err := NewMinimum(period)
	if err != nil {
		return nil, err
	}
	mx, err := NewMaximum(period)
	if err != nil {
		return nil, err
	}
	return &StochasticFast{period: period, lowMin: mn, highMax: mx}, nil
}

// NextBar feeds one bar and returns the new %K.
func (s *StochasticFast) NextBar(b model.Bar) float64 {
	lo := s.lowMin.NextBar(b)
	hi := s.highMax.NextBar(b)
	if hi == lo {
		s.current = 50
	} else {
		s.current = 100 * (b.Close - lo) / (hi - lo)
	}
	return s.current
}

func (s *StochasticFast) Value() float64 { return s.current }

func (s *StochasticFast) Reset() {
	s.lowMin.Reset()
	s.highMax.Reset()
	s.current = 0
}

// Clone returns an independently mutable deep copy.
func (s *StochasticFast) Clone() *StochasticFast {
	c := *s
	c.lowMin = s.lowMin.Clone()
	c.highMax = s.highMax.Clone()
	return &c
}

func (s *StochasticFast) String() string { return fmt.Sprintf("STOCH(%d)", s.period) }

// Snapshot serializes the fast stochastic and its owned trackers.
func (s *StochasticFast) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "STOCH",
		Period:  s.period,
		Current: s.current,
		Children: []IndicatorSnapshot{
			s.lowMin.Snapshot(),
			s.highMax.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores fast stochastic state from a checkpoint.
func (s *StochasticFast) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 {
		return fmt.Errorf("STOCH snapshot: want 2 children, got %d", len(snap.Children))
	}
	if err := s.lowMin.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := s.highMax.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	s.current = snap.Current
	return nil
}

// StochasticSlow is the fast stochastic with %K additionally smoothed
// by an SMA into %D. NextBar returns %D; KD exposes both lines.
type StochasticSlow struct {
	fast *StochasticFast
	dSMA *SMA
	k, d float64
}

// NewStochasticSlow creates a slow stochastic with the given %K window
// and %D smoothing period.
func NewStochasticSlow(period, dPeriod int) (*StochasticSlow, error) {
	fast, err := NewStochasticFast(period)
	if err != nil {
		return nil, err
	}
	if dPeriod <= 0 {
		return nil, errPeriod("STOCHSLOW", dPeriod)
	}
	sma, err := NewSMA(dPeriod)
	if err != nil {
		return nil, err
	}
	return &StochasticSlow{fast: fast, dSMA: sma}, nil
}

// NextBar feeds one bar and returns the new %D.
func (s *StochasticSlow) NextBar(b model.Bar) float64 {
	s.k = s.fast.NextBar(b)
	s.d = s.dSMA.Next(s.k)
	return s.d
}

// KD returns the most recent %K and %D.
func (s *StochasticSlow) KD() (k, d float64) { return s.k, s.d }

func (s *StochasticSlow) Value() float64 { return s.d }

func (s *StochasticSlow) Reset() {
	s.fast.Reset()
	s.dSMA.Reset()
	s.k = 0
	s.d = 0
}

// Clone returns an independently mutable deep copy.
func (s *StochasticSlow) Clone() *StochasticSlow {
	c := *s
	c.fast = s.fast.Clone()
	c.dSMA = s.dSMA.Clone()
	return &c
}

func (s *StochasticSlow) String() string {
	return fmt.Sprintf("STOCHSLOW(%d,%d)", s.fast.period, s.dSMA.period)
}

// Snapshot serializes the slow stochastic and its owned sub-indicators.
func (s *StochasticSlow) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "STOCHSLOW",
		Period:  s.fast.period,
		Current: s.d,
		Aux:     []float64{s.k},
		Children: []IndicatorSnapshot{
			s.fast.Snapshot(),
			s.dSMA.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores slow stochastic state from a checkpoint.
func (s *StochasticSlow) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 || len(snap.Aux) != 1 {
		return fmt.Errorf("STOCHSLOW snapshot: malformed")
	}
	if err := s.fast.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := s.dSMA.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	s.d = snap.Current
	s.k = snap.Aux[0]
	return nil
}
