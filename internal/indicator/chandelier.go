package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// ChandelierValue holds the long and short trailing-stop levels.
type ChandelierValue struct {
	LongExit  float64
	ShortExit float64
}

// ChandelierExit calculates volatility-scaled trailing stops:
// long exit = highest high(period) − k·ATR(period),
// short exit = lowest low(period) + k·ATR(period).
type ChandelierExit struct {
	period  int
	k       float64
	highMax *Maximum
	lowMin  *Minimum
	atr     *ATR
	last    ChandelierValue
}

// NewChandelierExit creates a ChandelierExit with the given period and
// ATR multiplier (k >= 0).
func NewChandelierExit(period int, k float64) (*ChandelierExit, error) {
	if period <= 0 {
		return nil, errPeriod("CHANDELIER", period)
	}
	if k < 0 {
		return nil, errMultiplier("CHANDELIER", k)
	}
	mx, err := NewMaximum(period)
	if err != nil {
		return nil, err
	}
	mn, err := NewMinimum(period)
	if err != nil {
		return nil, err
	}
	atr, err := NewATR(period)
	if err != nil {
		return nil, err
	}
	return &ChandelierExit{period: period, k: k, highMax: mx, lowMin: mn, atr: atr}, nil
}

// NextBar feeds one bar and returns the new long exit. Both stops are
// available via Last.
func (c *ChandelierExit) NextBar(b model.Bar) float64 {
	hi := c.highMax.NextBar(b)
	lo := c.lowMin.NextBar(b)
	rng := c.atr.NextBar(b)
	c.last = ChandelierValue{
		LongExit:  hi - c.k*rng,
		ShortExit: lo + c.k*rng,
	}
	return c.last.LongExit
}

// Last returns both trailing stops for the most recent step.
func (c *ChandelierExit) Last() ChandelierValue { return c.last }

func (c *ChandelierExit) Value() float64 { return c.last.LongExit }

func (c *ChandelierExit) Reset() {
	c.highMax.Reset()
	c.lowMin.Reset()
	c.atr.Reset()
	c.last = ChandelierValue{}
}

// Clone returns an independently mutable deep copy.
func (c *ChandelierExit) Clone() *ChandelierExit {
	cp := *c
	cp.highMax = c.highMax.Clone()
	cp.lowMin = c.lowMin.Clone()
	cp.atr = c.atr.Clone()
	return &cp
}

func (c *ChandelierExit) String() string {
	return fmt.Sprintf("CHANDELIER(%d,%g)", c.period, c.k)
}

// Snapshot serializes the exit and its owned sub-indicators.
func (c *ChandelierExit) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "CHANDELIER",
		Period:  c.period,
		K:       c.k,
		Current: c.last.LongExit,
		Aux:     []float64{c.last.ShortExit},
		Children: []IndicatorSnapshot{
			c.highMax.Snapshot(),
			c.lowMin.Snapshot(),
			c.atr.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores ChandelierExit state from a checkpoint.
func (c *ChandelierExit) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 3 || len(snap.Aux) != 1 {
		return fmt.Errorf("CHANDELIER snapshot: malformed")
	}
	if err := c.highMax.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := c.lowMin.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	if err := c.atr.RestoreFromSnapshot(snap.Children[2]); err != nil {
		return err
	}
	c.last = ChandelierValue{LongExit: snap.Current, ShortExit: snap.Aux[0]}
	return nil
}
