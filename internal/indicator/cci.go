package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// CCI calculates the Commodity Channel Index over the typical price
// (H+L+C)/3: (tp − SMA(tp)) / (0.015 · MAD(tp)). A zero mean absolute
// deviation (flat window) yields 0. The SMA and MAD each own their own
// window — no state is shared between them.
type CCI struct {
	period  int
	sma     *SMA
	mad     *MeanAbsDev
	current float64
}

const cciScale = 0.015

// NewCCI creates a CCI over the given period.
func NewCCI(period int) (*CCI, error) {
	if period <= 0 {
		return nil, errPeriod("CCI", period)
	}
	sma, err := NewSMA(period)
	if err != nil {
		return nil, err
	}
	mad, err := NewMeanAbsDev(period)
	if err != nil {
		return nil, err
	}
	return &CCI{period: period, sma: sma, mad: mad}, nil
}

// NextBar feeds one bar and returns the new CCI.
func (c *CCI) NextBar(b model.Bar) float64 {
	tp := b.TypicalPrice()
	mean := c.sma.Next(tp)
	dev := c.mad.Next(tp)
	if dev == 0 {
		c.current = 0
	} else {
		c.current = (tp - mean) / (cciScale * dev)
	}
	return c.current
}

func (c *CCI) Value() float64 { return c.current }

func (c *CCI) Reset() {
	c.sma.Reset()
	c.mad.Reset()
	c.current = 0
}

// Clone returns an independently mutable deep copy.
func (c *CCI) Clone() *CCI {
	cp := *c
	cp.sma = c.sma.Clone()
	cp.mad = c.mad.Clone()
	return &cp
}

func (c *CCI) String() string { return fmt.Sprintf("CCI(%d)", c.period) }

// Snapshot serializes the CCI and its owned sub-indicators.
func (c *CCI) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "CCI",
		Period:  c.period,
		Current: c.current,
		Children: []IndicatorSnapshot{
			c.sma.Snapshot(),
			c.mad.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores CCI state from a checkpoint.
func (c *CCI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 {
		return fmt.Errorf("CCI snapshot: want 2 children, got %d", len(snap.Children))
	}
	if err := c.sma.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := c.mad.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	c.current = snap.Current
	return nil
}
