package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// ATR calculates the Average True Range: the TrueRange stream smoothed
// by an EMA(period).
type ATR struct {
	period  int
	tr      *TrueRange
	ema     *EMA
	current float64
}

// NewATR creates an ATR over the given period.
func NewATR(period int) (*ATR, error) {
	if period <= 0 {
		return nil, errPeriod("ATR", period)
	}
	ema, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	return &ATR{period: period, tr: NewTrueRange(), ema: ema}, nil
}

// NextBar feeds one bar and returns the new average true range.
func (a *ATR) NextBar(b model.Bar) float64 {
	a.current = a.ema.Next(a.tr.NextBar(b))
	return a.current
}

func (a *ATR) Value() float64 { return a.current }

func (a *ATR) Reset() {
	a.tr.Reset()
	a.ema.Reset()
	a.current = 0
}

// Clone returns an independently mutable deep copy.
func (a *ATR) Clone() *ATR {
	c := *a
	c.tr = a.tr.Clone()
	c.ema = a.ema.Clone()
	return &c
}

func (a *ATR) String() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Snapshot serializes the ATR and its owned sub-indicators.
func (a *ATR) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "ATR",
		Period:  a.period,
		Current: a.current,
		Children: []IndicatorSnapshot{
			a.tr.Snapshot(),
			a.ema.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores ATR state from a checkpoint.
func (a *ATR) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 {
		return fmt.Errorf("ATR snapshot: want 2 children, got %d", len(snap.Children))
	}
	if err := a.tr.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := a.ema.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	a.current = snap.Current
	return nil
}
