package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// BandValue is a three-line channel output. Lower <= Middle <= Upper
// holds at every step for non-negative multipliers.
type BandValue struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands calculates an SMA middle band with upper/lower bands
// k standard deviations (population) away.
type BollingerBands struct {
	period int
	k      float64
	sma    *SMA
	sd     *StdDev
	last   BandValue
}

// NewBollingerBands creates Bollinger Bands with the given period and
// band width multiplier (k >= 0).
func NewBollingerBands(period int, k float64) (*BollingerBands, error) {
	if period <= 0 {
		return nil, errPeriod("BB", period)
	}
	if k < 0 {
		return nil, errMultiplier("BB", k)
	}
	sma, err := NewSMA(period)
	if err != nil {
		return nil, err
	}
	sd, err := NewStdDev(period)
	if err != nil {
		return nil, err
	}
	return &BollingerBands{period: period, k: k, sma: sma, sd: sd}, nil
}

// Next feeds one sample and returns the new middle band. The full band
// triple is available via Last.
func (bb *BollingerBands) Next(v float64) float64 {
	mid := bb.sma.Next(v)
	dev := bb.sd.Next(v)
	bb.last = BandValue{
		Upper:  mid + bb.k*dev,
		Middle: mid,
		Lower:  mid - bb.k*dev,
	}
	return mid
}

// NextBar feeds the bar close.
func (bb *BollingerBands) NextBar(b model.Bar) float64 { return bb.Next(b.Close) }

// Last returns the full upper/middle/lower triple for the most recent
// step.
func (bb *BollingerBands) Last() BandValue { return bb.last }

func (bb *BollingerBands) Value() float64 { return bb.last.Middle }

func (bb *BollingerBands) Reset() {
	bb.sma.Reset()
	bb.sd.Reset()
	bb.last = BandValue{}
}

// Clone returns an independently mutable deep copy.
func (bb *BollingerBands) Clone() *BollingerBands {
	c := *bb
	c.sma = bb.sma.Clone()
	c.sd = bb.sd.Clone()
	return &c
}

func (bb *BollingerBands) String() string { return fmt.Sprintf("BB(%d,%g)", bb.period, bb.k) }

// Snapshot serializes the bands and their owned sub-indicators.
func (bb *BollingerBands) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "BB",
		Period:  bb.period,
		K:       bb.k,
		Current: bb.last.Middle,
		Aux:     []float64{bb.last.Upper, bb.last.Lower},
		Children: []IndicatorSnapshot{
			bb.sma.Snapshot(),
			bb.sd.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores Bollinger state from a checkpoint.
func (bb *BollingerBands) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 || len(snap.Aux) != 2 {
		return fmt.Errorf("BB snapshot: malformed")
	}
	if err := bb.sma.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := bb.sd.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	bb.last = BandValue{Upper: snap.Aux[0], Middle: snap.Current, Lower: snap.Aux[1]}
	return nil
}
