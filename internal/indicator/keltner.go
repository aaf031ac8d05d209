package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// KeltnerChannel calculates an EMA middle line with upper/lower bands
// k average-true-ranges away.
type KeltnerChannel struct {
	period int
	k      float64
	ema    *EMA
	atr    *ATR
	last   BandValue
}

// NewKeltnerChannel creates a Keltner Channel with the given period and
// band width multiplier (k >= 0).
func NewKeltnerChannel(period int, k float64) (*KeltnerChannel, error) {
	if period <= 0 {
		return nil, errPeriod("KC", period)
	}
	if k < 0 {
		return nil, errMultiplier("KC", k)
	}
	ema, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	atr, err := NewATR(period)
	if err != nil {
		return nil, err
	}
	return &KeltnerChannel{period: period, k: k, ema: ema, atr: atr}, nil
}

// NextBar feeds one bar and returns the new middle line. The full band
// triple is available via Last.
func (kc *KeltnerChannel) NextBar(b model.Bar) float64 {
	mid := kc.ema.Next(b.Close)
	rng := kc.atr.NextBar(b)
	kc.last = BandValue{
		Upper:  mid + kc.k*rng,
		Middle: mid,
		Lower:  mid - kc.k*rng,
	}
	return mid
}

// Last returns the full upper/middle/lower triple for the most recent
// step.
func (kc *KeltnerChannel) Last() BandValue { return kc.last }

func (kc *KeltnerChannel) Value() float64 { return kc.last.Middle }

func (kc *KeltnerChannel) Reset() {
	kc.ema.Reset()
	kc.atr.Reset()
	kc.last = BandValue{}
}

// Clone returns an independently mutable deep copy.
func (kc *KeltnerChannel) Clone() *KeltnerChannel {
	c := *kc
	c.ema = kc.ema.Clone()
	c.atr = kc.atr.Clone()
	return &c
}

func (kc *KeltnerChannel) String() string { return fmt.Sprintf("KC(%d,%g)", kc.period, kc.k) }

// Snapshot serializes the channel and its owned sub-indicators.
func (kc *KeltnerChannel) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "KC",
		Period:  kc.period,
		K:       kc.k,
		Current: kc.last.Middle,
		Aux:     []float64{kc.last.Upper, kc.last.Lower},
		Children: []IndicatorSnapshot{
			kc.ema.Snapshot(),
			kc.atr.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores Keltner state from a checkpoint.
func (kc *KeltnerChannel) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 || len(snap.Aux) != 2 {
		return fmt.Errorf("KC snapshot: malformed")
	}
	if err := kc.ema.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := kc.atr.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	kc.last = BandValue{Upper: snap.Aux[0], Middle: snap.Current, Lower: snap.Aux[1]}
	return nil
}
