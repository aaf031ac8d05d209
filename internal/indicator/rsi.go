package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// RSI calculates the Relative Strength Index from two exponentially
// smoothed averages (α = 2/(period+1)) of the per-step gains and
// losses: RSI = 100·avgGain/(avgGain+avgLoss). Output is always in
// [0, 100]; an all-gain window yields exactly 100, an all-loss window
// exactly 0. Before any price movement (first sample, or a perfectly
// flat stream from the start) the output is the neutral 50.
type RSI struct {
	period    int
	avgGain   *EMA
	avgLoss   *EMA
	prevClose float64
	seeded    bool
	current   float64
}

// NewRSI creates an RSI with the given period.
func NewRSI(period int) (*RSI, error) {
	if period <= 0 {
		return nil, errPeriod("RSI", period)
	}
	gain, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	loss, err := NewEMA(period)
	if err != nil {
		return nil, err
	}
	return &RSI{period: period, avgGain: gain, avgLoss: loss}, nil
}

// Next feeds one sample and returns the new RSI.
func (r *RSI) Next(v float64) float64 {
	if !r.seeded {
		r.seeded = true
		r.prevClose = v
		r.current = 50
		return r.current
	}

	delta := v - r.prevClose
	r.prevClose = v
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	g := r.avgGain.Next(gain)
	l := r.avgLoss.Next(loss)
	if g+l == 0 {
		r.current = 50
	} else {
		r.current = 100 * g / (g + l)
	}
	return r.current
}

// NextBar feeds the bar close.
func (r *RSI) NextBar(b model.Bar) float64 { return r.Next(b.Close) }

func (r *RSI) Value() float64 { return r.current }

func (r *RSI) Reset() {
	r.avgGain.Reset()
	r.avgLoss.Reset()
	r.prevClose = 0
	r.seeded = false
	r.current = 0
}

// Clone returns an independently mutable deep copy.
func (r *RSI) Clone() *RSI {
	c := *r
	c.avgGain = r.avgGain.Clone()
	c.avgLoss = r.avgLoss.Clone()
	return &c
}

func (r *RSI) String() string { return fmt.Sprintf("RSI(%d)", r.period) }

// Snapshot serializes the RSI and its owned averages.
func (r *RSI) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "RSI",
		Period:  r.period,
		Prev:    r.prevClose,
		Seeded:  r.seeded,
		Current: r.current,
		Children: []IndicatorSnapshot{
			r.avgGain.Snapshot(),
			r.avgLoss.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores RSI state from a checkpoint.
func (r *RSI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 2 {
		return fmt.Errorf("RSI snapshot: want 2 children, got %d", len(snap.Children))
	}
	if err := r.avgGain.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := r.avgLoss.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	r.prevClose = snap.Prev
	r.seeded = snap.Seeded
	r.current = snap.Current
	return nil
}
