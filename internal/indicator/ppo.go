package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// PPO calculates the Percentage Price Oscillator: MACD with the spread
// expressed as a percentage of the slow EMA, which makes values
// comparable across symbols with different price levels. A zero slow
// EMA (possible only for all-zero input) yields 0.
type PPO struct {
	fastPeriod, slowPeriod, signalPeriod int

	fast   *EMA
	slow   *EMA
	signal *EMA
	last   MACDValue
}

// NewPPO creates a PPO. The fast period must be strictly shorter than
// the slow period.
func NewPPO(fast, slow, signal int) (*PPO, error) {
	// Same parameter domain as MACD.
	m, err := NewMACD(fast, slow, signal)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Indicator = "PPO"
		}
		return nil, err
	}
	return &PPO{
		fastPeriod: fast, slowPeriod: slow, signalPeriod: signal,
		fast: m.fast, slow: m.slow, signal: m.signal,
	}, nil
}

// Next feeds one sample and returns the new PPO line. The full triple
// is available via Last.
func (p *PPO) Next(v float64) float64 {
	fast := p.fast.Next(v)
	slow := p.slow.Next(v)
	ppo := 0.0
	if slow != 0 {
		ppo = (fast - slow) / slow * 100
	}
	sig := p.signal.Next(ppo)
	p.last = MACDValue{MACD: ppo, Signal: sig, Histogram: ppo - sig}
	return ppo
}

// NextBar feeds the bar close.
func (p *PPO) NextBar(b model.Bar) float64 { return p.Next(b.Close) }

// Last returns the full ppo/signal/histogram triple for the most
// recent step.
func (p *PPO) Last() MACDValue { return p.last }

func (p *PPO) Value() float64 { return p.last.MACD }

func (p *PPO) Reset() {
	p.fast.Reset()
	p.slow.Reset()
	p.signal.Reset()
	p.last = MACDValue{}
}

// Clone returns an independently mutable deep copy.
func (p *PPO) Clone() *PPO {
	c := *p
	c.fast = p.fast.Clone()
	c.slow = p.slow.Clone()
	c.signal = p.signal.Clone()
	return &c
}

func (p *PPO) String() string {
	return fmt.Sprintf("PPO(%d,%d,%d)", p.fastPeriod, p.slowPeriod, p.signalPeriod)
}

// Snapshot serializes the PPO and its owned EMAs.
func (p *PPO) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "PPO",
		Periods: []int{p.fastPeriod, p.slowPeriod, p.signalPeriod},
		Current: p.last.MACD,
		Aux:     []float64{p.last.Signal, p.last.Histogram},
		Children: []IndicatorSnapshot{
			p.fast.Snapshot(),
			p.slow.Snapshot(),
			p.signal.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores PPO state from a checkpoint.
func (p *PPO) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 3 || len(snap.Aux) != 2 {
		return fmt.Errorf("PPO snapshot: malformed")
	}
	if err := p.fast.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := p.slow.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	if err := p.signal.RestoreFromSnapshot(snap.Children[2]); err != nil {
		return err
	}
	p.last = MACDValue{MACD: snap.Current, Signal: snap.Aux[0], Histogram: snap.Aux[1]}
	return nil
}
