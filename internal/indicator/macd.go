package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
)

// MACDValue is the three-line MACD output for one step.
// Histogram == MACD − Signal holds exactly at every step.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates Moving Average Convergence Divergence: the spread of
// a fast EMA over a slow EMA, with a signal EMA smoothing that spread.
// All three EMAs are owned exclusively and fed in a fixed order each
// step.
type MACD struct {
	fastPeriod, slowPeriod, signalPeriod int

	fast   *EMA
	slow   *EMA
	signal *EMA
	last   MACDValue
}

// NewMACD creates a MACD. The fast period must be strictly shorter than
// the slow period.
func NewMACD(fast, slow, signal int) (*MACD, error) {
	if fast <= 0 {
		return nil, errPeriod("MACD", fast)
	}
	if slow <= 0 {
		return nil, errPeriod("MACD", slow)
	}
	if signal <= 0 {
		return nil, errPeriod("MACD", signal)
	}
	if fast >= slow {
		return nil, &ConfigError{
			Indicator: "MACD",
			Param:     "fast/slow",
			Reason:    fmt.Sprintf("fast period must be < slow period, got %d >= %d", fast, slow),
		}
	}
	f, err := NewEMA(fast)
	if err != nil {
		return nil, err
	}
	s, err := NewEMA(slow)
	if err != nil {
		return nil, err
	}
	sig, err := NewEMA(signal)
	if err != nil {
		return nil, err
	}
	return &MACD{
		fastPeriod: fast, slowPeriod: slow, signalPeriod: signal,
		fast: f, slow: s, signal: sig,
	}, nil
}

// Next feeds one sample and returns the new MACD line. The full triple
// is available via Last.
func (m *MACD) Next(v float64) float64 {
	macd := m.fast.Next(v) - m.slow.Next(v)
	sig := m.signal.Next(macd)
	m.last = MACDValue{MACD: macd, Signal: sig, Histogram: macd - sig}
	return macd
}

// NextBar feeds the bar close.
func (m *MACD) NextBar(b model.Bar) float64 { return m.Next(b.Close) }

// Last returns the full MACD/signal/histogram triple for the most
// recent step.
func (m *MACD) Last() MACDValue { return m.last }

func (m *MACD) Value() float64 { return m.last.MACD }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.last = MACDValue{}
}

// Clone returns an independently mutable deep copy.
func (m *MACD) Clone() *MACD {
	c := *m
	c.fast = m.fast.Clone()
	c.slow = m.slow.Clone()
	c.signal = m.signal.Clone()
	return &c
}

func (m *MACD) String() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// Snapshot serializes the MACD and its owned EMAs.
func (m *MACD) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "MACD",
		Periods: []int{m.fastPeriod, m.slowPeriod, m.signalPeriod},
		Current: m.last.MACD,
		Aux:     []float64{m.last.Signal, m.last.Histogram},
		Children: []IndicatorSnapshot{
			m.fast.Snapshot(),
			m.slow.Snapshot(),
			m.signal.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores MACD state from a checkpoint.
func (m *MACD) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 3 || len(snap.Aux) != 2 {
		return fmt.Errorf("MACD snapshot: malformed")
	}
	if err := m.fast.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := m.slow.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	if err := m.signal.RestoreFromSnapshot(snap.Children[2]); err != nil {
		return err
	}
	m.last = MACDValue{MACD: snap.Current, Signal: snap.Aux[0], Histogram: snap.Aux[1]}
	return nil
}
