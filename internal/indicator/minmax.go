package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// Minimum reports the lowest value of the trailing period samples.
// Backed by a monotonic deque, so each Next is O(1) amortized.
// When fed bars it tracks the bar low.
type Minimum struct {
	period  int
	track   *window.Extremum
	pos     uint64
	current float64
}

// NewMinimum creates a Minimum over the given period.
func NewMinimum(period int) (*Minimum, error) {
	if period <= 0 {
		return nil, errPeriod("MIN", period)
	}
	return &Minimum{period: period, track: window.NewExtremum(window.Min, period)}, nil
}

// Next feeds one sample and returns the trailing-window minimum.
func (m *Minimum) Next(v float64) float64 {
	m.track.Push(v, m.pos)
	m.pos++
	m.current, _ = m.track.Current()
	return m.current
}

// NextBar feeds the bar low.
func (m *Minimum) NextBar(b model.Bar) float64 { return m.Next(b.Low) }

func (m *Minimum) Value() float64 { return m.current }

func (m *Minimum) Reset() {
	m.track.Reset()
	m.pos = 0
	m.current = 0
}

// Clone returns an independently mutable deep copy.
func (m *Minimum) Clone() *Minimum {
	c := *m
	c.track = m.track.Clone()
	return &c
}

func (m *Minimum) String() string { return fmt.Sprintf("MIN(%d)", m.period) }

// Snapshot serializes the Minimum state for checkpoint persistence.
func (m *Minimum) Snapshot() IndicatorSnapshot {
	vals, pos := m.track.Candidates()
	return IndicatorSnapshot{
		Type:      "MIN",
		Period:    m.period,
		Count:     m.pos,
		Current:   m.current,
		DequeVals: vals,
		DequePos:  pos,
	}
}

// RestoreFromSnapshot restores Minimum state from a checkpoint.
func (m *Minimum) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.DequeVals) != len(snap.DequePos) {
		return fmt.Errorf("MIN snapshot: deque length mismatch")
	}
	m.track.Restore(snap.DequeVals, snap.DequePos)
	m.pos = snap.Count
	m.current = snap.Current
	return nil
}

// Maximum reports the highest value of the trailing period samples.
// When fed bars it tracks the bar high.
type Maximum struct {
	period  int
	track   *window.Extremum
	pos     uint64
	current float64
}

// NewMaximum creates a Maximum over the given period.
func NewMaximum(period int) (*Maximum, error) {
	if period <= 0 {
		return nil, errPeriod("MAX", period)
	}
	return &Maximum{period: period, track: window.NewExtremum(window.Max, period)}, nil
}

// Next feeds one sample and returns the trailing-window maximum.
func (m *Maximum) Next(v float64) float64 {
	m.track.Push(v, m.pos)
	m.pos++
	m.current, _ = m.track.Current()
	return m.current
}

// NextBar feeds the bar high.
func (m *Maximum) NextBar(b model.Bar) float64 { return m.Next(b.High) }

func (m *Maximum) Value() float64 { return m.current }

func (m *Maximum) Reset() {
	m.track.Reset()
	m.pos = 0
	m.current = 0
}

// Clone returns an independently mutable deep copy.
func (m *Maximum) Clone() *Maximum {
	c := *m
	c.track = m.track.Clone()
	return &c
}

func (m *Maximum) String() string { return fmt.Sprintf("MAX(%d)", m.period) }

// Snapshot serializes the Maximum state for checkpoint persistence.
func (m *Maximum) Snapshot() IndicatorSnapshot {
	vals, pos := m.track.Candidates()
	return IndicatorSnapshot{
		Type:      "MAX",
		Period:    m.period,
		Count:     m.pos,
		Current:   m.current,
		DequeVals: vals,
		DequePos:  pos,
	}
}

// RestoreFromSnapshot restores Maximum state from a checkpoint.
func (m *Maximum) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.DequeVals) != len(snap.DequePos) {
		return fmt.Errorf("MAX snapshot: deque length mismatch")
	}
	m.track.Restore(snap.DequeVals, snap.DequePos)
	m.pos = snap.Count
	m.current = snap.Current
	return nil
}
