package indicator

import (
	"fmt"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/window"
)

// MFI calculates the Money Flow Index: raw money flow is typical price
// times volume, signed by the typical-price direction; the index is
// 100·positive/(positive+negative) over the trailing window sums. Flows
// are stored signed in one ring so eviction adjusts the correct side.
// The first bar has no direction and contributes zero flow. When both
// sums are zero the output is the neutral 50.
type MFI struct {
	period  int
	flows   *window.Ring[float64]
	posSum  float64
	negSum  float64
	prevTP  float64
	seeded  bool
	current float64
}

// NewMFI creates an MFI over the given period.
func NewMFI(period int) (*MFI, error) {
	if period <= 0 {
		return nil, errPeriod("MFI", period)
	}
	return &MFI{
		period: period,
		flows:  window.NewRing[float64](period),
	}, nil
}

// NextBar feeds one bar and returns the new index.
func (m *MFI) NextBar(b model.Bar) float64 {
	tp := b.TypicalPrice()
	flow := 0.0
	if m.seeded {
		switch {
		case tp > m.prevTP:
			flow = tp * b.Volume
		case tp < m.prevTP:
			flow = -tp * b.Volume
		}
	}
	m.seeded = true
	m.prevTP = tp

	if ev, ok := m.flows.Push(flow); ok {
		if ev > 0 {
			m.posSum -= ev
		} else {
			m.negSum += ev // ev is negative
		}
	}
	if flow > 0 {
		m.posSum += flow
	} else {
		m.negSum -= flow
	}

	total := m.posSum + m.negSum
	if total == 0 {
		m.current = 50
	} else {
		m.current = 100 * m.posSum / total
	}
	return m.current
}

func (m *MFI) Value() float64 { return m.current }

func (m *MFI) Reset() {
	m.flows.Reset()
	m.posSum = 0
	m.negSum = 0
	m.prevTP = 0
	m.seeded = false
	m.current = 0
}

// Clone returns an independently mutable deep copy.
func (m *MFI) Clone() *MFI {
	c := *m
	c.flows = m.flows.Clone()
	return &c
}

func (m *MFI) String() string { return fmt.Sprintf("MFI(%d)", m.period) }

// Snapshot serializes the MFI state for checkpoint persistence.
func (m *MFI) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "MFI",
		Period:  m.period,
		Window:  ringContents(m.flows),
		Prev:    m.prevTP,
		Seeded:  m.seeded,
		Current: m.current,
	}
}

// RestoreFromSnapshot restores MFI state from a checkpoint.
func (m *MFI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := restoreRing(m.flows, snap.Window); err != nil {
		return err
	}
	m.posSum = 0
	m.negSum = 0
	m.flows.Do(func(f float64) bool {
		if f > 0 {
			m.posSum += f
		} else {
			m.negSum -= f
		}
		return true
	})
	m.prevTP = snap.Prev
	m.seeded = snap.Seeded
	m.current = snap.Current
	return nil
}
