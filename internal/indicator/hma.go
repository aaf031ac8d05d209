package indicator

import (
	"fmt"
	"math"

	"ta-enginev1/internal/model"
)

// HMA calculates the Hull Moving Average: the raw series
// 2·WMA(period/2) − WMA(period) smoothed by WMA(√period). All three
// WMAs are owned exclusively by the HMA and fed in lockstep.
type HMA struct {
	period  int
	half    *WMA
	full    *WMA
	smooth  *WMA
	current float64
}

// NewHMA creates an HMA with the given period. Inner periods are
// max(1, period/2) and max(1, round(√period)).
func NewHMA(period int) (*HMA, error) {
	if period <= 0 {
		return nil, errPeriod("HMA", period)
	}
	half, err := NewWMA(maxInt(1, period/2))
	if err != nil {
		return nil, err
	}
	full, err := NewWMA(period)
	if err != nil {
		return nil, err
	}
	smooth, err := NewWMA(maxInt(1, int(math.Round(math.Sqrt(float64(period))))))
	if err != nil {
		return nil, err
	}
	return &HMA{period: period, half: half, full: full, smooth: smooth}, nil
}

// Next feeds one sample and returns the new hull average.
func (h *HMA) Next(v float64) float64 {
	raw := 2*h.half.Next(v) - h.full.Next(v)
	h.current = h.smooth.Next(raw)
	return h.current
}

// NextBar feeds the bar close.
func (h *HMA) NextBar(b model.Bar) float64 { return h.Next(b.Close) }

func (h *HMA) Value() float64 { return h.current }

func (h *HMA) Reset() {
	h.half.Reset()
	h.full.Reset()
	h.smooth.Reset()
	h.current = 0
}

// Clone returns an independently mutable deep copy.
func (h *HMA) Clone() *HMA {
	c := *h
	c.half = h.half.Clone()
	c.full = h.full.Clone()
	c.smooth = h.smooth.Clone()
	return &c
}

func (h *HMA) String() string { return fmt.Sprintf("HMA(%d)", h.period) }

// Snapshot serializes the HMA and its owned WMAs.
func (h *HMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "HMA",
		Period:  h.period,
		Current: h.current,
		Children: []IndicatorSnapshot{
			h.half.Snapshot(),
			h.full.Snapshot(),
			h.smooth.Snapshot(),
		},
	}
}

// RestoreFromSnapshot restores HMA state from a checkpoint.
func (h *HMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if len(snap.Children) != 3 {
		return fmt.Errorf("HMA snapshot: want 3 children, got %d", len(snap.Children))
	}
	if err := h.half.RestoreFromSnapshot(snap.Children[0]); err != nil {
		return err
	}
	if err := h.full.RestoreFromSnapshot(snap.Children[1]); err != nil {
		return err
	}
	if err := h.smooth.RestoreFromSnapshot(snap.Children[2]); err != nil {
		return err
	}
	h.current = snap.Current
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
