package indicator

import (
	"math"

	"ta-enginev1/internal/model"
)

// TrueRange calculates max(high−low, |high−prevClose|, |low−prevClose|).
// The only state is the previous close; on the very first bar the true
// range is simply high−low.
type TrueRange struct {
	prevClose float64
	seeded    bool
	current   float64
}

// NewTrueRange creates a TrueRange. It has no parameters, so the
// constructor cannot fail.
func NewTrueRange() *TrueRange {
	return &TrueRange{}
}

// NextBar feeds one bar and returns the new true range.
func (t *TrueRange) NextBar(b model.Bar) float64 {
	hl := b.High - b.Low
	if !t.seeded {
		t.seeded = true
		t.current = hl
	} else {
		t.current = math.Max(hl, math.Max(
			math.Abs(b.High-t.prevClose),
			math.Abs(b.Low-t.prevClose)))
	}
	t.prevClose = b.Close
	return t.current
}

func (t *TrueRange) Value() float64 { return t.current }

func (t *TrueRange) Reset() {
	t.prevClose = 0
	t.seeded = false
	t.current = 0
}

// Clone returns an independently mutable deep copy.
func (t *TrueRange) Clone() *TrueRange {
	c := *t
	return &c
}

func (t *TrueRange) String() string { return "TR" }

// Snapshot serializes the TrueRange state for checkpoint persistence.
func (t *TrueRange) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "TR",
		Prev:    t.prevClose,
		Seeded:  t.seeded,
		Current: t.current,
	}
}

// RestoreFromSnapshot restores TrueRange state from a checkpoint.
func (t *TrueRange) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	t.prevClose = snap.Prev
	t.seeded = snap.Seeded
	t.current = snap.Current
	return nil
}
