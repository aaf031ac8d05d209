package indicator

import (
	"ta-enginev1/internal/model"
)

// OBV calculates On-Balance Volume: a running volume total that adds
// the bar volume when the close rises, subtracts it when the close
// falls, and is unchanged on an equal close. O(1) state. The previous
// close starts at zero, so the first bar with a positive close adds its
// volume — matching the original library's behaviour.
type OBV struct {
	total     float64
	prevClose float64
}

// NewOBV creates an OBV. It has no parameters, so the constructor
// cannot fail.
func NewOBV() *OBV {
	return &OBV{}
}

// NextBar feeds one bar and returns the new running total.
func (o *OBV) NextBar(b model.Bar) float64 {
	switch {
	case b.Close > o.prevClose:
		o.total += b.Volume
	case b.Close < o.prevClose:
		o.total -= b.Volume
	}
	o.prevClose = b.Close
	return o.total
}

func (o *OBV) Value() float64 { return o.total }

func (o *OBV) Reset() {
	o.total = 0
	o.prevClose = 0
}

// Clone returns an independently mutable deep copy.
func (o *OBV) Clone() *OBV {
	c := *o
	return &c
}

func (o *OBV) String() string { return "OBV" }

// Snapshot serializes the OBV state for checkpoint persistence.
func (o *OBV) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    "OBV",
		Current: o.total,
		Prev:    o.prevClose,
	}
}

// RestoreFromSnapshot restores OBV state from a checkpoint.
func (o *OBV) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	o.total = snap.Current
	o.prevClose = snap.Prev
	return nil
}
