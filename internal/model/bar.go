package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBar is returned when OHLCV fields violate the bar invariant.
var ErrInvalidBar = errors.New("invalid bar")

// Bar is a validated OHLCV sample for a single symbol. Construct via
// NewBar; once built it is treated as immutable and is safe to copy by
// value. Invariant: low <= min(open, close) <= max(open, close) <= high,
// volume >= 0. All fields are finite floats (the engine never feeds
// NaN/Inf; upstream loaders own that guarantee).
type Bar struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// NewBar validates the OHLCV invariant and returns the bar.
func NewBar(symbol string, ts time.Time, open, high, low, close, volume float64) (Bar, error) {
	b := Bar{Symbol: symbol, TS: ts, Open: open, High: high, Low: low, Close: close, Volume: volume}
	if err := b.Validate(); err != nil {
		return Bar{}, err
	}
	return b, nil
}

// Validate checks the OHLCV invariant.
func (b Bar) Validate() error {
	lo, hi := b.Open, b.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("%w: low=%v open=%v close=%v high=%v", ErrInvalidBar, b.Low, b.Open, b.Close, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: volume=%v", ErrInvalidBar, b.Volume)
	}
	return nil
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3.0
}

// JSON returns the JSON-encoded bar (errors ignored for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
