package model

import (
	"encoding/json"
	"time"
)

// Result holds one computed indicator component for a symbol.
// Multi-output indicators (MACD, Bollinger, Stochastic, Chandelier) emit
// one Result per component, distinguished by Component.
type Result struct {
	Name      string    `json:"name"`                // e.g. "RSI(14)", "MACD(12,26,9)"
	Component string    `json:"component,omitempty"` // e.g. "signal", "upper"; empty for single-line indicators
	Symbol    string    `json:"symbol"`
	Value     float64   `json:"value"`
	TS        time.Time `json:"ts"` // bar timestamp that produced this value
}

// StreamKey returns the Redis stream key: "ind:{name}:{symbol}".
func (r *Result) StreamKey() string {
	return "ind:" + r.qualifiedName() + ":" + r.Symbol
}

// PubSubChannel returns the pubsub channel: "pub:ind:{name}:{symbol}".
func (r *Result) PubSubChannel() string {
	return "pub:ind:" + r.qualifiedName() + ":" + r.Symbol
}

// LatestKey returns the SET key holding the most recent value.
func (r *Result) LatestKey() string {
	return "ind:" + r.qualifiedName() + ":latest:" + r.Symbol
}

func (r *Result) qualifiedName() string {
	if r.Component == "" {
		return r.Name
	}
	return r.Name + "." + r.Component
}

// JSON returns the JSON-encoded result.
func (r *Result) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
