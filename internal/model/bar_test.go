package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewBar_Valid(t *testing.T) {
	b, err := NewBar("BTCUSD", time.Unix(1700000000, 0), 100, 110, 95, 105, 1200)
	if err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}
	if got := b.TypicalPrice(); got != (110+95+105)/3.0 {
		t.Errorf("typical price = %v", got)
	}
}

func TestNewBar_Invalid(t *testing.T) {
	cases := []struct {
		name          string
		o, h, l, c, v float64
	}{
		{"high below open", 100, 99, 90, 95, 10},
		{"low above close", 100, 110, 96, 95, 10},
		{"negative volume", 100, 110, 95, 105, -1},
		{"low above both", 100, 110, 106, 105, 10},
	}
	for _, tc := range cases {
		_, err := NewBar("X", time.Time{}, tc.o, tc.h, tc.l, tc.c, tc.v)
		if !errors.Is(err, ErrInvalidBar) {
			t.Errorf("%s: err = %v, want ErrInvalidBar", tc.name, err)
		}
	}
}

func TestNewBar_DegenerateFlatBarIsValid(t *testing.T) {
	// All four prices equal is a legal (if dull) bar.
	if _, err := NewBar("X", time.Time{}, 50, 50, 50, 50, 0); err != nil {
		t.Errorf("flat bar rejected: %v", err)
	}
}

func TestResult_Keys(t *testing.T) {
	r := Result{Name: "MACD(12,26,9)", Component: "signal", Symbol: "ETHUSD"}
	if got := r.StreamKey(); got != "ind:MACD(12,26,9).signal:ETHUSD" {
		t.Errorf("StreamKey = %q", got)
	}
	single := Result{Name: "RSI(14)", Symbol: "ETHUSD"}
	if got := single.PubSubChannel(); got != "pub:ind:RSI(14):ETHUSD" {
		t.Errorf("PubSubChannel = %q", got)
	}
}
