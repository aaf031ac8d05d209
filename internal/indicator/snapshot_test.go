package indicator

import (
	"encoding/json"
	"math"
	"testing"
)

// roundTrip snapshots src, restores into dst, then feeds both the same
// continuation and demands bit-identical outputs.
func roundTrip(t *testing.T, src, dst Indicator, continuation []float64) {
	t.Helper()

	snap := src.(Snapshottable).Snapshot()

	// Serialize through JSON: the snapshot must survive the wire.
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded IndicatorSnapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if err := dst.(Snapshottable).RestoreFromSnapshot(decoded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if dst.Value() != src.Value() {
		t.Fatalf("value mismatch: original=%.10f restored=%.10f", src.Value(), dst.Value())
	}

	for i, p := range continuation {
		a, b := src.Next(p), dst.Next(p)
		if math.Abs(a-b) > 1e-10 {
			t.Errorf("post-restore divergence at step %d: original=%.10f restored=%.10f", i, a, b)
		}
	}
}

var snapSeries = []float64{100, 102, 101, 105, 104, 107, 103, 108}
var snapContinuation = []float64{106, 109, 105}

func TestSnapshot_SMA_RoundTrip(t *testing.T) {
	a, _ := NewSMA(5)
	b, _ := NewSMA(5)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_EMA_RoundTrip(t *testing.T) {
	a, _ := NewEMA(5)
	b, _ := NewEMA(5)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_WMA_RoundTrip(t *testing.T) {
	a, _ := NewWMA(5)
	b, _ := NewWMA(5)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_HMA_RoundTrip(t *testing.T) {
	a, _ := NewHMA(9)
	b, _ := NewHMA(9)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_RSI_RoundTrip(t *testing.T) {
	a, _ := NewRSI(5)
	b, _ := NewRSI(5)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_MACD_RoundTrip(t *testing.T) {
	a, _ := NewMACD(3, 6, 4)
	b, _ := NewMACD(3, 6, 4)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)

	if a.Last() != b.Last() {
		t.Errorf("triple mismatch after continuation: %+v vs %+v", a.Last(), b.Last())
	}
}

func TestSnapshot_Minimum_RoundTrip(t *testing.T) {
	// The deque state (candidates and positions) must survive so that
	// eviction keeps working after restore.
	a, _ := NewMinimum(4)
	b, _ := NewMinimum(4)
	for _, p := range []float64{4, 1.2, 5, 3, 4} {
		a.Next(p)
	}
	roundTrip(t, a, b, []float64{6, 7, 8, -9, 0})
}

func TestSnapshot_Maximum_RoundTrip(t *testing.T) {
	a, _ := NewMaximum(4)
	b, _ := NewMaximum(4)
	for _, p := range []float64{4, 1.2, 5, 3, 4} {
		a.Next(p)
	}
	roundTrip(t, a, b, []float64{6, 7, 8, -9, 0})
}

func TestSnapshot_StdDev_RoundTrip(t *testing.T) {
	a, _ := NewStdDev(5)
	b, _ := NewStdDev(5)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)
}

func TestSnapshot_BollingerBands_RoundTrip(t *testing.T) {
	a, _ := NewBollingerBands(5, 2)
	b, _ := NewBollingerBands(5, 2)
	for _, p := range snapSeries {
		a.Next(p)
	}
	roundTrip(t, a, b, snapContinuation)

	if a.Last() != b.Last() {
		t.Errorf("band mismatch after continuation: %+v vs %+v", a.Last(), b.Last())
	}
}

func TestSnapshot_BarIndicators_RoundTrip(t *testing.T) {
	// Bar-fed composites: snapshot mid-stream, restore, continue on
	// identical bars, demand identical outputs.
	builds := []func() BarIndicator{
		func() BarIndicator { return NewTrueRange() },
		func() BarIndicator { return NewOBV() },
		func() BarIndicator { i, _ := NewATR(4); return i },
		func() BarIndicator { i, _ := NewMFI(4); return i },
		func() BarIndicator { i, _ := NewCCI(4); return i },
		func() BarIndicator { i, _ := NewStochasticFast(4); return i },
		func() BarIndicator { i, _ := NewStochasticSlow(4, 2); return i },
		func() BarIndicator { i, _ := NewKeltnerChannel(4, 1.5); return i },
		func() BarIndicator { i, _ := NewChandelierExit(4, 2); return i },
	}

	warm := []struct{ h, l, c, v float64 }{
		{12, 8, 10, 100}, {14, 9, 13, 120}, {13, 10, 11, 90},
		{15, 11, 15, 200}, {16, 13, 14, 150},
	}
	cont := []struct{ h, l, c, v float64 }{
		{17, 14, 16, 110}, {16, 12, 13, 300}, {18, 13, 17, 80},
	}

	for _, build := range builds {
		a, b := build(), build()
		for _, w := range warm {
			x := bar(w.h, w.l, w.c)
			x.Volume = w.v
			a.NextBar(x)
		}

		snap := a.(Snapshottable).Snapshot()
		if err := b.(Snapshottable).RestoreFromSnapshot(snap); err != nil {
			t.Fatalf("%s: restore: %v", a.String(), err)
		}
		if b.Value() != a.Value() {
			t.Fatalf("%s: value mismatch: %.10f vs %.10f", a.String(), a.Value(), b.Value())
		}

		for i, w := range cont {
			x := bar(w.h, w.l, w.c)
			x.Volume = w.v
			va, vb := a.NextBar(x), b.NextBar(x)
			if math.Abs(va-vb) > 1e-10 {
				t.Errorf("%s: divergence at bar %d: %.10f vs %.10f", a.String(), i, va, vb)
			}
		}
	}
}

func TestSnapshot_RestoreRejectsOversizedWindow(t *testing.T) {
	big, _ := NewSMA(10)
	for i := 0; i < 10; i++ {
		big.Next(float64(i))
	}
	small, _ := NewSMA(3)
	if err := small.RestoreFromSnapshot(big.Snapshot()); err == nil {
		t.Fatal("restore accepted a window larger than the ring")
	}
}

// ────────────────────────────────────────────────────────────
// Engine-level snapshots
// ────────────────────────────────────────────────────────────

func TestSnapshotEngine_JSONRoundTrip(t *testing.T) {
	configs := []Config{
		{Type: "SMA", Period: 3},
		{Type: "RSI", Period: 5},
		{Type: "MACD", Period: 3, Slow: 6, Signal: 4},
	}
	engine, err := NewEngine(configs)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range snapSeries {
		engine.Process(makeBar("RELIANCE", p))
		engine.Process(makeBar("TCS", p*2))
	}

	snap := SnapshotEngine(engine, "1700000000000-5")
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded EngineSnapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.StreamID != "1700000000000-5" {
		t.Errorf("streamID lost: %q", decoded.StreamID)
	}

	restored, count, err := RestoreEngine(configs, &decoded)
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 { // 3 indicators × 2 symbols
		t.Errorf("restored %d instances, want 6", count)
	}

	// Both engines fed the same continuation must agree on every line.
	for _, p := range snapContinuation {
		for _, sym := range []string{"RELIANCE", "TCS"} {
			ra := engine.Process(makeBar(sym, p))
			rb := restored.Process(makeBar(sym, p))
			if len(ra) != len(rb) {
				t.Fatalf("%s: result count mismatch %d vs %d", sym, len(ra), len(rb))
			}
			for i := range ra {
				if math.Abs(ra[i].Value-rb[i].Value) > 1e-10 {
					t.Errorf("%s %s/%s: %.10f vs %.10f",
						sym, ra[i].Name, ra[i].Component, ra[i].Value, rb[i].Value)
				}
			}
		}
	}
}

func TestRestoreEngine_VersionMismatch(t *testing.T) {
	configs := []Config{{Type: "SMA", Period: 3}}
	engine, _ := NewEngine(configs)
	engine.Process(makeBar("X", 10))

	snap := SnapshotEngine(engine, "")
	snap.Version = snapshotVersion + 1

	if _, _, err := RestoreEngine(configs, snap); err == nil {
		t.Fatal("accepted snapshot with wrong version")
	}
}

func TestRestoreEngine_ToleratesConfigDrift(t *testing.T) {
	// Snapshot taken with {SMA}; restore with {SMA, EMA}: the SMA comes
	// back warm, the EMA cold-starts, nothing errors.
	oldConfigs := []Config{{Type: "SMA", Period: 3}}
	engine, _ := NewEngine(oldConfigs)
	for _, p := range []float64{10, 12, 14} {
		engine.Process(makeBar("X", p))
	}
	snap := SnapshotEngine(engine, "")

	newConfigs := []Config{{Type: "SMA", Period: 3}, {Type: "EMA", Period: 5}}
	restored, count, err := RestoreEngine(newConfigs, snap)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("restored %d instances, want 1", count)
	}

	results := restored.Process(makeBar("X", 16))
	byName := map[string]float64{}
	for _, r := range results {
		byName[r.Name] = r.Value
	}
	assertClose(t, "warm SMA", byName["SMA(3)"], 14, 1e-9) // (12+14+16)/3
	assertClose(t, "cold EMA", byName["EMA(5)"], 16, 0)    // first sample
}
