package indicator

import (
	"strings"
	"testing"
	"time"

	"ta-enginev1/internal/model"
)

func makeBar(symbol string, close float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     time.Date(2026, 1, 2, 9, 15, 0, 0, time.UTC),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 100,
	}
}

func TestEngine_ProcessEmitsPerComponentResults(t *testing.T) {
	engine, err := NewEngine([]Config{
		{Type: "SMA", Period: 3},
		{Type: "MACD", Period: 3, Slow: 6, Signal: 4},
		{Type: "BB", Period: 3, K: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	results := engine.Process(makeBar("RELIANCE", 2500))

	// SMA emits 1 line, MACD and BB emit 3 each.
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7: %+v", len(results), results)
	}

	components := make(map[string]bool)
	for _, r := range results {
		if r.Symbol != "RELIANCE" {
			t.Errorf("result symbol %q, want RELIANCE", r.Symbol)
		}
		components[r.Name+"/"+r.Component] = true
	}
	for _, want := range []string{
		"SMA(3)/",
		"MACD(3,6,4)/macd", "MACD(3,6,4)/signal", "MACD(3,6,4)/histogram",
		"BB(3,2)/upper", "BB(3,2)/middle", "BB(3,2)/lower",
	} {
		if !components[want] {
			t.Errorf("missing result line %q (have %v)", want, components)
		}
	}
}

func TestEngine_PerSymbolIsolation(t *testing.T) {
	engine, err := NewEngine([]Config{{Type: "SMA", Period: 2}})
	if err != nil {
		t.Fatal(err)
	}

	engine.Process(makeBar("AAA", 10))
	engine.Process(makeBar("BBB", 1000))
	ra := engine.Process(makeBar("AAA", 20))
	rb := engine.Process(makeBar("BBB", 2000))

	assertClose(t, "SMA AAA", ra[0].Value, 15, 1e-9)
	assertClose(t, "SMA BBB", rb[0].Value, 1500, 1e-9)
}

func TestEngine_HistogramIdentityOnStream(t *testing.T) {
	engine, _ := NewEngine([]Config{{Type: "MACD", Period: 3, Slow: 6, Signal: 4}})
	for _, p := range []float64{10, 12, 11, 15, 14, 16} {
		results := engine.Process(makeBar("X", p))
		byComp := map[string]float64{}
		for _, r := range results {
			byComp[r.Component] = r.Value
		}
		if byComp["histogram"] != byComp["macd"]-byComp["signal"] {
			t.Errorf("histogram %.10f != macd−signal %.10f",
				byComp["histogram"], byComp["macd"]-byComp["signal"])
		}
	}
}

func TestValidateConfigs_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		configs []Config
	}{
		{"empty", nil},
		{"unknown type", []Config{{Type: "VWAP", Period: 14}}},
		{"zero period", []Config{{Type: "SMA", Period: 0}}},
		{"macd fast >= slow", []Config{{Type: "MACD", Period: 26, Slow: 12, Signal: 9}}},
		{"duplicate", []Config{{Type: "RSI", Period: 14}, {Type: "RSI", Period: 14}}},
	}
	for _, tc := range cases {
		if err := ValidateConfigs(tc.configs); err == nil {
			t.Errorf("%s: want error, got nil", tc.name)
		}
	}
}

func TestValidateConfigs_AcceptsDefaults(t *testing.T) {
	if err := ValidateConfigs(DefaultConfigs()); err != nil {
		t.Fatalf("default configs rejected: %v", err)
	}
}

func TestConfigKey_Canonical(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Type: "sma", Period: 20}, "SMA:20"},
		{Config{Type: "MACD", Period: 12, Slow: 26, Signal: 9}, "MACD:12:26:9"},
		{Config{Type: "BB", Period: 20, K: 2}, "BB:20:2"},
		{Config{Type: "STOCHSLOW", Period: 14, D: 3}, "STOCHSLOW:14:3"},
		{Config{Type: "TR"}, "TR"},
	}
	for _, tc := range cases {
		if got := tc.cfg.Key(); got != tc.want {
			t.Errorf("Key(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}

func TestEngine_ReloadPreservesMatchingState(t *testing.T) {
	engine, err := NewEngine([]Config{{Type: "SMA", Period: 3}})
	if err != nil {
		t.Fatal(err)
	}
	reference, _ := NewSMA(3)

	for _, p := range []float64{10, 12, 14} {
		engine.Process(makeBar("X", p))
		reference.Next(p)
	}

	// Add an EMA; the warm SMA must survive untouched.
	preserved, created, err := engine.ReloadConfigs([]Config{
		{Type: "SMA", Period: 3},
		{Type: "EMA", Period: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if preserved != 1 || created != 1 {
		t.Errorf("preserved=%d created=%d, want 1/1", preserved, created)
	}

	for _, p := range []float64{16, 18} {
		results := engine.Process(makeBar("X", p))
		want := reference.Next(p)
		var got float64
		for _, r := range results {
			if r.Name == "SMA(3)" {
				got = r.Value
			}
		}
		if got != want {
			t.Errorf("SMA diverged after reload: got %.10f, want %.10f", got, want)
		}
	}
}

func TestEngine_ReloadReorderedSetKeepsSnapshotPairing(t *testing.T) {
	// Reloading the same set in a different order must not disturb the
	// configs[i] ↔ indicators[i] pairing: a snapshot taken afterwards has
	// to record SMA state under the SMA key, not under whatever key now
	// sits at the same index.
	engine, err := NewEngine([]Config{
		{Type: "SMA", Period: 20},
		{Type: "EMA", Period: 9},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []float64{10, 12, 11, 14, 13} {
		engine.Process(makeBar("X", p))
	}

	preserved, created, err := engine.ReloadConfigs([]Config{
		{Type: "EMA", Period: 9},
		{Type: "SMA", Period: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	if preserved != 2 || created != 0 {
		t.Errorf("preserved=%d created=%d, want 2/0", preserved, created)
	}

	snap := SnapshotEngine(engine, "")
	for _, ss := range snap.Symbols {
		for i, key := range ss.Keys {
			wantType := key[:strings.Index(key, ":")]
			if ss.Indicators[i].Type != wantType {
				t.Errorf("key %s paired with %s state", key, ss.Indicators[i].Type)
			}
		}
	}

	// A restart from that snapshot must resume exactly where the live
	// engine is.
	restored, count, err := RestoreEngine(engine.Configs(), snap)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("restored %d instances, want 2", count)
	}
	for _, p := range []float64{15, 12} {
		ra := engine.Process(makeBar("X", p))
		rb := restored.Process(makeBar("X", p))
		for i := range ra {
			if ra[i].Value != rb[i].Value {
				t.Errorf("%s: live %.10f vs restored %.10f", ra[i].Name, ra[i].Value, rb[i].Value)
			}
		}
	}
}

func TestEngine_ReloadRejectsInvalidSet(t *testing.T) {
	engine, _ := NewEngine([]Config{{Type: "SMA", Period: 3}})
	engine.Process(makeBar("X", 10))

	if _, _, err := engine.ReloadConfigs([]Config{{Type: "SMA", Period: -1}}); err == nil {
		t.Fatal("reload accepted invalid config")
	}
	// The old set must still be live.
	results := engine.Process(makeBar("X", 20))
	if len(results) != 1 || results[0].Name != "SMA(3)" {
		t.Errorf("engine state damaged by failed reload: %+v", results)
	}
}

func TestEngine_ResetSymbol(t *testing.T) {
	engine, _ := NewEngine([]Config{{Type: "SMA", Period: 2}})
	engine.Process(makeBar("X", 10))
	engine.Process(makeBar("X", 20))
	engine.Process(makeBar("Y", 500))

	engine.ResetSymbol("X")

	rx := engine.Process(makeBar("X", 30))
	assertClose(t, "reset symbol starts fresh", rx[0].Value, 30, 0)

	ry := engine.Process(makeBar("Y", 700))
	assertClose(t, "other symbol unaffected", ry[0].Value, 600, 1e-9)
}

func TestRestorer_ColdStartOnNilSnapshot(t *testing.T) {
	r := NewRestorer([]Config{{Type: "EMA", Period: 5}})
	engine, err := r.RestoreFromSnap(nil)
	if err != nil {
		t.Fatal(err)
	}
	results := engine.Process(makeBar("X", 10))
	assertClose(t, "cold engine first output", results[0].Value, 10, 0)
}

type sliceBarReader struct {
	bars map[string][]model.Bar
}

func (s *sliceBarReader) ReadRecentBars(symbol string, limit int) ([]model.Bar, error) {
	bars := s.bars[symbol]
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func TestRestorer_BackfillWarmsIndicators(t *testing.T) {
	configs := []Config{{Type: "SMA", Period: 3}}
	r := NewRestorer(configs)
	engine, _ := NewEngine(configs)

	reader := &sliceBarReader{bars: map[string][]model.Bar{
		"X": {makeBar("X", 10), makeBar("X", 12), makeBar("X", 14)},
	}}

	var captured int
	fed := r.BackfillFromStore(engine, reader, []string{"X"}, func(results []model.Result) {
		captured += len(results)
	})
	if fed != 3 {
		t.Fatalf("backfilled %d bars, want 3", fed)
	}
	if captured != 3 {
		t.Errorf("captured %d results, want 3", captured)
	}

	results := engine.Process(makeBar("X", 16))
	assertClose(t, "warm SMA after backfill", results[0].Value, 14, 1e-9)
}
