package indicator

import (
	"errors"
	"math"
	"testing"

	"ta-enginev1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func bar(h, l, c float64) model.Bar {
	return model.Bar{Symbol: "TEST", Open: c, High: h, Low: l, Close: c}
}

func flatBar(price, volume float64) model.Bar {
	return model.Bar{Symbol: "TEST", Open: price, High: price, Low: price, Close: price, Volume: volume}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_GrowingWindowStartup(t *testing.T) {
	// SMA(3) over 100, 102, 104, 103, 105:
	// growing window means before 3 samples the mean of what's there.
	// 100, (100+102)/2=101, 102, (102+104+103)/3=103, 104
	sma, err := NewSMA(3)
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{100, 101, 102, 103, 104}

	for i, p := range prices {
		got := sma.Next(p)
		assertClose(t, "SMA(3)", got, expected[i], 1e-9)
		assertClose(t, "SMA(3) Value", sma.Value(), got, 0)
	}
}

func TestSMA_Period1_Identity(t *testing.T) {
	sma, _ := NewSMA(1)
	for _, p := range []float64{3, -1, 7.5, 0} {
		assertClose(t, "SMA(1)", sma.Next(p), p, 0)
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_HandComputed(t *testing.T) {
	// EMA(3): α = 2/(3+1) = 0.5, first output is the first sample.
	// 2 → 2
	// 5 → 0.5·5 + 0.5·2   = 3.5
	// 1 → 0.5·1 + 0.5·3.5 = 2.25
	// 6.25 → 0.5·6.25 + 0.5·2.25 = 4.25
	ema, err := NewEMA(3)
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{2, 5, 1, 6.25}
	expected := []float64{2, 3.5, 2.25, 4.25}

	for i, p := range prices {
		assertClose(t, "EMA(3)", ema.Next(p), expected[i], 1e-9)
	}
}

func TestEMA_Period1_Identity(t *testing.T) {
	// α = 2/2 = 1: the EMA tracks the input exactly.
	ema, _ := NewEMA(1)
	for _, p := range []float64{10, 3, 3, 99.5} {
		assertClose(t, "EMA(1)", ema.Next(p), p, 0)
	}
}

// ────────────────────────────────────────────────────────────
// WMA / HMA
// ────────────────────────────────────────────────────────────

func TestWMA_HandComputed(t *testing.T) {
	// WMA(3) over 1, 2, 3, 4 (weights 1..k during startup):
	// 1
	// (1·1 + 2·2)/3          = 5/3
	// (1·1 + 2·2 + 3·3)/6    = 14/6
	// (1·2 + 2·3 + 3·4)/6    = 20/6
	wma, err := NewWMA(3)
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{1, 2, 3, 4}
	expected := []float64{1, 5.0 / 3, 14.0 / 6, 20.0 / 6}

	for i, p := range prices {
		assertClose(t, "WMA(3)", wma.Next(p), expected[i], 1e-9)
	}
}

func TestHMA_Period1_Identity(t *testing.T) {
	// All three inner WMAs have period 1, so 2·v − v = v throughout.
	hma, _ := NewHMA(1)
	for _, p := range []float64{4, 8, 1, -2} {
		assertClose(t, "HMA(1)", hma.Next(p), p, 1e-12)
	}
}

func TestHMA_MatchesComposedWMAs(t *testing.T) {
	// HMA(9) must equal WMA(3) of 2·WMA(4) − WMA(9) step by step.
	hma, _ := NewHMA(9)
	half, _ := NewWMA(4)
	full, _ := NewWMA(9)
	smooth, _ := NewWMA(3)

	prices := []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19, 20, 18}
	for i, p := range prices {
		want := smooth.Next(2*half.Next(p) - full.Next(p))
		got := hma.Next(p)
		if got != want {
			t.Errorf("step %d: HMA=%.10f, composed=%.10f", i, got, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Minimum / Maximum
// ────────────────────────────────────────────────────────────

func TestMinimum_TrailingWindow(t *testing.T) {
	min, err := NewMinimum(3)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []float64{4, 1.2, 5, 3, 4, 6, 7, 8, -9, 0}
	expected := []float64{4, 1.2, 1.2, 1.2, 3, 3, 4, 6, -9, -9}

	for i, v := range inputs {
		assertClose(t, "MIN(3)", min.Next(v), expected[i], 0)
	}
}

func TestMaximum_TrailingWindow(t *testing.T) {
	max, err := NewMaximum(3)
	if err != nil {
		t.Fatal(err)
	}
	inputs := []float64{4, 1.2, 5, 3, 4, 6, 7, 8, -9, 0}
	expected := []float64{4, 4, 5, 5, 5, 6, 7, 8, 8, 8}

	for i, v := range inputs {
		assertClose(t, "MAX(3)", max.Next(v), expected[i], 0)
	}
}

func TestMinMax_BarsUseLowAndHigh(t *testing.T) {
	min, _ := NewMinimum(2)
	max, _ := NewMaximum(2)

	b1 := bar(12, 8, 10)
	b2 := bar(14, 9, 13)
	min.NextBar(b1)
	max.NextBar(b1)
	assertClose(t, "MIN tracks low", min.NextBar(b2), 8, 0)
	assertClose(t, "MAX tracks high", max.NextBar(b2), 14, 0)
}

// ────────────────────────────────────────────────────────────
// StdDev / MeanAbsDev
// ────────────────────────────────────────────────────────────

func TestStdDev_Population(t *testing.T) {
	// 2, 4, 4, 4, 5, 5, 7, 9: mean 5, population variance 4, sd 2.
	sd, err := NewStdDev(8)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		last = sd.Next(v)
	}
	assertClose(t, "SD(8) population", last, 2.0, 1e-9)
}

func TestStdDev_Sample(t *testing.T) {
	// Same series with the Bessel correction: variance 32/7.
	sd, err := NewSampleStdDev(8)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		last = sd.Next(v)
	}
	assertClose(t, "SD(8) sample", last, math.Sqrt(32.0/7.0), 1e-9)
}

func TestStdDev_SingleSampleIsZero(t *testing.T) {
	sd, _ := NewStdDev(5)
	assertClose(t, "SD first sample", sd.Next(42), 0, 0)
}

func TestMeanAbsDev_HandComputed(t *testing.T) {
	// MAD(3) over 10, 20, 30:
	// 10 → 0
	// mean 15 → (5+5)/2 = 5
	// mean 20 → (10+0+10)/3 = 20/3
	mad, err := NewMeanAbsDev(3)
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{10, 20, 30}
	expected := []float64{0, 5, 20.0 / 3}

	for i, p := range prices {
		assertClose(t, "MAD(3)", mad.Next(p), expected[i], 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// TrueRange / ATR
// ────────────────────────────────────────────────────────────

func TestTrueRange_HandComputed(t *testing.T) {
	tr := NewTrueRange()

	// First bar: no previous close, TR = high − low.
	assertClose(t, "TR first bar", tr.NextBar(bar(10, 8, 9)), 2, 0)
	// max(11−9, |11−9|, |9−9|) = 2
	assertClose(t, "TR second bar", tr.NextBar(bar(11, 9, 10)), 2, 0)
	// Gap up: max(15−11, |15−10|, |11−10|) = 5
	assertClose(t, "TR gap", tr.NextBar(bar(15, 11, 14)), 5, 0)
}

func TestATR_MatchesTrueRangeEMA(t *testing.T) {
	atr, _ := NewATR(4)
	tr := NewTrueRange()
	ema, _ := NewEMA(4)

	bars := []model.Bar{
		bar(10, 8, 9), bar(11, 9, 10), bar(15, 11, 14),
		bar(14, 12, 12), bar(13, 11, 13), bar(16, 13, 15),
	}
	for i, b := range bars {
		want := ema.Next(tr.NextBar(b))
		got := atr.NextBar(b)
		if got != want {
			t.Errorf("bar %d: ATR=%.10f, EMA(TR)=%.10f", i, got, want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ROC / OBV / EfficiencyRatio
// ────────────────────────────────────────────────────────────

func TestROC_HandComputed(t *testing.T) {
	// ROC(3) over 10, 12, 15, 18: oldest in a 3-wide window.
	// 10 → base 10 → 0
	// 12 → base 10 → 20
	// 15 → base 10 → 50
	// 18 → base 12 → 50
	roc, err := NewROC(3)
	if err != nil {
		t.Fatal(err)
	}
	prices := []float64{10, 12, 15, 18}
	expected := []float64{0, 20, 50, 50}

	for i, p := range prices {
		assertClose(t, "ROC(3)", roc.Next(p), expected[i], 1e-9)
	}
}

func TestROC_ZeroBase(t *testing.T) {
	roc, _ := NewROC(2)
	assertClose(t, "ROC zero base", roc.Next(0), 0, 0)
	// Window is [0, 5]: the base is still 0, output stays 0.
	assertClose(t, "ROC zero base second", roc.Next(5), 0, 0)
}

func TestOBV_HandComputed(t *testing.T) {
	obv := NewOBV()

	// Previous close starts at 0: a positive first close counts as up.
	assertClose(t, "OBV up", obv.NextBar(flatBar(10, 100)), 100, 0)
	assertClose(t, "OBV up", obv.NextBar(flatBar(11, 50)), 150, 0)
	assertClose(t, "OBV down", obv.NextBar(flatBar(10, 30)), 120, 0)
	assertClose(t, "OBV flat", obv.NextBar(flatBar(10, 500)), 120, 0)
}

func TestOBV_MonotoneWithPriceDirection(t *testing.T) {
	// Over strictly rising closes OBV only accumulates volume, so the
	// series must be non-decreasing; strictly falling closes mirror that.
	obv := NewOBV()
	prev := obv.NextBar(flatBar(100, 10))
	for i := 1; i <= 50; i++ {
		cur := obv.NextBar(flatBar(100+float64(i), float64(10+i%7)))
		if cur < prev {
			t.Fatalf("rising close %d: OBV fell from %.1f to %.1f", i, prev, cur)
		}
		prev = cur
	}
	for i := 1; i <= 50; i++ {
		cur := obv.NextBar(flatBar(150-float64(i), float64(10+i%7)))
		if cur > prev {
			t.Fatalf("falling close %d: OBV rose from %.1f to %.1f", i, prev, cur)
		}
		prev = cur
	}
}

func TestEfficiencyRatio_StraightLine(t *testing.T) {
	er, err := NewEfficiencyRatio(4)
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for _, v := range []float64{1, 2, 3, 4, 5} {
		last = er.Next(v)
	}
	assertClose(t, "ER straight line", last, 1.0, 1e-12)
}

func TestEfficiencyRatio_FlatIsZero(t *testing.T) {
	er, _ := NewEfficiencyRatio(3)
	var last float64
	for i := 0; i < 5; i++ {
		last = er.Next(7)
	}
	assertClose(t, "ER flat", last, 0, 0)
}

func TestEfficiencyRatio_HandComputed(t *testing.T) {
	// Window [1, 3, 2]: net |2−1| = 1, movement 2+1 = 3 → 1/3.
	er, _ := NewEfficiencyRatio(3)
	er.Next(1)
	er.Next(3)
	assertClose(t, "ER(3)", er.Next(2), 1.0/3, 1e-12)
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_FirstSampleNeutral(t *testing.T) {
	rsi, err := NewRSI(14)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "RSI first sample", rsi.Next(100), 50, 0)
}

func TestRSI_AllGains(t *testing.T) {
	rsi, _ := NewRSI(3)
	var last float64
	for _, p := range []float64{1, 2, 3, 4, 5} {
		last = rsi.Next(p)
	}
	assertClose(t, "RSI all gains", last, 100, 0)
}

func TestRSI_AllLosses(t *testing.T) {
	rsi, _ := NewRSI(3)
	var last float64
	for _, p := range []float64{5, 4, 3, 2, 1} {
		last = rsi.Next(p)
	}
	assertClose(t, "RSI all losses", last, 0, 0)
}

func TestRSI_FlatStreamNeutral(t *testing.T) {
	rsi, _ := NewRSI(3)
	var last float64
	for i := 0; i < 5; i++ {
		last = rsi.Next(42)
	}
	assertClose(t, "RSI flat", last, 50, 0)
}

func TestRSI_HandComputed(t *testing.T) {
	// RSI(3): α = 0.5 on both smoothed averages.
	// 10   → neutral 50
	// 11   → gain 1:   g=1, l=0         → 100
	// 10.5 → loss 0.5: g=0.5, l=0.25    → 100·0.5/0.75  = 66.6667
	// 11.5 → gain 1:   g=0.75, l=0.125  → 100·0.75/0.875 = 85.7143
	rsi, _ := NewRSI(3)
	prices := []float64{10, 11, 10.5, 11.5}
	expected := []float64{50, 100, 100.0 / 1.5, 100 * 0.75 / 0.875}

	for i, p := range prices {
		assertClose(t, "RSI(3)", rsi.Next(p), expected[i], 1e-9)
	}
}

func TestRSI_AlwaysInRange(t *testing.T) {
	rsi, _ := NewRSI(5)
	prices := []float64{50, 48, 53, 51, 57, 40, 40, 62, 35, 70, 70, 10}
	for i, p := range prices {
		v := rsi.Next(p)
		if v < 0 || v > 100 {
			t.Errorf("step %d: RSI=%.4f out of [0,100]", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// MACD / PPO
// ────────────────────────────────────────────────────────────

func TestMACD_MatchesComponentEMAs(t *testing.T) {
	macd, err := NewMACD(3, 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	fast, _ := NewEMA(3)
	slow, _ := NewEMA(6)
	signal, _ := NewEMA(4)

	prices := []float64{10, 12, 11, 15, 14, 16, 13, 17, 18, 16}
	for i, p := range prices {
		wantMACD := fast.Next(p) - slow.Next(p)
		wantSignal := signal.Next(wantMACD)
		got := macd.Next(p)
		last := macd.Last()

		if got != wantMACD || last.Signal != wantSignal {
			t.Errorf("step %d: got (%.10f, %.10f), want (%.10f, %.10f)",
				i, got, last.Signal, wantMACD, wantSignal)
		}
		if last.Histogram != last.MACD-last.Signal {
			t.Errorf("step %d: histogram %.10f != macd−signal %.10f",
				i, last.Histogram, last.MACD-last.Signal)
		}
	}
}

func TestMACD_FirstSampleIsZero(t *testing.T) {
	// Both EMAs seed to the first sample, so the spread starts at 0.
	macd, _ := NewMACD(12, 26, 9)
	assertClose(t, "MACD first sample", macd.Next(250), 0, 0)
}

func TestPPO_MatchesComponentEMAs(t *testing.T) {
	ppo, err := NewPPO(3, 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	fast, _ := NewEMA(3)
	slow, _ := NewEMA(6)
	signal, _ := NewEMA(4)

	prices := []float64{10, 12, 11, 15, 14, 16, 13, 17}
	for i, p := range prices {
		f, s := fast.Next(p), slow.Next(p)
		want := (f - s) / s * 100
		wantSignal := signal.Next(want)
		got := ppo.Next(p)
		if got != want || ppo.Last().Signal != wantSignal {
			t.Errorf("step %d: got (%.10f, %.10f), want (%.10f, %.10f)",
				i, got, ppo.Last().Signal, want, wantSignal)
		}
	}
}

func TestPPO_AllZeroInputIsZero(t *testing.T) {
	ppo, _ := NewPPO(3, 6, 4)
	for i := 0; i < 5; i++ {
		v := ppo.Next(0)
		if math.IsNaN(v) || v != 0 {
			t.Fatalf("step %d: PPO on zero input = %v, want 0", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Stochastic
// ────────────────────────────────────────────────────────────

func TestStochasticFast_HandComputed(t *testing.T) {
	// %K over a 3-bar window of (high, low, close):
	// (12,8,10):  100·(10−8)/(12−8)   = 50
	// (14,9,13):  100·(13−8)/(14−8)   = 83.3333
	// (13,10,11): 100·(11−8)/(14−8)   = 50
	// (15,11,15): lows [9,10,11], highs [14,13,15]
	//             100·(15−9)/(15−9)   = 100
	stoch, err := NewStochasticFast(3)
	if err != nil {
		t.Fatal(err)
	}
	bars := []model.Bar{bar(12, 8, 10), bar(14, 9, 13), bar(13, 10, 11), bar(15, 11, 15)}
	expected := []float64{50, 100 * 5.0 / 6, 50, 100}

	for i, b := range bars {
		assertClose(t, "STOCH(3)", stoch.NextBar(b), expected[i], 1e-9)
	}
}

func TestStochasticFast_FlatWindowNeutral(t *testing.T) {
	stoch, _ := NewStochasticFast(3)
	var last float64
	for i := 0; i < 4; i++ {
		last = stoch.NextBar(flatBar(10, 0))
	}
	assertClose(t, "STOCH flat window", last, 50, 0)
}

func TestStochasticSlow_MatchesFastSmoothing(t *testing.T) {
	slow, err := NewStochasticSlow(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	fast, _ := NewStochasticFast(3)
	sma, _ := NewSMA(2)

	bars := []model.Bar{bar(12, 8, 10), bar(14, 9, 13), bar(13, 10, 11), bar(15, 11, 15)}
	for i, b := range bars {
		wantK := fast.NextBar(b)
		wantD := sma.Next(wantK)
		gotD := slow.NextBar(b)
		gotK, _ := slow.KD()
		if gotK != wantK || gotD != wantD {
			t.Errorf("bar %d: got K=%.10f D=%.10f, want K=%.10f D=%.10f",
				i, gotK, gotD, wantK, wantD)
		}
	}
}

// ────────────────────────────────────────────────────────────
// CCI / MFI
// ────────────────────────────────────────────────────────────

func TestCCI_HandComputed(t *testing.T) {
	// Flat bars give typical price == close. CCI(3) over 1, 2, 3:
	// 1 → dev 0 → 0
	// 2 → mean 1.5, MAD 0.5  → 0.5/(0.015·0.5)     = 66.6667
	// 3 → mean 2,   MAD 2/3  → 1/(0.015·2/3)       = 100
	cci, err := NewCCI(3)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{0, 0.5 / (0.015 * 0.5), 100}
	for i, p := range []float64{1, 2, 3} {
		assertClose(t, "CCI(3)", cci.NextBar(flatBar(p, 0)), expected[i], 1e-9)
	}
}

func TestCCI_FlatWindowIsZero(t *testing.T) {
	cci, _ := NewCCI(3)
	var last float64
	for i := 0; i < 5; i++ {
		last = cci.NextBar(flatBar(25, 0))
	}
	assertClose(t, "CCI flat", last, 0, 0)
}

func TestMFI_HandComputed(t *testing.T) {
	// MFI(3) over flat bars (price, volume):
	// (10, 100): first bar, no direction → flow 0 → neutral 50
	// (11, 100): +1100                   → 100·1100/1100 = 100
	// (9, 200):  −1800                   → 100·1100/2900 = 37.9310
	// (9, 50):   equal typical price → 0 → evicts the 0 flow → unchanged
	mfi, err := NewMFI(3)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "MFI first bar", mfi.NextBar(flatBar(10, 100)), 50, 0)
	assertClose(t, "MFI all positive", mfi.NextBar(flatBar(11, 100)), 100, 0)
	assertClose(t, "MFI mixed", mfi.NextBar(flatBar(9, 200)), 100*1100.0/2900, 1e-9)
	assertClose(t, "MFI flat step", mfi.NextBar(flatBar(9, 50)), 100*1100.0/2900, 1e-9)
}

func TestMFI_Eviction(t *testing.T) {
	// After period bars of one direction followed by the opposite, the
	// early flows must age out of the sums.
	mfi, _ := NewMFI(2)
	mfi.NextBar(flatBar(10, 100))
	mfi.NextBar(flatBar(11, 100)) // +1100
	mfi.NextBar(flatBar(12, 100)) // +1200
	// window now [+1100, +1200]
	got := mfi.NextBar(flatBar(11, 100)) // −1100 evicts +1100
	assertClose(t, "MFI eviction", got, 100*1200.0/2300, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Bands / Channels / Stops
// ────────────────────────────────────────────────────────────

func TestBollingerBands_HandComputed(t *testing.T) {
	// BB(2, k=1) after 2, 4: mean 3, population sd 1 → bands 4/3/2.
	bb, err := NewBollingerBands(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	bb.Next(2)
	bb.Next(4)
	last := bb.Last()
	assertClose(t, "BB upper", last.Upper, 4, 1e-9)
	assertClose(t, "BB middle", last.Middle, 3, 1e-9)
	assertClose(t, "BB lower", last.Lower, 2, 1e-9)
}

func TestBollingerBands_Ordering(t *testing.T) {
	bb, _ := NewBollingerBands(4, 2)
	for i, p := range []float64{10, 14, 9, 16, 12, 11, 15, 8} {
		bb.Next(p)
		last := bb.Last()
		if last.Lower > last.Middle || last.Middle > last.Upper {
			t.Errorf("step %d: band ordering violated: %+v", i, last)
		}
	}
}

func TestBollingerBands_ZeroWidthCollapsesToSMA(t *testing.T) {
	bb, _ := NewBollingerBands(3, 0)
	sma, _ := NewSMA(3)
	for _, p := range []float64{10, 14, 9, 16} {
		bb.Next(p)
		want := sma.Next(p)
		last := bb.Last()
		if last.Upper != want || last.Lower != want {
			t.Errorf("k=0 bands diverge from SMA: %+v want %.10f", last, want)
		}
	}
}

func TestKeltnerChannel_MatchesComponents(t *testing.T) {
	kc, err := NewKeltnerChannel(4, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	ema, _ := NewEMA(4)
	atr, _ := NewATR(4)

	bars := []model.Bar{bar(10, 8, 9), bar(11, 9, 10), bar(15, 11, 14), bar(14, 12, 12)}
	for i, b := range bars {
		mid := ema.Next(b.Close)
		rng := atr.NextBar(b)
		kc.NextBar(b)
		last := kc.Last()
		if last.Middle != mid || last.Upper != mid+1.5*rng || last.Lower != mid-1.5*rng {
			t.Errorf("bar %d: %+v, want middle=%.10f range=%.10f", i, last, mid, rng)
		}
	}
}

func TestChandelierExit_MatchesComponents(t *testing.T) {
	ce, err := NewChandelierExit(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	max, _ := NewMaximum(3)
	min, _ := NewMinimum(3)
	atr, _ := NewATR(3)

	bars := []model.Bar{bar(10, 8, 9), bar(11, 9, 10), bar(15, 11, 14), bar(14, 12, 12)}
	for i, b := range bars {
		hi := max.NextBar(b)
		lo := min.NextBar(b)
		rng := atr.NextBar(b)
		ce.NextBar(b)
		last := ce.Last()
		if last.LongExit != hi-2*rng || last.ShortExit != lo+2*rng {
			t.Errorf("bar %d: %+v, want long=%.10f short=%.10f",
				i, last, hi-2*rng, lo+2*rng)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Lifecycle: construction, reset, clone
// ────────────────────────────────────────────────────────────

func TestConstructors_RejectBadPeriod(t *testing.T) {
	constructors := map[string]func(int) error{
		"SMA":   func(p int) error { _, err := NewSMA(p); return err },
		"EMA":   func(p int) error { _, err := NewEMA(p); return err },
		"WMA":   func(p int) error { _, err := NewWMA(p); return err },
		"HMA":   func(p int) error { _, err := NewHMA(p); return err },
		"MIN":   func(p int) error { _, err := NewMinimum(p); return err },
		"MAX":   func(p int) error { _, err := NewMaximum(p); return err },
		"SD":    func(p int) error { _, err := NewStdDev(p); return err },
		"MAD":   func(p int) error { _, err := NewMeanAbsDev(p); return err },
		"ROC":   func(p int) error { _, err := NewROC(p); return err },
		"ER":    func(p int) error { _, err := NewEfficiencyRatio(p); return err },
		"RSI":   func(p int) error { _, err := NewRSI(p); return err },
		"STOCH": func(p int) error { _, err := NewStochasticFast(p); return err },
		"CCI":   func(p int) error { _, err := NewCCI(p); return err },
		"MFI":   func(p int) error { _, err := NewMFI(p); return err },
		"ATR":   func(p int) error { _, err := NewATR(p); return err },
		"BB":    func(p int) error { _, err := NewBollingerBands(p, 2); return err },
		"KC":    func(p int) error { _, err := NewKeltnerChannel(p, 2); return err },
	}
	for name, construct := range constructors {
		for _, p := range []int{0, -1} {
			err := construct(p)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("%s(period=%d): got %v, want ConfigError", name, p, err)
			}
		}
	}
}

func TestMACD_RejectsFastNotBelowSlow(t *testing.T) {
	for _, tc := range [][2]int{{26, 12}, {12, 12}} {
		_, err := NewMACD(tc[0], tc[1], 9)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("MACD(%d,%d,9): got %v, want ConfigError", tc[0], tc[1], err)
		}
	}
}

func TestPPO_ConfigErrorNamesPPO(t *testing.T) {
	_, err := NewPPO(26, 12, 9)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want ConfigError", err)
	}
	if ce.Indicator != "PPO" {
		t.Errorf("ConfigError names %q, want PPO", ce.Indicator)
	}
}

func TestBands_RejectNegativeMultiplier(t *testing.T) {
	if _, err := NewBollingerBands(20, -1); err == nil {
		t.Error("BB accepted negative multiplier")
	}
	if _, err := NewKeltnerChannel(20, -1); err == nil {
		t.Error("KC accepted negative multiplier")
	}
	if _, err := NewChandelierExit(22, -0.5); err == nil {
		t.Error("CHANDELIER accepted negative multiplier")
	}
}

func TestReset_ReproducesFreshRun(t *testing.T) {
	// After Reset, refeeding the same series must reproduce the exact
	// same outputs, bit for bit.
	prices := []float64{10, 12, 11, 15, 14, 16, 13, 17, 18, 16}

	indicators := []Indicator{}
	for _, build := range []func() Indicator{
		func() Indicator { s, _ := NewSMA(4); return s },
		func() Indicator { e, _ := NewEMA(4); return e },
		func() Indicator { w, _ := NewWMA(4); return w },
		func() Indicator { h, _ := NewHMA(4); return h },
		func() Indicator { r, _ := NewRSI(4); return r },
		func() Indicator { m, _ := NewMACD(3, 6, 4); return m },
		func() Indicator { b, _ := NewBollingerBands(4, 2); return b },
		func() Indicator { e, _ := NewEfficiencyRatio(4); return e },
	} {
		indicators = append(indicators, build())
	}

	for _, ind := range indicators {
		first := make([]float64, len(prices))
		for i, p := range prices {
			first[i] = ind.Next(p)
		}
		ind.Reset()
		for i, p := range prices {
			if got := ind.Next(p); got != first[i] {
				t.Errorf("%s: step %d after reset: got %.12f, want %.12f",
					ind.String(), i, got, first[i])
			}
		}
	}
}

func TestClone_Independent(t *testing.T) {
	sma, _ := NewSMA(3)
	for _, p := range []float64{10, 12, 14} {
		sma.Next(p)
	}

	clone := sma.Clone()
	if clone.Value() != sma.Value() {
		t.Fatalf("clone value %.6f != original %.6f", clone.Value(), sma.Value())
	}

	// Mutating the clone must not disturb the original.
	before := sma.Value()
	clone.Next(1000)
	if sma.Value() != before {
		t.Errorf("original mutated by clone feed: %.6f != %.6f", sma.Value(), before)
	}

	// Both fed the same continuation must agree.
	clone2 := sma.Clone()
	for _, p := range []float64{16, 18} {
		if a, b := sma.Next(p), clone2.Next(p); a != b {
			t.Errorf("clone diverged: %.12f != %.12f", a, b)
		}
	}
}

func TestClone_CompositeDeepCopy(t *testing.T) {
	macd, _ := NewMACD(3, 6, 4)
	for _, p := range []float64{10, 12, 11, 15} {
		macd.Next(p)
	}

	clone := macd.Clone()
	before := macd.Last()
	clone.Next(500)
	if macd.Last() != before {
		t.Errorf("original MACD mutated by clone feed")
	}
}
