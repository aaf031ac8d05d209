package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"ta-enginev1/internal/model"
)

// Config specifies a single indicator to compute. Period is the primary
// window; Slow/Signal apply to MACD/PPO, D to the slow stochastic, K to
// band/stop multipliers. TR and OBV take no parameters.
type Config struct {
	Type   string  `yaml:"type" json:"type"`
	Period int     `yaml:"period,omitempty" json:"period,omitempty"`
	Slow   int     `yaml:"slow,omitempty" json:"slow,omitempty"`
	Signal int     `yaml:"signal,omitempty" json:"signal,omitempty"`
	D      int     `yaml:"d,omitempty" json:"d,omitempty"`
	K      float64 `yaml:"k,omitempty" json:"k,omitempty"`
}

// Key returns the canonical identity of this config, used to match
// indicator state across reloads and snapshot restores.
func (c Config) Key() string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(c.Type))
	for _, n := range []int{c.Period, c.Slow, c.Signal, c.D} {
		if n > 0 {
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(n))
		}
	}
	if c.K != 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(c.K, 'g', -1, 64))
	}
	return sb.String()
}

// New constructs the indicator instance described by the config.
func (c Config) New() (BarIndicator, error) {
	switch strings.ToUpper(c.Type) {
	case "SMA":
		return NewSMA(c.Period)
	case "EMA":
		return NewEMA(c.Period)
	case "WMA":
		return NewWMA(c.Period)
	case "HMA":
		return NewHMA(c.Period)
	case "MIN":
		return NewMinimum(c.Period)
	case "MAX":
		return NewMaximum(c.Period)
	case "SD":
		return NewStdDev(c.Period)
	case "MAD":
		return NewMeanAbsDev(c.Period)
	case "TR":
		return NewTrueRange(), nil
	case "ROC":
		return NewROC(c.Period)
	case "OBV":
		return NewOBV(), nil
	case "ER":
		return NewEfficiencyRatio(c.Period)
	case "RSI":
		return NewRSI(c.Period)
	case "MACD":
		return NewMACD(c.Period, c.Slow, c.Signal)
	case "PPO":
		return NewPPO(c.Period, c.Slow, c.Signal)
	case "STOCH":
		return NewStochasticFast(c.Period)
	case "STOCHSLOW":
		return NewStochasticSlow(c.Period, c.D)
	case "CCI":
		return NewCCI(c.Period)
	case "MFI":
		return NewMFI(c.Period)
	case "ATR":
		return NewATR(c.Period)
	case "BB":
		return NewBollingerBands(c.Period, c.K)
	case "KC":
		return NewKeltnerChannel(c.Period, c.K)
	case "CHANDELIER":
		return NewChandelierExit(c.Period, c.K)
	default:
		return nil, &ConfigError{Indicator: c.Type, Param: "type", Reason: "unknown indicator type"}
	}
}

// DefaultConfigs returns the indicator set used when no configuration
// is supplied: the conventional default parameters for each family.
func DefaultConfigs() []Config {
	return []Config{
		{Type: "SMA", Period: 20},
		{Type: "EMA", Period: 9},
		{Type: "RSI", Period: 14},
		{Type: "MACD", Period: 12, Slow: 26, Signal: 9},
		{Type: "BB", Period: 20, K: 2},
		{Type: "ATR", Period: 14},
		{Type: "STOCHSLOW", Period: 14, D: 3},
	}
}

// ValidateConfigs checks a config set by constructing (and discarding)
// one instance per entry, and rejects duplicate keys.
func ValidateConfigs(configs []Config) error {
	if len(configs) == 0 {
		return fmt.Errorf("no indicators configured")
	}
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		key := cfg.Key()
		if seen[key] {
			return fmt.Errorf("duplicate indicator %s", key)
		}
		seen[key] = true
		if _, err := cfg.New(); err != nil {
			return err
		}
	}
	return nil
}

// symbolIndicators holds live indicator instances for one symbol.
type symbolIndicators struct {
	indicators []BarIndicator
	configs    []Config
}

// Engine computes a configured indicator set for any number of symbols.
// Per-symbol instances are created lazily on the first bar. Designed
// for single-goroutine usage — no locks.
type Engine struct {
	configs []Config
	state   map[string]*symbolIndicators
}

// NewEngine creates an engine with the given indicator configs.
func NewEngine(configs []Config) (*Engine, error) {
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return &Engine{
		configs: configs,
		state:   make(map[string]*symbolIndicators, 64),
	}, nil
}

// Configs returns the active indicator configuration.
func (e *Engine) Configs() []Config { return e.configs }

// Symbols returns the symbols seen so far.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.state))
	for sym := range e.state {
		out = append(out, sym)
	}
	return out
}

// Process feeds a finalized bar to every indicator configured for the
// bar's symbol and returns one Result per output component.
func (e *Engine) Process(bar model.Bar) []model.Result {
	si, ok := e.state[bar.Symbol]
	if !ok {
		si = e.createSymbolIndicators()
		e.state[bar.Symbol] = si
	}

	results := make([]model.Result, 0, len(si.indicators))
	for _, ind := range si.indicators {
		ind.NextBar(bar)
		results = appendResults(results, ind, bar)
	}
	return results
}

// ResetSymbol returns every indicator for the symbol to its freshly
// constructed state (e.g. on a data-gap or session boundary).
func (e *Engine) ResetSymbol(symbol string) {
	if si, ok := e.state[symbol]; ok {
		for _, ind := range si.indicators {
			ind.Reset()
		}
	}
}

// createSymbolIndicators creates fresh instances for one symbol.
// Configs were validated at construction, so errors cannot occur here.
func (e *Engine) createSymbolIndicators() *symbolIndicators {
	inds := make([]BarIndicator, len(e.configs))
	for i, cfg := range e.configs {
		ind, _ := cfg.New()
		inds[i] = ind
	}
	return &symbolIndicators{indicators: inds, configs: e.configs}
}

// appendResults expands one indicator step into per-component results.
// Multi-line indicators emit one row per line.
func appendResults(dst []model.Result, ind BarIndicator, bar model.Bar) []model.Result {
	name := ind.String()
	row := func(component string, v float64) model.Result {
		return model.Result{
			Name:      name,
			Component: component,
			Symbol:    bar.Symbol,
			Value:     v,
			TS:        bar.TS,
		}
	}

	switch t := ind.(type) {
	case *MACD:
		last := t.Last()
		return append(dst, row("macd", last.MACD), row("signal", last.Signal), row("histogram", last.Histogram))
	case *PPO:
		last := t.Last()
		return append(dst, row("ppo", last.MACD), row("signal", last.Signal), row("histogram", last.Histogram))
	case *BollingerBands:
		last := t.Last()
		return append(dst, row("upper", last.Upper), row("middle", last.Middle), row("lower", last.Lower))
	case *KeltnerChannel:
		last := t.Last()
		return append(dst, row("upper", last.Upper), row("middle", last.Middle), row("lower", last.Lower))
	case *StochasticSlow:
		k, d := t.KD()
		return append(dst, row("k", k), row("d", d))
	case *ChandelierExit:
		last := t.Last()
		return append(dst, row("long", last.LongExit), row("short", last.ShortExit))
	default:
		return append(dst, row("", ind.Value()))
	}
}
