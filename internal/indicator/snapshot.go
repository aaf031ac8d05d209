package indicator

import (
	"fmt"
	"time"

	"ta-enginev1/internal/window"
)

// Snapshottable is implemented by indicators that support state
// serialization. All indicators in this package implement it.
type Snapshottable interface {
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single indicator
// instance. Composite indicators nest their sub-indicator snapshots in
// Children, in the same fixed order they feed them. The JSON shape is
// versioned at the engine level and explicitly NOT stable across
// releases — a snapshot only promises that restoring it on the same
// version resumes the stream as if uninterrupted.
type IndicatorSnapshot struct {
	Type    string `json:"type"`
	Period  int    `json:"period,omitempty"`
	Periods []int  `json:"periods,omitempty"` // multi-period indicators (MACD, PPO)

	K       float64   `json:"k,omitempty"`
	Count   uint64    `json:"count,omitempty"`
	Window  []float64 `json:"window,omitempty"` // ring contents oldest-first
	Sum     float64   `json:"sum,omitempty"`
	Current float64   `json:"current"`
	Aux     []float64 `json:"aux,omitempty"` // secondary output lines
	Prev    float64   `json:"prev,omitempty"`
	Seeded  bool      `json:"seeded,omitempty"`
	Sample  bool      `json:"sample,omitempty"`

	DequeVals []float64 `json:"deque_vals,omitempty"`
	DequePos  []uint64  `json:"deque_pos,omitempty"`

	Children []IndicatorSnapshot `json:"children,omitempty"`
}

// ringContents copies a ring's window oldest-first.
func ringContents(r *window.Ring[float64]) []float64 {
	out := make([]float64, 0, r.Len())
	r.Do(func(v float64) bool {
		out = append(out, v)
		return true
	})
	return out
}

// restoreRing refills a ring from snapshot contents. The snapshot must
// not hold more values than the ring's capacity (period mismatch).
func restoreRing(r *window.Ring[float64], vals []float64) error {
	if len(vals) > r.Cap() {
		return fmt.Errorf("snapshot window holds %d values, ring capacity %d", len(vals), r.Cap())
	}
	r.Reset()
	for _, v := range vals {
		r.Push(v)
	}
	return nil
}

// snapshotVersion guards against restoring checkpoints written by an
// incompatible build. Bump on any change to the snapshot shape.
const snapshotVersion = 2

// SymbolSnapshot holds the serialized indicator states for one symbol.
// Keys[i] is the config key that produced Indicators[i].
type SymbolSnapshot struct {
	Symbol     string              `json:"symbol"`
	Keys       []string            `json:"keys"`
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// EngineSnapshot is a full engine checkpoint: every live indicator for
// every symbol, plus the stream position the bars were consumed up to.
type EngineSnapshot struct {
	Version  int              `json:"version"`
	TakenAt  time.Time        `json:"taken_at"`
	StreamID string           `json:"stream_id,omitempty"`
	Configs  []Config         `json:"configs"`
	Symbols  []SymbolSnapshot `json:"symbols"`
}

// SnapshotEngine captures the engine's complete state. streamID is the
// last consumed stream entry ID, recorded so a restorer can resume
// consumption without reprocessing bars.
func SnapshotEngine(e *Engine, streamID string) *EngineSnapshot {
	snap := &EngineSnapshot{
		Version:  snapshotVersion,
		TakenAt:  time.Now().UTC(),
		StreamID: streamID,
		Configs:  e.configs,
		Symbols:  make([]SymbolSnapshot, 0, len(e.state)),
	}
	for symbol, si := range e.state {
		ss := SymbolSnapshot{
			Symbol:     symbol,
			Keys:       make([]string, 0, len(si.indicators)),
			Indicators: make([]IndicatorSnapshot, 0, len(si.indicators)),
		}
		for i, ind := range si.indicators {
			s, ok := ind.(Snapshottable)
			if !ok {
				continue
			}
			ss.Keys = append(ss.Keys, si.configs[i].Key())
			ss.Indicators = append(ss.Indicators, s.Snapshot())
		}
		snap.Symbols = append(snap.Symbols, ss)
	}
	return snap
}

// RestoreEngine builds an engine from the active configs and restores
// whatever state the snapshot carries. Tolerant of config drift: config
// entries absent from the snapshot cold-start, snapshot entries absent
// from the configs are dropped. Per-indicator restore failures also
// fall back to a cold instance — a warm majority beats an all-or-
// nothing restore.
func RestoreEngine(configs []Config, snap *EngineSnapshot) (*Engine, int, error) {
	e, err := NewEngine(configs)
	if err != nil {
		return nil, 0, err
	}
	if snap == nil {
		return e, 0, nil
	}
	if snap.Version != snapshotVersion {
		return nil, 0, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	restored := 0
	for _, ss := range snap.Symbols {
		if len(ss.Keys) != len(ss.Indicators) {
			continue
		}
		byKey := make(map[string]IndicatorSnapshot, len(ss.Keys))
		for i, key := range ss.Keys {
			byKey[key] = ss.Indicators[i]
		}
		si := e.createSymbolIndicators()
		for i, cfg := range si.configs {
			is, ok := byKey[cfg.Key()]
			if !ok {
				continue
			}
			s, ok := si.indicators[i].(Snapshottable)
			if !ok {
				continue
			}
			if err := s.RestoreFromSnapshot(is); err != nil {
				si.indicators[i].Reset()
				continue
			}
			restored++
		}
		e.state[ss.Symbol] = si
	}
	return e, restored, nil
}
