package indicator

import (
	"log"

	"ta-enginev1/internal/model"
)

// BarReader is the interface needed for backfill reads.
type BarReader interface {
	ReadRecentBars(symbol string, limit int) ([]model.Bar, error)
}

// Restorer orchestrates engine state restoration on startup. It follows
// a priority chain: Redis snapshot → SQLite snapshot → cold start; the
// caller resolves which snapshot to hand over, the restorer deals with
// what's in it.
type Restorer struct {
	configs []Config
}

// NewRestorer creates a Restorer for the given indicator configs.
func NewRestorer(configs []Config) *Restorer {
	return &Restorer{configs: configs}
}

// RestoreFromSnap builds an engine from a snapshot. A nil snapshot or a
// failed restore both yield a cold engine rather than an error — the
// engine must come up either way.
func (r *Restorer) RestoreFromSnap(snap *EngineSnapshot) (*Engine, error) {
	if snap == nil {
		log.Println("[restorer] no snapshot found — cold starting engine")
		return NewEngine(r.configs)
	}

	log.Printf("[restorer] restoring from snapshot (version=%d, streamID=%s, symbols=%d)",
		snap.Version, snap.StreamID, len(snap.Symbols))

	engine, restored, err := RestoreEngine(r.configs, snap)
	if err != nil {
		log.Printf("[restorer] WARNING: snapshot restore failed: %v — falling back to cold start", err)
		return NewEngine(r.configs)
	}

	log.Printf("[restorer] restored %d indicator instances from snapshot", restored)
	return engine, nil
}

// ReplayBars feeds bars into the engine to catch up from the snapshot
// position to current state. Returns the number of bars replayed.
func (r *Restorer) ReplayBars(engine *Engine, bars []model.Bar) int {
	for _, b := range bars {
		engine.Process(b)
	}
	log.Printf("[restorer] replayed %d bars to catch up", len(bars))
	return len(bars)
}

// BackfillFromStore reads recent bars per symbol and feeds them into
// the engine to warm up cold indicators. Called after engine creation
// and before starting the live stream consumer. Reads maxPeriod bars
// per symbol so the longest-window indicator fills completely. If
// onResults is non-nil it receives the results for each bar, letting
// the caller populate result history.
func (r *Restorer) BackfillFromStore(engine *Engine, reader BarReader, symbols []string, onResults func([]model.Result)) int {
	if reader == nil {
		return 0
	}

	maxPeriod := 0
	for _, cfg := range r.configs {
		for _, n := range []int{cfg.Period, cfg.Slow, cfg.Signal, cfg.D} {
			if n > maxPeriod {
				maxPeriod = n
			}
		}
	}
	if maxPeriod == 0 {
		return 0
	}

	total := 0
	for _, symbol := range symbols {
		bars, err := reader.ReadRecentBars(symbol, maxPeriod)
		if err != nil {
			log.Printf("[restorer] WARNING: failed to read bars for %s: %v", symbol, err)
			continue
		}
		for _, b := range bars {
			results := engine.Process(b)
			if onResults != nil && len(results) > 0 {
				onResults(results)
			}
		}
		total += len(bars)
		if len(bars) > 0 {
			log.Printf("[restorer] backfilled %d bars for %s", len(bars), symbol)
		}
	}

	if total > 0 {
		log.Printf("[restorer] backfilled %d total bars", total)
	}
	return total
}
