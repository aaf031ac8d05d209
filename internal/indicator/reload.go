package indicator

import "log"

// ReloadConfigs swaps in a new indicator set without discarding warm
// state. Instances whose config key survives the reload keep their
// accumulated history; only genuinely new entries cold-start. Returns
// the number of preserved and freshly created instances across all
// symbols.
func (e *Engine) ReloadConfigs(newConfigs []Config) (preserved, created int, err error) {
	if err := ValidateConfigs(newConfigs); err != nil {
		return 0, 0, err
	}

	// Fast path: identical set, keep everything. The existing per-symbol
	// config order stays untouched — the new slice may list the same keys
	// in a different order, and configs[i] must keep pairing with
	// indicators[i].
	if configSetsEqual(e.configs, newConfigs) {
		for _, si := range e.state {
			preserved += len(si.indicators)
		}
		log.Printf("[reload] unchanged set, preserved %d instances", preserved)
		return preserved, 0, nil
	}

	for symbol, si := range e.state {
		oldByKey := make(map[string]BarIndicator, len(si.indicators))
		for i, cfg := range si.configs {
			oldByKey[cfg.Key()] = si.indicators[i]
		}

		newInds := make([]BarIndicator, len(newConfigs))
		for i, cfg := range newConfigs {
			if existing, ok := oldByKey[cfg.Key()]; ok {
				newInds[i] = existing
				preserved++
				continue
			}
			ind, err := cfg.New()
			if err != nil {
				// Unreachable: the set was validated above.
				return preserved, created, err
			}
			newInds[i] = ind
			created++
		}
		e.state[symbol] = &symbolIndicators{indicators: newInds, configs: newConfigs}
	}

	e.configs = newConfigs
	log.Printf("[reload] config reloaded: %d indicators, %d preserved, %d new",
		len(newConfigs), preserved, created)
	return preserved, created, nil
}

// configSetsEqual reports whether two config slices describe the same
// indicator set, order-independent.
func configSetsEqual(a, b []Config) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, cfg := range a {
		set[cfg.Key()] = true
	}
	for _, cfg := range b {
		if !set[cfg.Key()] {
			return false
		}
	}
	return true
}
