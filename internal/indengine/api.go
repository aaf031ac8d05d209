package indengine

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"ta-enginev1/internal/indicator"
)

// startHTTP launches the admin HTTP server for /reload and /configs.
func (svc *Service) startHTTP(ctx context.Context) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/reload", svc.handleReload)
		mux.HandleFunc("/configs", svc.handleConfigs)
		log.Printf("[indengine] admin HTTP server on %s (/reload, /configs)", svc.cfg.HTTPAddr)
		if err := http.ListenAndServe(svc.cfg.HTTPAddr, mux); err != nil {
			log.Printf("[indengine] admin HTTP server error: %v", err)
		}
	}()
}

// handleReload handles POST /reload for live indicator set updates.
// Body: JSON array of indicator configs.
func (svc *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var newConfigs []indicator.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfigs); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	preserved, created, err := svc.reload(newConfigs)
	if err != nil {
		http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"preserved": preserved,
		"created":   created,
	})
}

// handleConfigs handles GET /configs, returning the active indicator set.
func (svc *Service) handleConfigs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	svc.engineMu.Lock()
	configs := svc.engine.Configs()
	svc.engineMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(configs)
}

// startConfigSubscriber listens on Redis PubSub for dynamic indicator
// config updates. Payload is a compact spec string, e.g. "SMA:20,RSI:14".
func (svc *Service) startConfigSubscriber(ctx context.Context) {
	go func() {
		pubsub := svc.redisReader.SubscribeChannel(ctx, "config:indicators")
		if pubsub == nil {
			log.Println("[indengine] WARNING: could not subscribe to config:indicators")
			return
		}
		defer pubsub.Close()
		log.Println("[indengine] subscribed to config:indicators for dynamic reload")

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				log.Printf("[indengine] received config update: %s", msg.Payload)
				if _, _, err := svc.reload(ParseIndicatorSpecs(msg.Payload)); err != nil {
					log.Printf("[indengine] invalid config update: %v", err)
				}
			}
		}
	}()
}

// reload validates and swaps the engine's indicator set, preserving
// warm state for configs that survive the change.
func (svc *Service) reload(newConfigs []indicator.Config) (preserved, created int, err error) {
	svc.engineMu.Lock()
	preserved, created, err = svc.engine.ReloadConfigs(newConfigs)
	svc.engineMu.Unlock()
	if err != nil {
		return 0, 0, err
	}

	svc.prom.ReloadsTotal.Inc()
	svc.prom.InstancesPreserved.Add(float64(preserved))
	svc.prom.InstancesColdStart.Add(float64(created))
	log.Printf("[indengine] reloaded: preserved=%d, created=%d", preserved, created)

	if created > 0 {
		// New instances start cold and warm up as live bars arrive.
		// Re-feeding historical bars into the live engine would
		// double-count them for the preserved instances.
		log.Printf("[indengine] %d new indicator instances warming up from live bars", created)
	}
	return preserved, created, nil
}
