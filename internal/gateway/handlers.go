package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"ta-enginev1/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, rdb *goredis.Client, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		lastTS := r.URL.Query().Get("last_ts")
		hub.HandleWSRequest(conn, lastTS)
	})

	// REST: latest value per channel
	mux.HandleFunc("/api/indicators/latest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.GetLatestAll())
	})

	// REST: gateway config
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbols": hub.Symbols,
		})
	})

	// REST: GET/POST /api/indicators/active
	mux.HandleFunc("/api/indicators/active", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method == "POST" {
			var req ActiveConfig
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			hub.SetActiveConfig(req)
			log.Printf("[gateway] active config updated: %d entries", len(req.Entries))
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
			return
		}

		// GET
		json.NewEncoder(w).Encode(hub.GetActiveConfig())
	})

	// REST: system metrics snapshot
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		m := CollectMetrics(processStart)
		if v, ok := ReadComputeLatency(r.Context(), rdb); ok {
			m.ComputeMs = v
		}
		if hub.Latency != nil {
			m.LatencyP50, m.LatencyP95, m.LatencyP99 = hub.Latency.Percentiles()
		}
		json.NewEncoder(w).Encode(m)
	})

	// REST: historical bars from Redis streams
	mux.HandleFunc("/api/bars", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" && len(hub.Symbols) > 0 {
			symbol = hub.Symbols[0]
		}
		limit := parseLimit(r.URL.Query().Get("limit"), 200)
		upperBound := parseBefore(r.URL.Query().Get("before"))

		msgs, err := rdb.XRevRangeN(r.Context(), "bars:"+symbol, upperBound, "-", int64(limit)).Result()
		if err != nil {
			json.NewEncoder(w).Encode([]model.Bar{})
			return
		}
		reverseMsgs(msgs)

		bars := make([]model.Bar, 0, len(msgs))
		for _, msg := range msgs {
			dataStr, ok := msg.Values["data"].(string)
			if !ok {
				continue
			}
			var b model.Bar
			if err := json.Unmarshal([]byte(dataStr), &b); err != nil {
				continue
			}
			bars = append(bars, b)
		}

		json.NewEncoder(w).Encode(bars)
	})

	// REST: historical indicator values from Redis streams
	mux.HandleFunc("/api/indicators/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		name := r.URL.Query().Get("name") // qualified, e.g. "RSI(14)" or "MACD(12,26,9).macd"
		symbol := r.URL.Query().Get("symbol")
		if name == "" || symbol == "" {
			json.NewEncoder(w).Encode([]SnapshotIndPoint{})
			return
		}
		limit := parseLimit(r.URL.Query().Get("limit"), 300)
		upperBound := parseBefore(r.URL.Query().Get("before"))

		msgs, err := rdb.XRevRangeN(r.Context(), "ind:"+name+":"+symbol, upperBound, "-", int64(limit)).Result()
		if err != nil {
			json.NewEncoder(w).Encode([]SnapshotIndPoint{})
			return
		}
		reverseMsgs(msgs)

		points := make([]SnapshotIndPoint, 0, len(msgs))
		for _, msg := range msgs {
			dataStr, ok := msg.Values["data"].(string)
			if !ok {
				continue
			}
			var res model.Result
			if err := json.Unmarshal([]byte(dataStr), &res); err != nil {
				continue
			}
			points = append(points, SnapshotIndPoint{
				TS:    res.TS.Format(time.RFC3339),
				Value: res.Value,
			})
		}

		json.NewEncoder(w).Encode(points)
	})

	// REST: gap backfill from the per-channel replay buffers
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		channel := r.URL.Query().Get("channel")
		fromSeq, _ := strconv.ParseInt(r.URL.Query().Get("from_seq"), 10, 64)
		toSeq, _ := strconv.ParseInt(r.URL.Query().Get("to_seq"), 10, 64)
		if channel == "" || fromSeq <= 0 {
			http.Error(w, `{"error":"channel and from_seq are required"}`, http.StatusBadRequest)
			return
		}
		if toSeq <= 0 {
			toSeq = hub.GetChannelSeq(channel)
		}

		envelopes := hub.GetReplayRange(channel, fromSeq, toSeq)
		out := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			out[i] = json.RawMessage(e)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"channel":   channel,
			"from_seq":  fromSeq,
			"to_seq":    toSeq,
			"envelopes": out,
		})
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		redisOK := true
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			redisOK = false
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"redis":         redisOK,
			"ws_clients":    hub.ClientCount(),
			"ring_overflow": hub.Router.RingOverflow(),
			"uptime_sec":    int64(time.Since(processStart).Seconds()),
			"ts":            time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
		return l
	}
	return def
}

// parseBefore converts an RFC3339 timestamp into an exclusive stream
// upper bound, or "+" when absent.
func parseBefore(s string) string {
	if s == "" {
		return "+"
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return strconv.FormatInt(t.UnixMilli()-1, 10) + "-0"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return strconv.FormatInt(t.UnixMilli()-1, 10) + "-0"
	}
	return "+"
}

func reverseMsgs(msgs []goredis.XMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
