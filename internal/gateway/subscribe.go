package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"ta-enginev1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ── WS Protocol Message Types ──

// SubscribeMsg is the client → server SUBSCRIBE request.
type SubscribeMsg struct {
	Type       string         `json:"type"`       // "SUBSCRIBE"
	ReqID      string         `json:"reqId"`      // client-generated request ID
	Symbol     string         `json:"symbol"`     // e.g. "AAPL"
	History    HistoryRequest `json:"history"`    // how many historical bars
	Indicators []string       `json:"indicators"` // qualified names, e.g. "RSI(14)", "MACD(12,26,9).macd"; empty = all
}

// HistoryRequest specifies how many historical bars to fetch.
type HistoryRequest struct {
	Bars int `json:"bars"`
}

// UnsubscribeMsg is the client → server UNSUBSCRIBE request.
type UnsubscribeMsg struct {
	Type   string `json:"type"` // "UNSUBSCRIBE"
	ReqID  string `json:"reqId"`
	Symbol string `json:"symbol"`
}

// SnapshotResponse is the server → client SNAPSHOT with historical data.
type SnapshotResponse struct {
	Type       string                        `json:"type"` // "SNAPSHOT"
	ReqID      string                        `json:"reqId"`
	Symbol     string                        `json:"symbol"`
	Bars       []model.Bar                   `json:"bars"`
	Indicators map[string][]SnapshotIndPoint `json:"indicators"`
}

// SnapshotIndPoint is a single indicator point in the snapshot.
type SnapshotIndPoint struct {
	TS    string  `json:"ts"`
	Value float64 `json:"value"`
}

// ErrorResponse is the server → client ERROR message.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId,omitempty"`
	Error string `json:"error"`
}

// ── Subscription State ──

// ClientSubscription holds per-symbol state for a client.
type ClientSubscription struct {
	Symbol     string
	Indicators []string // qualified indicator names; empty = all
}

// ── Redis History Fetching ──

// BuildSnapshotFromRedis reads historical bars + indicator data from the
// Redis streams the engine writes.
func BuildSnapshotFromRedis(rdb *goredis.Client, sub *ClientSubscription, barLimit int) (*SnapshotResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if barLimit <= 0 {
		barLimit = 500
	}
	if barLimit > 1000 {
		barLimit = 1000
	}

	snap := &SnapshotResponse{
		Type:       "SNAPSHOT",
		Symbol:     sub.Symbol,
		Bars:       make([]model.Bar, 0, barLimit),
		Indicators: make(map[string][]SnapshotIndPoint, len(sub.Indicators)),
	}

	// 1. Fetch bars from the Redis stream
	barStreamKey := "bars:" + sub.Symbol
	barMsgs, err := rdb.XRevRangeN(ctx, barStreamKey, "+", "-", int64(barLimit)).Result()
	if err != nil {
		log.Printf("[subscribe] bar stream read error for %s: %v", barStreamKey, err)
		// Don't fail — just return empty bars
	} else {
		// Reverse to chronological order
		for i, j := 0, len(barMsgs)-1; i < j; i, j = i+1, j-1 {
			barMsgs[i], barMsgs[j] = barMsgs[j], barMsgs[i]
		}
		for _, msg := range barMsgs {
			dataStr, ok := msg.Values["data"].(string)
			if !ok {
				continue
			}
			var b model.Bar
			if err := json.Unmarshal([]byte(dataStr), &b); err != nil {
				continue
			}
			snap.Bars = append(snap.Bars, b)
		}
	}

	// 2. Fetch indicator histories from the result streams
	for _, name := range sub.Indicators {
		indStreamKey := "ind:" + name + ":" + sub.Symbol
		indMsgs, err := rdb.XRevRangeN(ctx, indStreamKey, "+", "-", int64(barLimit)).Result()
		if err != nil {
			log.Printf("[subscribe] indicator stream read error for %s: %v", indStreamKey, err)
			snap.Indicators[name] = []SnapshotIndPoint{}
			continue
		}

		// Reverse to chronological order
		for i, j := 0, len(indMsgs)-1; i < j; i, j = i+1, j-1 {
			indMsgs[i], indMsgs[j] = indMsgs[j], indMsgs[i]
		}

		points := make([]SnapshotIndPoint, 0, len(indMsgs))
		for _, msg := range indMsgs {
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

		// Deduplicate by timestamp: keep the LAST value for each TS
		// (streams may contain multiple entries per bar from replay)
		seen := make(map[string]int, len(points))
		deduped := make([]SnapshotIndPoint, 0, len(points))
		for _, pt := range points {
			if idx, ok := seen[pt.TS]; ok {
				deduped[idx] = pt // overwrite with newer value
			} else {
				seen[pt.TS] = len(deduped)
				deduped = append(deduped, pt)
			}
		}

		// Sort by timestamp — replay batch-inserts may interleave
		sort.Slice(deduped, func(i, j int) bool {
			return deduped[i].TS < deduped[j].TS
		})

		snap.Indicators[name] = deduped
	}

	return snap, nil
}

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[subscribe] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[subscribe] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
