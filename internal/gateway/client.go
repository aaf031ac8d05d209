package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client subscriptions: key = symbol
	subMu sync.RWMutex
	subs  map[string]*ClientSubscription
}

func (c *Client) sendInitialState(lastTS string) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}

		envelope, _ := json.Marshal(map[string]interface{}{
			"channel": channel,
			"data":    json.RawMessage(entry.Data),
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			// Drain any queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		// Parse message type
		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			var subMsg SubscribeMsg
			if err := json.Unmarshal(msg, &subMsg); err != nil {
				SendError(c, "", "invalid SUBSCRIBE: "+err.Error())
				continue
			}
			go c.handleSubscribe(subMsg)

		case "UNSUBSCRIBE":
			var unsubMsg UnsubscribeMsg
			if err := json.Unmarshal(msg, &unsubMsg); err != nil {
				continue
			}
			c.handleUnsubscribe(unsubMsg)

		default:
			// Handle ping/pong (latency probing from the frontend)
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// handleSubscribe processes a SUBSCRIBE message from the client.
func (c *Client) handleSubscribe(msg SubscribeMsg) {
	if msg.Symbol == "" {
		SendError(c, msg.ReqID, "symbol is required")
		return
	}

	sub := &ClientSubscription{
		Symbol:     msg.Symbol,
		Indicators: msg.Indicators,
	}

	c.subMu.Lock()
	if c.subs == nil {
		c.subs = make(map[string]*ClientSubscription)
	}
	c.subs[sub.Symbol] = sub
	c.subMu.Unlock()

	log.Printf("[subscribe] client subscribed: symbol=%s indicators=%v",
		msg.Symbol, msg.Indicators)

	// Build and send snapshot
	barLimit := msg.History.Bars
	if barLimit <= 0 {
		barLimit = 500
	}

	snap, err := BuildSnapshotFromRedis(c.hub.Rdb, sub, barLimit)
	if err != nil {
		SendError(c, msg.ReqID, "snapshot build failed: "+err.Error())
		return
	}
	snap.ReqID = msg.ReqID

	SendJSON(c, snap)
	log.Printf("[subscribe] sent snapshot: symbol=%s bars=%d indicators=%d",
		msg.Symbol, len(snap.Bars), len(snap.Indicators))
}

// handleUnsubscribe removes a subscription.
func (c *Client) handleUnsubscribe(msg UnsubscribeMsg) {
	c.subMu.Lock()
	delete(c.subs, msg.Symbol)
	c.subMu.Unlock()

	log.Printf("[subscribe] client unsubscribed: symbol=%s", msg.Symbol)
}

// matchesChannel checks if a PubSub channel matches any of this client's
// subscriptions. Returns true if the client should receive this message.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subs) == 0 {
		// No subscriptions — legacy mode, receive everything
		return true
	}

	parsed := parseChannel(channel)
	if parsed == nil {
		return true // non-data channel (metrics, config) — always deliver
	}

	sub, ok := c.subs[parsed.symbol]
	if !ok {
		return false
	}
	if parsed.chType == "bar" {
		return true
	}
	// Indicator channel — empty indicator list means "all indicators"
	if len(sub.Indicators) == 0 {
		return true
	}
	for _, name := range sub.Indicators {
		if name == parsed.indName {
			return true
		}
		// Subscribing to a multi-line indicator by base name delivers
		// every component: "MACD(12,26,9)" matches "MACD(12,26,9).macd"
		if base, _, found := strings.Cut(parsed.indName, "."); found && base == name {
			return true
		}
	}
	return false
}

// parsedChannel holds the parsed components of a Redis PubSub channel name.
type parsedChannel struct {
	chType  string // "bar" or "indicator"
	indName string // for indicator channels: "SMA(20)", "MACD(12,26,9).macd"
	symbol  string
}

// parseChannel parses a PubSub channel like "pub:bar:AAPL" or
// "pub:ind:RSI(14):AAPL".
func parseChannel(channel string) *parsedChannel {
	if rest, found := strings.CutPrefix(channel, "pub:bar:"); found && rest != "" {
		return &parsedChannel{chType: "bar", symbol: rest}
	}
	if rest, found := strings.CutPrefix(channel, "pub:ind:"); found {
		name, symbol, ok := strings.Cut(rest, ":")
		if !ok || name == "" || symbol == "" {
			return nil
		}
		return &parsedChannel{chType: "indicator", indName: name, symbol: symbol}
	}
	return nil
}
