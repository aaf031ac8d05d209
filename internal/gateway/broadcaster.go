package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

// Broadcaster wraps indicator results and bars in wire envelopes and
// fans them out to the subscribed clients.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// appendEnvelope builds the wire envelope by hand — ~1μs against ~25μs
// for json.Marshal, and this runs once per result per channel. seq is
// the hub-global counter; channelSeq is the per-channel counter clients
// use for gap detection against /api/missed.
func appendEnvelope(channel string, data []byte, ts time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// Broadcast delivers one payload on a channel: assigns sequence
// numbers, records the latest value, retains the envelope for gap
// backfill and pushes it to every client whose subscriptions match.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()
	b.sampleLatency(now, data)

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.seq++
	seq := b.hub.seq
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	rb, ok := b.hub.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(500)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := appendEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			// Slow client: drop rather than stall the fan-out.
		}
	}
}

// sampleLatency records bar-to-delivery latency when the payload
// carries a source timestamp. The engine stamps results with the bar's
// ts, so now−ts is the full pipeline: compute, Redis publish, fan-out.
func (b *Broadcaster) sampleLatency(now time.Time, data []byte) {
	if b.hub.Latency == nil {
		return
	}
	var src struct {
		TS time.Time `json:"ts"`
	}
	if err := json.Unmarshal(data, &src); err != nil || src.TS.IsZero() {
		return
	}
	if ms := float64(now.Sub(src.TS).Microseconds()) / 1000.0; ms >= 0 {
		b.hub.Latency.Record(ms)
	}
}
