package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ta-enginev1/internal/model"
	"ta-enginev1/internal/ringbuf"
)

// PubSubRouter manages Redis PubSub subscriptions and routes messages to
// the broadcaster. Indicator results flow through a lock-free SPSC ring
// so a slow fan-out never blocks the Redis subscription goroutine.
type PubSubRouter struct {
	hub  *Hub
	ring *ringbuf.Ring
}

// NewPubSubRouter creates a PubSubRouter backed by the given Hub.
func NewPubSubRouter(hub *Hub) *PubSubRouter {
	return &PubSubRouter{
		hub:  hub,
		ring: ringbuf.New(8192),
	}
}

// RingOverflow returns the number of results dropped due to a full ring.
func (r *PubSubRouter) RingOverflow() uint64 {
	return r.ring.Overflow()
}

// Run starts the pattern subscriptions and the ring drain loop.
// Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	go r.drainLoop(ctx)
	go r.runBars(ctx)
	r.runIndicators(ctx)
}

// runIndicators subscribes to all indicator result channels and pushes
// parsed results into the ring. Producer side of the SPSC pair.
func (r *PubSubRouter) runIndicators(ctx context.Context) {
	pubsub := r.hub.Rdb.PSubscribe(ctx, "pub:ind:*")
	defer pubsub.Close()

	log.Println("[gateway] subscribed to pub:ind:* for indicator results")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var res model.Result
			if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
				log.Printf("[gateway] bad result payload on %s: %v", msg.Channel, err)
				continue
			}
			if !r.ring.Push(res) {
				// Ring full — fan-out is behind, drop rather than block
				continue
			}
		}
	}
}

// drainLoop pops results from the ring and broadcasts them.
// Consumer side of the SPSC pair.
func (r *PubSubRouter) drainLoop(ctx context.Context) {
	idle := time.NewTicker(time.Millisecond)
	defer idle.Stop()

	for {
		res, ok := r.ring.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}
		r.hub.broadcast(res.PubSubChannel(), res.JSON())
	}
}

// runBars subscribes to bar channels and broadcasts them directly; bar
// traffic is one message per symbol per interval and needs no ring.
func (r *PubSubRouter) runBars(ctx context.Context) {
	pubsub := r.hub.Rdb.PSubscribe(ctx, "pub:bar:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.hub.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}
