package gateway

import "sync"

// replayEntry pairs a channel_seq with the envelope bytes that carried
// it, so gap backfill returns exactly what the WebSocket would have
// delivered.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer keeps the most recent envelopes broadcast on one
// channel. When a client detects a channel_seq gap it asks /api/missed
// for the range it skipped; anything older than the buffer is gone and
// the client falls back to a full snapshot. Sequences arrive strictly
// increasing (the broadcaster owns the counter), which Range relies on.
type ReplayBuffer struct {
	mu      sync.RWMutex
	entries []replayEntry
	next    int // write cursor
	filled  int // saturates at len(entries)
}

// NewReplayBuffer creates a buffer holding the last capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 500
	}
	return &ReplayBuffer{entries: make([]replayEntry, capacity)}
}

// Push records an envelope, evicting the oldest once full. The bytes
// are copied: the broadcaster reuses its build buffer.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	held := make([]byte, len(data))
	copy(held, data)

	rb.mu.Lock()
	rb.entries[rb.next] = replayEntry{Seq: seq, Data: held}
	rb.next = (rb.next + 1) % len(rb.entries)
	if rb.filled < len(rb.entries) {
		rb.filled++
	}
	rb.mu.Unlock()
}

// Range returns the buffered envelopes with seq in [fromSeq, toSeq],
// oldest first. Sequences below the buffer's oldest entry are silently
// absent — the caller compares what it got against what it asked for.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []replayEntry
	for i := 0; i < rb.filled; i++ {
		e := rb.entries[rb.oldest(i)]
		if e.Seq > toSeq {
			break // entries are seq-ordered, nothing further matches
		}
		if e.Seq >= fromSeq {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.filled
}

// oldest maps a logical index (0 = oldest entry) to its ring slot.
// Must be called with rb.mu held.
func (rb *ReplayBuffer) oldest(logical int) int {
	if rb.filled < len(rb.entries) {
		return logical
	}
	return (rb.next + logical) % len(rb.entries)
}
