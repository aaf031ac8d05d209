package gateway

import (
	"encoding/json"
	"fmt"
	"testing"
)

// pushEnvelopes fills rb with realistic indicator envelopes carrying
// channel_seqs from..to.
func pushEnvelopes(rb *ReplayBuffer, channel string, from, to int64) {
	for seq := from; seq <= to; seq++ {
		env := fmt.Sprintf(
			`{"channel":"%s","data":{"value":%d.5},"channel_seq":%d}`,
			channel, seq, seq)
		rb.Push(seq, []byte(env))
	}
}

func TestReplayBuffer_GapBackfill(t *testing.T) {
	rb := NewReplayBuffer(100)
	pushEnvelopes(rb, "pub:ind:RSI(14):AAPL", 1, 10)

	// A client saw channel_seq 2 then 8: it asks for 3..7.
	got := rb.Range(3, 7)
	if len(got) != 5 {
		t.Fatalf("Range(3,7) returned %d envelopes, want 5", len(got))
	}
	for i, e := range got {
		want := int64(3 + i)
		if e.Seq != want {
			t.Errorf("entry %d: seq = %d, want %d", i, e.Seq, want)
		}
		var env struct {
			ChannelSeq int64 `json:"channel_seq"`
		}
		if err := json.Unmarshal(e.Data, &env); err != nil {
			t.Fatalf("entry %d is not the envelope that was pushed: %v", i, err)
		}
		if env.ChannelSeq != want {
			t.Errorf("entry %d: payload channel_seq = %d, want %d", i, env.ChannelSeq, want)
		}
	}
}

func TestReplayBuffer_OldestEvictedOnOverflow(t *testing.T) {
	rb := NewReplayBuffer(5)
	pushEnvelopes(rb, "pub:bar:MSFT", 1, 8)

	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}

	// Seqs 1..3 fell out; asking for everything yields 4..8 in order.
	got := rb.Range(1, 100)
	if len(got) != 5 {
		t.Fatalf("Range over full buffer returned %d, want 5", len(got))
	}
	if got[0].Seq != 4 || got[4].Seq != 8 {
		t.Errorf("range spans %d..%d, want 4..8", got[0].Seq, got[4].Seq)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq != got[i-1].Seq+1 {
			t.Errorf("backfill not contiguous at index %d: %d after %d", i, got[i].Seq, got[i-1].Seq)
		}
	}
}

func TestReplayBuffer_RequestOlderThanBuffer(t *testing.T) {
	rb := NewReplayBuffer(4)
	pushEnvelopes(rb, "pub:ind:SMA(20):AAPL", 50, 60)

	// Everything requested predates the retained window.
	if got := rb.Range(1, 40); len(got) != 0 {
		t.Errorf("Range over evicted seqs returned %d entries, want 0", len(got))
	}
	// A range straddling the eviction boundary returns only what's left.
	got := rb.Range(40, 58)
	if len(got) != 2 || got[0].Seq != 57 {
		t.Errorf("straddling range = %+v, want seqs 57..58", got)
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	if got := rb.Range(1, 100); len(got) != 0 {
		t.Errorf("empty buffer returned %d entries", len(got))
	}
	if rb.Len() != 0 {
		t.Errorf("Len() = %d, want 0", rb.Len())
	}
}

func TestReplayBuffer_PushCopiesEnvelope(t *testing.T) {
	// The broadcaster reuses its build buffer between envelopes; the
	// replay buffer must hold its own copy.
	rb := NewReplayBuffer(4)
	buf := []byte(`{"channel_seq":1}`)
	rb.Push(1, buf)
	copy(buf, `XXXXXXXX`)

	got := rb.Range(1, 1)
	if len(got) != 1 {
		t.Fatal("pushed envelope missing")
	}
	if string(got[0].Data) != `{"channel_seq":1}` {
		t.Errorf("stored envelope aliased the caller's buffer: %s", got[0].Data)
	}
}
