package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ta-enginev1/internal/model"
)

// BufferedWriter wraps a Redis Writer with a circuit breaker.
// During circuit-open state, result batches are buffered locally and
// flushed when the circuit closes again.
type BufferedWriter struct {
	writer *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer [][]byte // JSON-encoded result batches
	maxBuf int      // max buffered batches before dropping oldest

	// Callbacks
	OnBuffer func()          // called when a batch is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered batches
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Writer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([][]byte, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteResults writes a result batch through the circuit breaker.
// If the circuit is open, the batch is buffered locally.
func (bw *BufferedWriter) WriteResults(results []model.Result) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.WriteResultBatch(bw.ctx, results)
	})
	if err == ErrCircuitOpen {
		bw.bufferBatch(results)
		return nil // buffered, not lost
	}
	return err
}

func (bw *BufferedWriter) bufferBatch(results []model.Result) {
	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("[buffered-writer] marshal error: %v", err)
		return
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		// Buffer full — drop oldest
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, data)

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays all buffered batches through the underlying writer.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	// Take ownership of the buffer
	toFlush := bw.buffer
	bw.buffer = make([][]byte, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, data := range toFlush {
		var results []model.Result
		if json.Unmarshal(data, &results) == nil {
			bw.writer.WriteResultBatch(bw.ctx, results)
		}
		flushed++
	}

	log.Printf("[buffered-writer] flushed %d buffered batches", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered batches waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the wrapped Redis writer for direct access.
func (bw *BufferedWriter) Underlying() *Writer {
	return bw.writer
}
