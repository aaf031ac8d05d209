package redis

import (
	"context"
	"fmt"
	"log"
	"time"
	"unsafe"

	"ta-enginev1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: enough history for the longest realistic window
	// plus dashboard scrollback.
	resultStreamMaxLen = 10000
	barStreamMaxLen    = 20000
	defaultLatestTTL   = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes indicator results (and, for tooling, bars) to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// RunResults reads indicator results and writes them to Redis Streams.
// Blocks until ctx is cancelled or the channel is closed.
func (w *Writer) RunResults(ctx context.Context, resultCh <-chan model.Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-resultCh:
			if !ok {
				return
			}
			w.writeResult(ctx, res)
		}
	}
}

// WriteResultBatch writes multiple indicator results in a single Redis
// pipeline: XADD + SET latest + PUBLISH per result, one network
// roundtrip for the whole bar. Uses []byte→string zero-copy; the JSON
// buffer is never mutated afterwards.
func (w *Writer) WriteResultBatch(ctx context.Context, results []model.Result) error {
	if len(results) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	for i := range results {
		res := &results[i]
		jsonBytes := res.JSON()
		jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: res.StreamKey(),
			MaxLen: resultStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, res.LatestKey(), jsonData, defaultLatestTTL)
		pipe.Publish(ctx, res.PubSubChannel(), jsonData)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] result batch pipeline error (%d results): %v", len(results), err)
	}
	return err
}

// writeResult publishes a single indicator result: XADD + SET + PUBLISH.
func (w *Writer) writeResult(ctx context.Context, res model.Result) {
	jsonBytes := res.JSON()
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: res.StreamKey(),
		MaxLen: resultStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, res.LatestKey(), jsonData, defaultLatestTTL)
	pipe.Publish(ctx, res.PubSubChannel(), jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] result pipeline error for %s: %v", res.Name, err)
	}
}

// WriteBar publishes a bar to its symbol stream. Used by the replay
// tool to feed the engine the same way a live producer would.
func (w *Writer) WriteBar(ctx context.Context, b model.Bar) error {
	jsonData := string(b.JSON())

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: BarStreamKey(b.Symbol),
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, "bar:latest:"+b.Symbol, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, "pub:bar:"+b.Symbol, jsonData)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] bar pipeline error for %s: %v", b.Symbol, err)
	}
	return err
}

// BarStreamKey returns the stream key bars are consumed from.
func BarStreamKey(symbol string) string {
	return "bars:" + symbol
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
