package indengine

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"ta-enginev1/internal/logger"
)

// startConsumer starts the Redis stream XREADGROUP consumer in a goroutine.
func (svc *Service) startConsumer(ctx context.Context) {
	if len(svc.streams) == 0 {
		log.Println("[indengine] WARNING: no bar streams to consume")
		return
	}
	svc.health.SetStreamConnected(true)
	go func() {
		if err := svc.redisReader.ConsumeBars(ctx, svc.streams, svc.barCh); err != nil && ctx.Err() == nil {
			log.Printf("[indengine] consumer error: %v", err)
			svc.health.SetStreamConnected(false)
		}
	}()
}

// startPELReclaimer starts periodic reclamation of stale PEL messages.
func (svc *Service) startPELReclaimer(ctx context.Context) {
	if len(svc.streams) == 0 {
		return
	}
	go svc.redisReader.StartPELReclaimer(ctx, svc.streams,
		time.Duration(svc.cfg.PELIntervalS)*time.Second,
		svc.cfg.PELMinIdleMs, svc.barCh,
		func(count int) {
			svc.prom.PELMessagesReclaimed.Add(float64(count))
			log.Printf("[indengine] reclaimed %d stale PEL messages", count)
		})
	log.Printf("[indengine] PEL reclaimer started (interval=%ds, minIdle=%dms)",
		svc.cfg.PELIntervalS, svc.cfg.PELMinIdleMs)
}

// processLoop consumes bars from the channel and computes indicators.
// Results go to Redis through the buffered writer and to SQLite via the
// persister channel.
func (svc *Service) processLoop(ctx context.Context) {
	const (
		computeLatencyKey           = "metrics:indengine:compute_ms"
		computeLatencyTTL           = 30 * time.Second
		computeLatencyPublishMinDur = 2 * time.Second
		computeLatencyAlpha         = 0.2
	)
	var (
		latencyEwmaMs      float64
		lastLatencyPublish time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case sb, ok := <-svc.barCh:
			if !ok {
				return
			}

			bar := sb.Bar
			if err := bar.Validate(); err != nil {
				svc.prom.BarsRejected.Inc()
				log.Printf("[indengine] rejected bar for %s: %v", bar.Symbol, err)
				continue
			}
			svc.prom.BarsTotal.Inc()
			svc.prom.BarLag.Set(time.Since(bar.TS).Seconds())
			svc.health.SetLastBarTime(bar.TS)

			start := time.Now()
			svc.engineMu.Lock()
			results := svc.engine.Process(bar)
			symbolCount := len(svc.engine.Symbols())
			svc.engineMu.Unlock()
			elapsed := time.Since(start)

			// Structured per-bar trace, visible with LOG_LEVEL=debug
			traceCtx := logger.WithTraceID(ctx, logger.GenerateTraceID(bar.Symbol, bar.TS))
			slog.Debug("bar processed", append([]any{
				slog.String("symbol", bar.Symbol),
				slog.Int("results", len(results)),
				slog.Duration("compute", elapsed),
			}, logger.LogWithTrace(traceCtx)...)...)

			svc.prom.ComputeDur.Observe(elapsed.Seconds())
			svc.health.SetSymbolCount(symbolCount)
			if len(results) > 0 {
				svc.prom.ResultsTotal.Add(float64(len(results)))
				for i := range results {
					svc.prom.ResultsByIndicator.WithLabelValues(results[i].Name).Inc()
				}
			}

			// Track EWMA compute latency and publish periodically
			latencyMs := float64(elapsed.Microseconds()) / 1000.0
			if latencyEwmaMs == 0 {
				latencyEwmaMs = latencyMs
			} else {
				latencyEwmaMs = latencyEwmaMs*(1.0-computeLatencyAlpha) + latencyMs*computeLatencyAlpha
			}
			if time.Since(lastLatencyPublish) >= computeLatencyPublishMinDur {
				cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
				if cctx.Err() == nil {
					_ = svc.redisWriter.Client().Set(
						cctx,
						computeLatencyKey,
						fmt.Sprintf("%.3f", latencyEwmaMs),
						computeLatencyTTL,
					).Err()
				}
				cancel()
				lastLatencyPublish = time.Now()
			}

			// Write results: Redis pipeline (buffered under outage) + SQLite
			if len(results) > 0 {
				wstart := time.Now()
				svc.buffered.WriteResults(results)
				svc.prom.RedisWriteDur.Observe(time.Since(wstart).Seconds())

				if svc.sqlWriter != nil {
					select {
					case svc.sqlResultCh <- results:
					default:
						// Persister backlogged — Redis still has the results
					}
				}
			}

			// Persist the bar itself for backfill after restarts
			if svc.sqlWriter != nil {
				select {
				case svc.sqlBarCh <- bar:
				default:
				}
			}

			svc.setLastStreamID(sb.ID)
		}
	}
}
