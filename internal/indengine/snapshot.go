package indengine

import (
	"context"
	"log"
	"time"

	"ta-enginev1/internal/indicator"
)

// snapshotLoop periodically saves engine state to Redis and SQLite.
// The snapshot carries the last processed stream ID so bars published
// during downtime can be replayed on restart.
func (svc *Service) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(svc.cfg.SnapshotIntervalS) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()

			svc.engineMu.Lock()
			snap := indicator.SnapshotEngine(svc.engine, svc.getLastStreamID())
			svc.engineMu.Unlock()

			// Save to Redis
			if err := svc.redisReader.WriteSnapshot(ctx, svc.cfg.SnapshotKey, snap); err != nil {
				log.Printf("[indengine] redis snapshot write error: %v", err)
			}

			// Save to SQLite
			if svc.sqlWriter != nil {
				if err := svc.sqlWriter.SaveSnapshot(snap); err != nil {
					log.Printf("[indengine] sqlite snapshot write error: %v", err)
				}
			}

			svc.prom.SnapshotsTotal.Inc()
			svc.prom.SnapshotDur.Observe(time.Since(start).Seconds())
			log.Printf("[indengine] ✅ checkpoint saved (%d symbols)", len(snap.Symbols))
		}
	}
}
