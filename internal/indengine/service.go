package indengine

import (
	"context"
	"database/sql"
	"log"
	"os"
	"sync"
	"time"

	"ta-enginev1/internal/indicator"
	"ta-enginev1/internal/metrics"
	"ta-enginev1/internal/model"
	redisstore "ta-enginev1/internal/store/redis"
	sqlitestore "ta-enginev1/internal/store/sqlite"
)

// Service is the top-level orchestrator for the indicator engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg Config

	engine   *indicator.Engine
	engineMu sync.Mutex // guards engine across consumer, reload, snapshot

	redisReader *redisstore.Reader
	redisWriter *redisstore.Writer
	buffered    *redisstore.BufferedWriter
	sqlReader   *sqlitestore.Reader
	sqlWriter   *sqlitestore.Writer

	prom       *metrics.Metrics
	health     *metrics.HealthStatus
	metricsSrv *metrics.Server

	streams     []string
	barCh       chan redisstore.StreamBar
	sqlBarCh    chan model.Bar
	sqlResultCh chan []model.Result

	idMu         sync.Mutex
	lastStreamID string // last processed stream entry ID, for snapshots
}

// New creates a new Service from the given Config.
// It connects to Redis and SQLite and prepares the result pipeline.
func New(cfg Config) (*Service, error) {
	svc := &Service{
		cfg:         cfg,
		prom:        metrics.NewMetrics(),
		health:      metrics.NewHealthStatus(),
		barCh:       make(chan redisstore.StreamBar, 5000),
		sqlBarCh:    make(chan model.Bar, 5000),
		sqlResultCh: make(chan []model.Result, 5000),
	}

	// ---- Connect to Redis ----
	var err error
	svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
		Addr:          cfg.RedisAddr,
		Password:      cfg.RedisPassword,
		DB:            cfg.RedisDB,
		ConsumerGroup: cfg.ConsumerGroup,
		ConsumerName:  cfg.ConsumerName,
	})
	if err != nil {
		return nil, err
	}

	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		svc.redisReader.Close()
		return nil, err
	}

	// ---- Circuit breaker + buffered result writer ----
	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
		log.Printf("[indengine] redis circuit breaker: %s → %s", from, to)
	}
	svc.buffered = redisstore.NewBufferedWriter(context.Background(), svc.redisWriter, cb, cfg.MaxBufferedWrites)
	svc.buffered.OnBuffer = func() { svc.prom.RedisBufferedWrites.Inc() }
	svc.buffered.OnFlush = func(count int) {
		log.Printf("[indengine] circuit closed, flushed %d buffered batches", count)
	}

	// ---- Open SQLite ----
	os.MkdirAll("data", 0o755)
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[indengine] WARNING: sqlite writer init failed: %v (continuing without persistence)", err)
	} else {
		svc.sqlWriter.OnCommit = func(d time.Duration) {
			svc.prom.SQLiteCommitDur.Observe(d.Seconds())
		}
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Printf("[indengine] WARNING: sqlite reader init failed: %v (continuing without backfill)", err)
	}

	svc.metricsSrv = metrics.NewServer(cfg.MetricsAddr, svc.health)
	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[indengine] starting Indicator Engine service...")

	// ---- Restore engine from snapshot ----
	snap, err := svc.restoreEngine(ctx)
	if err != nil {
		return err
	}

	// ---- Build streams ----
	svc.streams = svc.buildStreams(ctx)
	log.Printf("[indengine] consuming from %d streams: %v", len(svc.streams), svc.streams)

	// ---- Replay delta since snapshot ----
	svc.replayDelta(ctx, snap)

	// ---- Ensure consumer groups ----
	if len(svc.streams) > 0 {
		if err := svc.redisReader.EnsureConsumerGroup(ctx, svc.streams); err != nil {
			log.Printf("[indengine] WARNING: consumer group setup: %v", err)
		}
	}

	// ---- Recover pending messages ----
	if len(svc.streams) > 0 {
		if err := svc.redisReader.RecoverPending(ctx, svc.streams, svc.barCh); err != nil {
			log.Printf("[indengine] pending recovery error: %v", err)
		}
	}

	// ---- Start subsystems ----
	if svc.sqlWriter != nil {
		go svc.sqlWriter.RunBars(ctx, svc.sqlBarCh)
		go svc.runResultPersister(ctx)
	}
	svc.startPELReclaimer(ctx)
	go svc.processLoop(ctx)
	svc.startConsumer(ctx)
	go svc.snapshotLoop(ctx)
	svc.startHTTP(ctx)
	svc.startConfigSubscriber(ctx)
	svc.metricsSrv.Start()
	svc.health.SetEngineOK(true)
	var sqlDB *sql.DB
	if svc.sqlWriter != nil {
		sqlDB = svc.sqlWriter.DB()
	}
	svc.health.StartLivenessChecker(ctx, svc.redisWriter.Client(), sqlDB, 10*time.Second)

	// ---- Startup banner ----
	log.Println("[indengine] ╔════════════════════════════════════════════════════════╗")
	log.Println("[indengine] ║  Indicator Engine Active                               ║")
	log.Println("[indengine] ║                                                        ║")
	log.Println("[indengine] ║  [Bar Streams] → [Indicators] → [Redis + SQLite]       ║")
	log.Printf("[indengine] ║  Snapshot checkpoint every %ds                        ║", cfg.SnapshotIntervalS)
	log.Printf("[indengine] ║  Indicators: %d configured                             ║", len(cfg.Indicators))
	log.Println("[indengine] ╚════════════════════════════════════════════════════════╝")
	log.Println("[indengine] ✅ all systems running. Press Ctrl+C to stop.")

	// Block until context cancelled
	<-ctx.Done()

	// ---- Graceful shutdown ----
	svc.shutdown()
	return nil
}

// shutdown saves a final snapshot and closes connections.
func (svc *Service) shutdown() {
	log.Println("[indengine] shutdown signal received, saving final snapshot...")

	svc.engineMu.Lock()
	finalSnap := indicator.SnapshotEngine(svc.engine, svc.getLastStreamID())
	svc.engineMu.Unlock()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	if svc.redisReader != nil {
		svc.redisReader.WriteSnapshot(shutCtx, svc.cfg.SnapshotKey, finalSnap)
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.SaveSnapshot(finalSnap)
	}
	log.Println("[indengine] final snapshot saved")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	svc.metricsSrv.Stop(stopCtx)
	stopCancel()

	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	svc.redisWriter.Close()
	svc.redisReader.Close()

	log.Println("[indengine] shutdown complete.")
}

// restoreEngine restores the indicator engine from a Redis or SQLite
// snapshot, then backfills cold indicators from stored bars. Returns
// the snapshot used (nil on cold start) so the caller can replay the
// delta since its stream position.
func (svc *Service) restoreEngine(ctx context.Context) (*indicator.EngineSnapshot, error) {
	restorer := indicator.NewRestorer(svc.cfg.Indicators)

	// Try Redis snapshot first
	snap, err := svc.redisReader.ReadSnapshot(ctx, svc.cfg.SnapshotKey)
	if err != nil {
		log.Printf("[indengine] redis snapshot read error: %v", err)
	}

	// Fallback to SQLite
	if snap == nil && svc.sqlReader != nil {
		snap, err = svc.sqlReader.ReadLatestSnapshot()
		if err != nil {
			log.Printf("[indengine] sqlite snapshot read error: %v", err)
		}
	}

	svc.engine, err = restorer.RestoreFromSnap(snap)
	if err != nil {
		return nil, err
	}

	// Backfill from SQLite to warm up cold indicators. Only on a cold
	// start: a restored engine already carries this state, and re-feeding
	// stored bars would double-count them (delta replay covers the gap
	// since the checkpoint).
	if snap == nil && svc.sqlReader != nil {
		symbols := svc.backfillSymbols()
		backfilled := restorer.BackfillFromStore(svc.engine, svc.sqlReader, symbols, func(results []model.Result) {
			svc.buffered.WriteResults(results)
		})
		if backfilled > 0 {
			log.Printf("[indengine] warmed up indicators with %d historical bars", backfilled)
		}
	}

	return snap, nil
}

// backfillSymbols returns the symbols to warm up: configured ones, or
// whatever SQLite has seen if none are configured.
func (svc *Service) backfillSymbols() []string {
	if len(svc.cfg.Symbols) > 0 {
		return svc.cfg.Symbols
	}
	symbols, err := svc.sqlReader.Symbols()
	if err != nil {
		log.Printf("[indengine] WARNING: symbol discovery failed: %v", err)
		return nil
	}
	return symbols
}

// buildStreams constructs the Redis bar stream names to consume.
// Configured symbols take priority; otherwise existing streams are
// discovered from the symbols SQLite knows about.
func (svc *Service) buildStreams(ctx context.Context) []string {
	if len(svc.cfg.Symbols) > 0 {
		streams := make([]string, len(svc.cfg.Symbols))
		for i, sym := range svc.cfg.Symbols {
			streams[i] = redisstore.BarStreamKey(sym)
		}
		return streams
	}
	return svc.redisReader.DiscoverBarStreams(ctx, svc.backfillSymbols())
}

// replayDelta replays bars published since the snapshot position so the
// engine catches up before live consumption starts.
func (svc *Service) replayDelta(ctx context.Context, snap *indicator.EngineSnapshot) {
	if snap == nil || snap.StreamID == "" {
		return
	}

	log.Printf("[indengine] replaying delta from stream ID: %s", snap.StreamID)
	replayCh := make(chan redisstore.StreamBar, 5000)
	go func() {
		for _, stream := range svc.streams {
			_, err := svc.redisReader.ReplayFromID(ctx, stream, snap.StreamID, replayCh)
			if err != nil {
				log.Printf("[indengine] replay error on %s: %v", stream, err)
			}
		}
		close(replayCh)
	}()

	deltaCount := 0
	for sb := range replayCh {
		if sb.Bar.Validate() != nil {
			continue
		}
		results := svc.engine.Process(sb.Bar)
		if len(results) > 0 {
			svc.buffered.WriteResults(results)
		}
		svc.setLastStreamID(sb.ID)
		deltaCount++
	}
	if deltaCount > 0 {
		log.Printf("[indengine] ✅ replayed %d delta bars", deltaCount)
	}
}

// runResultPersister forwards result batches into the SQLite writer.
func (svc *Service) runResultPersister(ctx context.Context) {
	svc.sqlWriter.RunResults(ctx, svc.sqlResultCh)
}

func (svc *Service) setLastStreamID(id string) {
	svc.idMu.Lock()
	svc.lastStreamID = id
	svc.idMu.Unlock()
}

func (svc *Service) getLastStreamID() string {
	svc.idMu.Lock()
	defer svc.idMu.Unlock()
	return svc.lastStreamID
}
