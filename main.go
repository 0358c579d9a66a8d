package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"h2hServer/api"
	"h2hServer/auth"
	"h2hServer/config"
	"h2hServer/contract"
	"h2hServer/crypto"
	"h2hServer/db"
	"h2hServer/jobs"
	"h2hServer/leaderboard"
	"h2hServer/logger"
	"h2hServer/market"
	"h2hServer/monitoring"
	"h2hServer/oracle"
	"h2hServer/seed"
	"h2hServer/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, loaded, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("❌ Logger initialization failed: %v", err)
	}
	lg := logger.Log
	defer lg.Sync()

	if loaded {
		lg.Info("✅ Loaded environment variables from .env")
	} else {
		lg.Warn("⚠️  .env file not found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]api.HealthCheck{}

	// Initialize the store
	var (
		store    market.Store
		memStore *market.MemoryStore
	)
	switch cfg.Store {
	case config.StoreMemory:
		lg.Warn("⚠️  Using in-memory store, state is lost on restart")
		memStore = market.NewMemoryStore()
		store = memStore
	default:
		sqlStore, err := db.Open(ctx, cfg, lg)
		if err != nil {
			lg.Fatal("❌ Store initialization failed", zap.Error(err))
		}
		defer sqlStore.Close()
		health["store"] = sqlStore.Ping
		store = sqlStore
	}

	// Redis backs replay protection and the off-chain price source
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = db.OpenRedis(ctx, db.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, lg)
		if err != nil {
			lg.Warn("⚠️  Redis initialization failed", zap.Error(err))
			lg.Warn("   Replay protection falls back to process memory")
			rdb = nil
		} else {
			defer rdb.Close()
			health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	var guard auth.ReplayGuard = auth.NewMemoryReplayGuard()
	if rdb != nil {
		guard = auth.NewRedisReplayGuard(rdb, config.RedisNoncePrefix)
	}

	metrics := monitoring.New()
	hub := ws.NewHub(lg, ws.WithClientGauge(func(n int) { metrics.WSClients.Set(float64(n)) }))
	board := leaderboard.New()

	program := market.NewProgram(store,
		market.WithLogger(lg),
		market.WithObserver(hub),
		market.WithObserver(metrics),
		market.WithObserver(board),
		market.WithRecorder(metrics.RecordOperation),
	)

	// Nothing can fund a memory store from outside, so seed it here
	if memStore != nil {
		if err := bootstrapMemory(ctx, cfg, program, memStore, lg); err != nil {
			lg.Fatal("❌ Memory store bootstrap failed", zap.Error(err))
		}
	}

	if err := board.Rebuild(ctx, program); err != nil && !errors.Is(err, market.ErrNotInitialized) {
		lg.Warn("⚠️  Leaderboard rebuild failed", zap.Error(err))
	}

	manager := jobs.New(lg)
	manager.Register("ws-hub", hub)

	if cfg.OracleSource != config.OracleNone {
		feeder, closeSource, err := newFeeder(cfg, program, rdb, metrics, lg)
		if err != nil {
			lg.Fatal("❌ Price feeder initialization failed", zap.Error(err))
		}
		defer closeSource()
		manager.Register("price-feeder", feeder)
	}

	srv := api.NewServer(api.Deps{
		Program:  program,
		Verifier: auth.NewVerifier(cfg.AuthMaxSkew, guard, auth.WithLogger(lg)),
		Hub:      hub,
		Metrics:  metrics,
		Board:    board,
		Health:   health,
		Log:      lg,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobsDone := make(chan struct{})
	go func() {
		manager.Start(ctx)
		close(jobsDone)
	}()

	go func() {
		printBanner(lg, cfg)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("❌ Server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		lg.Warn("⚠️  HTTP shutdown incomplete", zap.Error(err))
	}
	<-jobsDone
	lg.Info("👋 Server stopped")
}

// bootstrapMemory initializes the market in a fresh memory store and funds
// the seed accounts. Without ADMIN_PRIVATE_KEY a throwaway admin is used.
func bootstrapMemory(ctx context.Context, cfg config.Config, program *market.Program, store *market.MemoryStore, lg *zap.Logger) error {
	var (
		admin common.Address
		err   error
	)
	if cfg.AdminPrivateKey != "" {
		_, admin, err = crypto.LoadPrivateKey(cfg.AdminPrivateKey)
	} else {
		_, admin, err = crypto.GenerateKey()
		lg.Warn("⚠️  ADMIN_PRIVATE_KEY not set, market initialized by an ephemeral admin", zap.Stringer("admin", admin))
	}
	if err != nil {
		return err
	}

	accounts := seed.Accounts(cfg.SeedAccounts)
	if _, err := seed.Bootstrap(ctx, program, store, seed.Options{
		Admin:        admin,
		Denomination: seed.Denomination(cfg.Denomination),
		Accounts:     accounts,
		MintAmount:   config.DefaultMintAmount,
		Log:          lg,
	}); err != nil {
		return err
	}
	lg.Info("🌱 Memory store seeded",
		zap.Stringer("admin", admin),
		zap.Int("accounts", len(accounts)),
		zap.Uint64("mint", config.DefaultMintAmount),
	)
	return nil
}

// newFeeder builds the admin price feeder for the configured oracle source.
func newFeeder(cfg config.Config, program *market.Program, rdb *redis.Client, metrics *monitoring.Metrics, lg *zap.Logger) (*oracle.Feeder, func(), error) {
	_, admin, err := crypto.LoadPrivateKey(cfg.AdminPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	var (
		source oracle.Source
		closer = func() {}
	)
	switch cfg.OracleSource {
	case config.OracleRedis:
		if rdb == nil {
			return nil, nil, errors.New("redis oracle requires a reachable REDIS_URL")
		}
		source = oracle.NewRedisSource(rdb, cfg.OracleRedisKey)
	case config.OracleChainlink:
		agg, err := contract.DialAggregator(cfg.ChainRPC, common.HexToAddress(cfg.AggregatorAddress))
		if err != nil {
			return nil, nil, err
		}
		if desc, err := agg.Description(context.Background()); err == nil {
			lg.Info("🔗 Aggregator connected", zap.String("feed", desc), zap.String("address", cfg.AggregatorAddress))
		}
		source = oracle.NewChainlinkSource(agg)
		closer = agg.Close
	case config.OracleSimulated:
		start := oracle.Sample{Value: new(big.Int).SetUint64(config.DefaultInitialPrice), Decimals: config.DefaultPriceDecimals}
		if _, price, decimals, err := program.CurrentPrice(context.Background()); err == nil {
			start = oracle.Sample{Value: new(big.Int).SetUint64(price), Decimals: decimals}
		}
		lg.Info("🎲 Simulated price walk", zap.String("seed", cfg.OracleSeed), zap.String("start", start.Value.String()))
		source = oracle.NewSimulatedSource(cfg.OracleSeed, start)
	}

	feeder := oracle.NewFeeder(program, admin, source, cfg.FeedInterval,
		oracle.WithLogger(lg),
		oracle.WithRecorder(func(result string) { metrics.OracleSamples.WithLabelValues(result).Inc() }),
	)
	return feeder, closer, nil
}

func printBanner(lg *zap.Logger, cfg config.Config) {
	lg.Info("🚀 Server starting",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.Store),
		zap.String("oracle", cfg.OracleSource),
	)
	lg.Info("📡 WebSocket: /ws - subscribe to 'prices', 'games', 'admin' or 'game:<index>'")
	lg.Info("🔌 API Endpoints:",
		zap.Strings("initialize", []string{
			"POST /api/config/init", "POST /api/prices/init", "POST /api/games/init", "POST /api/vault/init",
		}),
		zap.Strings("operations", []string{
			"POST /api/prices", "POST /api/games",
			"POST /api/games/{index}/join", "POST /api/games/{index}/withdraw", "POST /api/games/{index}/claim",
		}),
		zap.Strings("queries", []string{
			"GET /api/config", "GET /api/prices", "GET /api/prices/latest", "GET /api/games", "GET /api/games/{index}",
			"GET /api/vault", "GET /api/balances/{address}", "GET /api/leaderboard", "GET /api/health", "GET /metrics",
		}),
	)
}
