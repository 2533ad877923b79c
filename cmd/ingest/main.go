// Command ingest runs the ingestion loop without the query API, or a
// single tick with -once for cron-style operation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dex-price-engine/internal/chain"
	"dex-price-engine/internal/config"
	"dex-price-engine/internal/ingestion"
	"dex-price-engine/internal/observability"
	"dex-price-engine/internal/storage"
	"dex-price-engine/internal/storage/memory"
	"dex-price-engine/internal/storage/migrations"
	"dex-price-engine/internal/storage/postgres"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JSON config file")
		rpcEndpoint = flag.String("rpc-endpoint", "", "Chain JSON-RPC endpoint (overrides config)")
		postgresDSN = flag.String("postgres-dsn", "", "Postgres connection string (overrides config)")
		useMemory   = flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres")
		once        = flag.Bool("once", false, "Run a single tick and exit")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	if *useMemory {
		os.Setenv("ENGINE_USE_MEMORY", "true")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *rpcEndpoint != "" {
		cfg.RPCEndpoint = *rpcEndpoint
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		tokenStore   storage.TokenStore
		pairStore    storage.PairStore
		pairHistory  storage.PairHistoryStore
		tokenHistory storage.TokenHistoryStore
	)
	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
		tokenStore = memory.NewTokenStore()
		pairStore = memory.NewPairStore()
		pairHistory = memory.NewPairHistoryStore()
		tokenHistory = memory.NewTokenHistoryStore()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}

		tokenStore = postgres.NewTokenStore(pool)
		pairStore = postgres.NewPairStore(pool)
		pairHistory = postgres.NewPairHistoryStore(pool)
		tokenHistory = postgres.NewTokenHistoryStore(pool)
	}

	scheduler := ingestion.NewScheduler(ingestion.SchedulerOptions{
		Reader:       chain.NewHTTPClient(cfg.RPCEndpoint, chain.WithTimeout(cfg.RPCTimeout.Std())),
		TokenStore:   tokenStore,
		PairStore:    pairStore,
		PairHistory:  pairHistory,
		TokenHistory: tokenHistory,
		Interval:     cfg.Interval.Std(),
		Retention:    cfg.Retention.Std(),
		Bucket:       cfg.Bucket.Std(),
		RPCTimeout:   cfg.RPCTimeout.Std(),
		MaxInFlight:  cfg.MaxInFlight,
		QuoteAssets:  cfg.QuoteAssets,
		Metrics:      observability.NewMetrics(""),
		Logger:       logger,
	})

	if *once {
		stats := scheduler.RunTick(ctx, time.Now())
		logger.Printf("Tick finished: %d/%d pools ingested, %d failed, %d prices, %d rows pruned",
			stats.PoolsIngested, stats.PoolsSeen, stats.PoolsFailed, stats.PricesComputed, stats.RowsPruned)
		return
	}

	if err := scheduler.Run(ctx); !errors.Is(err, context.Canceled) {
		logger.Fatalf("Scheduler failed: %v", err)
	}
	logger.Println("Ingest stopped")
}
